package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Setting 键值存储表
type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// KV 键值存储接口
type KV interface {
	// Get 读取键值，键不存在时 ok 为 false
	Get(key string) (value string, ok bool, err error)

	// Put 写入键值，存在则覆盖
	Put(key, value string) error

	// Delete 删除键值，键不存在不报错
	Delete(key string) error
}

// KVRepo 基于 GORM 的键值仓库
type KVRepo struct {
	db *gorm.DB
}

// NewKVRepo 创建键值仓库并迁移表结构
func NewKVRepo(db *gorm.DB) (*KVRepo, error) {
	if err := Migrate(db, &Setting{}); err != nil {
		return nil, err
	}
	return &KVRepo{db: db}, nil
}

// Get 读取键值
func (r *KVRepo) Get(key string) (string, bool, error) {
	var s Setting
	err := r.db.Where("key = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s.Value, true, nil
}

// Put 写入键值
func (r *KVRepo) Put(key, value string) error {
	s := Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	return r.db.Save(&s).Error
}

// Delete 删除键值
func (r *KVRepo) Delete(key string) error {
	return r.db.Where("key = ?", key).Delete(&Setting{}).Error
}
