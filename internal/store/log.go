// Package store 实现容量有界、持久镜像的捕获日志
package store

import (
	"encoding/json"
	"sync"

	"reqwatch/internal/logger"
	"reqwatch/internal/storage"
	"reqwatch/pkg/domain"
)

// Log 插入有序的有界捕获日志。超出容量时先淘汰最旧记录，
// 每次变更在返回前镜像到持久存储，持久化失败只降级为告警
type Log struct {
	mu      sync.Mutex
	records []domain.CaptureRecord
	max     int
	kv      storage.KV
	key     string
	log     logger.Logger
}

// NewLog 创建捕获日志并从持久存储装载一次历史数据。
// kv 为 nil 时工作在纯内存模式，损坏的持久数据按空日志处理
func NewLog(kv storage.KV, key string, max int, l logger.Logger) *Log {
	if max <= 0 {
		max = 100
	}
	if l == nil {
		l = logger.NewNop()
	}
	lg := &Log{
		records: make([]domain.CaptureRecord, 0, max),
		max:     max,
		kv:      kv,
		key:     key,
		log:     l,
	}
	lg.load()
	return lg
}

// load 从持久存储装载历史记录，任何失败都按空日志处理
func (l *Log) load() {
	if l.kv == nil {
		return
	}
	raw, ok, err := l.kv.Get(l.key)
	if err != nil {
		l.log.Err(err, "读取持久化日志失败，按空日志处理", "key", l.key)
		return
	}
	if !ok || raw == "" {
		return
	}
	var records []domain.CaptureRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		l.log.Err(err, "持久化日志损坏，按空日志处理", "key", l.key)
		return
	}
	if len(records) > l.max {
		records = records[len(records)-l.max:]
	}
	l.records = records
	l.log.Info("装载持久化日志完成", "key", l.key, "count", len(records))
}

// Append 追加一条记录。超出容量时淘汰最旧记录，返回前完成持久化
func (l *Log) Append(rec domain.CaptureRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, rec)
	if len(l.records) > l.max {
		l.records = l.records[len(l.records)-l.max:]
	}
	l.persistLocked()
}

// Snapshot 返回当前日志的防御性副本，最旧在前
func (l *Log) Snapshot() []domain.CaptureRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.CaptureRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len 返回当前记录数
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Clear 清空日志并持久化空状态
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = l.records[:0]
	l.persistLocked()
}

// SetCapacity 调整容量上限，超出部分立即淘汰最旧记录
func (l *Log) SetCapacity(max int) {
	if max <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.max = max
	if len(l.records) > l.max {
		l.records = l.records[len(l.records)-l.max:]
		l.persistLocked()
	}
}

// persistLocked 将当前日志镜像到持久存储，调用方须持有锁。
// 失败时内存日志仍是权威数据，只记录告警
func (l *Log) persistLocked() {
	if l.kv == nil {
		return
	}
	data, err := json.Marshal(l.records)
	if err != nil {
		l.log.Err(err, "序列化捕获日志失败", "key", l.key)
		return
	}
	if err := l.kv.Put(l.key, string(data)); err != nil {
		l.log.Err(err, "持久化捕获日志失败", "key", l.key)
	}
}
