// Package api 定义对外编程接口
package api

import (
	"context"

	"reqwatch/internal/config"
	"reqwatch/internal/monitor"
	"reqwatch/pkg/domain"
)

// TargetManager 浏览器目标管理能力。由宿主适配层实现
type TargetManager interface {
	// Targets 列出浏览器当前的标签页目标
	Targets(ctx context.Context) ([]domain.TargetInfo, error)

	// Attach 附着目标并安装观测
	Attach(id string) error

	// Detach 断开目标
	Detach(id string) error
}

// Service 监视服务接口
type Service interface {
	// Start 启动监视
	Start(ctx context.Context) error

	// Stop 停止监视
	Stop()

	// IsRunning 是否在运行
	IsRunning() bool

	// Requests 查询当前捕获日志
	Requests() []domain.CaptureRecord

	// Clear 清空捕获日志
	Clear()

	// Download 导出捕获日志到文件
	Download(filename string) (string, error)

	// Config 获取当前配置
	Config() *config.Config

	// UpdateConfig 更新配置
	UpdateConfig(o *config.Overrides)

	// Stats 获取拦截统计信息
	Stats() domain.InterceptStats

	// On 订阅事件
	On(ev monitor.Event, fn monitor.Handler) monitor.HandlerID

	// Off 退订事件
	Off(ev monitor.Event, id monitor.HandlerID)

	// ListTargets 列出浏览器目标
	ListTargets(ctx context.Context) ([]domain.TargetInfo, error)

	// AttachTarget 附着浏览器目标
	AttachTarget(id string) error

	// DetachTarget 断开浏览器目标
	DetachTarget(id string) error
}

// service 基于监视控制器与目标管理器的服务实现
type service struct {
	*monitor.Monitor
	targets TargetManager
}

// NewService 组装服务接口实现。targets 可为 nil，此时目标操作返回未附着错误
func NewService(m *monitor.Monitor, targets TargetManager) Service {
	return &service{Monitor: m, targets: targets}
}

func (s *service) ListTargets(ctx context.Context) ([]domain.TargetInfo, error) {
	if s.targets == nil {
		return nil, domain.ErrNoTargetAttached
	}
	return s.targets.Targets(ctx)
}

func (s *service) AttachTarget(id string) error {
	if s.targets == nil {
		return domain.ErrNoTargetAttached
	}
	return s.targets.Attach(id)
}

func (s *service) DetachTarget(id string) error {
	if s.targets == nil {
		return domain.ErrNoTargetAttached
	}
	return s.targets.Detach(id)
}
