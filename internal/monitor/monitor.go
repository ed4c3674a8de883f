// Package monitor 实现监视控制器：配置与生命周期管理、事件总线与查询接口
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"reqwatch/internal/capture"
	"reqwatch/internal/config"
	"reqwatch/internal/intercept"
	"reqwatch/internal/logger"
	"reqwatch/internal/storage"
	"reqwatch/internal/store"
	"reqwatch/pkg/domain"
)

// Source 宿主环境观测源。由适配层实现，Start 安装观测，Stop 释放观测资源
type Source interface {
	Start(ctx context.Context) error
	Stop()
}

// Monitor 监视控制器。独占持有捕获日志与配置，
// 拦截层通过提交回调写入日志并触发事件
type Monitor struct {
	mu       sync.Mutex
	cfg      *config.Config
	log      logger.Logger
	records  *store.Log
	bus      *bus
	intr     *intercept.Interceptor
	builder  *capture.Builder
	sources  []Source
	running  bool
	cancel   context.CancelFunc
	captured bool
	selfChk  *time.Timer
}

// New 创建监视控制器并装载一次持久化日志。kv 为 nil 时日志工作在纯内存模式
func New(cfg *config.Config, kv storage.KV, l logger.Logger) *Monitor {
	if cfg == nil {
		cfg = config.Default()
	}
	if l == nil {
		l = logger.NewNop()
	}
	m := &Monitor{
		cfg: cfg,
		log: l,
		bus: newBus(),
	}
	m.records = store.NewLog(kv, cfg.StorageKey, cfg.MaxStoredRequests, l)
	cfgFn := m.Config
	m.builder = capture.NewBuilder(cfgFn, l)
	m.intr = intercept.New(cfgFn, m.builder, m.commit, l)
	return m
}

// Interceptor 返回拦截层，供宿主适配层驱动航程
func (m *Monitor) Interceptor() *intercept.Interceptor {
	return m.intr
}

// AddSource 注册宿主环境观测源，在 Start 时安装
func (m *Monitor) AddSource(s Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, s)
}

// Start 启动监视。幂等：已在运行时记一条日志后直接返回
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		m.log.Info("监视器已在运行，忽略重复启动")
		return nil
	}
	m.running = true
	m.captured = false
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	sources := make([]Source, len(m.sources))
	copy(sources, m.sources)
	cfg := m.cfg
	m.mu.Unlock()

	if len(cfg.TargetPaths) == 0 {
		m.log.Warn("targetPaths 为空，不会捕获任何请求")
	}

	for _, s := range sources {
		if err := s.Start(runCtx); err != nil {
			// 单个观测源失败按通道降级处理，不中止启动
			m.log.Err(err, "观测源启动失败，该通道不产生捕获")
		}
	}

	if cfg.SelfCheckDelayMS > 0 {
		delay := time.Duration(cfg.SelfCheckDelayMS) * time.Millisecond
		m.mu.Lock()
		m.selfChk = time.AfterFunc(delay, m.selfCheck)
		m.mu.Unlock()
	}

	m.log.Info("监视器已启动", "targetPaths", cfg.TargetPaths, "allowedDomains", cfg.AllowedDomains)
	return nil
}

// Stop 停止监视并释放观测资源。幂等。已装配的拦截逻辑不做卸载
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		m.log.Info("监视器未在运行，忽略停止")
		return
	}
	m.running = false
	cancel := m.cancel
	m.cancel = nil
	if m.selfChk != nil {
		m.selfChk.Stop()
		m.selfChk = nil
	}
	sources := make([]Source, len(m.sources))
	copy(sources, m.sources)
	m.mu.Unlock()

	for _, s := range sources {
		s.Stop()
	}
	if cancel != nil {
		cancel()
	}
	m.log.Info("监视器已停止")
}

// IsRunning 是否在运行
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Requests 返回当前日志的防御性副本，最旧在前
func (m *Monitor) Requests() []domain.CaptureRecord {
	return m.records.Snapshot()
}

// Clear 清空日志、持久化空状态并发出 dataCleared 事件
func (m *Monitor) Clear() {
	m.records.Clear()
	m.bus.emit(EventDataCleared, nil)
	m.log.Info("捕获日志已清空")
}

// Download 将日志序列化为带缩进的 JSON 写入文件，返回写入路径。
// 日志为空时告警并跳过
func (m *Monitor) Download(filename string) (string, error) {
	records := m.records.Snapshot()
	if len(records) == 0 {
		m.log.Warn("捕获日志为空，跳过导出")
		return "", nil
	}
	if filename == "" {
		filename = fmt.Sprintf("reqwatch-captures-%s.json", time.Now().Format("20060102-150405"))
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", err
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", err
	}
	m.log.Info("捕获日志已导出", "file", filename, "count", len(records))
	return filename, nil
}

// Config 返回当前配置
func (m *Monitor) Config() *config.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// UpdateConfig 浅合并覆盖项到当前配置，新的捕获使用更新后的配置
func (m *Monitor) UpdateConfig(o *config.Overrides) {
	m.mu.Lock()
	m.cfg = m.cfg.Merge(o)
	max := m.cfg.MaxStoredRequests
	m.mu.Unlock()
	m.records.SetCapacity(max)
	m.log.Info("配置已更新")
}

// On 注册事件处理函数，返回订阅标识
func (m *Monitor) On(ev Event, fn Handler) HandlerID {
	return m.bus.on(ev, fn)
}

// Off 按订阅标识退订
func (m *Monitor) Off(ev Event, id HandlerID) {
	m.bus.off(ev, id)
}

// Stats 返回拦截层统计信息
func (m *Monitor) Stats() domain.InterceptStats {
	return m.intr.Stats()
}

// commit 记录提交路径：写入日志（含持久化）后发出捕获事件，按完成顺序入日志
func (m *Monitor) commit(rec domain.CaptureRecord) {
	m.records.Append(rec)
	m.mu.Lock()
	m.captured = true
	m.mu.Unlock()
	m.bus.emit(EventRequestCaptured, &rec)
	m.log.Debug("捕获记录已提交", "id", rec.ID, "url", rec.URL)
}

// selfCheck 启动后的一次性诊断：超过配置时间仍无捕获时输出提示
func (m *Monitor) selfCheck() {
	m.mu.Lock()
	captured := m.captured
	running := m.running
	m.mu.Unlock()
	if running && !captured {
		m.log.Warn("启动后尚未捕获任何请求，请检查 targetPaths 与 allowedDomains 配置")
	}
}
