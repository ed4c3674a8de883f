// Package intercept 实现请求拦截层：门控、航程状态机与至多一次记录提交
package intercept

import (
	"sync"
	"time"

	"reqwatch/internal/capture"
	"reqwatch/internal/classifier"
	"reqwatch/internal/config"
	"reqwatch/internal/logger"
	"reqwatch/pkg/domain"
)

// Interceptor 拦截层。持有门控配置、记录构建器与提交回调，
// 捕获路径上的任何错误都被就地吞掉，绝不影响宿主请求本身
type Interceptor struct {
	cfg     func() *config.Config
	builder *capture.Builder
	commit  func(domain.CaptureRecord)
	log     logger.Logger

	mu        sync.Mutex
	total     int64
	matched   int64
	byChannel map[domain.Channel]int64
}

// New 创建拦截层。cfg 为配置提供函数，commit 为记录提交回调
func New(cfg func() *config.Config, builder *capture.Builder, commit func(domain.CaptureRecord), l logger.Logger) *Interceptor {
	if l == nil {
		l = logger.NewNop()
	}
	return &Interceptor{
		cfg:       cfg,
		builder:   builder,
		commit:    commit,
		log:       l,
		byChannel: make(map[domain.Channel]int64),
	}
}

// Begin 开启一次航程：记录方法、URL 与起始时间。门控在 Send 时评估
func (i *Interceptor) Begin(ch domain.Channel, method, url string, loc classifier.Location) *Flight {
	return &Flight{
		i:       i,
		channel: ch,
		method:  method,
		url:     url,
		loc:     loc,
		start:   time.Now(),
		state:   stateOpened,
	}
}

// Stats 返回拦截层统计信息
func (i *Interceptor) Stats() domain.InterceptStats {
	i.mu.Lock()
	defer i.mu.Unlock()
	byChannel := make(map[domain.Channel]int64, len(i.byChannel))
	for k, v := range i.byChannel {
		byChannel[k] = v
	}
	return domain.InterceptStats{
		Total:     i.total,
		Matched:   i.matched,
		ByChannel: byChannel,
	}
}

// ResetStats 重置统计信息
func (i *Interceptor) ResetStats() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.total = 0
	i.matched = 0
	i.byChannel = make(map[domain.Channel]int64)
}

// gate 门控评估：通道能力开关 + 目标路径 + 允许域名
func (i *Interceptor) gate(ch domain.Channel, url string, loc classifier.Location) bool {
	cfg := i.cfg()
	if (ch == domain.ChannelScript || ch == domain.ChannelJSONP) && !cfg.EnableScriptChannel {
		return false
	}
	_, ok := classifier.Gate(url, loc, cfg.TargetPaths, cfg.AllowedDomains)
	return ok
}

// countGate 更新门控统计
func (i *Interceptor) countGate(ch domain.Channel, matched bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.total++
	if matched {
		i.matched++
		i.byChannel[ch]++
	}
}
