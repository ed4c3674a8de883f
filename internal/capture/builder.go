// Package capture 实现捕获记录的组装
package capture

import (
	"fmt"
	"strings"
	"time"

	"reqwatch/internal/classifier"
	"reqwatch/internal/config"
	"reqwatch/internal/logger"
	"reqwatch/pkg/domain"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"
)

// RawExchange 一次已完成交换的原始素材
type RawExchange struct {
	Channel         domain.Channel
	Method          string
	URL             string
	Location        classifier.Location
	RequestBody     string
	RequestHeaders  map[string]string
	Status          int
	HasStatus       bool
	ResponseBody    string
	ResponseHeaders map[string]string
	StartTime       time.Time
	EndTime         time.Time
}

// Builder 记录构建器，按捕获字段开关从原始素材装配记录
type Builder struct {
	cfg func() *config.Config
	log logger.Logger
}

// NewBuilder 创建记录构建器。cfg 为配置提供函数，保证新捕获使用最新配置
func NewBuilder(cfg func() *config.Config, l logger.Logger) *Builder {
	if l == nil {
		l = logger.NewNop()
	}
	return &Builder{cfg: cfg, log: l}
}

// Build 组装捕获记录。关闭的开关对应字段整体缺省，载荷做尽力而为的 JSON 解析
func (b *Builder) Build(raw *RawExchange) domain.CaptureRecord {
	cfg := b.cfg()
	fields := cfg.CaptureFields
	ep := classifier.Classify(raw.URL, raw.Location)

	rec := domain.CaptureRecord{
		ID:   NewID(raw.EndTime),
		Type: raw.Channel,
	}

	if fields.Request.Method {
		rec.Method = raw.Method
	}
	if fields.Request.URL {
		rec.URL = raw.URL
	}
	if fields.Request.Domain {
		rec.Domain = ep.Domain
	}
	if fields.Request.Path {
		rec.Path = ep.Path
	}
	if fields.Request.Payload {
		rec.Request = b.redact(domain.ParsePayload(raw.RequestBody), cfg.RedactPaths)
	}
	if fields.Request.Headers {
		rec.RequestHeaders = normalizeHeaders(raw.RequestHeaders)
	}

	if fields.Response.Status && raw.HasStatus {
		status := raw.Status
		rec.Status = &status
	}
	if fields.Response.Payload {
		rec.Response = b.redact(domain.ParsePayload(raw.ResponseBody), cfg.RedactPaths)
	}
	if fields.Response.Headers {
		rec.ResponseHeaders = normalizeHeaders(raw.ResponseHeaders)
	}

	if fields.Metadata.Timestamp {
		rec.Timestamp = raw.EndTime.Format("2006-01-02T15:04:05.000Z07:00")
	}
	if fields.Metadata.Duration && !raw.StartTime.IsZero() && !raw.EndTime.Before(raw.StartTime) {
		duration := raw.EndTime.Sub(raw.StartTime).Milliseconds()
		rec.Duration = &duration
	}
	if fields.Metadata.Initiator {
		rec.Initiator = raw.Channel
	}

	return rec
}

// NewID 生成捕获记录 ID：毫秒时间戳 + 短随机后缀。仅保证唯一性，不保证同毫秒内有序
func NewID(at time.Time) string {
	if at.IsZero() {
		at = time.Now()
	}
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%d-%s", at.UnixMilli(), suffix)
}

// redact 从 Parsed 分支的载荷中删除配置指定的字段路径，Raw 分支原样保留
func (b *Builder) redact(p *domain.Payload, paths []string) *domain.Payload {
	if p == nil || !p.IsParsed() || len(paths) == 0 {
		return p
	}
	body := string(p.JSON)
	for _, path := range paths {
		if path == "" {
			continue
		}
		next, err := sjson.Delete(body, path)
		if err != nil {
			b.log.Warn("删除载荷字段失败", "path", path, "error", err)
			continue
		}
		body = next
	}
	return &domain.Payload{JSON: []byte(body)}
}

// normalizeHeaders 归一化请求/响应头：复制为普通映射，缺失时返回空映射
func normalizeHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
