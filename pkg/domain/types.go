package domain

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Channel 拦截通道类型
type Channel string

const (
	// ChannelXHR XHR 通道
	ChannelXHR Channel = "xhr"
	// ChannelFetch fetch 通道
	ChannelFetch Channel = "fetch"
	// ChannelScript 动态脚本标签通道
	ChannelScript Channel = "script"
	// ChannelJSONP JSONP 通道（脚本通道的别名形态）
	ChannelJSONP Channel = "jsonp"
)

// Endpoint URL 归类结果：域名 + 路径
type Endpoint struct {
	Domain string `json:"domain"`
	Path   string `json:"path"`
}

// Payload 载荷的标记联合：解析成功的 JSON（Parsed）或原始字符串（Raw），两个分支互斥
type Payload struct {
	JSON json.RawMessage
	Raw  string
}

// ParsePayload 对字符串载荷做尽力而为的 JSON 解析。
// 仅当整体是合法 JSON 且以对象或数组开头时走 Parsed 分支，否则保留原始字符串。
func ParsePayload(s string) *Payload {
	if s == "" {
		return nil
	}
	trimmed := bytes.TrimLeft([]byte(s), " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && gjson.Valid(s) {
		return &Payload{JSON: json.RawMessage(s)}
	}
	return &Payload{Raw: s}
}

// IsParsed 是否为解析成功的 JSON 分支
func (p *Payload) IsParsed() bool {
	return p != nil && len(p.JSON) > 0
}

// String 返回载荷的文本形式
func (p *Payload) String() string {
	if p == nil {
		return ""
	}
	if p.IsParsed() {
		return string(p.JSON)
	}
	return p.Raw
}

// MarshalJSON Parsed 分支原样输出 JSON，Raw 分支输出 JSON 字符串
func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p.JSON) > 0 {
		return p.JSON, nil
	}
	return json.Marshal(p.Raw)
}

// UnmarshalJSON 按写出时的约定还原分支：字符串 token 还原为 Raw，其余还原为 JSON
func (p *Payload) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimLeft(b, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(b, &p.Raw)
	}
	p.JSON = append(p.JSON[:0], b...)
	return nil
}

// CaptureRecord 一次被观测的请求/响应交换的不可变记录。
// 除 ID/Type/Timestamp 外所有字段受捕获开关控制，关闭的字段整体缺省而非置空。
type CaptureRecord struct {
	ID              string            `json:"id"`
	Type            Channel           `json:"type"`
	Method          string            `json:"method,omitempty"`
	URL             string            `json:"url,omitempty"`
	Domain          string            `json:"domain,omitempty"`
	Path            string            `json:"path,omitempty"`
	Request         *Payload          `json:"request,omitempty"`
	RequestHeaders  map[string]string `json:"requestHeaders,omitempty"`
	Status          *int              `json:"status,omitempty"`
	Response        *Payload          `json:"response,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
	Timestamp       string            `json:"timestamp"`
	Duration        *int64            `json:"duration,omitempty"`
	Initiator       Channel           `json:"initiator,omitempty"`
}

// InterceptStats 拦截层统计信息
type InterceptStats struct {
	Total     int64             `json:"total"`
	Matched   int64             `json:"matched"`
	ByChannel map[Channel]int64 `json:"byChannel"`
}

// TargetInfo 浏览器目标信息
type TargetInfo struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Attached bool   `json:"attached"`
}
