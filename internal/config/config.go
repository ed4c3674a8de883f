package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// RequestFields 请求侧捕获开关
type RequestFields struct {
	Method  bool `yaml:"method" json:"method"`
	URL     bool `yaml:"url" json:"url"`
	Domain  bool `yaml:"domain" json:"domain"`
	Path    bool `yaml:"path" json:"path"`
	Payload bool `yaml:"payload" json:"payload"`
	Headers bool `yaml:"headers" json:"headers"`
}

// ResponseFields 响应侧捕获开关
type ResponseFields struct {
	Status  bool `yaml:"status" json:"status"`
	Payload bool `yaml:"payload" json:"payload"`
	Headers bool `yaml:"headers" json:"headers"`
}

// MetadataFields 元数据捕获开关
type MetadataFields struct {
	Timestamp bool `yaml:"timestamp" json:"timestamp"`
	Duration  bool `yaml:"duration" json:"duration"`
	Initiator bool `yaml:"initiator" json:"initiator"`
}

// CaptureFields 分组的捕获字段开关
type CaptureFields struct {
	Request  RequestFields  `yaml:"request" json:"request"`
	Response ResponseFields `yaml:"response" json:"response"`
	Metadata MetadataFields `yaml:"metadata" json:"metadata"`
}

// Config 监视器配置。构造时由默认值与调用方覆盖合并得到，运行期只能通过 Merge 更新
type Config struct {
	// TargetPaths 目标路径子串列表，空列表不匹配任何请求
	TargetPaths []string `yaml:"targetPaths" json:"targetPaths"`
	// AllowedDomains 允许域名子串列表，空列表表示不限制域名
	AllowedDomains []string `yaml:"allowedDomains" json:"allowedDomains"`
	// MaxStoredRequests 日志容量上限
	MaxStoredRequests int `yaml:"maxStoredRequests" json:"maxStoredRequests"`
	// StorageKey 持久化存储键名
	StorageKey string `yaml:"storageKey" json:"storageKey"`
	// CaptureFields 捕获字段开关
	CaptureFields CaptureFields `yaml:"captureFields" json:"captureFields"`
	// RedactPaths 捕获时从 JSON 载荷中删除的字段路径
	RedactPaths []string `yaml:"redactPaths" json:"redactPaths"`
	// EnableScriptChannel 是否观测动态脚本标签通道
	EnableScriptChannel bool `yaml:"enableScriptChannel" json:"enableScriptChannel"`
	// AutoStart 构造后是否自动启动
	AutoStart bool `yaml:"autoStart" json:"autoStart"`
	// SelfCheckDelayMS 启动后多少毫秒未捕获任何请求时输出诊断告警，0 表示关闭
	SelfCheckDelayMS int `yaml:"selfCheckDelayMS" json:"selfCheckDelayMS"`

	// DevToolsURL 浏览器 DevTools 地址
	DevToolsURL string `yaml:"devToolsURL" json:"devToolsURL"`
	// HTTPAddr 检视接口监听地址，空表示不启动
	HTTPAddr string `yaml:"httpAddr" json:"httpAddr"`
	// DatabasePath 持久化数据库文件路径，空表示使用平台默认路径
	DatabasePath string `yaml:"databasePath" json:"databasePath"`

	Log struct {
		Level  string   `yaml:"level" json:"level"`
		Writer []string `yaml:"writer" json:"writer"`
	} `yaml:"log" json:"log"`
}

// Default 返回内置默认配置
func Default() *Config {
	cfg := &Config{
		TargetPaths:       []string{},
		AllowedDomains:    []string{},
		MaxStoredRequests: 100,
		StorageKey:        "reqwatch_captures",
		CaptureFields: CaptureFields{
			Request:  RequestFields{Method: true, URL: true, Domain: true, Path: true, Payload: true, Headers: true},
			Response: ResponseFields{Status: true, Payload: true, Headers: true},
			Metadata: MetadataFields{Timestamp: true, Duration: true, Initiator: true},
		},
		EnableScriptChannel: false,
		AutoStart:           true,
		SelfCheckDelayMS:    5000,
		DevToolsURL:         "http://localhost:9222",
		HTTPAddr:            "",
	}
	cfg.Log.Level = "info"
	// file需要在console之前，避免控制台不可写时影响文件日志
	cfg.Log.Writer = []string{"file", "console"}
	return cfg
}

// Overrides 配置覆盖项。nil 字段表示保留现值，嵌套分组各自独立可覆盖
type Overrides struct {
	TargetPaths         *[]string      `yaml:"targetPaths" json:"targetPaths"`
	AllowedDomains      *[]string      `yaml:"allowedDomains" json:"allowedDomains"`
	MaxStoredRequests   *int           `yaml:"maxStoredRequests" json:"maxStoredRequests"`
	StorageKey          *string        `yaml:"storageKey" json:"storageKey"`
	CaptureFields       *CaptureFields `yaml:"captureFields" json:"captureFields"`
	RedactPaths         *[]string      `yaml:"redactPaths" json:"redactPaths"`
	EnableScriptChannel *bool          `yaml:"enableScriptChannel" json:"enableScriptChannel"`
	AutoStart           *bool          `yaml:"autoStart" json:"autoStart"`
	SelfCheckDelayMS    *int           `yaml:"selfCheckDelayMS" json:"selfCheckDelayMS"`
	DevToolsURL         *string        `yaml:"devToolsURL" json:"devToolsURL"`
	HTTPAddr            *string        `yaml:"httpAddr" json:"httpAddr"`
	DatabasePath        *string        `yaml:"databasePath" json:"databasePath"`
}

// Merge 将覆盖项浅合并进配置，返回合并后的副本
func (c *Config) Merge(o *Overrides) *Config {
	merged := *c
	if o == nil {
		return &merged
	}
	if o.TargetPaths != nil {
		merged.TargetPaths = *o.TargetPaths
	}
	if o.AllowedDomains != nil {
		merged.AllowedDomains = *o.AllowedDomains
	}
	if o.MaxStoredRequests != nil && *o.MaxStoredRequests > 0 {
		merged.MaxStoredRequests = *o.MaxStoredRequests
	}
	if o.StorageKey != nil && *o.StorageKey != "" {
		merged.StorageKey = *o.StorageKey
	}
	if o.CaptureFields != nil {
		merged.CaptureFields = *o.CaptureFields
	}
	if o.RedactPaths != nil {
		merged.RedactPaths = *o.RedactPaths
	}
	if o.EnableScriptChannel != nil {
		merged.EnableScriptChannel = *o.EnableScriptChannel
	}
	if o.AutoStart != nil {
		merged.AutoStart = *o.AutoStart
	}
	if o.SelfCheckDelayMS != nil {
		merged.SelfCheckDelayMS = *o.SelfCheckDelayMS
	}
	if o.DevToolsURL != nil && *o.DevToolsURL != "" {
		merged.DevToolsURL = *o.DevToolsURL
	}
	if o.HTTPAddr != nil {
		merged.HTTPAddr = *o.HTTPAddr
	}
	if o.DatabasePath != nil {
		merged.DatabasePath = *o.DatabasePath
	}
	return &merged
}

// LoadFile 读取 YAML 配置文件并合并到默认配置之上
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
