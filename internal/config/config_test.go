package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.MaxStoredRequests != 100 {
		t.Errorf("默认容量 got %d, want 100", cfg.MaxStoredRequests)
	}
	if cfg.StorageKey != "reqwatch_captures" {
		t.Errorf("默认存储键 got %q", cfg.StorageKey)
	}
	if cfg.EnableScriptChannel {
		t.Error("脚本通道默认应关闭")
	}
	if len(cfg.TargetPaths) != 0 || len(cfg.AllowedDomains) != 0 {
		t.Error("默认过滤列表应为空")
	}
	if !cfg.CaptureFields.Request.Payload || !cfg.CaptureFields.Response.Status {
		t.Error("捕获开关默认应全部开启")
	}
}

func TestMerge(t *testing.T) {
	cfg := Default()

	paths := []string{"/api"}
	max := 50
	script := true
	merged := cfg.Merge(&Overrides{
		TargetPaths:         &paths,
		MaxStoredRequests:   &max,
		EnableScriptChannel: &script,
	})

	if len(merged.TargetPaths) != 1 || merged.TargetPaths[0] != "/api" {
		t.Errorf("TargetPaths 未合并: %v", merged.TargetPaths)
	}
	if merged.MaxStoredRequests != 50 {
		t.Errorf("MaxStoredRequests got %d", merged.MaxStoredRequests)
	}
	if !merged.EnableScriptChannel {
		t.Error("EnableScriptChannel 未合并")
	}
	// 未覆盖的字段保持原值，原配置不被修改
	if merged.StorageKey != cfg.StorageKey {
		t.Error("未覆盖字段不应改变")
	}
	if cfg.MaxStoredRequests != 100 {
		t.Error("Merge 不应修改原配置")
	}

	// 非法容量被忽略
	bad := 0
	if got := cfg.Merge(&Overrides{MaxStoredRequests: &bad}); got.MaxStoredRequests != 100 {
		t.Errorf("非法容量应被忽略, got %d", got.MaxStoredRequests)
	}

	if got := cfg.Merge(nil); got.MaxStoredRequests != 100 {
		t.Error("nil 覆盖项应返回等值副本")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
targetPaths: ["/api/search"]
allowedDomains: ["example.com"]
maxStoredRequests: 20
enableScriptChannel: true
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("读取配置失败: %v", err)
	}
	if len(cfg.TargetPaths) != 1 || cfg.TargetPaths[0] != "/api/search" {
		t.Errorf("TargetPaths got %v", cfg.TargetPaths)
	}
	if cfg.MaxStoredRequests != 20 {
		t.Errorf("MaxStoredRequests got %d", cfg.MaxStoredRequests)
	}
	if !cfg.EnableScriptChannel {
		t.Error("enableScriptChannel 未生效")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("日志级别 got %q", cfg.Log.Level)
	}
	// 未出现的键保持默认值
	if cfg.StorageKey != "reqwatch_captures" {
		t.Errorf("缺省键应保持默认: %q", cfg.StorageKey)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("不存在的文件应报错")
	}
}
