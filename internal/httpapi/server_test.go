package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"reqwatch/internal/classifier"
	"reqwatch/internal/config"
	"reqwatch/internal/httpapi"
	"reqwatch/internal/monitor"
	"reqwatch/pkg/api"
	"reqwatch/pkg/domain"
)

func newTestServer(t *testing.T) (*httptest.Server, *monitor.Monitor) {
	t.Helper()
	cfg := config.Default()
	cfg.TargetPaths = []string{"/api/search"}
	cfg.AllowedDomains = []string{"example.com"}
	cfg.SelfCheckDelayMS = 0
	m := monitor.New(cfg, nil, nil)
	srv := httptest.NewServer(httpapi.NewServer(api.NewService(m, nil)))
	t.Cleanup(srv.Close)
	t.Cleanup(m.Stop)
	return srv, m
}

// call 发送一次接口调用并解析响应
func call(t *testing.T, srv *httptest.Server, method string, params interface{}) *httpapi.Response {
	t.Helper()
	req := map[string]interface{}{"method": method, "id": "t1"}
	if params != nil {
		req["params"] = params
	}
	body, _ := json.Marshal(req)
	resp, err := http.Post(srv.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	var res httpapi.Response
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	return &res
}

// drive 通过拦截层驱动一次命中交换
func drive(m *monitor.Monitor, url string) {
	loc := classifier.Location{Host: "page.example.com", Path: "/index.html"}
	f := m.Interceptor().Begin(domain.ChannelFetch, "GET", url, loc)
	f.Send("", nil)
	f.SetResponseMeta(200, nil)
	f.Complete(`{"ok":true}`)
}

func TestServer_MonitorLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	res := call(t, srv, "monitor.start", nil)
	if res.Error != nil {
		t.Fatalf("monitor.start 错误: %+v", res.Error)
	}
	res = call(t, srv, "monitor.status", nil)
	result := res.Result.(map[string]interface{})
	if result["running"] != true {
		t.Error("启动后 monitor.status 应返回 running=true")
	}

	res = call(t, srv, "monitor.stop", nil)
	result = res.Result.(map[string]interface{})
	if result["running"] != false {
		t.Error("停止后应返回 running=false")
	}
}

func TestServer_RequestsListAndClear(t *testing.T) {
	srv, m := newTestServer(t)
	drive(m, "https://example.com/api/search?q=1")

	res := call(t, srv, "requests.list", nil)
	records, ok := res.Result.([]interface{})
	if !ok || len(records) != 1 {
		t.Fatalf("requests.list 应返回 1 条记录: %+v", res.Result)
	}

	if res := call(t, srv, "requests.clear", nil); res.Error != nil {
		t.Fatalf("requests.clear 错误: %+v", res.Error)
	}
	res = call(t, srv, "requests.list", nil)
	if records, _ := res.Result.([]interface{}); len(records) != 0 {
		t.Error("清空后日志应为空")
	}
}

func TestServer_ConfigUpdate(t *testing.T) {
	srv, m := newTestServer(t)

	res := call(t, srv, "config.update", map[string]interface{}{"targetPaths": []string{"/api/user"}})
	if res.Error != nil {
		t.Fatalf("config.update 错误: %+v", res.Error)
	}

	// 旧路径不再命中，新路径命中
	drive(m, "https://example.com/api/search")
	drive(m, "https://example.com/api/user/1")
	if got := len(m.Requests()); got != 1 {
		t.Errorf("配置更新后记录数 got %d, want 1", got)
	}
}

func TestServer_DownloadEmptyLog(t *testing.T) {
	srv, _ := newTestServer(t)

	res := call(t, srv, "requests.download", nil)
	if res.Error != nil {
		t.Fatalf("空日志导出不应报错: %+v", res.Error)
	}
	result := res.Result.(map[string]interface{})
	if result["file"] != "" {
		t.Errorf("空日志不应写出文件: %v", result["file"])
	}
}

func TestServer_StatsGet(t *testing.T) {
	srv, m := newTestServer(t)
	drive(m, "https://example.com/api/search")
	drive(m, "https://other.com/api/search")

	res := call(t, srv, "stats.get", nil)
	result := res.Result.(map[string]interface{})
	if result["total"] != float64(2) || result["matched"] != float64(1) {
		t.Errorf("统计结果错误: %+v", result)
	}
}

func TestServer_Errors(t *testing.T) {
	srv, _ := newTestServer(t)

	// 未注册的方法
	res := call(t, srv, "no.such.method", nil)
	if res.Error == nil || res.Error.Code != "method_not_found" {
		t.Errorf("未知方法应返回 method_not_found: %+v", res.Error)
	}

	// 未配置目标管理器时目标操作失败
	res = call(t, srv, "targets.list", nil)
	if res.Error == nil || res.Error.Code != "internal" {
		t.Errorf("无目标管理器时应返回 internal: %+v", res.Error)
	}

	// 非 POST 方法
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET 应返回 405, got %d", resp.StatusCode)
	}
}
