package cdp

import (
	"encoding/base64"
	"testing"

	"reqwatch/pkg/domain"

	"github.com/mafredri/cdp/protocol/network"
)

func TestChannelFor(t *testing.T) {
	tests := []struct {
		resource string
		want     domain.Channel
		ok       bool
	}{
		{"XHR", domain.ChannelXHR, true},
		{"Fetch", domain.ChannelFetch, true},
		{"Script", domain.ChannelScript, true},
		{"Document", "", false},
		{"Image", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := channelFor(network.ResourceType(tt.resource))
		if got != tt.want || ok != tt.ok {
			t.Errorf("channelFor(%q) = (%q, %v), want (%q, %v)", tt.resource, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLocationOf(t *testing.T) {
	loc := locationOf("https://page.example.com/app/index.html?x=1")
	if loc.Host != "page.example.com" || loc.Path != "/app/index.html" {
		t.Errorf("位置推导错误: %+v", loc)
	}

	// 解析失败退回零值位置
	if loc := locationOf("not a url"); loc.Host != "" {
		t.Errorf("非法 URL 应返回零值位置, got %+v", loc)
	}
}

func TestDecodeHeaders(t *testing.T) {
	headers := decodeHeaders(network.Headers(`{"Content-Type":"application/json","X-Token":"abc"}`))
	if headers["Content-Type"] != "application/json" || headers["X-Token"] != "abc" {
		t.Errorf("Header 解码错误: %v", headers)
	}

	if decodeHeaders(nil) != nil {
		t.Error("空 Header 应返回 nil")
	}
	if decodeHeaders(network.Headers(`not json`)) != nil {
		t.Error("非法 Header 应返回 nil")
	}
}

func TestRequestBody(t *testing.T) {
	legacy := `{"q":"legacy"}`
	encoded := base64.StdEncoding.EncodeToString([]byte(`{"q":"entries"}`))

	tests := []struct {
		name string
		req  network.Request
		want string
	}{
		{"PostDataEntries 优先", network.Request{
			PostData:        &legacy,
			PostDataEntries: []network.PostDataEntry{{Bytes: &encoded}},
		}, `{"q":"entries"}`},
		{"回退 PostData", network.Request{PostData: &legacy}, legacy},
		{"无请求体", network.Request{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := requestBody(&tt.req); got != tt.want {
				t.Errorf("requestBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeBody(t *testing.T) {
	if got := decodeBody("cGxhaW4=", true); got != "plain" {
		t.Errorf("Base64 解码错误: %q", got)
	}
	if got := decodeBody("plain", false); got != "plain" {
		t.Errorf("非编码响应体应原样返回: %q", got)
	}
	// 解码失败时保留原文
	if got := decodeBody("!!!", true); got != "!!!" {
		t.Errorf("解码失败应保留原文: %q", got)
	}
}
