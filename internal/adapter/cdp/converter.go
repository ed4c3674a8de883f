package cdp

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/url"

	"reqwatch/internal/classifier"
	"reqwatch/pkg/domain"

	"github.com/mafredri/cdp/protocol/network"
)

// channelFor 将 CDP 的资源类型映射为拦截通道。不关心的资源类型返回 false
func channelFor(t network.ResourceType) (domain.Channel, bool) {
	switch string(t) {
	case "XHR":
		return domain.ChannelXHR, true
	case "Fetch":
		return domain.ChannelFetch, true
	case "Script":
		return domain.ChannelScript, true
	default:
		return "", false
	}
}

// locationOf 从文档 URL 推导页面位置，解析失败时返回零值位置
func locationOf(documentURL string) classifier.Location {
	u, err := url.Parse(documentURL)
	if err != nil || u.Host == "" {
		return classifier.Location{}
	}
	return classifier.Location{Host: u.Host, Path: u.Path}
}

// decodeHeaders 将 CDP 的 Header 原始 JSON 解码为键值映射
func decodeHeaders(h network.Headers) map[string]string {
	if len(h) == 0 {
		return nil
	}
	var headers map[string]string
	if err := json.Unmarshal(h, &headers); err != nil {
		return nil
	}
	return headers
}

// requestBody 提取请求体：优先使用 PostDataEntries（支持大数据），回退到 PostData（已废弃）
func requestBody(req *network.Request) string {
	if len(req.PostDataEntries) > 0 {
		// PostDataEntries.Bytes 是 Base64 编码，需要解码
		var bodyParts [][]byte
		for _, entry := range req.PostDataEntries {
			if entry.Bytes == nil {
				continue
			}
			decoded, err := base64.StdEncoding.DecodeString(*entry.Bytes)
			if err != nil {
				bodyParts = append(bodyParts, []byte(*entry.Bytes))
			} else {
				bodyParts = append(bodyParts, decoded)
			}
		}
		if len(bodyParts) > 0 {
			return string(bytes.Join(bodyParts, nil))
		}
		return ""
	}
	if req.PostData != nil {
		return *req.PostData
	}
	return ""
}

// decodeBody 按 Base64 标志还原响应体文本
func decodeBody(body string, base64Encoded bool) string {
	if !base64Encoded {
		return body
	}
	decoded, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return body
	}
	return string(decoded)
}
