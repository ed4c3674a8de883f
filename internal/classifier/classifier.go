// Package classifier 实现 URL 归类与捕获门控判定
package classifier

import (
	"net/url"
	"strings"

	"reqwatch/pkg/domain"
)

// Location 当前页面位置（宿主与路径）
type Location struct {
	Host string
	Path string
}

// Classify 将原始 URL 解析为域名 + 路径。永不失败，解析异常时退回启发式结果
func Classify(rawURL string, loc Location) domain.Endpoint {
	// 绝对 URL：按标准 URL 解析
	if hasScheme(rawURL) {
		u, err := url.Parse(rawURL)
		if err == nil && u.Host != "" {
			return domain.Endpoint{Domain: u.Host, Path: u.Path}
		}
		return fallback(rawURL, loc)
	}

	// 根相对路径：域名取当前页面，路径原样保留
	if strings.HasPrefix(rawURL, "/") {
		return domain.Endpoint{Domain: hostOrUnknown(loc), Path: rawURL}
	}

	// 目录相对路径：去掉当前路径的文件名后拼接
	base := loc.Path
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[:idx+1]
	} else {
		base = "/"
	}
	return domain.Endpoint{Domain: hostOrUnknown(loc), Path: base + rawURL}
}

// IsTargetPath 路径是否命中目标子串。空列表不匹配任何路径
func IsTargetPath(path string, targetPaths []string) bool {
	for _, t := range targetPaths {
		if t != "" && strings.Contains(path, t) {
			return true
		}
	}
	return false
}

// IsAllowedDomain 域名是否在允许范围内。空列表表示不限制
func IsAllowedDomain(host string, allowedDomains []string) bool {
	if len(allowedDomains) == 0 {
		return true
	}
	for _, d := range allowedDomains {
		if d != "" && strings.Contains(host, d) {
			return true
		}
	}
	return false
}

// Gate 组合门控判定：目标路径与允许域名同时命中才捕获
func Gate(rawURL string, loc Location, targetPaths, allowedDomains []string) (domain.Endpoint, bool) {
	ep := Classify(rawURL, loc)
	return ep, IsTargetPath(ep.Path, targetPaths) && IsAllowedDomain(ep.Domain, allowedDomains)
}

// hasScheme 是否带有协议头
func hasScheme(rawURL string) bool {
	idx := strings.Index(rawURL, "://")
	if idx <= 0 {
		return false
	}
	// 协议名只允许字母、数字、+、-、.
	for _, r := range rawURL[:idx] {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '+' || r == '-' || r == '.':
		default:
			return false
		}
	}
	return true
}

// fallback 解析失败时的退路：域名取当前页面宿主，路径保留原始输入
func fallback(rawURL string, loc Location) domain.Endpoint {
	return domain.Endpoint{Domain: hostOrUnknown(loc), Path: rawURL}
}

// hostOrUnknown 当前页面宿主不可用时返回 unknown
func hostOrUnknown(loc Location) string {
	if loc.Host == "" {
		return "unknown"
	}
	return loc.Host
}
