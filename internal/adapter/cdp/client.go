// Package cdp 实现基于 Chrome DevTools Protocol 的宿主观测适配层
package cdp

import (
	"context"
	"fmt"
	"sync"

	"reqwatch/internal/logger"
	"reqwatch/pkg/domain"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/rpcc"
)

// TargetSession 一个已附着的浏览器目标会话
type TargetSession struct {
	ID     string
	Client *cdp.Client
	Conn   *rpcc.Conn
	Ctx    context.Context    // 会话级上下文
	Cancel context.CancelFunc // 取消函数
}

// ClientManager 管理与浏览器的 CDP 连接
type ClientManager struct {
	devtoolsURL string
	log         logger.Logger
	mu          sync.RWMutex
	sessions    map[string]*TargetSession
}

// NewClientManager 创建 CDP 客户端管理器
func NewClientManager(url string, l logger.Logger) *ClientManager {
	if l == nil {
		l = logger.NewNop()
	}
	return &ClientManager{
		devtoolsURL: url,
		log:         l,
		sessions:    make(map[string]*TargetSession),
	}
}

// TestConnection 测试与浏览器的连通性
func (m *ClientManager) TestConnection(ctx context.Context) error {
	dt := devtool.New(m.devtoolsURL)
	if _, err := dt.List(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDevToolsUnreachable, err)
	}
	return nil
}

// ListTargets 获取浏览器当前所有的标签页目标（仅返回 type == "page"）
func (m *ClientManager) ListTargets(ctx context.Context) ([]domain.TargetInfo, error) {
	dt := devtool.New(m.devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]domain.TargetInfo, 0)
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range targets {
		if t == nil || t.Type != "page" {
			continue
		}
		_, attached := m.sessions[string(t.ID)]
		res = append(res, domain.TargetInfo{
			ID:       string(t.ID),
			Type:     string(t.Type),
			URL:      t.URL,
			Title:    t.Title,
			Attached: attached,
		})
	}
	return res, nil
}

// AttachTarget 附着到一个指定的目标。id 为空时附着第一个 page 目标
func (m *ClientManager) AttachTarget(ctx context.Context, id string) (*TargetSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if s, ok := m.sessions[id]; ok {
			m.log.Info("Target 已存在，复用现有会话", "targetID", id)
			return s, nil
		}
	}

	dt := devtool.New(m.devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		m.log.Err(err, "获取 Target 列表失败")
		return nil, fmt.Errorf("%w: %v", domain.ErrDevToolsUnreachable, err)
	}

	var target *devtool.Target
	for _, t := range targets {
		if id == "" && t.Type == "page" {
			target = t
			break
		}
		if string(t.ID) == id {
			target = t
			break
		}
	}

	if target == nil {
		m.log.Warn("Target 未找到", "targetID", id)
		return nil, fmt.Errorf("%w: %s", domain.ErrTargetNotFound, id)
	}
	if s, ok := m.sessions[string(target.ID)]; ok {
		return s, nil
	}

	// 派生 Session 级 Context
	sessionCtx, sessionCancel := context.WithCancel(ctx)

	// 压缩 + 大写缓冲，避免大响应体撑爆连接
	conn, err := rpcc.DialContext(sessionCtx, target.WebSocketDebuggerURL,
		rpcc.WithWriteBufferSize(16*1024*1024),
		rpcc.WithCompression())
	if err != nil {
		sessionCancel()
		m.log.Err(err, "CDP 连接建立失败", "targetID", string(target.ID), "wsURL", target.WebSocketDebuggerURL)
		return nil, err
	}

	s := &TargetSession{
		ID:     string(target.ID),
		Client: cdp.NewClient(conn),
		Conn:   conn,
		Ctx:    sessionCtx,
		Cancel: sessionCancel,
	}
	m.sessions[s.ID] = s
	m.log.Info("Target 附着成功", "targetID", s.ID, "url", target.URL)
	return s, nil
}

// DetachTarget 断开与目标的连接
func (m *ClientManager) DetachTarget(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	delete(m.sessions, id)
	// 先取消 context，再关闭连接
	if s.Cancel != nil {
		s.Cancel()
	}
	if s.Conn != nil {
		return s.Conn.Close()
	}
	return nil
}

// DetachAll 断开所有会话
func (m *ClientManager) DetachAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.DetachTarget(id); err != nil {
			m.log.Err(err, "断开会话失败", "targetID", id)
		}
	}
}

// GetSession 获取已存在的会话
func (m *ClientManager) GetSession(id string) (*TargetSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions 返回当前所有会话的快照
func (m *ClientManager) Sessions() []*TargetSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]*TargetSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		res = append(res, s)
	}
	return res
}
