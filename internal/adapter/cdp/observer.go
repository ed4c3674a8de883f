package cdp

import (
	"context"
	"sync"
	"time"

	"reqwatch/internal/intercept"
	"reqwatch/internal/logger"
	"reqwatch/internal/pool"
	"reqwatch/internal/tracker"
	"reqwatch/pkg/domain"

	"github.com/mafredri/cdp/protocol/network"
)

// bodyFetchTimeout 单次响应体拉取的超时
const bodyFetchTimeout = 10 * time.Second

// Observer 浏览器网络观测源。消费 Network 域事件流并驱动拦截层航程，
// 响应体拉取与记录提交提交到工作池执行
type Observer struct {
	mgr      *ClientManager
	intr     *intercept.Interceptor
	pool     *pool.Pool
	log      logger.Logger
	targetID string

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	flights *tracker.Tracker
}

// NewObserver 创建观测源。targetID 为空时附着第一个 page 目标
func NewObserver(mgr *ClientManager, intr *intercept.Interceptor, p *pool.Pool, targetID string, l logger.Logger) *Observer {
	if l == nil {
		l = logger.NewNop()
	}
	if p == nil {
		p = pool.New(0, 0)
	}
	p.SetLogger(l)
	return &Observer{
		mgr:      mgr,
		intr:     intr,
		pool:     p,
		log:      l,
		targetID: targetID,
	}
}

// Start 附着目标并安装网络观测
func (o *Observer) Start(ctx context.Context) error {
	o.mu.Lock()
	runCtx, cancel := context.WithCancel(ctx)
	o.ctx = runCtx
	o.cancel = cancel
	o.flights = tracker.New(60*time.Second, o.log)
	o.mu.Unlock()

	o.pool.Start(runCtx)

	s, err := o.mgr.AttachTarget(runCtx, o.targetID)
	if err != nil {
		return err
	}
	return o.observe(s)
}

// Stop 释放观测资源并断开所有会话
func (o *Observer) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	o.cancel = nil
	flights := o.flights
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if flights != nil {
		flights.Stop()
	}
	o.pool.Stop()
	o.mgr.DetachAll()
}

// Attach 附着额外目标并对其安装观测。需要在 Start 之后调用
func (o *Observer) Attach(id string) error {
	o.mu.Lock()
	ctx := o.ctx
	o.mu.Unlock()
	if ctx == nil {
		return domain.ErrNotRunning
	}

	s, err := o.mgr.AttachTarget(ctx, id)
	if err != nil {
		return err
	}
	return o.observe(s)
}

// Detach 断开指定目标
func (o *Observer) Detach(id string) error {
	return o.mgr.DetachTarget(id)
}

// Targets 列出浏览器当前的标签页目标
func (o *Observer) Targets(ctx context.Context) ([]domain.TargetInfo, error) {
	return o.mgr.ListTargets(ctx)
}

// observe 开启 Network 域并消费四类事件流
func (o *Observer) observe(s *TargetSession) error {
	if err := s.Client.Network.Enable(s.Ctx, nil); err != nil {
		o.log.Err(err, "开启 Network 域失败", "targetID", s.ID)
		return err
	}

	reqC, err := s.Client.Network.RequestWillBeSent(s.Ctx)
	if err != nil {
		o.log.Err(err, "订阅请求事件流失败", "targetID", s.ID)
		return err
	}
	respC, err := s.Client.Network.ResponseReceived(s.Ctx)
	if err != nil {
		reqC.Close()
		o.log.Err(err, "订阅响应事件流失败", "targetID", s.ID)
		return err
	}
	finC, err := s.Client.Network.LoadingFinished(s.Ctx)
	if err != nil {
		reqC.Close()
		respC.Close()
		o.log.Err(err, "订阅完成事件流失败", "targetID", s.ID)
		return err
	}
	failC, err := s.Client.Network.LoadingFailed(s.Ctx)
	if err != nil {
		reqC.Close()
		respC.Close()
		finC.Close()
		o.log.Err(err, "订阅失败事件流失败", "targetID", s.ID)
		return err
	}

	go func() {
		defer reqC.Close()
		for {
			ev, err := reqC.Recv()
			if err != nil {
				o.streamDone(s, err, "请求事件流")
				return
			}
			o.onRequest(s, ev)
		}
	}()
	go func() {
		defer respC.Close()
		for {
			ev, err := respC.Recv()
			if err != nil {
				o.streamDone(s, err, "响应事件流")
				return
			}
			o.onResponse(s, ev)
		}
	}()
	go func() {
		defer finC.Close()
		for {
			ev, err := finC.Recv()
			if err != nil {
				o.streamDone(s, err, "完成事件流")
				return
			}
			o.onFinished(s, ev)
		}
	}()
	go func() {
		defer failC.Close()
		for {
			ev, err := failC.Recv()
			if err != nil {
				o.streamDone(s, err, "失败事件流")
				return
			}
			o.onFailed(s, ev)
		}
	}()

	o.log.Info("网络观测已安装", "targetID", s.ID)
	return nil
}

// streamDone 事件流终止：会话取消属正常退出，其余记错误日志
func (o *Observer) streamDone(s *TargetSession, err error, stream string) {
	select {
	case <-s.Ctx.Done():
	default:
		o.log.Err(err, "事件流中断", "stream", stream, "targetID", s.ID)
	}
}

// onRequest 请求即将发出：开启航程并在发送点评估门控，命中的入在途池
func (o *Observer) onRequest(s *TargetSession, ev *network.RequestWillBeSentReply) {
	ch, ok := channelFor(ev.Type)
	if !ok {
		return
	}
	f := o.intr.Begin(ch, ev.Request.Method, ev.Request.URL, locationOf(ev.DocumentURL))
	f.Send(requestBody(&ev.Request), decodeHeaders(ev.Request.Headers))
	if f.Matched() {
		o.flights.Set(flightKey(s.ID, ev.RequestID), f)
	}
}

// onResponse 响应头到达：登记状态码与响应头，航程留在在途池等完成信号
func (o *Observer) onResponse(s *TargetSession, ev *network.ResponseReceivedReply) {
	f, ok := o.flights.Peek(flightKey(s.ID, ev.RequestID))
	if !ok {
		return
	}
	f.SetResponseMeta(ev.Response.Status, decodeHeaders(ev.Response.Headers))
}

// onFinished 加载完成：取出航程，在工作池中拉取响应体并提交记录
func (o *Observer) onFinished(s *TargetSession, ev *network.LoadingFinishedReply) {
	f, ok := o.flights.Take(flightKey(s.ID, ev.RequestID))
	if !ok {
		return
	}
	requestID := ev.RequestID
	submitted := o.pool.Submit(func() {
		f.Complete(o.fetchBody(s, requestID))
	})
	if !submitted {
		// 工作池满时放弃响应体，仍按完成提交记录
		f.Complete("")
	}
}

// onFailed 加载失败：放弃航程，不产生记录
func (o *Observer) onFailed(s *TargetSession, ev *network.LoadingFailedReply) {
	f, ok := o.flights.Take(flightKey(s.ID, ev.RequestID))
	if !ok {
		return
	}
	f.Drop()
	o.log.Debug("请求加载失败，航程已放弃", "requestID", string(ev.RequestID), "error", ev.ErrorText)
}

// fetchBody 拉取并解码响应体。失败时返回空串，记录仍会提交
func (o *Observer) fetchBody(s *TargetSession, id network.RequestID) string {
	ctx, cancel := context.WithTimeout(s.Ctx, bodyFetchTimeout)
	defer cancel()

	reply, err := s.Client.Network.GetResponseBody(ctx, &network.GetResponseBodyArgs{RequestID: id})
	if err != nil {
		o.log.Debug("拉取响应体失败", "requestID", string(id), "error", err.Error())
		return ""
	}
	return decodeBody(reply.Body, reply.Base64Encoded)
}

// flightKey 在途航程键：目标 ID + 请求 ID，避免跨会话串号
func flightKey(targetID string, id network.RequestID) string {
	return targetID + ":" + string(id)
}
