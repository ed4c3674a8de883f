package intercept

import (
	"sync"
	"time"

	"reqwatch/internal/capture"
	"reqwatch/internal/classifier"
	"reqwatch/pkg/domain"
)

// 航程状态机：opened → (门控) → sent → completed → recorded。
// 门控未通过进入 passthrough，后续所有步骤都是空操作
type flightState int

const (
	stateOpened flightState = iota
	statePassthrough
	stateSent
	stateRecorded
)

// Flight 一次被观测调用的航程。Complete 至多生效一次
type Flight struct {
	i       *Interceptor
	channel domain.Channel
	method  string
	url     string
	loc     classifier.Location
	start   time.Time

	mu          sync.Mutex
	state       flightState
	reqBody     string
	reqHeaders  map[string]string
	status      int
	hasStatus   bool
	respHeaders map[string]string
}

// Send 进入发送阶段并在此刻评估门控（发送时求值，允许 Open 之后的 URL/配置变化生效）。
// 未命中门控的航程转入直通状态，不再产生任何观测开销
func (f *Flight) Send(body string, headers map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != stateOpened {
		return
	}

	matched := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				f.i.log.Warn("门控评估异常，按未命中处理", "url", f.url, "panic", r)
			}
		}()
		matched = f.i.gate(f.channel, f.url, f.loc)
	}()
	f.i.countGate(f.channel, matched)

	if !matched {
		f.state = statePassthrough
		return
	}
	f.state = stateSent
	f.reqBody = body
	f.reqHeaders = headers
}

// Matched 航程是否命中门控（Send 之后才有意义）
func (f *Flight) Matched() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == stateSent
}

// SetResponseMeta 登记响应状态码与响应头（完成信号之前到达的元数据）
func (f *Flight) SetResponseMeta(status int, headers map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != stateSent {
		return
	}
	f.status = status
	f.hasStatus = true
	f.respHeaders = headers
}

// Complete 完成航程：组装记录并提交，至多生效一次。
// 构建或提交过程中的任何异常都被吞掉，只留下告警日志
func (f *Flight) Complete(responseBody string) {
	f.mu.Lock()
	if f.state != stateSent {
		f.mu.Unlock()
		return
	}
	f.state = stateRecorded

	raw := &capture.RawExchange{
		Channel:         f.channel,
		Method:          f.method,
		URL:             f.url,
		Location:        f.loc,
		RequestBody:     f.reqBody,
		RequestHeaders:  f.reqHeaders,
		Status:          f.status,
		HasStatus:       f.hasStatus,
		ResponseBody:    responseBody,
		ResponseHeaders: f.respHeaders,
		StartTime:       f.start,
		EndTime:         time.Now(),
	}
	f.mu.Unlock()

	// 脚本通道拿不到响应状态，加载成功默认 200
	if !raw.HasStatus && (f.channel == domain.ChannelScript || f.channel == domain.ChannelJSONP) {
		raw.Status = 200
		raw.HasStatus = true
	}

	defer func() {
		if r := recover(); r != nil {
			f.i.log.Warn("捕获记录构建或提交异常，已忽略", "url", f.url, "panic", r)
		}
	}()
	rec := f.i.builder.Build(raw)
	f.i.commit(rec)
}

// Drop 放弃航程（底层调用出错且没有完成信号），不产生记录
func (f *Flight) Drop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = statePassthrough
}
