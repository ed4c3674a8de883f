package intercept

import (
	"reqwatch/internal/classifier"
	"reqwatch/pkg/domain"
)

// Completion 底层原语的完成信号
type Completion struct {
	Status    int
	HasStatus bool
	Body      string
	Headers   map[string]string
}

// Transport 宿主环境请求原语的能力接口。
// 核心层只面向该接口做门控与记录，由宿主适配层负责安装
type Transport interface {
	// Open 以方法与 URL 初始化调用
	Open(method, url string) error

	// Send 发出调用
	Send(body string, headers map[string]string) error

	// OnComplete 注册完成回调
	OnComplete(fn func(Completion))
}

// wrappedTransport 装饰后的原语。类型本身即重复包装的标记
type wrappedTransport struct {
	Transport
	i       *Interceptor
	channel domain.Channel
	loc     func() classifier.Location
	flight  *Flight
}

// Wrap 用拦截逻辑装饰一个原语。重复包装是空操作，返回原样，
// 保证初始化跑两次也不会对同一逻辑请求产生两条记录
func (i *Interceptor) Wrap(t Transport, ch domain.Channel, loc func() classifier.Location) Transport {
	if w, ok := t.(*wrappedTransport); ok {
		return w
	}
	return &wrappedTransport{Transport: t, i: i, channel: ch, loc: loc}
}

// Open 登记航程并原样委托底层原语，返回值与错误不做任何改写
func (w *wrappedTransport) Open(method, url string) error {
	w.flight = w.i.Begin(w.channel, method, url, w.loc())
	return w.Transport.Open(method, url)
}

// Send 发送时评估门控；命中时挂接完成钩子，然后原样委托底层原语
func (w *wrappedTransport) Send(body string, headers map[string]string) error {
	f := w.flight
	if f == nil {
		return w.Transport.Send(body, headers)
	}
	f.Send(body, headers)
	if f.Matched() {
		w.Transport.OnComplete(func(c Completion) {
			if c.HasStatus {
				f.SetResponseMeta(c.Status, c.Headers)
			}
			f.Complete(c.Body)
		})
	}
	return w.Transport.Send(body, headers)
}
