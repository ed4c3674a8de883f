// Package httpapi 提供检视用的 HTTP 接口入口
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"reqwatch/internal/config"
	api "reqwatch/pkg/api"
)

// Server HTTP 接口服务
type Server struct {
	svc api.Service
}

// NewServer 创建 HTTP 接口服务
func NewServer(svc api.Service) *Server {
	return &Server{svc: svc}
}

// ServeHTTP 处理所有检视请求
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidRequest.withError(err))
		return
	}
	res := s.dispatch(r.Context(), &req)
	writeResponse(w, res)
}

// Request 表示通用请求结构
type Request struct {
	Method string          `json:"method"`
	ID     string          `json:"id,omitempty"`
	Params json.RawMessage `json:"params"`
}

// Response 表示通用响应结构
type Response struct {
	ID     string       `json:"id,omitempty"`
	Result interface{}  `json:"result,omitempty"`
	Error  *ErrorObject `json:"error,omitempty"`
}

// ErrorObject 表示错误信息
type ErrorObject struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ApiError 表示内部错误类型
type ApiError struct {
	Code string
	Err  error
}

func (e ApiError) withError(err error) ApiError {
	return ApiError{Code: e.Code, Err: err}
}

var (
	// ErrInvalidRequest 无效请求
	ErrInvalidRequest = ApiError{Code: "invalid_request"}
	// ErrMethodNotFound 方法不存在
	ErrMethodNotFound = ApiError{Code: "method_not_found"}
	// ErrInvalidParams 参数错误
	ErrInvalidParams = ApiError{Code: "invalid_params"}
	// ErrInternal 内部错误
	ErrInternal = ApiError{Code: "internal"}
)

// downloadParams 日志导出参数
type downloadParams struct {
	Filename string `json:"filename,omitempty"`
}

// targetParams 目标操作参数
type targetParams struct {
	TargetID string `json:"targetId,omitempty"`
}

// statusResult 运行状态结果
type statusResult struct {
	Running bool `json:"running"`
	Count   int  `json:"count"`
}

// downloadResult 日志导出结果
type downloadResult struct {
	File  string `json:"file"`
	Count int    `json:"count"`
}

// dispatch 根据 method 分发请求
func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	var (
		result interface{}
		err    *ErrorObject
	)
	switch req.Method {
	case "monitor.start":
		result, err = s.handleMonitorStart()
	case "monitor.stop":
		result, err = s.handleMonitorStop()
	case "monitor.status":
		result, err = s.handleMonitorStatus()
	case "requests.list":
		result, err = s.handleRequestsList()
	case "requests.clear":
		result, err = s.handleRequestsClear()
	case "requests.download":
		result, err = s.handleRequestsDownload(req.Params)
	case "config.get":
		result, err = s.handleConfigGet()
	case "config.update":
		result, err = s.handleConfigUpdate(req.Params)
	case "stats.get":
		result, err = s.handleStatsGet()
	case "targets.list":
		result, err = s.handleTargetsList(ctx)
	case "targets.attach":
		result, err = s.handleTargetsAttach(req.Params)
	case "targets.detach":
		result, err = s.handleTargetsDetach(req.Params)
	default:
		err = toErrorObject(ErrMethodNotFound)
	}
	return &Response{ID: req.ID, Result: result, Error: err}
}

// writeResponse 写出统一响应
func writeResponse(w http.ResponseWriter, res *Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	_ = enc.Encode(res)
}

// writeError 写出错误响应
func writeError(w http.ResponseWriter, apiErr ApiError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	_ = enc.Encode(&Response{Error: toErrorObject(apiErr)})
}

// toErrorObject 转换错误为响应错误对象
func toErrorObject(e ApiError) *ErrorObject {
	msg := e.Code
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return &ErrorObject{Code: e.Code, Message: msg}
}

// handleMonitorStart 处理启动监视。
// 监视生命周期长于单次请求，不使用请求级 Context
func (s *Server) handleMonitorStart() (interface{}, *ErrorObject) {
	if err := s.svc.Start(context.Background()); err != nil {
		return nil, toErrorObject(ErrInternal.withError(err))
	}
	return &statusResult{Running: s.svc.IsRunning(), Count: len(s.svc.Requests())}, nil
}

// handleMonitorStop 处理停止监视
func (s *Server) handleMonitorStop() (interface{}, *ErrorObject) {
	s.svc.Stop()
	return &statusResult{Running: s.svc.IsRunning(), Count: len(s.svc.Requests())}, nil
}

// handleMonitorStatus 处理运行状态查询
func (s *Server) handleMonitorStatus() (interface{}, *ErrorObject) {
	return &statusResult{Running: s.svc.IsRunning(), Count: len(s.svc.Requests())}, nil
}

// handleRequestsList 处理捕获日志查询
func (s *Server) handleRequestsList() (interface{}, *ErrorObject) {
	return s.svc.Requests(), nil
}

// handleRequestsClear 处理捕获日志清空
func (s *Server) handleRequestsClear() (interface{}, *ErrorObject) {
	s.svc.Clear()
	return nil, nil
}

// handleRequestsDownload 处理捕获日志导出
func (s *Server) handleRequestsDownload(params json.RawMessage) (interface{}, *ErrorObject) {
	var p downloadParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, toErrorObject(ErrInvalidParams.withError(err))
		}
	}
	count := len(s.svc.Requests())
	file, err := s.svc.Download(p.Filename)
	if err != nil {
		return nil, toErrorObject(ErrInternal.withError(err))
	}
	if file == "" {
		count = 0
	}
	return &downloadResult{File: file, Count: count}, nil
}

// handleConfigGet 处理配置查询
func (s *Server) handleConfigGet() (interface{}, *ErrorObject) {
	return s.svc.Config(), nil
}

// handleConfigUpdate 处理配置更新
func (s *Server) handleConfigUpdate(params json.RawMessage) (interface{}, *ErrorObject) {
	var o config.Overrides
	if err := json.Unmarshal(params, &o); err != nil {
		return nil, toErrorObject(ErrInvalidParams.withError(err))
	}
	s.svc.UpdateConfig(&o)
	return s.svc.Config(), nil
}

// handleStatsGet 处理拦截统计查询
func (s *Server) handleStatsGet() (interface{}, *ErrorObject) {
	return s.svc.Stats(), nil
}

// handleTargetsList 处理目标列表查询
func (s *Server) handleTargetsList(ctx context.Context) (interface{}, *ErrorObject) {
	targets, err := s.svc.ListTargets(ctx)
	if err != nil {
		return nil, toErrorObject(ErrInternal.withError(err))
	}
	return targets, nil
}

// handleTargetsAttach 处理目标附着
func (s *Server) handleTargetsAttach(params json.RawMessage) (interface{}, *ErrorObject) {
	var p targetParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, toErrorObject(ErrInvalidParams.withError(err))
		}
	}
	if err := s.svc.AttachTarget(p.TargetID); err != nil {
		return nil, toErrorObject(ErrInternal.withError(err))
	}
	return nil, nil
}

// handleTargetsDetach 处理目标断开
func (s *Server) handleTargetsDetach(params json.RawMessage) (interface{}, *ErrorObject) {
	var p targetParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toErrorObject(ErrInvalidParams.withError(err))
	}
	if p.TargetID == "" {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("targetId is required")))
	}
	if err := s.svc.DetachTarget(p.TargetID); err != nil {
		return nil, toErrorObject(ErrInternal.withError(err))
	}
	return nil, nil
}
