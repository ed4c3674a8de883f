package domain

import "errors"

// 监视器相关错误
var (
	ErrAlreadyRunning = errors.New("monitor already running")
	ErrNotRunning     = errors.New("monitor not running")
	ErrEmptyLog       = errors.New("capture log is empty")
)

// 目标相关错误
var (
	ErrTargetNotFound   = errors.New("target not found")
	ErrNoTargetAttached = errors.New("no target attached")
)

// 连接相关错误
var (
	ErrDevToolsUnreachable = errors.New("devtools unreachable")
)

// 配置与存储相关错误
var (
	ErrInvalidConfig         = errors.New("invalid config")
	ErrStorageNotInitialized = errors.New("storage not initialized")
)
