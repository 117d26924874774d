package errors

import (
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType int

const (
	// ErrUnreachable 主机不可达（连接失败）
	ErrUnreachable ErrorType = iota
	// ErrParse 解析错误（Inventory、Playbook 等）
	ErrParse
	// ErrRender 模板渲染错误（未定义过滤器、递归超限等）
	ErrRender
	// ErrInvalidArgs 参数错误
	ErrInvalidArgs
	// ErrModuleNotFound 模块未找到
	ErrModuleNotFound
)

// ExecutionError 统一的执行错误类型
type ExecutionError struct {
	Type      ErrorType              // 错误类型
	Host      string                 // 目标主机（如果适用）
	Task      string                 // 任务名称（如果适用）
	Module    string                 // 模块名称（如果适用）
	Message   string                 // 错误消息
	Cause     error                  // 原始错误
	Retriable bool                   // 是否可重试
	Details   map[string]interface{} // 额外的错误详情
}

func (e *ExecutionError) Error() string {
	if e.Host != "" && e.Task != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Host, e.Task, e.Message)
	}
	if e.Host != "" {
		return fmt.Sprintf("[%s] %s", e.Host, e.Message)
	}
	return e.Message
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// IsType 判断 err 是否为指定类型的 ExecutionError
func IsType(err error, t ErrorType) bool {
	ee, ok := err.(*ExecutionError)
	return ok && ee.Type == t
}

// NewUnreachableError 创建不可达错误
func NewUnreachableError(host string, cause error) *ExecutionError {
	return &ExecutionError{
		Type:      ErrUnreachable,
		Host:      host,
		Message:   fmt.Sprintf("Failed to connect to host: %v", cause),
		Cause:     cause,
		Retriable: true,
	}
}

// NewParseError 创建解析错误
func NewParseError(filePath string, cause error) *ExecutionError {
	return &ExecutionError{
		Type:      ErrParse,
		Message:   fmt.Sprintf("Failed to parse %s: %v", filePath, cause),
		Cause:     cause,
		Retriable: false,
	}
}

// NewRenderError 创建渲染错误
func NewRenderError(host, task, expr string, cause error) *ExecutionError {
	return &ExecutionError{
		Type:      ErrRender,
		Host:      host,
		Task:      task,
		Message:   fmt.Sprintf("Failed to render %q: %v", expr, cause),
		Cause:     cause,
		Retriable: false,
	}
}

// NewInvalidArgsError 创建参数错误
func NewInvalidArgsError(module, msg string) *ExecutionError {
	return &ExecutionError{
		Type:      ErrInvalidArgs,
		Module:    module,
		Message:   msg,
		Retriable: false,
	}
}

// NewModuleNotFoundError 创建模块未找到错误
func NewModuleNotFoundError(module string) *ExecutionError {
	return &ExecutionError{
		Type:      ErrModuleNotFound,
		Module:    module,
		Message:   fmt.Sprintf("Module not found: %s", module),
		Retriable: false,
	}
}
