package module

import (
	"context"
	"fmt"

	"github.com/LeeXN/gosible/pkg/connection"
)

// Executor 模块执行器，负责查找模块并统一结果语义
type Executor struct {
	registry *Registry
}

// NewExecutor 创建一个新的模块执行器
func NewExecutor(registry *Registry) *Executor {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Executor{registry: registry}
}

// Registry 返回执行器使用的模块注册表
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute 执行模块
//
// 目标机上的失败（命令非零退出、文件不存在等）统一表达为
// Result.Failed=true，error 只用于通道级故障（模块不存在、连接缺失）。
// 模块 Run 返回的 error 也会被归一化为失败结果，调用方只需检查 Result。
func (e *Executor) Execute(ctx context.Context, conn connection.Conn, moduleName string, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	m, err := e.registry.Lookup(moduleName)
	if err != nil {
		return nil, err
	}

	if m.NeedsConnection() && conn == nil {
		return nil, fmt.Errorf("module %s requires a connection", moduleName)
	}

	result, err := m.Run(ctx, conn, args, opts)
	if err != nil {
		return &Result{
			Failed: true,
			Msg:    err.Error(),
		}, nil
	}
	if result == nil {
		result = &Result{}
	}
	return result, nil
}
