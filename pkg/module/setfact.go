package module

import (
	"context"
	"strings"

	"github.com/LeeXN/gosible/pkg/connection"
)

// SetFactModule set_fact 模块实现
// 把参数整体写入主机级事实，后续任务的模板上下文里可直接引用
type SetFactModule struct{}

// Name 模块名
func (m *SetFactModule) Name() string { return "set_fact" }

// NeedsConnection set_fact 在控制节点求值
func (m *SetFactModule) NeedsConnection() bool { return false }

// Run 执行 set_fact 模块
func (m *SetFactModule) Run(ctx context.Context, conn connection.Conn, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	facts := make(map[string]interface{}, len(args))
	for k, v := range args {
		// 内部注入的键不入事实
		if strings.HasPrefix(k, "_") {
			continue
		}
		facts[k] = v
	}

	return &Result{
		Changed:      false,
		AnsibleFacts: facts,
	}, nil
}
