package module

import (
	"context"

	"github.com/LeeXN/gosible/pkg/connection"
)

// FailModule fail 模块实现
// fail 模块用于显式地使任务失败，通常与条件判断配合使用
type FailModule struct{}

// Name 模块名
func (m *FailModule) Name() string { return "fail" }

// NeedsConnection fail 在控制节点求值
func (m *FailModule) NeedsConnection() bool { return false }

// Run 执行 fail 模块
func (m *FailModule) Run(ctx context.Context, conn connection.Conn, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	return &Result{
		Failed: true,
		Msg:    OptionalString(args, "msg", "Failed as requested"),
	}, nil
}
