package module

import (
	"context"
	"fmt"
	"strings"

	"github.com/LeeXN/gosible/pkg/connection"
)

// ShellModule shell 模块实现
// 与 command 不同，命令交给目标机上的 shell 解释，管道和重定向可用
type ShellModule struct{}

// Name 模块名
func (m *ShellModule) Name() string { return "shell" }

// NeedsConnection shell 需要真实连接
func (m *ShellModule) NeedsConnection() bool { return true }

// Run 执行 shell 模块
func (m *ShellModule) Run(ctx context.Context, conn connection.Conn, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	cmd, ok := RawParams(args, "cmd")
	if !ok || strings.TrimSpace(cmd) == "" {
		return &Result{Failed: true, Msg: "no command given"}, nil
	}

	if result, guarded, err := checkGuards(ctx, conn, args, opts); err != nil {
		return nil, err
	} else if guarded {
		return result, nil
	}

	if chdir := OptionalString(args, "chdir", ""); chdir != "" {
		cmd = fmt.Sprintf("cd %s && %s", shellQuote(chdir), cmd)
	}

	// 显式指定解释器时把整条命令交给它
	if executable := OptionalString(args, "executable", ""); executable != "" {
		cmd = fmt.Sprintf("%s -c %s", shellQuote(executable), shellQuote(cmd))
	}

	return runCommand(ctx, conn, cmd, opts)
}

// RawModule raw 模块实现
// 直接把命令丢给远端，不做任何守卫和包装，用于目标机上连
// shell 工具都不全的场景
type RawModule struct{}

// Name 模块名
func (m *RawModule) Name() string { return "raw" }

// NeedsConnection raw 需要真实连接
func (m *RawModule) NeedsConnection() bool { return true }

// Run 执行 raw 模块
func (m *RawModule) Run(ctx context.Context, conn connection.Conn, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	cmd, ok := RawParams(args, "cmd")
	if !ok || strings.TrimSpace(cmd) == "" {
		return &Result{Failed: true, Msg: "no command given"}, nil
	}

	return runCommand(ctx, conn, cmd, opts)
}
