package module

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/LeeXN/gosible/pkg/connection"
)

// CommandModule command 模块实现
// 在目标机上执行一条命令，支持 creates/removes 幂等守卫
type CommandModule struct{}

// Name 模块名
func (m *CommandModule) Name() string { return "command" }

// NeedsConnection command 需要真实连接
func (m *CommandModule) NeedsConnection() bool { return true }

// Run 执行 command 模块
func (m *CommandModule) Run(ctx context.Context, conn connection.Conn, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	cmd, err := commandLine(args)
	if err != nil {
		return &Result{Failed: true, Msg: err.Error()}, nil
	}

	if result, guarded, err := checkGuards(ctx, conn, args, opts); err != nil {
		return nil, err
	} else if guarded {
		return result, nil
	}

	if chdir := OptionalString(args, "chdir", ""); chdir != "" {
		cmd = fmt.Sprintf("cd %s && %s", shellQuote(chdir), cmd)
	}

	return runCommand(ctx, conn, cmd, opts)
}

// commandLine 从 shorthand、cmd 或 argv 参数组装命令行
func commandLine(args map[string]interface{}) (string, error) {
	if cmd, ok := RawParams(args, "cmd"); ok {
		cmd = strings.TrimSpace(cmd)
		if cmd == "" {
			return "", fmt.Errorf("no command given")
		}
		return cmd, nil
	}

	if v, ok := args["argv"]; ok && v != nil {
		argv, err := cast.ToStringSliceE(v)
		if err != nil || len(argv) == 0 {
			return "", fmt.Errorf("argv must be a non-empty list of strings")
		}
		quoted := make([]string, len(argv))
		for i, a := range argv {
			quoted[i] = shellQuote(a)
		}
		return strings.Join(quoted, " "), nil
	}

	return "", fmt.Errorf("no command given")
}

// checkGuards 处理 creates/removes 守卫，命中守卫时返回跳过结果
func checkGuards(ctx context.Context, conn connection.Conn, args map[string]interface{}, opts ExecOptions) (*Result, bool, error) {
	if creates := OptionalString(args, "creates", ""); creates != "" {
		exists, err := pathExists(ctx, conn, creates, opts)
		if err != nil {
			return nil, false, err
		}
		if exists {
			return &Result{
				Changed: false,
				Msg:     fmt.Sprintf("skipped, since %s exists", creates),
			}, true, nil
		}
	}

	if removes := OptionalString(args, "removes", ""); removes != "" {
		exists, err := pathExists(ctx, conn, removes, opts)
		if err != nil {
			return nil, false, err
		}
		if !exists {
			return &Result{
				Changed: false,
				Msg:     fmt.Sprintf("skipped, since %s does not exist", removes),
			}, true, nil
		}
	}

	return nil, false, nil
}

// runCommand 执行命令并把退出码折算进结果
func runCommand(ctx context.Context, conn connection.Conn, cmd string, opts ExecOptions) (*Result, error) {
	stdout, stderr, rc, err := execCommand(ctx, conn, cmd, opts)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Changed: true,
		RC:      rc,
		Stdout:  strings.TrimRight(string(stdout), "\n"),
		Stderr:  strings.TrimRight(string(stderr), "\n"),
	}
	if rc != 0 {
		result.Failed = true
		result.Msg = "non-zero return code"
	}
	return result, nil
}
