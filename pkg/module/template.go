package module

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/LeeXN/gosible/pkg/connection"
)

// TemplateModule template 模块实现
// 渲染好的模板内容部署到目标主机
type TemplateModule struct{}

// Name 模块名
func (m *TemplateModule) Name() string { return "template" }

// NeedsConnection template 需要真实连接
func (m *TemplateModule) NeedsConnection() bool { return true }

// Run 执行 template 模块
// 模板渲染由 runner 预处理，这里只负责比较、传输和权限设置
func (m *TemplateModule) Run(ctx context.Context, conn connection.Conn, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	dest, err := RequiredString(args, "dest")
	if err != nil {
		return &Result{Failed: true, Msg: err.Error()}, nil
	}

	v, ok := args["_rendered_content"]
	if !ok {
		return &Result{Failed: true, Msg: "internal error: _rendered_content not provided by runner"}, nil
	}
	content := []byte(cast.ToString(v))
	localSum := sha256Hex(content)

	remoteSum, err := remoteChecksum(ctx, conn, dest, opts)
	if err != nil {
		return nil, err
	}
	if remoteSum == localSum {
		return &Result{
			Changed:  false,
			Dest:     dest,
			Checksum: localSum,
			Msg:      fmt.Sprintf("template already up to date at %s", dest),
		}, nil
	}

	// 内容要变且旧文件存在时先留备份
	if OptionalBool(args, "backup", false) && remoteSum != "" {
		backupCmd := fmt.Sprintf("cp -p %s %s", shellQuote(dest), shellQuote(dest+".bak"))
		_, _, _, _ = execCommand(ctx, conn, backupCmd, opts)
	}

	mode, err := fileMode(args, 0o644)
	if err != nil {
		return &Result{Failed: true, Msg: err.Error()}, nil
	}

	if err := writeRemoteFile(ctx, conn, content, dest, mode, opts); err != nil {
		return &Result{Failed: true, Msg: err.Error()}, nil
	}

	if result := applyOwnership(ctx, conn, dest, args, opts); result != nil {
		return result, nil
	}

	// validate 里的 %s 会被替换为目标文件路径
	if validate := OptionalString(args, "validate", ""); validate != "" {
		validateCmd := fmt.Sprintf(validate, dest)
		_, stderr, rc, err := execCommand(ctx, conn, validateCmd, opts)
		if err != nil {
			return nil, err
		}
		if rc != 0 {
			return &Result{
				Failed: true,
				Msg:    fmt.Sprintf("validation failed: %s", strings.TrimSpace(string(stderr))),
			}, nil
		}
	}

	return &Result{
		Changed:  true,
		Dest:     dest,
		Checksum: localSum,
		Msg:      fmt.Sprintf("template rendered to %s", dest),
	}, nil
}
