package module

import (
	"context"
	"fmt"
	"strings"

	"github.com/LeeXN/gosible/pkg/connection"
)

// FileModule file 模块实现
// 管理目标机上的文件、目录和软链接状态
type FileModule struct{}

// Name 模块名
func (m *FileModule) Name() string { return "file" }

// NeedsConnection file 需要真实连接
func (m *FileModule) NeedsConnection() bool { return true }

// Run 执行 file 模块
func (m *FileModule) Run(ctx context.Context, conn connection.Conn, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	path, err := RequiredStringAlias(args, "path", "dest", "name")
	if err != nil {
		return &Result{Failed: true, Msg: err.Error()}, nil
	}

	state := OptionalString(args, "state", "file")
	switch state {
	case "file":
		return m.ensureFile(ctx, conn, path, args, opts)
	case "directory":
		return m.ensureDirectory(ctx, conn, path, args, opts)
	case "absent":
		return m.ensureAbsent(ctx, conn, path, opts)
	case "touch":
		return m.touchFile(ctx, conn, path, args, opts)
	case "link":
		return m.ensureLink(ctx, conn, path, args, opts)
	default:
		return &Result{Failed: true, Msg: fmt.Sprintf("invalid state: %s", state)}, nil
	}
}

// ensureFile state=file 只校验和调整已有文件的属性，不创建文件
func (m *FileModule) ensureFile(ctx context.Context, conn connection.Conn, path string, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	_, _, rc, err := execCommand(ctx, conn, "test -f "+shellQuote(path), opts)
	if err != nil {
		return nil, err
	}
	if rc != 0 {
		return &Result{
			Failed: true,
			Msg:    fmt.Sprintf("file (%s) is absent, cannot continue", path),
		}, nil
	}

	changed, failResult, err := applyFileAttributes(ctx, conn, path, args, opts)
	if err != nil {
		return nil, err
	}
	if failResult != nil {
		return failResult, nil
	}
	return &Result{Changed: changed, Dest: path}, nil
}

// ensureDirectory state=directory 目录不存在时创建
func (m *FileModule) ensureDirectory(ctx context.Context, conn connection.Conn, path string, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	_, _, rc, err := execCommand(ctx, conn, "test -d "+shellQuote(path), opts)
	if err != nil {
		return nil, err
	}

	changed := false
	if rc != 0 {
		_, stderr, mkRC, err := execCommand(ctx, conn, "mkdir -p "+shellQuote(path), opts)
		if err != nil {
			return nil, err
		}
		if mkRC != 0 {
			return &Result{
				Failed: true,
				Msg:    fmt.Sprintf("failed to create directory: %s", strings.TrimSpace(string(stderr))),
			}, nil
		}
		changed = true
	}

	attrChanged, failResult, err := applyFileAttributes(ctx, conn, path, args, opts)
	if err != nil {
		return nil, err
	}
	if failResult != nil {
		return failResult, nil
	}
	return &Result{Changed: changed || attrChanged, Dest: path}, nil
}

// ensureAbsent state=absent 路径存在时删除
func (m *FileModule) ensureAbsent(ctx context.Context, conn connection.Conn, path string, opts ExecOptions) (*Result, error) {
	exists, err := pathExists(ctx, conn, path, opts)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &Result{Changed: false, Dest: path}, nil
	}

	_, stderr, rc, err := execCommand(ctx, conn, "rm -rf "+shellQuote(path), opts)
	if err != nil {
		return nil, err
	}
	if rc != 0 {
		return &Result{
			Failed: true,
			Msg:    fmt.Sprintf("failed to remove path: %s", strings.TrimSpace(string(stderr))),
		}, nil
	}
	return &Result{Changed: true, Dest: path}, nil
}

// touchFile state=touch 文件不存在时创建空文件，已存在时不算变更
func (m *FileModule) touchFile(ctx context.Context, conn connection.Conn, path string, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	exists, err := pathExists(ctx, conn, path, opts)
	if err != nil {
		return nil, err
	}

	changed := false
	if !exists {
		_, stderr, rc, err := execCommand(ctx, conn, "touch "+shellQuote(path), opts)
		if err != nil {
			return nil, err
		}
		if rc != 0 {
			return &Result{
				Failed: true,
				Msg:    fmt.Sprintf("failed to touch file: %s", strings.TrimSpace(string(stderr))),
			}, nil
		}
		changed = true
	}

	attrChanged, failResult, err := applyFileAttributes(ctx, conn, path, args, opts)
	if err != nil {
		return nil, err
	}
	if failResult != nil {
		return failResult, nil
	}
	return &Result{Changed: changed || attrChanged, Dest: path}, nil
}

// ensureLink state=link 维护软链接指向
func (m *FileModule) ensureLink(ctx context.Context, conn connection.Conn, path string, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	src, err := RequiredString(args, "src")
	if err != nil {
		return &Result{Failed: true, Msg: err.Error()}, nil
	}

	stdout, _, rc, err := execCommand(ctx, conn, "readlink "+shellQuote(path), opts)
	if err != nil {
		return nil, err
	}
	if rc == 0 && strings.TrimSpace(string(stdout)) == src {
		return &Result{Changed: false, Dest: path}, nil
	}

	cmd := fmt.Sprintf("ln -sfn %s %s", shellQuote(src), shellQuote(path))
	_, stderr, lnRC, err := execCommand(ctx, conn, cmd, opts)
	if err != nil {
		return nil, err
	}
	if lnRC != 0 {
		return &Result{
			Failed: true,
			Msg:    fmt.Sprintf("failed to create link: %s", strings.TrimSpace(string(stderr))),
		}, nil
	}
	return &Result{Changed: true, Dest: path}, nil
}

// applyFileAttributes 对比并调整 mode/owner/group，返回是否发生变更
func applyFileAttributes(ctx context.Context, conn connection.Conn, path string, args map[string]interface{}, opts ExecOptions) (bool, *Result, error) {
	wantMode := OptionalString(args, "mode", "")
	wantOwner := OptionalString(args, "owner", "")
	wantGroup := OptionalString(args, "group", "")
	if wantMode == "" && wantOwner == "" && wantGroup == "" {
		return false, nil, nil
	}

	// stat 一次拿到当前权限、属主、属组
	stdout, _, rc, err := execCommand(ctx, conn, "stat -c '%a %U %G' "+shellQuote(path), opts)
	if err != nil {
		return false, nil, err
	}
	var curMode, curOwner, curGroup string
	if rc == 0 {
		fields := strings.Fields(string(stdout))
		if len(fields) == 3 {
			curMode, curOwner, curGroup = fields[0], fields[1], fields[2]
		}
	}

	recurseFlag := ""
	if OptionalBool(args, "recurse", false) {
		recurseFlag = "-R "
	}

	changed := false
	if wantMode != "" && !sameOctalMode(wantMode, curMode) {
		cmd := fmt.Sprintf("chmod %s%s %s", recurseFlag, shellQuote(wantMode), shellQuote(path))
		if failResult, err := runAttrCommand(ctx, conn, cmd, "chmod", opts); err != nil || failResult != nil {
			return false, failResult, err
		}
		changed = true
	}
	if wantOwner != "" && wantOwner != curOwner {
		cmd := fmt.Sprintf("chown %s%s %s", recurseFlag, shellQuote(wantOwner), shellQuote(path))
		if failResult, err := runAttrCommand(ctx, conn, cmd, "chown", opts); err != nil || failResult != nil {
			return false, failResult, err
		}
		changed = true
	}
	if wantGroup != "" && wantGroup != curGroup {
		cmd := fmt.Sprintf("chgrp %s%s %s", recurseFlag, shellQuote(wantGroup), shellQuote(path))
		if failResult, err := runAttrCommand(ctx, conn, cmd, "chgrp", opts); err != nil || failResult != nil {
			return false, failResult, err
		}
		changed = true
	}
	return changed, nil, nil
}

// sameOctalMode 比较两个八进制权限串，容忍前导零差异
func sameOctalMode(a, b string) bool {
	trim := func(s string) string {
		s = strings.TrimPrefix(s, "0o")
		s = strings.TrimLeft(s, "0")
		if s == "" {
			return "0"
		}
		return s
	}
	return trim(a) == trim(b)
}

// runAttrCommand 执行属性调整命令，非零退出折算为失败结果
func runAttrCommand(ctx context.Context, conn connection.Conn, cmd, what string, opts ExecOptions) (*Result, error) {
	_, stderr, rc, err := execCommand(ctx, conn, cmd, opts)
	if err != nil {
		return nil, err
	}
	if rc != 0 {
		return &Result{
			Failed: true,
			Msg:    fmt.Sprintf("failed to %s: %s", what, strings.TrimSpace(string(stderr))),
		}, nil
	}
	return nil, nil
}
