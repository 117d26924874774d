package module

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/LeeXN/gosible/pkg/connection"
)

// CopyModule copy 模块实现
// 把控制节点上的内容放到目标机，内容一致时不做任何修改
type CopyModule struct{}

// Name 模块名
func (m *CopyModule) Name() string { return "copy" }

// NeedsConnection copy 需要真实连接
func (m *CopyModule) NeedsConnection() bool { return true }

// Run 执行 copy 模块
func (m *CopyModule) Run(ctx context.Context, conn connection.Conn, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	dest, err := RequiredString(args, "dest")
	if err != nil {
		return &Result{Failed: true, Msg: err.Error()}, nil
	}

	content, err := copyContent(args)
	if err != nil {
		return &Result{Failed: true, Msg: err.Error()}, nil
	}

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
		}, nil
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

	return &Result{
		Changed:  true,
		Dest:     dest,
		Checksum: localSum,
	}, nil
}

// copyContent 从 content 参数或本地 src 文件取内容
func copyContent(args map[string]interface{}) ([]byte, error) {
	if HasParam(args, "content") {
		return []byte(cast.ToString(args["content"])), nil
	}
	if src := OptionalString(args, "src", ""); src != "" {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("could not read src file %s: %v", src, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("one of content or src is required")
}

// sha256Hex 计算内容的十六进制摘要
func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// remoteChecksum 取远端文件摘要，文件不存在时返回空串
func remoteChecksum(ctx context.Context, conn connection.Conn, path string, opts ExecOptions) (string, error) {
	stdout, _, rc, err := execCommand(ctx, conn, "sha256sum "+shellQuote(path), opts)
	if err != nil {
		return "", err
	}
	if rc != 0 {
		return "", nil
	}
	fields := strings.Fields(string(stdout))
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], nil
}

// fileMode 解析八进制 mode 参数
func fileMode(args map[string]interface{}, def os.FileMode) (os.FileMode, error) {
	v, ok := args["mode"]
	if !ok || v == nil {
		return def, nil
	}
	s := cast.ToString(v)
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "0o"), 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode %q: must be an octal permission", s)
	}
	return os.FileMode(n), nil
}

// writeRemoteFile 写远端文件，提权场景先落到 /tmp 再 mv 过去
func writeRemoteFile(ctx context.Context, conn connection.Conn, data []byte, dest string, mode os.FileMode, opts ExecOptions) error {
	if !opts.Become {
		return conn.WriteFile(ctx, data, dest, mode)
	}

	// 登录用户对目标路径可能没有写权限，借道临时文件
	staging := fmt.Sprintf("/tmp/.gosible-stage-%d", os.Getpid())
	if err := conn.WriteFile(ctx, data, staging, mode); err != nil {
		return err
	}
	cmd := fmt.Sprintf("mv %s %s", shellQuote(staging), shellQuote(dest))
	_, stderr, rc, err := execCommand(ctx, conn, cmd, opts)
	if err != nil {
		return err
	}
	if rc != 0 {
		return fmt.Errorf("failed to move file into place: %s", strings.TrimSpace(string(stderr)))
	}
	return nil
}

// applyOwnership 按需调整属主属组，失败时返回失败结果
func applyOwnership(ctx context.Context, conn connection.Conn, path string, args map[string]interface{}, opts ExecOptions) *Result {
	owner := OptionalString(args, "owner", "")
	group := OptionalString(args, "group", "")
	if owner == "" && group == "" {
		return nil
	}

	spec := owner
	if group != "" {
		spec = owner + ":" + group
	}
	cmd := fmt.Sprintf("chown %s %s", shellQuote(spec), shellQuote(path))
	_, stderr, rc, err := execCommand(ctx, conn, cmd, opts)
	if err != nil {
		return &Result{Failed: true, Msg: err.Error()}
	}
	if rc != 0 {
		return &Result{
			Failed: true,
			Msg:    fmt.Sprintf("failed to change ownership: %s", strings.TrimSpace(string(stderr))),
		}
	}
	return nil
}
