package module

import (
	"context"
	"fmt"
	"strings"

	"github.com/LeeXN/gosible/pkg/connection"
)

// GetURLModule get_url 模块实现
// 在目标机上从 HTTP/HTTPS URL 下载文件，下载工具按 curl、wget 顺序探测
type GetURLModule struct{}

// Name 模块名
func (m *GetURLModule) Name() string { return "get_url" }

// NeedsConnection get_url 需要真实连接
func (m *GetURLModule) NeedsConnection() bool { return true }

// Run 执行 get_url 模块
func (m *GetURLModule) Run(ctx context.Context, conn connection.Conn, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	url, err := RequiredString(args, "url")
	if err != nil {
		return &Result{Failed: true, Msg: err.Error()}, nil
	}
	dest, err := RequiredString(args, "dest")
	if err != nil {
		return &Result{Failed: true, Msg: err.Error()}, nil
	}

	force := OptionalBool(args, "force", false)
	checksum := OptionalString(args, "checksum", "")

	_, _, rc, err := execCommand(ctx, conn, "test -f "+shellQuote(dest), opts)
	if err != nil {
		return nil, err
	}
	fileExists := rc == 0

	if fileExists && !force {
		if checksum == "" {
			return &Result{Changed: false, Dest: dest, Msg: "file already exists"}, nil
		}
		ok, failResult, err := verifyRemoteChecksum(ctx, conn, dest, checksum, opts)
		if err != nil {
			return nil, err
		}
		if failResult != nil {
			return failResult, nil
		}
		if ok {
			return &Result{
				Changed: false,
				Dest:    dest,
				Msg:     "file already exists and checksum matches",
			}, nil
		}
	}

	mkdirCmd := fmt.Sprintf("mkdir -p \"$(dirname %s)\"", shellQuote(dest))
	if failResult, err := runAttrCommand(ctx, conn, mkdirCmd, "create destination directory", opts); err != nil || failResult != nil {
		return failResult, err
	}

	// 先下到临时文件，成功后再挪到目标位置
	tmp := dest + ".gosible-dl"
	dl := fmt.Sprintf(
		"if command -v curl >/dev/null 2>&1; then curl -fsSL -o %s %s; "+
			"elif command -v wget >/dev/null 2>&1; then wget -q -O %s %s; "+
			"else echo 'neither curl nor wget found' >&2; exit 1; fi && mv %s %s",
		shellQuote(tmp), shellQuote(url), shellQuote(tmp), shellQuote(url), shellQuote(tmp), shellQuote(dest))
	_, stderr, dlRC, err := execCommand(ctx, conn, dl, opts)
	if err != nil {
		return nil, err
	}
	if dlRC != 0 {
		_, _, _, _ = execCommand(ctx, conn, "rm -f "+shellQuote(tmp), opts)
		return &Result{
			Failed: true,
			Msg:    fmt.Sprintf("download failed: %s", strings.TrimSpace(string(stderr))),
		}, nil
	}

	if checksum != "" {
		ok, failResult, err := verifyRemoteChecksum(ctx, conn, dest, checksum, opts)
		if err != nil {
			return nil, err
		}
		if failResult != nil {
			return failResult, nil
		}
		if !ok {
			return &Result{Failed: true, Msg: "checksum verification failed"}, nil
		}
	}

	if mode := OptionalString(args, "mode", ""); mode != "" {
		cmd := fmt.Sprintf("chmod %s %s", shellQuote(mode), shellQuote(dest))
		if failResult, err := runAttrCommand(ctx, conn, cmd, "chmod", opts); err != nil || failResult != nil {
			return failResult, err
		}
	}
	if result := applyOwnership(ctx, conn, dest, args, opts); result != nil {
		return result, nil
	}

	return &Result{
		Changed: true,
		Dest:    dest,
		Msg:     fmt.Sprintf("file downloaded from %s to %s", url, dest),
	}, nil
}

// verifyRemoteChecksum 校验远端文件摘要，checksum 形如 algorithm:hash
func verifyRemoteChecksum(ctx context.Context, conn connection.Conn, path, checksum string, opts ExecOptions) (bool, *Result, error) {
	parts := strings.SplitN(checksum, ":", 2)
	if len(parts) != 2 {
		return false, &Result{
			Failed: true,
			Msg:    "invalid checksum format, expected 'algorithm:hash'",
		}, nil
	}
	algorithm, want := parts[0], strings.ToLower(strings.TrimSpace(parts[1]))

	var tool string
	switch algorithm {
	case "sha256":
		tool = "sha256sum"
	case "sha1":
		tool = "sha1sum"
	case "md5":
		tool = "md5sum"
	default:
		return false, &Result{
			Failed: true,
			Msg:    fmt.Sprintf("unsupported checksum algorithm: %s", algorithm),
		}, nil
	}

	stdout, _, rc, err := execCommand(ctx, conn, tool+" "+shellQuote(path), opts)
	if err != nil {
		return false, nil, err
	}
	if rc != 0 {
		return false, &Result{Failed: true, Msg: "failed to calculate checksum"}, nil
	}
	fields := strings.Fields(string(stdout))
	return len(fields) > 0 && fields[0] == want, nil, nil
}
