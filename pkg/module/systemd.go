package module

import (
	"context"
	"fmt"
	"strings"

	"github.com/LeeXN/gosible/pkg/connection"
)

// SystemdModule systemd 模块实现
// 直接走 systemctl，不做 init 系统探测，另外支持 daemon_reload
type SystemdModule struct{}

// Name 模块名
func (m *SystemdModule) Name() string { return "systemd" }

// NeedsConnection systemd 需要真实连接
func (m *SystemdModule) NeedsConnection() bool { return true }

// Run 执行 systemd 模块
func (m *SystemdModule) Run(ctx context.Context, conn connection.Conn, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	name := OptionalString(args, "name", "")
	state := OptionalString(args, "state", "")
	enabled, hasEnabled := enabledParam(args)
	daemonReload := OptionalBool(args, "daemon_reload", false)

	if state == "" && !hasEnabled && !daemonReload {
		return &Result{
			Failed: true,
			Msg:    "one of 'state', 'enabled', or 'daemon_reload' is required",
		}, nil
	}
	if (state != "" || hasEnabled) && name == "" {
		return &Result{Failed: true, Msg: "Missing required parameter: name"}, nil
	}

	changed := false

	// daemon-reload 先行，单元文件变更后必须先刷新
	if daemonReload {
		_, stderr, rc, err := execCommand(ctx, conn, "systemctl daemon-reload", opts)
		if err != nil {
			return nil, err
		}
		if rc != 0 {
			return &Result{
				Failed: true,
				Msg:    fmt.Sprintf("failed to reload daemon: %s", strings.TrimSpace(string(stderr))),
			}, nil
		}
		// daemon-reload 总是标记为 changed
		changed = true
	}

	if state != "" {
		stateChanged, failResult, err := manageServiceState(ctx, conn, name, state, true, opts)
		if err != nil {
			return nil, err
		}
		if failResult != nil {
			return failResult, nil
		}
		changed = changed || stateChanged
	}

	if hasEnabled {
		enabledChanged, failResult, err := manageServiceEnabled(ctx, conn, name, enabled, true, opts)
		if err != nil {
			return nil, err
		}
		if failResult != nil {
			return failResult, nil
		}
		changed = changed || enabledChanged
	}

	result := &Result{Changed: changed}
	if name != "" {
		if changed {
			result.Msg = fmt.Sprintf("unit %s state changed", name)
		} else {
			result.Msg = fmt.Sprintf("unit %s already in desired state", name)
		}
	}
	return result, nil
}
