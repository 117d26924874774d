package module

import (
	"context"
	"fmt"
	"strings"

	"github.com/LeeXN/gosible/pkg/connection"
)

// ServiceModule service 模块实现
// 管理系统服务，自动探测 systemd 或 SysV init
type ServiceModule struct{}

// Name 模块名
func (m *ServiceModule) Name() string { return "service" }

// NeedsConnection service 需要真实连接
func (m *ServiceModule) NeedsConnection() bool { return true }

// Run 执行 service 模块
func (m *ServiceModule) Run(ctx context.Context, conn connection.Conn, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	name, err := RequiredString(args, "name")
	if err != nil {
		return &Result{Failed: true, Msg: err.Error()}, nil
	}

	state := OptionalString(args, "state", "")
	enabled, hasEnabled := enabledParam(args)
	if state == "" && !hasEnabled {
		return &Result{Failed: true, Msg: "one of 'state' or 'enabled' is required"}, nil
	}

	useSystemd, err := detectSystemd(ctx, conn, opts)
	if err != nil {
		return nil, err
	}

	changed := false
	if state != "" {
		stateChanged, failResult, err := manageServiceState(ctx, conn, name, state, useSystemd, opts)
		if err != nil {
			return nil, err
		}
		if failResult != nil {
			return failResult, nil
		}
		changed = changed || stateChanged
	}

	if hasEnabled {
		enabledChanged, failResult, err := manageServiceEnabled(ctx, conn, name, enabled, useSystemd, opts)
		if err != nil {
			return nil, err
		}
		if failResult != nil {
			return failResult, nil
		}
		changed = changed || enabledChanged
	}

	result := &Result{Changed: changed}
	if changed {
		result.Msg = fmt.Sprintf("service %s state changed", name)
	} else {
		result.Msg = fmt.Sprintf("service %s already in desired state", name)
	}
	return result, nil
}

// enabledParam 解析 enabled 参数，返回值和是否出现
func enabledParam(args map[string]interface{}) (bool, bool) {
	if !HasParam(args, "enabled") {
		return false, false
	}
	return FlexBool(args["enabled"], false), true
}

// detectSystemd 目标机上有 systemctl 就走 systemd
func detectSystemd(ctx context.Context, conn connection.Conn, opts ExecOptions) (bool, error) {
	_, _, rc, err := execCommand(ctx, conn, "command -v systemctl", opts)
	if err != nil {
		return false, err
	}
	return rc == 0, nil
}

// manageServiceState 把服务推到期望的运行状态
// restarted/reloaded 总是执行并标记变更，started/stopped 先探测当前状态
func manageServiceState(ctx context.Context, conn connection.Conn, name, state string, useSystemd bool, opts ExecOptions) (bool, *Result, error) {
	var action string
	probe := false

	switch state {
	case "started":
		action, probe = "start", true
	case "stopped":
		action, probe = "stop", true
	case "restarted":
		action = "restart"
	case "reloaded":
		action = "reload"
	default:
		return false, &Result{
			Failed: true,
			Msg:    fmt.Sprintf("invalid state: %s (must be started/stopped/restarted/reloaded)", state),
		}, nil
	}

	if probe {
		running, err := serviceRunning(ctx, conn, name, useSystemd, opts)
		if err != nil {
			return false, nil, err
		}
		if (state == "started") == running {
			return false, nil, nil
		}
	}

	var cmd string
	if useSystemd {
		cmd = fmt.Sprintf("systemctl %s %s", action, shellQuote(name))
	} else {
		cmd = fmt.Sprintf("service %s %s", shellQuote(name), action)
	}
	_, stderr, rc, err := execCommand(ctx, conn, cmd, opts)
	if err != nil {
		return false, nil, err
	}
	if rc != 0 {
		return false, &Result{
			Failed: true,
			Msg:    fmt.Sprintf("failed to %s service %s: %s", action, name, strings.TrimSpace(string(stderr))),
		}, nil
	}
	return true, nil, nil
}

// manageServiceEnabled 维护开机自启状态
func manageServiceEnabled(ctx context.Context, conn connection.Conn, name string, enabled, useSystemd bool, opts ExecOptions) (bool, *Result, error) {
	current, err := serviceEnabled(ctx, conn, name, useSystemd, opts)
	if err != nil {
		return false, nil, err
	}
	if current == enabled {
		return false, nil, nil
	}

	var cmd string
	if useSystemd {
		if enabled {
			cmd = "systemctl enable " + shellQuote(name)
		} else {
			cmd = "systemctl disable " + shellQuote(name)
		}
	} else {
		// Debian 系优先 update-rc.d，RHEL 系退回 chkconfig
		_, _, rcRC, err := execCommand(ctx, conn, "command -v update-rc.d", opts)
		if err != nil {
			return false, nil, err
		}
		if rcRC == 0 {
			if enabled {
				cmd = fmt.Sprintf("update-rc.d %s defaults", shellQuote(name))
			} else {
				cmd = fmt.Sprintf("update-rc.d -f %s remove", shellQuote(name))
			}
		} else {
			if enabled {
				cmd = fmt.Sprintf("chkconfig %s on", shellQuote(name))
			} else {
				cmd = fmt.Sprintf("chkconfig %s off", shellQuote(name))
			}
		}
	}

	_, stderr, rc, err := execCommand(ctx, conn, cmd, opts)
	if err != nil {
		return false, nil, err
	}
	if rc != 0 {
		return false, &Result{
			Failed: true,
			Msg:    fmt.Sprintf("failed to change enabled state of %s: %s", name, strings.TrimSpace(string(stderr))),
		}, nil
	}
	return true, nil, nil
}

// serviceRunning 探测服务是否在运行
func serviceRunning(ctx context.Context, conn connection.Conn, name string, useSystemd bool, opts ExecOptions) (bool, error) {
	var cmd string
	if useSystemd {
		cmd = "systemctl is-active --quiet " + shellQuote(name)
	} else {
		cmd = fmt.Sprintf("service %s status", shellQuote(name))
	}
	_, _, rc, err := execCommand(ctx, conn, cmd, opts)
	if err != nil {
		return false, err
	}
	return rc == 0, nil
}

// serviceEnabled 探测服务是否开机自启
func serviceEnabled(ctx context.Context, conn connection.Conn, name string, useSystemd bool, opts ExecOptions) (bool, error) {
	if useSystemd {
		stdout, _, rc, err := execCommand(ctx, conn, "systemctl is-enabled "+shellQuote(name), opts)
		if err != nil {
			return false, err
		}
		return rc == 0 && strings.TrimSpace(string(stdout)) == "enabled", nil
	}

	// SysV 先问 chkconfig，没有就看 rc 目录里的 S 链接
	_, _, ckRC, err := execCommand(ctx, conn, "command -v chkconfig", opts)
	if err != nil {
		return false, err
	}
	if ckRC == 0 {
		stdout, _, rc, err := execCommand(ctx, conn, "chkconfig --list "+shellQuote(name), opts)
		if err != nil {
			return false, err
		}
		return rc == 0 && strings.Contains(string(stdout), ":on"), nil
	}

	cmd := fmt.Sprintf("ls /etc/rc*.d/S*%s 2>/dev/null | wc -l", name)
	stdout, _, _, err := execCommand(ctx, conn, cmd, opts)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(stdout)) != "0", nil
}
