package module

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/LeeXN/gosible/pkg/connection"
)

// PackageModule package 模块实现
// 按 apt-get、dnf、yum、zypper、apk 顺序探测目标机的包管理器
type PackageModule struct{}

// Name 模块名
func (m *PackageModule) Name() string { return "package" }

// NeedsConnection package 需要真实连接
func (m *PackageModule) NeedsConnection() bool { return true }

// pkgManager 一种包管理器的命令模板
type pkgManager struct {
	tool    string
	install string
	remove  string
	upgrade string
	probe   string
	// upgrade 输出里出现这些串说明已是最新
	uptodate []string
}

var pkgManagers = []pkgManager{
	{
		tool:     "apt-get",
		install:  "DEBIAN_FRONTEND=noninteractive apt-get install -y %s",
		remove:   "DEBIAN_FRONTEND=noninteractive apt-get remove -y %s",
		upgrade:  "DEBIAN_FRONTEND=noninteractive apt-get install -y %s",
		probe:    "dpkg -s %s",
		uptodate: []string{"is already the newest version", "0 upgraded, 0 newly installed"},
	},
	{
		tool:     "dnf",
		install:  "dnf install -y %s",
		remove:   "dnf remove -y %s",
		upgrade:  "dnf install -y %s",
		probe:    "rpm -q %s",
		uptodate: []string{"Nothing to do"},
	},
	{
		tool:     "yum",
		install:  "yum install -y %s",
		remove:   "yum remove -y %s",
		upgrade:  "yum install -y %s",
		probe:    "rpm -q %s",
		uptodate: []string{"Nothing to do"},
	},
	{
		tool:     "zypper",
		install:  "zypper -n install %s",
		remove:   "zypper -n remove %s",
		upgrade:  "zypper -n install %s",
		probe:    "rpm -q %s",
		uptodate: []string{"already installed", "Nothing to do"},
	},
	{
		tool:     "apk",
		install:  "apk add %s",
		remove:   "apk del %s",
		upgrade:  "apk add --upgrade %s",
		probe:    "apk info -e %s",
		uptodate: []string{"OK: "},
	},
}

// Run 执行 package 模块
func (m *PackageModule) Run(ctx context.Context, conn connection.Conn, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	names, err := packageNames(args)
	if err != nil {
		return &Result{Failed: true, Msg: err.Error()}, nil
	}
	state := OptionalString(args, "state", "present")

	mgr, err := detectPkgManager(ctx, conn, opts)
	if err != nil {
		return nil, err
	}
	if mgr == nil {
		return &Result{Failed: true, Msg: "no supported package manager found"}, nil
	}

	switch state {
	case "present":
		return m.ensurePresent(ctx, conn, mgr, names, opts)
	case "absent":
		return m.ensureAbsent(ctx, conn, mgr, names, opts)
	case "latest":
		return m.ensureLatest(ctx, conn, mgr, names, opts)
	default:
		return &Result{
			Failed: true,
			Msg:    fmt.Sprintf("invalid state: %s (must be present/absent/latest)", state),
		}, nil
	}
}

// packageNames name 参数接受单个包名或包名列表
func packageNames(args map[string]interface{}) ([]string, error) {
	v, ok := args["name"]
	if !ok || v == nil {
		if raw, okRaw := args["_raw_params"]; okRaw && raw != nil {
			v = raw
		} else {
			return nil, fmt.Errorf("Missing required parameter: name")
		}
	}
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("Missing required parameter: name")
		}
		return []string{t}, nil
	default:
		names, err := cast.ToStringSliceE(v)
		if err != nil || len(names) == 0 {
			return nil, fmt.Errorf("name must be a package name or a list of package names")
		}
		return names, nil
	}
}

// detectPkgManager 逐个探测包管理器，找不到返回 nil
func detectPkgManager(ctx context.Context, conn connection.Conn, opts ExecOptions) (*pkgManager, error) {
	for i := range pkgManagers {
		_, _, rc, err := execCommand(ctx, conn, "command -v "+pkgManagers[i].tool, opts)
		if err != nil {
			return nil, err
		}
		if rc == 0 {
			return &pkgManagers[i], nil
		}
	}
	return nil, nil
}

// installed 探测单个包是否已安装
func (p *pkgManager) installed(ctx context.Context, conn connection.Conn, name string, opts ExecOptions) (bool, error) {
	_, _, rc, err := execCommand(ctx, conn, fmt.Sprintf(p.probe, shellQuote(name)), opts)
	if err != nil {
		return false, err
	}
	return rc == 0, nil
}

// ensurePresent 安装缺失的包，全部在位时不做修改
func (m *PackageModule) ensurePresent(ctx context.Context, conn connection.Conn, mgr *pkgManager, names []string, opts ExecOptions) (*Result, error) {
	var missing []string
	for _, name := range names {
		ok, err := mgr.installed(ctx, conn, name, opts)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return &Result{Changed: false, Msg: "all packages already installed"}, nil
	}

	cmd := fmt.Sprintf(mgr.install, quoteAll(missing))
	stdout, stderr, rc, err := execCommand(ctx, conn, cmd, opts)
	if err != nil {
		return nil, err
	}
	if rc != 0 {
		return &Result{
			Failed: true,
			RC:     rc,
			Stdout: string(stdout),
			Msg:    fmt.Sprintf("failed to install packages: %s", strings.TrimSpace(string(stderr))),
		}, nil
	}
	return &Result{
		Changed: true,
		Msg:     fmt.Sprintf("installed: %s", strings.Join(missing, ", ")),
	}, nil
}

// ensureAbsent 移除在位的包，全部缺失时不做修改
func (m *PackageModule) ensureAbsent(ctx context.Context, conn connection.Conn, mgr *pkgManager, names []string, opts ExecOptions) (*Result, error) {
	var present []string
	for _, name := range names {
		ok, err := mgr.installed(ctx, conn, name, opts)
		if err != nil {
			return nil, err
		}
		if ok {
			present = append(present, name)
		}
	}
	if len(present) == 0 {
		return &Result{Changed: false, Msg: "no packages to remove"}, nil
	}

	cmd := fmt.Sprintf(mgr.remove, quoteAll(present))
	_, stderr, rc, err := execCommand(ctx, conn, cmd, opts)
	if err != nil {
		return nil, err
	}
	if rc != 0 {
		return &Result{
			Failed: true,
			RC:     rc,
			Msg:    fmt.Sprintf("failed to remove packages: %s", strings.TrimSpace(string(stderr))),
		}, nil
	}
	return &Result{
		Changed: true,
		Msg:     fmt.Sprintf("removed: %s", strings.Join(present, ", ")),
	}, nil
}

// ensureLatest 总是跑升级命令，靠输出判断是否真的动了
func (m *PackageModule) ensureLatest(ctx context.Context, conn connection.Conn, mgr *pkgManager, names []string, opts ExecOptions) (*Result, error) {
	cmd := fmt.Sprintf(mgr.upgrade, quoteAll(names))
	stdout, stderr, rc, err := execCommand(ctx, conn, cmd, opts)
	if err != nil {
		return nil, err
	}
	if rc != 0 {
		return &Result{
			Failed: true,
			RC:     rc,
			Stdout: string(stdout),
			Msg:    fmt.Sprintf("failed to upgrade packages: %s", strings.TrimSpace(string(stderr))),
		}, nil
	}

	changed := true
	for _, marker := range mgr.uptodate {
		if strings.Contains(string(stdout), marker) {
			changed = false
			break
		}
	}
	msg := "packages upgraded"
	if !changed {
		msg = "packages already at latest version"
	}
	return &Result{Changed: changed, Msg: msg}, nil
}

// quoteAll 把包名列表拼成引号安全的参数串
func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = shellQuote(n)
	}
	return strings.Join(quoted, " ")
}
