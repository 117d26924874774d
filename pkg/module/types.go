package module

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/LeeXN/gosible/pkg/connection"
)

// Module 是所有内置模块实现的契约。
// 模块自身不抛错：目标上的失败一律表达为 Result.Failed，
// error 只用于通道层面的故障（连接断开、取消等）。
type Module interface {
	// Name 模块在任务里使用的名字
	Name() string

	// NeedsConnection 为 false 的模块在控制节点求值，conn 传 nil
	NeedsConnection() bool

	// Run 执行模块，实现必须是幂等的：目标已处于期望状态时
	// 返回 Changed=false 且不做任何修改
	Run(ctx context.Context, conn connection.Conn, args map[string]interface{}, opts ExecOptions) (*Result, error)
}

// ExecOptions 模块执行选项
type ExecOptions struct {
	Become       bool
	BecomeUser   string
	BecomeMethod string
}

// Result 模块执行结果
type Result struct {
	Changed      bool                   `json:"changed"`
	Failed       bool                   `json:"failed,omitempty"`
	Unreachable  bool                   `json:"unreachable,omitempty"`
	Skipped      bool                   `json:"skipped,omitempty"`
	Msg          string                 `json:"msg,omitempty"`
	RC           int                    `json:"rc,omitempty"`
	Stdout       string                 `json:"stdout,omitempty"`
	Stderr       string                 `json:"stderr,omitempty"`
	Ping         string                 `json:"ping,omitempty"`          // ping 模块专用
	Dest         string                 `json:"dest,omitempty"`          // copy/template 模块目标路径
	Checksum     string                 `json:"checksum,omitempty"`      // 文件内容校验和
	AnsibleFacts map[string]interface{} `json:"ansible_facts,omitempty"` // set_fact 与 facts 收集
	Data         map[string]interface{} `json:"-"`                       // 其他动态字段
}

// ToJSON 将结果转换为 JSON
func (r *Result) ToJSON() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ToMap 转换为注册变量用的映射，register 的任务结果就是这个形状
func (r *Result) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"changed":      r.Changed,
		"failed":       r.Failed,
		"skipped":      r.Skipped,
		"rc":           r.RC,
		"stdout":       r.Stdout,
		"stderr":       r.Stderr,
		"stdout_lines": splitLines(r.Stdout),
		"stderr_lines": splitLines(r.Stderr),
	}
	if r.Msg != "" {
		m["msg"] = r.Msg
	}
	if r.Unreachable {
		m["unreachable"] = true
	}
	if r.Ping != "" {
		m["ping"] = r.Ping
	}
	if r.Dest != "" {
		m["dest"] = r.Dest
	}
	if r.Checksum != "" {
		m["checksum"] = r.Checksum
	}
	if len(r.AnsibleFacts) > 0 {
		m["ansible_facts"] = r.AnsibleFacts
	}
	for k, v := range r.Data {
		m[k] = v
	}
	return m
}

// splitLines 把输出拆成行列表，空串对应空列表
func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

// execCommand 按提权选项执行命令
func execCommand(ctx context.Context, conn connection.Conn, cmd string, opts ExecOptions) (stdout, stderr []byte, exitCode int, err error) {
	if opts.Become {
		return conn.ExecBecome(ctx, cmd, opts.BecomeUser, opts.BecomeMethod)
	}
	return conn.Exec(ctx, cmd)
}

// shellQuote 对 shell 参数进行引号转义
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// pathExists 检查远程路径是否存在
func pathExists(ctx context.Context, conn connection.Conn, path string, opts ExecOptions) (bool, error) {
	_, _, rc, err := execCommand(ctx, conn, "test -e "+shellQuote(path), opts)
	if err != nil {
		return false, err
	}
	return rc == 0, nil
}
