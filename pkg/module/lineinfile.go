package module

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/LeeXN/gosible/pkg/connection"
)

// LineinfileModule lineinfile 模块实现
// 确保文件中存在或不存在某一行
type LineinfileModule struct{}

// Name 模块名
func (m *LineinfileModule) Name() string { return "lineinfile" }

// NeedsConnection lineinfile 需要真实连接
func (m *LineinfileModule) NeedsConnection() bool { return true }

// lineRule 一次行编辑的全部规则
type lineRule struct {
	line         string
	re           *regexp.Regexp
	state        string
	insertAfter  string
	insertBefore string
}

// Run 执行 lineinfile 模块
func (m *LineinfileModule) Run(ctx context.Context, conn connection.Conn, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	path, err := RequiredStringAlias(args, "path", "dest", "name")
	if err != nil {
		return &Result{Failed: true, Msg: err.Error()}, nil
	}

	rule := lineRule{
		line:         OptionalString(args, "line", ""),
		state:        OptionalString(args, "state", "present"),
		insertAfter:  OptionalString(args, "insertafter", ""),
		insertBefore: OptionalString(args, "insertbefore", ""),
	}
	if rule.state == "present" && !HasParam(args, "line") {
		return &Result{Failed: true, Msg: "line is required when state=present"}, nil
	}
	if pattern := OptionalString(args, "regexp", ""); pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return &Result{Failed: true, Msg: fmt.Sprintf("invalid regexp: %v", err)}, nil
		}
		rule.re = re
	}

	_, _, rc, err := execCommand(ctx, conn, "test -f "+shellQuote(path), opts)
	if err != nil {
		return nil, err
	}
	fileExists := rc == 0

	content := ""
	mode := os.FileMode(0o644)
	if fileExists {
		stdout, stderr, catRC, err := execCommand(ctx, conn, "cat "+shellQuote(path), opts)
		if err != nil {
			return nil, err
		}
		if catRC != 0 {
			return &Result{
				Failed: true,
				Msg:    fmt.Sprintf("failed to read file: %s", strings.TrimSpace(string(stderr))),
			}, nil
		}
		content = string(stdout)

		// 改写时保留现有权限
		if cur, ok := remoteMode(ctx, conn, path, opts); ok {
			mode = cur
		}
	} else {
		if rule.state == "absent" {
			return &Result{
				Changed: false,
				Msg:     fmt.Sprintf("file %s does not exist, nothing to do", path),
			}, nil
		}
		if !OptionalBool(args, "create", false) {
			return &Result{
				Failed: true,
				Msg:    fmt.Sprintf("file %s does not exist (use create=yes to create)", path),
			}, nil
		}
	}

	newContent, changed := applyLineRule(content, rule)
	if !changed && fileExists {
		return &Result{Changed: false, Msg: "line already in expected state", Dest: path}, nil
	}

	if modeArg, err := fileMode(args, mode); err != nil {
		return &Result{Failed: true, Msg: err.Error()}, nil
	} else {
		mode = modeArg
	}

	if err := writeRemoteFile(ctx, conn, []byte(newContent), path, mode, opts); err != nil {
		return &Result{Failed: true, Msg: err.Error()}, nil
	}
	return &Result{Changed: true, Dest: path}, nil
}

// applyLineRule 对文件内容应用行规则，纯函数方便测试
func applyLineRule(content string, rule lineRule) (string, bool) {
	hadTrailingNewline := strings.HasSuffix(content, "\n")
	trimmed := strings.TrimSuffix(content, "\n")

	var lines []string
	if trimmed != "" {
		lines = strings.Split(trimmed, "\n")
	}

	var out []string
	changed := false

	switch rule.state {
	case "absent":
		for _, l := range lines {
			if matchesRule(l, rule) {
				changed = true
				continue
			}
			out = append(out, l)
		}
	default:
		replaced := false
		if rule.re != nil {
			for i, l := range lines {
				if rule.re.MatchString(l) {
					if l != rule.line {
						lines[i] = rule.line
						changed = true
					}
					replaced = true
					break
				}
			}
		} else {
			for _, l := range lines {
				if l == rule.line {
					replaced = true
					break
				}
			}
		}
		out = lines
		if !replaced {
			out = insertLine(lines, rule)
			changed = true
		}
	}

	if !changed {
		return content, false
	}
	result := strings.Join(out, "\n")
	if len(out) > 0 && (hadTrailingNewline || content == "") {
		result += "\n"
	}
	return result, true
}

// matchesRule absent 状态下判断一行是否该删除
func matchesRule(l string, rule lineRule) bool {
	if rule.re != nil {
		return rule.re.MatchString(l)
	}
	return l == rule.line
}

// insertLine 按 insertbefore/insertafter 规则插入新行，默认追加到末尾
func insertLine(lines []string, rule lineRule) []string {
	idx := len(lines)

	if rule.insertBefore != "" {
		if rule.insertBefore == "BOF" {
			idx = 0
		} else if re, err := regexp.Compile(rule.insertBefore); err == nil {
			for i, l := range lines {
				if re.MatchString(l) {
					idx = i
					break
				}
			}
		}
	} else if rule.insertAfter != "" && rule.insertAfter != "EOF" {
		if re, err := regexp.Compile(rule.insertAfter); err == nil {
			for i, l := range lines {
				if re.MatchString(l) {
					idx = i + 1
					break
				}
			}
		}
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:idx]...)
	out = append(out, rule.line)
	out = append(out, lines[idx:]...)
	return out
}

// remoteMode 读取远端文件权限
func remoteMode(ctx context.Context, conn connection.Conn, path string, opts ExecOptions) (os.FileMode, bool) {
	stdout, _, rc, err := execCommand(ctx, conn, "stat -c '%a' "+shellQuote(path), opts)
	if err != nil || rc != 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(stdout)), 8, 32)
	if err != nil {
		return 0, false
	}
	return os.FileMode(n), true
}
