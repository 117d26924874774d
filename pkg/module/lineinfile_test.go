package module

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/LeeXN/gosible/pkg/connection"
)

func TestApplyLineRule(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		rule        lineRule
		want        string
		wantChanged bool
	}{
		{
			name:        "append to empty file",
			content:     "",
			rule:        lineRule{line: "PermitRootLogin no", state: "present"},
			want:        "PermitRootLogin no\n",
			wantChanged: true,
		},
		{
			name:        "append to existing content",
			content:     "Port 22\n",
			rule:        lineRule{line: "PermitRootLogin no", state: "present"},
			want:        "Port 22\nPermitRootLogin no\n",
			wantChanged: true,
		},
		{
			name:        "exact line already present",
			content:     "Port 22\nPermitRootLogin no\n",
			rule:        lineRule{line: "PermitRootLogin no", state: "present"},
			want:        "Port 22\nPermitRootLogin no\n",
			wantChanged: false,
		},
		{
			name:    "regexp replaces first match",
			content: "Port 22\nPermitRootLogin yes\n",
			rule: lineRule{
				line:  "PermitRootLogin no",
				re:    regexp.MustCompile(`^PermitRootLogin`),
				state: "present",
			},
			want:        "Port 22\nPermitRootLogin no\n",
			wantChanged: true,
		},
		{
			name:    "regexp match with same line is no-op",
			content: "PermitRootLogin no\n",
			rule: lineRule{
				line:  "PermitRootLogin no",
				re:    regexp.MustCompile(`^PermitRootLogin`),
				state: "present",
			},
			want:        "PermitRootLogin no\n",
			wantChanged: false,
		},
		{
			name:    "regexp without match appends",
			content: "Port 22\n",
			rule: lineRule{
				line:  "MaxSessions 4",
				re:    regexp.MustCompile(`^MaxSessions`),
				state: "present",
			},
			want:        "Port 22\nMaxSessions 4\n",
			wantChanged: true,
		},
		{
			name:        "absent removes exact line",
			content:     "a\nb\nc\n",
			rule:        lineRule{line: "b", state: "absent"},
			want:        "a\nc\n",
			wantChanged: true,
		},
		{
			name:    "absent removes all regexp matches",
			content: "# old\nkeep\n# stale\n",
			rule: lineRule{
				re:    regexp.MustCompile(`^#`),
				state: "absent",
			},
			want:        "keep\n",
			wantChanged: true,
		},
		{
			name:        "absent with nothing to remove",
			content:     "a\nb\n",
			rule:        lineRule{line: "z", state: "absent"},
			want:        "a\nb\n",
			wantChanged: false,
		},
		{
			name:    "insertbefore BOF",
			content: "second\n",
			rule: lineRule{
				line:         "first",
				state:        "present",
				insertBefore: "BOF",
			},
			want:        "first\nsecond\n",
			wantChanged: true,
		},
		{
			name:    "insertafter pattern",
			content: "[section]\nother\n",
			rule: lineRule{
				line:        "key = value",
				state:       "present",
				insertAfter: `^\[section\]`,
			},
			want:        "[section]\nkey = value\nother\n",
			wantChanged: true,
		},
		{
			name:    "insertbefore pattern",
			content: "alpha\nomega\n",
			rule: lineRule{
				line:         "middle",
				state:        "present",
				insertBefore: `^omega`,
			},
			want:        "alpha\nmiddle\nomega\n",
			wantChanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := applyLineRule(tt.content, tt.rule)
			if changed != tt.wantChanged {
				t.Errorf("applyLineRule() changed = %v, want %v", changed, tt.wantChanged)
			}
			if got != tt.want {
				t.Errorf("applyLineRule() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLineinfileModule_Run(t *testing.T) {
	m := &LineinfileModule{}
	conn := connection.NewLocalConnection()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "sshd_config")

	// 文件不存在且未指定 create → 失败
	result, err := m.Run(ctx, conn, map[string]interface{}{
		"path": path,
		"line": "Port 22",
	}, ExecOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Failed {
		t.Error("Run() Failed = false, want failure without create")
	}

	// create=yes 建新文件
	result, err = m.Run(ctx, conn, map[string]interface{}{
		"path":   path,
		"line":   "Port 22",
		"create": "yes",
	}, ExecOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Changed {
		t.Fatalf("Run() Changed = false, want file created (msg: %s)", result.Msg)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Port 22\n" {
		t.Errorf("file content = %q, want %q", data, "Port 22\n")
	}

	// 同一行再次运行 → 无变更
	result, err = m.Run(ctx, conn, map[string]interface{}{
		"path": path,
		"line": "Port 22",
	}, ExecOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Changed {
		t.Error("Run() Changed = true, want idempotent no-op")
	}

	// regexp 替换
	result, err = m.Run(ctx, conn, map[string]interface{}{
		"path":   path,
		"regexp": "^Port ",
		"line":   "Port 2222",
	}, ExecOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Changed {
		t.Error("Run() Changed = false, want replacement")
	}
	data, _ = os.ReadFile(path)
	if string(data) != "Port 2222\n" {
		t.Errorf("file content = %q, want %q", data, "Port 2222\n")
	}

	// state=absent 但文件不存在 → 无事可做
	result, err = m.Run(ctx, conn, map[string]interface{}{
		"path":  filepath.Join(t.TempDir(), "missing.conf"),
		"line":  "anything",
		"state": "absent",
	}, ExecOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Changed || result.Failed {
		t.Errorf("Run() on missing file = changed %v failed %v, want clean no-op", result.Changed, result.Failed)
	}
}

func TestLineinfileModule_BadRegexp(t *testing.T) {
	m := &LineinfileModule{}
	conn := connection.NewLocalConnection()

	result, err := m.Run(context.Background(), conn, map[string]interface{}{
		"path":   "/tmp/whatever",
		"line":   "x",
		"regexp": "([unclosed",
	}, ExecOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Failed {
		t.Error("Run() Failed = false, want invalid regexp failure")
	}
}
