package module

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LeeXN/gosible/pkg/connection"
)

func TestCommandModule_Run(t *testing.T) {
	m := &CommandModule{}
	conn := connection.NewLocalConnection()
	ctx := context.Background()

	tests := []struct {
		name       string
		args       map[string]interface{}
		wantFailed bool
		wantStdout string
		wantRC     int
	}{
		{
			name:       "simple command",
			args:       map[string]interface{}{"_raw_params": "echo hello"},
			wantStdout: "hello",
		},
		{
			name:       "argv form quotes arguments",
			args:       map[string]interface{}{"argv": []interface{}{"echo", "hello world"}},
			wantStdout: "hello world",
		},
		{
			name:       "non-zero exit marks failed",
			args:       map[string]interface{}{"_raw_params": "exit 3"},
			wantFailed: true,
			wantRC:     3,
		},
		{
			name:       "missing command",
			args:       map[string]interface{}{},
			wantFailed: true,
		},
		{
			name:       "empty argv",
			args:       map[string]interface{}{"argv": []interface{}{}},
			wantFailed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := m.Run(ctx, conn, tt.args, ExecOptions{})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if result.Failed != tt.wantFailed {
				t.Errorf("Run() Failed = %v, want %v (msg: %s)", result.Failed, tt.wantFailed, result.Msg)
			}
			if tt.wantStdout != "" && result.Stdout != tt.wantStdout {
				t.Errorf("Run() Stdout = %q, want %q", result.Stdout, tt.wantStdout)
			}
			if result.RC != tt.wantRC {
				t.Errorf("Run() RC = %d, want %d", result.RC, tt.wantRC)
			}
		})
	}
}

func TestCommandModule_CreatesGuard(t *testing.T) {
	m := &CommandModule{}
	conn := connection.NewLocalConnection()
	ctx := context.Background()

	marker := filepath.Join(t.TempDir(), "done.marker")

	// 第一次运行：守卫文件不存在，命令执行
	result, err := m.Run(ctx, conn, map[string]interface{}{
		"_raw_params": "touch " + marker,
		"creates":     marker,
	}, ExecOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Changed || result.Failed {
		t.Errorf("first Run() Changed = %v Failed = %v, want changed ok", result.Changed, result.Failed)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("marker file not created: %v", err)
	}

	// 第二次运行：守卫命中，跳过执行
	result, err = m.Run(ctx, conn, map[string]interface{}{
		"_raw_params": "touch " + marker,
		"creates":     marker,
	}, ExecOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Changed {
		t.Error("second Run() Changed = true, want skipped")
	}
	if !strings.Contains(result.Msg, "exists") {
		t.Errorf("second Run() Msg = %q, want skip reason", result.Msg)
	}
}

func TestCommandModule_RemovesGuard(t *testing.T) {
	m := &CommandModule{}
	conn := connection.NewLocalConnection()

	result, err := m.Run(context.Background(), conn, map[string]interface{}{
		"_raw_params": "echo should-not-run",
		"removes":     filepath.Join(t.TempDir(), "absent.marker"),
	}, ExecOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Changed {
		t.Error("Run() Changed = true, want skipped when removes target missing")
	}
	if !strings.Contains(result.Msg, "does not exist") {
		t.Errorf("Run() Msg = %q, want skip reason", result.Msg)
	}
}

func TestCommandModule_Chdir(t *testing.T) {
	m := &CommandModule{}
	conn := connection.NewLocalConnection()

	dir := t.TempDir()
	result, err := m.Run(context.Background(), conn, map[string]interface{}{
		"_raw_params": "pwd",
		"chdir":       dir,
	}, ExecOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Failed {
		t.Fatalf("Run() failed: %s", result.Msg)
	}
	// macOS 的 TempDir 带 /private 前缀，用后缀比较
	if !strings.HasSuffix(result.Stdout, strings.TrimPrefix(dir, "/private")) {
		t.Errorf("Run() Stdout = %q, want cwd %q", result.Stdout, dir)
	}
}

func TestShellModule_Run(t *testing.T) {
	m := &ShellModule{}
	conn := connection.NewLocalConnection()
	ctx := context.Background()

	tests := []struct {
		name       string
		args       map[string]interface{}
		wantStdout string
		wantFailed bool
	}{
		{
			name:       "pipeline",
			args:       map[string]interface{}{"_raw_params": "printf 'a\\nb\\nc\\n' | wc -l"},
			wantStdout: "3",
		},
		{
			name:       "variable expansion",
			args:       map[string]interface{}{"_raw_params": "X=world; echo hello $X"},
			wantStdout: "hello world",
		},
		{
			name:       "missing command",
			args:       map[string]interface{}{},
			wantFailed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := m.Run(ctx, conn, tt.args, ExecOptions{})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if result.Failed != tt.wantFailed {
				t.Errorf("Run() Failed = %v, want %v", result.Failed, tt.wantFailed)
			}
			if tt.wantStdout != "" && strings.TrimSpace(result.Stdout) != tt.wantStdout {
				t.Errorf("Run() Stdout = %q, want %q", result.Stdout, tt.wantStdout)
			}
		})
	}
}

func TestRawModule_Run(t *testing.T) {
	m := &RawModule{}
	conn := connection.NewLocalConnection()

	result, err := m.Run(context.Background(), conn, map[string]interface{}{
		"_raw_params": "echo raw-output",
	}, ExecOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Stdout != "raw-output" {
		t.Errorf("Run() Stdout = %q, want raw-output", result.Stdout)
	}
	if !result.Changed {
		t.Error("Run() Changed = false, raw always reports change")
	}
}

func TestPingModule_Run(t *testing.T) {
	m := &PingModule{}
	conn := connection.NewLocalConnection()

	result, err := m.Run(context.Background(), conn, nil, ExecOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Ping != "pong" {
		t.Errorf("Run() Ping = %q, want pong", result.Ping)
	}
	if result.Changed || result.Failed {
		t.Error("Run() ping must not report change or failure")
	}
}
