package connection

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LeeXN/gosible/pkg/inventory"
)

func testHost(name string, vars map[string]interface{}) *inventory.Host {
	return &inventory.Host{Name: name, Vars: vars}
}

func TestLocalExec(t *testing.T) {
	tests := []struct {
		name       string
		cmd        string
		wantStdout string
		wantCode   int
	}{
		{
			name:       "echo",
			cmd:        "echo hello",
			wantStdout: "hello\n",
			wantCode:   0,
		},
		{
			name:     "nonzero exit",
			cmd:      "exit 3",
			wantCode: 3,
		},
		{
			name:       "pipeline",
			cmd:        "printf 'a\\nb\\nc\\n' | wc -l",
			wantStdout: "3",
			wantCode:   0,
		},
	}

	conn := NewLocalConnection()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, code, err := conn.Exec(context.Background(), tt.cmd)
			if err != nil {
				t.Fatalf("Exec() error = %v", err)
			}
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", code, tt.wantCode)
			}
			if tt.wantStdout != "" && !strings.Contains(string(stdout), strings.TrimSpace(tt.wantStdout)) {
				t.Errorf("stdout = %q, want %q", stdout, tt.wantStdout)
			}
		})
	}
}

func TestLocalWriteFile(t *testing.T) {
	conn := NewLocalConnection()
	path := filepath.Join(t.TempDir(), "out.txt")

	if err := conn.WriteFile(context.Background(), []byte("content\n"), path, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "content\n" {
		t.Errorf("file content = %q, want %q", data, "content\n")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("file mode = %o, want 600", info.Mode().Perm())
	}
}

func TestIsLocal(t *testing.T) {
	tests := []struct {
		name string
		host string
		vars map[string]interface{}
		want bool
	}{
		{name: "localhost by name", host: "localhost", want: true},
		{name: "loopback ip", host: "127.0.0.1", want: true},
		{name: "connection local var", host: "web1", vars: map[string]interface{}{"ansible_connection": "local"}, want: true},
		{name: "remote host", host: "web1", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := tt.vars
			if vars == nil {
				vars = map[string]interface{}{}
			}
			host := testHost(tt.host, vars)
			if got := IsLocal(host); got != tt.want {
				t.Errorf("IsLocal(%s) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}
