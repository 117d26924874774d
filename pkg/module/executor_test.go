package module

import (
	"context"
	"testing"

	"github.com/LeeXN/gosible/pkg/errors"
)

func TestExecutor_Execute(t *testing.T) {
	executor := NewExecutor(nil)
	ctx := context.Background()

	tests := []struct {
		name       string
		module     string
		args       map[string]interface{}
		wantErr    bool
		wantFailed bool
		wantMsg    string
	}{
		{
			name:    "unknown module",
			module:  "no_such_module",
			args:    map[string]interface{}{},
			wantErr: true,
		},
		{
			name:    "ping requires connection",
			module:  "ping",
			args:    map[string]interface{}{},
			wantErr: true,
		},
		{
			name:    "debug with msg",
			module:  "debug",
			args:    map[string]interface{}{"msg": "Hello, World!"},
			wantMsg: "Hello, World!",
		},
		{
			name:       "fail module reports failure without error",
			module:     "fail",
			args:       map[string]interface{}{},
			wantFailed: true,
			wantMsg:    "Failed as requested",
		},
		{
			name:       "fail module custom msg",
			module:     "fail",
			args:       map[string]interface{}{"msg": "custom failure"},
			wantFailed: true,
			wantMsg:    "custom failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := executor.Execute(ctx, nil, tt.module, tt.args, ExecOptions{})
			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if result.Failed != tt.wantFailed {
				t.Errorf("Execute() Failed = %v, want %v", result.Failed, tt.wantFailed)
			}
			if result.Msg != tt.wantMsg {
				t.Errorf("Execute() Msg = %v, want %v", result.Msg, tt.wantMsg)
			}
		})
	}
}

func TestExecutor_ModuleNotFoundError(t *testing.T) {
	executor := NewExecutor(nil)

	_, err := executor.Execute(context.Background(), nil, "missing", nil, ExecOptions{})
	if err == nil {
		t.Fatal("Execute() expected error for unknown module")
	}
	if !errors.IsType(err, errors.ErrModuleNotFound) {
		t.Errorf("Execute() error type = %v, want ErrModuleNotFound", err)
	}
}

func TestDebugModule_Run(t *testing.T) {
	m := &DebugModule{}
	ctx := context.Background()

	tests := []struct {
		name    string
		args    map[string]interface{}
		wantMsg string
	}{
		{
			name:    "debug with msg",
			args:    map[string]interface{}{"msg": "deploy done"},
			wantMsg: "deploy done",
		},
		{
			name: "debug with var",
			args: map[string]interface{}{
				"var":        "app_version",
				"_var_value": "1.2.3",
			},
			wantMsg: "app_version: 1.2.3",
		},
		{
			name:    "debug with undefined var",
			args:    map[string]interface{}{"var": "missing_var"},
			wantMsg: "missing_var: VARIABLE IS NOT DEFINED!",
		},
		{
			name:    "debug with no args",
			args:    map[string]interface{}{},
			wantMsg: "Hello world!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := m.Run(ctx, nil, tt.args, ExecOptions{})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if result.Changed {
				t.Error("Run() Changed = true, debug must never change anything")
			}
			if result.Msg != tt.wantMsg {
				t.Errorf("Run() Msg = %q, want %q", result.Msg, tt.wantMsg)
			}
		})
	}
}

func TestDebugModule_StructuredMsg(t *testing.T) {
	m := &DebugModule{}

	result, err := m.Run(context.Background(), nil, map[string]interface{}{
		"var":        "versions",
		"_var_value": []interface{}{"1.0", "2.0"},
	}, ExecOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := "versions: [\n    \"1.0\",\n    \"2.0\"\n]"
	if result.Msg != want {
		t.Errorf("Run() Msg = %q, want %q", result.Msg, want)
	}
}

func TestSetFactModule_Run(t *testing.T) {
	m := &SetFactModule{}

	result, err := m.Run(context.Background(), nil, map[string]interface{}{
		"app_port":    8080,
		"app_name":    "web",
		"_raw_params": "ignored",
	}, ExecOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Changed {
		t.Error("Run() Changed = true, set_fact must not report change")
	}
	if len(result.AnsibleFacts) != 2 {
		t.Fatalf("Run() AnsibleFacts = %v, want 2 entries", result.AnsibleFacts)
	}
	if result.AnsibleFacts["app_port"] != 8080 {
		t.Errorf("Run() app_port = %v, want 8080", result.AnsibleFacts["app_port"])
	}
}

func TestResult_ToMap(t *testing.T) {
	result := &Result{
		Changed: true,
		RC:      0,
		Stdout:  "line1\nline2",
		Msg:     "done",
	}

	m := result.ToMap()
	if m["changed"] != true {
		t.Errorf("ToMap() changed = %v, want true", m["changed"])
	}
	if m["msg"] != "done" {
		t.Errorf("ToMap() msg = %v, want done", m["msg"])
	}
	lines, ok := m["stdout_lines"].([]string)
	if !ok || len(lines) != 2 || lines[0] != "line1" {
		t.Errorf("ToMap() stdout_lines = %v, want [line1 line2]", m["stdout_lines"])
	}

	// 空输出对应空列表而不是单元素列表
	empty := (&Result{}).ToMap()
	if lines, ok := empty["stdout_lines"].([]string); !ok || len(lines) != 0 {
		t.Errorf("ToMap() empty stdout_lines = %v, want []", empty["stdout_lines"])
	}
	if _, ok := empty["msg"]; ok {
		t.Error("ToMap() empty result must not carry msg key")
	}
}
