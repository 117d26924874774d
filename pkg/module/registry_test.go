package module

import (
	"reflect"
	"testing"

	"github.com/LeeXN/gosible/pkg/errors"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&PingModule{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(&PingModule{}); err == nil {
		t.Error("Register() duplicate name must fail")
	}

	m, err := r.Lookup("ping")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if m.Name() != "ping" {
		t.Errorf("Lookup() Name = %v, want ping", m.Name())
	}

	if _, err := r.Lookup("nope"); err == nil {
		t.Error("Lookup() unknown module must fail")
	} else if !errors.IsType(err, errors.ErrModuleNotFound) {
		t.Errorf("Lookup() error type = %v, want ErrModuleNotFound", err)
	}

	if !r.Has("ping") || r.Has("nope") {
		t.Error("Has() gave wrong answer")
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&ShellModule{})
	r.MustRegister(&CommandModule{})
	r.MustRegister(&DebugModule{})

	want := []string{"command", "debug", "shell"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	// 所有内置模块都要在注册表里
	builtins := []string{
		"ping", "debug", "command", "shell", "raw",
		"copy", "template", "file", "lineinfile",
		"service", "systemd", "package", "get_url",
		"fail", "set_fact",
	}
	for _, name := range builtins {
		if !r.Has(name) {
			t.Errorf("DefaultRegistry() missing module %s", name)
		}
	}
	if len(r.Names()) != len(builtins) {
		t.Errorf("DefaultRegistry() has %d modules, want %d", len(r.Names()), len(builtins))
	}
}
