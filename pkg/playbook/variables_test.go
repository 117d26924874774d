package playbook

import (
	"testing"

	"github.com/LeeXN/gosible/pkg/inventory"
)

const variablesFixture = `
[all:vars]
answer=global
port=8080

[web]
h1 answer=host ansible_connection=local
h2 ansible_connection=local

[web:vars]
answer=group

[db]
d1
`

func newTestVariableManager(t *testing.T) *VariableManager {
	t.Helper()
	inv := inventory.NewManager()
	if err := inv.LoadData([]byte(variablesFixture)); err != nil {
		t.Fatalf("failed to load inventory fixture: %v", err)
	}
	return NewVariableManager(inv)
}

func TestVariablePrecedence(t *testing.T) {
	vm := newTestVariableManager(t)

	tests := []struct {
		name string
		host string
		key  string
		want interface{}
	}{
		{"host var wins over group and all", "h1", "answer", "host"},
		{"group var wins over all", "h2", "answer", "group"},
		{"all var reaches ungrouped member", "d1", "answer", "global"},
		{"all var untouched elsewhere", "h1", "port", 8080},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			context := vm.Context(tt.host, nil)
			if got := context[tt.key]; got != tt.want {
				t.Errorf("context[%s] = %v (%T), want %v", tt.key, got, got, tt.want)
			}
		})
	}
}

func TestRegisteredVarsLayering(t *testing.T) {
	vm := newTestVariableManager(t)
	vm.SetPlayVars(map[string]interface{}{"answer": "play", "color": "blue"})

	// play vars 覆盖 inventory 的所有层
	context := vm.Context("h2", nil)
	if context["answer"] != "play" {
		t.Errorf("play var should override inventory, got %v", context["answer"])
	}

	// register 写入覆盖 play vars，且只影响写入的主机
	vm.SetHostVar("h2", "answer", "registered")
	if got := vm.Context("h2", nil)["answer"]; got != "registered" {
		t.Errorf("registered var should win, got %v", got)
	}
	if got := vm.Context("h1", nil)["answer"]; got != "play" {
		t.Errorf("h1 scope must not see h2's register, got %v", got)
	}

	// 任务级 vars 盖过 play vars，只在传入时生效
	if got := vm.Context("h1", map[string]interface{}{"color": "red"})["color"]; got != "red" {
		t.Errorf("task vars should override play vars, got %v", got)
	}
	if got := vm.Context("h1", nil)["color"]; got != "blue" {
		t.Errorf("task vars must not leak, got %v", got)
	}
}

func TestExtraVarsOverride(t *testing.T) {
	vm := newTestVariableManager(t)
	vm.SetPlayVars(map[string]interface{}{"answer": "play"})
	vm.SetExtraVars(map[string]interface{}{"answer": "extra"})

	if got := vm.Context("h1", nil)["answer"]; got != "extra" {
		t.Errorf("extra vars should override play vars, got %v", got)
	}
}

func TestMagicVariables(t *testing.T) {
	vm := newTestVariableManager(t)
	vm.SetPlayHosts([]string{"h1", "h2"})
	vm.SetHostVar("h2", "role", "standby")

	context := vm.Context("h1", nil)

	if context["inventory_hostname"] != "h1" {
		t.Errorf("inventory_hostname = %v", context["inventory_hostname"])
	}

	groupNames, ok := context["group_names"].([]string)
	if !ok || len(groupNames) == 0 {
		t.Fatalf("group_names = %#v", context["group_names"])
	}
	found := false
	for _, name := range groupNames {
		if name == "web" {
			found = true
		}
	}
	if !found {
		t.Errorf("group_names should contain web, got %v", groupNames)
	}

	groups, ok := context["groups"].(map[string][]string)
	if !ok {
		t.Fatalf("groups = %#v", context["groups"])
	}
	if len(groups["web"]) != 2 {
		t.Errorf("groups[web] = %v", groups["web"])
	}

	// hostvars 能跨主机读取 register 的值
	hostvars, ok := context["hostvars"].(map[string]interface{})
	if !ok {
		t.Fatalf("hostvars = %#v", context["hostvars"])
	}
	h2vars, ok := hostvars["h2"].(map[string]interface{})
	if !ok {
		t.Fatalf("hostvars[h2] = %#v", hostvars["h2"])
	}
	if h2vars["role"] != "standby" {
		t.Errorf("hostvars[h2].role = %v", h2vars["role"])
	}

	playHosts, ok := context["ansible_play_hosts"].([]string)
	if !ok || len(playHosts) != 2 {
		t.Errorf("ansible_play_hosts = %#v", context["ansible_play_hosts"])
	}

	dateTime, ok := context["ansible_date_time"].(map[string]interface{})
	if !ok {
		t.Fatalf("ansible_date_time = %#v", context["ansible_date_time"])
	}
	for _, key := range []string{"date", "time", "iso8601", "epoch"} {
		if dateTime[key] == "" || dateTime[key] == nil {
			t.Errorf("ansible_date_time missing %s", key)
		}
	}
}
