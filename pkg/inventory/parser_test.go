package inventory

import (
	"os"
	"testing"
)

func TestParseINI(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		check   func(*testing.T, *Inventory)
	}{
		{
			name: "simple host",
			content: `[webservers]
web1 ansible_host=192.168.1.10`,
			wantErr: false,
			check: func(t *testing.T, inv *Inventory) {
				group := inv.Groups["webservers"]
				if group == nil {
					t.Fatal("webservers group not found")
				}
				if len(group.Hosts) != 1 || group.Hosts[0] != "web1" {
					t.Errorf("Expected 1 host named web1, got %v", group.Hosts)
				}
				host := inv.Hosts["web1"]
				if host == nil {
					t.Fatal("web1 host not found")
				}
				if host.Vars["ansible_host"] != "192.168.1.10" {
					t.Errorf("Expected ansible_host=192.168.1.10, got %v", host.Vars["ansible_host"])
				}
			},
		},
		{
			name: "multiple hosts keep declaration order",
			content: `[webservers]
web2 ansible_host=192.168.1.11
web1 ansible_host=192.168.1.10`,
			wantErr: false,
			check: func(t *testing.T, inv *Inventory) {
				group := inv.Groups["webservers"]
				if group == nil {
					t.Fatal("webservers group not found")
				}
				if len(group.Hosts) != 2 || group.Hosts[0] != "web2" || group.Hosts[1] != "web1" {
					t.Errorf("Expected [web2 web1], got %v", group.Hosts)
				}
				all := inv.Groups["all"]
				if len(all.Hosts) != 2 || all.Hosts[0] != "web2" || all.Hosts[1] != "web1" {
					t.Errorf("all group order = %v, want [web2 web1]", all.Hosts)
				}
			},
		},
		{
			name: "group variables are typed",
			content: `[webservers]
web1 ansible_host=192.168.1.10

[webservers:vars]
http_port=80
debug_mode=true
domain=example.com`,
			wantErr: false,
			check: func(t *testing.T, inv *Inventory) {
				group := inv.Groups["webservers"]
				if group == nil {
					t.Fatal("webservers group not found")
				}
				if group.Vars["http_port"] != 80 {
					t.Errorf("Expected http_port=80 (int), got %v (%T)", group.Vars["http_port"], group.Vars["http_port"])
				}
				if group.Vars["debug_mode"] != true {
					t.Errorf("Expected debug_mode=true (bool), got %v", group.Vars["debug_mode"])
				}
				if group.Vars["domain"] != "example.com" {
					t.Errorf("Expected domain=example.com, got %v", group.Vars["domain"])
				}
			},
		},
		{
			name: "comments and empty lines",
			content: `# This is a comment
[webservers]
# Another comment
web1 ansible_host=192.168.1.10

; Semicolon comment
web2 ansible_host=192.168.1.11`,
			wantErr: false,
			check: func(t *testing.T, inv *Inventory) {
				group := inv.Groups["webservers"]
				if group == nil {
					t.Fatal("webservers group not found")
				}
				if len(group.Hosts) != 2 {
					t.Errorf("Expected 2 hosts, got %d", len(group.Hosts))
				}
			},
		},
		{
			name: "host with port suffix",
			content: `[db]
db1:2222 ansible_user=postgres`,
			wantErr: false,
			check: func(t *testing.T, inv *Inventory) {
				host := inv.Hosts["db1"]
				if host == nil {
					t.Fatal("db1 host not found")
				}
				if host.Vars["ansible_port"] != 2222 {
					t.Errorf("Expected ansible_port=2222, got %v", host.Vars["ansible_port"])
				}
				if host.Vars["ansible_user"] != "postgres" {
					t.Errorf("Expected ansible_user=postgres, got %v", host.Vars["ansible_user"])
				}
			},
		},
		{
			name: "quoted inline variable keeps spaces",
			content: `[web]
web1 greeting="hello world" motd='single quoted'`,
			wantErr: false,
			check: func(t *testing.T, inv *Inventory) {
				host := inv.Hosts["web1"]
				if host == nil {
					t.Fatal("web1 host not found")
				}
				if host.Vars["greeting"] != "hello world" {
					t.Errorf("Expected greeting=%q, got %q", "hello world", host.Vars["greeting"])
				}
				if host.Vars["motd"] != "single quoted" {
					t.Errorf("Expected motd=%q, got %q", "single quoted", host.Vars["motd"])
				}
			},
		},
		{
			name: "children groups",
			content: `[web]
web1

[db]
db1

[production:children]
web
db`,
			wantErr: false,
			check: func(t *testing.T, inv *Inventory) {
				prod := inv.Groups["production"]
				if prod == nil {
					t.Fatal("production group not found")
				}
				if len(prod.Children) != 2 {
					t.Errorf("Expected 2 children, got %v", prod.Children)
				}
				web := inv.Groups["web"]
				if len(web.Parents) != 1 || web.Parents[0] != "production" {
					t.Errorf("web parents = %v, want [production]", web.Parents)
				}
			},
		},
		{
			name: "circular group dependency",
			content: `[a:children]
b

[b:children]
a`,
			wantErr: true,
		},
		{
			name: "invalid inline variable",
			content: `[web]
web1 not-a-kv-pair`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 创建临时文件
			tmpfile, err := os.CreateTemp("", "inventory-*.ini")
			if err != nil {
				t.Fatal(err)
			}
			defer os.Remove(tmpfile.Name())

			if _, err := tmpfile.Write([]byte(tt.content)); err != nil {
				t.Fatal(err)
			}
			tmpfile.Close()

			// 解析
			parser := NewINIParser()
			inv, err := parser.Parse(tmpfile.Name())
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && tt.check != nil {
				tt.check(t, inv)
			}
		})
	}
}

func TestMergeHostVars(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		hostname string
		want     map[string]interface{}
	}{
		{
			name: "host vars override group vars",
			content: `[webservers]
web1 ansible_host=192.168.1.10 env=prod

[webservers:vars]
env=dev
http_port=80`,
			hostname: "web1",
			want: map[string]interface{}{
				"ansible_host": "192.168.1.10",
				"env":          "prod",
				"http_port":    80,
			},
		},
		{
			name: "group vars override all vars",
			content: `[all:vars]
env=dev
domain=example.com

[webservers]
web1 ansible_host=192.168.1.10

[webservers:vars]
env=prod`,
			hostname: "web1",
			want: map[string]interface{}{
				"ansible_host": "192.168.1.10",
				"env":          "prod",
				"domain":       "example.com",
			},
		},
		{
			name: "child group vars override parent group vars",
			content: `[web]
web1

[production:children]
web

[production:vars]
env=production
region=eu

[web:vars]
env=web-tier`,
			hostname: "web1",
			want: map[string]interface{}{
				"env":    "web-tier",
				"region": "eu",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewINIParser()
			inv, err := parser.ParseData([]byte(tt.content))
			if err != nil {
				t.Fatal(err)
			}

			host := inv.Hosts[tt.hostname]
			if host == nil {
				t.Fatalf("Host %s not found", tt.hostname)
			}

			for key, wantVal := range tt.want {
				if gotVal, exists := host.Vars[key]; !exists || gotVal != wantVal {
					t.Errorf("Host.Vars[%s] = %v, want %v", key, gotVal, wantVal)
				}
			}
		})
	}
}
