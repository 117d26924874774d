package template

import (
	"testing"
)

func TestCustomFilters(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name     string
		template string
		context  map[string]interface{}
		want     string
		wantErr  bool
	}{
		{
			name:     "bool filter on yes",
			template: "{{ v | bool }}",
			context:  map[string]interface{}{"v": "yes"},
			want:     "True",
		},
		{
			name:     "bool filter on other string",
			template: "{{ v | bool }}",
			context:  map[string]interface{}{"v": "nope"},
			want:     "False",
		},
		{
			name:     "int filter",
			template: "{{ v | int }}",
			context:  map[string]interface{}{"v": "42"},
			want:     "42",
		},
		{
			name:     "to_json",
			template: "{{ d | to_json }}",
			context:  map[string]interface{}{"d": map[string]interface{}{"a": 1}},
			want:     `{"a":1}`,
		},
		{
			name:     "to_yaml",
			template: "{{ d | to_yaml }}",
			context:  map[string]interface{}{"d": map[string]interface{}{"a": 1}},
			want:     "a: 1",
		},
		{
			name:     "b64encode",
			template: "{{ s | b64encode }}",
			context:  map[string]interface{}{"s": "hello"},
			want:     "aGVsbG8=",
		},
		{
			name:     "b64decode",
			template: "{{ s | b64decode }}",
			context:  map[string]interface{}{"s": "aGVsbG8="},
			want:     "hello",
		},
		{
			name:     "regex_replace strips suffix",
			template: `{{ name | regex_replace:"s/-dev$//" }}`,
			context:  map[string]interface{}{"name": "web-dev"},
			want:     "web",
		},
		{
			name:     "regex_replace custom delimiter",
			template: `{{ path | regex_replace:"s#/tmp#/var#" }}`,
			context:  map[string]interface{}{"path": "/tmp/app"},
			want:     "/var/app",
		},
		{
			name:     "regex_replace bad spec",
			template: `{{ name | regex_replace:"oops" }}`,
			context:  map[string]interface{}{"name": "x"},
			wantErr:  true,
		},
		{
			name:     "regex_search",
			template: `{{ s | regex_search:"[0-9]+" }}`,
			context:  map[string]interface{}{"s": "abc123def"},
			want:     "123",
		},
		{
			name:     "split then length",
			template: `{{ csv | split:"," | length }}`,
			context:  map[string]interface{}{"csv": "a,b,c"},
			want:     "3",
		},
		{
			name:     "trim",
			template: "{{ s | trim }}",
			context:  map[string]interface{}{"s": "  padded  "},
			want:     "padded",
		},
		{
			name:     "basename",
			template: "{{ p | basename }}",
			context:  map[string]interface{}{"p": "/etc/nginx/nginx.conf"},
			want:     "nginx.conf",
		},
		{
			name:     "dirname",
			template: "{{ p | dirname }}",
			context:  map[string]interface{}{"p": "/etc/nginx/nginx.conf"},
			want:     "/etc/nginx",
		},
		{
			name:     "sha1sum",
			template: "{{ s | sha1sum }}",
			context:  map[string]interface{}{"s": "abc"},
			want:     "a9993e364706816aba3e25717850c26c9cd0d89d",
		},
		{
			name:     "sha256sum",
			template: "{{ s | sha256sum }}",
			context:  map[string]interface{}{"s": "abc"},
			want:     "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
		{
			name:     "quote wraps in single quotes",
			template: "{{ s | quote }}",
			context:  map[string]interface{}{"s": "plain"},
			want:     "'plain'",
		},
		{
			name:     "mandatory passes defined value",
			template: "{{ s | mandatory }}",
			context:  map[string]interface{}{"s": "ok"},
			want:     "ok",
		},
		{
			name:     "mandatory fails on missing value",
			template: "{{ missing | mandatory }}",
			context:  map[string]interface{}{},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.RenderString(tt.template, tt.context)
			if (err != nil) != tt.wantErr {
				t.Errorf("RenderString() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("RenderString(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestParseSubstitution(t *testing.T) {
	tests := []struct {
		spec            string
		wantPattern     string
		wantReplacement string
		wantErr         bool
	}{
		{spec: "s/foo/bar/", wantPattern: "foo", wantReplacement: "bar"},
		{spec: "s#a/b#c#", wantPattern: "a/b", wantReplacement: "c"},
		{spec: "s/^ws-//", wantPattern: "^ws-", wantReplacement: ""},
		{spec: "nonsense", wantErr: true},
		{spec: "s/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			pattern, replacement, err := parseSubstitution(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseSubstitution(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if pattern != tt.wantPattern || replacement != tt.wantReplacement {
				t.Errorf("parseSubstitution(%q) = (%q, %q), want (%q, %q)",
					tt.spec, pattern, replacement, tt.wantPattern, tt.wantReplacement)
			}
		})
	}
}
