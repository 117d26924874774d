package module

import "testing"

func TestRequiredString(t *testing.T) {
	args := map[string]interface{}{"dest": "/tmp/x", "port": 22}

	if got, err := RequiredString(args, "dest"); err != nil || got != "/tmp/x" {
		t.Errorf("RequiredString(dest) = %q, %v", got, err)
	}
	// 非字符串值按字符串化处理
	if got, err := RequiredString(args, "port"); err != nil || got != "22" {
		t.Errorf("RequiredString(port) = %q, %v", got, err)
	}
	if _, err := RequiredString(args, "missing"); err == nil {
		t.Error("RequiredString(missing) must fail")
	}
}

func TestRequiredStringAlias(t *testing.T) {
	args := map[string]interface{}{"dest": "/etc/app.conf"}

	if got, err := RequiredStringAlias(args, "path", "dest", "name"); err != nil || got != "/etc/app.conf" {
		t.Errorf("RequiredStringAlias() = %q, %v", got, err)
	}
	if _, err := RequiredStringAlias(args, "path", "name"); err == nil {
		t.Error("RequiredStringAlias() must fail when all aliases missing")
	}
}

func TestFlexBool(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		def  bool
		want bool
	}{
		{"bool true", true, false, true},
		{"yes", "yes", false, true},
		{"Yes mixed case", "Yes", false, true},
		{"on", "on", false, true},
		{"1 string", "1", false, true},
		{"no", "no", true, false},
		{"false string", "false", true, false},
		{"off", "off", true, false},
		{"int 1", 1, false, true},
		{"int 0", 0, true, false},
		{"garbage keeps default", "maybe", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FlexBool(tt.in, tt.def); got != tt.want {
				t.Errorf("FlexBool(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRawParams(t *testing.T) {
	if got, ok := RawParams(map[string]interface{}{"_raw_params": "uptime"}); !ok || got != "uptime" {
		t.Errorf("RawParams(_raw_params) = %q, %v", got, ok)
	}
	if got, ok := RawParams(map[string]interface{}{"cmd": "uptime"}, "cmd"); !ok || got != "uptime" {
		t.Errorf("RawParams(cmd alias) = %q, %v", got, ok)
	}
	if _, ok := RawParams(map[string]interface{}{"other": 1}, "cmd"); ok {
		t.Error("RawParams() must report absence")
	}
}

func TestOptionalInt(t *testing.T) {
	args := map[string]interface{}{"port": "8080", "count": 3}

	if got := OptionalInt(args, "port", 0); got != 8080 {
		t.Errorf("OptionalInt(port) = %d, want 8080", got)
	}
	if got := OptionalInt(args, "count", 0); got != 3 {
		t.Errorf("OptionalInt(count) = %d, want 3", got)
	}
	if got := OptionalInt(args, "missing", 5); got != 5 {
		t.Errorf("OptionalInt(missing) = %d, want 5", got)
	}
}

func TestFileMode(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]interface{}
		want    uint32
		wantErr bool
	}{
		{"default", map[string]interface{}{}, 0o644, false},
		{"octal string", map[string]interface{}{"mode": "0600"}, 0o600, false},
		{"bare octal", map[string]interface{}{"mode": "755"}, 0o755, false},
		{"go style prefix", map[string]interface{}{"mode": "0o640"}, 0o640, false},
		{"invalid", map[string]interface{}{"mode": "rwxr--r--"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fileMode(tt.args, 0o644)
			if (err != nil) != tt.wantErr {
				t.Errorf("fileMode() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && uint32(got) != tt.want {
				t.Errorf("fileMode() = %o, want %o", got, tt.want)
			}
		})
	}
}
