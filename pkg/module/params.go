package module

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// RequiredString 取必填字符串参数
func RequiredString(args map[string]interface{}, name string) (string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return "", fmt.Errorf("Missing required parameter: %s", name)
	}
	return cast.ToString(v), nil
}

// RequiredStringAlias 按别名顺序取必填字符串参数，都缺失时用第一个名字报错
func RequiredStringAlias(args map[string]interface{}, names ...string) (string, error) {
	for _, name := range names {
		if v, ok := args[name]; ok && v != nil {
			return cast.ToString(v), nil
		}
	}
	return "", fmt.Errorf("Missing required parameter: %s", names[0])
}

// OptionalString 取可选字符串参数
func OptionalString(args map[string]interface{}, name, def string) string {
	v, ok := args[name]
	if !ok || v == nil {
		return def
	}
	return cast.ToString(v)
}

// OptionalBool 取可选布尔参数，接受 yes/no/true/false 及其大小写变体
func OptionalBool(args map[string]interface{}, name string, def bool) bool {
	v, ok := args[name]
	if !ok || v == nil {
		return def
	}
	return FlexBool(v, def)
}

// FlexBool 按 YAML 布尔惯例解释任意值
func FlexBool(v interface{}, def bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "y", "true", "on", "1":
			return true
		case "no", "n", "false", "off", "0":
			return false
		default:
			return def
		}
	default:
		if b, err := cast.ToBoolE(v); err == nil {
			return b
		}
		return def
	}
}

// OptionalInt 取可选整数参数
func OptionalInt(args map[string]interface{}, name string, def int) int {
	v, ok := args[name]
	if !ok || v == nil {
		return def
	}
	if n, err := cast.ToIntE(v); err == nil {
		return n
	}
	return def
}

// RawParams 取 shorthand 形式的模块参数，并依次尝试别名键
func RawParams(args map[string]interface{}, aliases ...string) (string, bool) {
	if v, ok := args["_raw_params"]; ok && v != nil {
		return cast.ToString(v), true
	}
	for _, name := range aliases {
		if v, ok := args[name]; ok && v != nil {
			return cast.ToString(v), true
		}
	}
	return "", false
}

// HasParam 判断参数是否出现
func HasParam(args map[string]interface{}, name string) bool {
	v, ok := args[name]
	return ok && v != nil
}
