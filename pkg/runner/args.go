package runner

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseModuleArgs 解析 ad-hoc 的 -a 参数串。
// 形式是空格分隔的 key=value，值可以带引号包含空格；
// 整串没有 = 时作为 _raw_params 交给模块。
// 值做宽松的标量识别：true/false、整数、浮点数，其余保持字符串。
func ParseModuleArgs(argsStr string) (map[string]interface{}, error) {
	args := make(map[string]interface{})
	argsStr = strings.TrimSpace(argsStr)
	if argsStr == "" {
		return args, nil
	}

	fields, err := splitQuoted(argsStr)
	if err != nil {
		return nil, err
	}

	// 无 key=value 结构的整串是 raw 参数（command/shell 的常见用法）
	if !strings.Contains(fields[0], "=") {
		args["_raw_params"] = argsStr
		return args, nil
	}

	for _, field := range fields {
		key, value, found := strings.Cut(field, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid module argument %q, expected key=value", field)
		}
		args[key] = coerceScalar(value)
	}
	return args, nil
}

// splitQuoted 按空白拆分，单双引号内的空白不拆，引号本身剥掉
func splitQuoted(s string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	var quote byte

	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				cur.WriteByte(c)
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ' ' || c == '\t':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unbalanced quote in module arguments")
	}
	flush()
	return fields, nil
}

// coerceScalar 宽松识别布尔和数字
func coerceScalar(value string) interface{} {
	switch strings.ToLower(value) {
	case "true", "yes":
		return true
	case "false", "no":
		return false
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}
