package template

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// simplePathRe 匹配形如 a.b[0].c 或 hostvars['web1'].ip 的纯访问表达式
var simplePathRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*|\[[^\[\]]+\])*$`)

// isSimplePath 判断表达式是否为不含过滤器和运算符的变量访问
func isSimplePath(expr string) bool {
	return simplePathRe.MatchString(expr)
}

// Lookup 在上下文里解析一个变量访问路径，保留原始类型并区分未定义。
// 路径带过滤器或运算符时返回未找到。
func Lookup(expr string, context map[string]interface{}) (interface{}, bool) {
	expr = strings.TrimSpace(expr)
	if !isSimplePath(expr) {
		return nil, false
	}
	return lookupPath(expr, context)
}

// lookupPath 沿点号和下标访问路径取值，保留原始类型
func lookupPath(expr string, context map[string]interface{}) (interface{}, bool) {
	segments, ok := splitPath(expr)
	if !ok || len(segments) == 0 {
		return nil, false
	}

	var current interface{}
	current, found := context[segments[0]]
	if !found {
		return nil, false
	}

	for _, seg := range segments[1:] {
		current, found = access(current, seg)
		if !found {
			return nil, false
		}
	}
	return current, true
}

// splitPath 把 a.b['c'][0] 拆成访问段
func splitPath(expr string) ([]string, bool) {
	var segments []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			segments = append(segments, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(expr); i++ {
		switch c := expr[i]; c {
		case '.':
			flush()
		case '[':
			flush()
			end := strings.IndexByte(expr[i:], ']')
			if end < 0 {
				return nil, false
			}
			key := expr[i+1 : i+end]
			key = strings.Trim(key, `'"`)
			segments = append(segments, key)
			i += end
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return segments, true
}

// access 在 map 或切片上取一段
func access(value interface{}, key string) (interface{}, bool) {
	switch v := value.(type) {
	case map[string]interface{}:
		r, ok := v[key]
		return r, ok
	case map[interface{}]interface{}:
		r, ok := v[key]
		return r, ok
	case []interface{}:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, false
		}
		return v[idx], true
	case []string:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, false
		}
		return v[idx], true
	default:
		return nil, false
	}
}

// recoverValue 尝试从渲染后的字符串恢复结构化值。
// 先按 JSON 解析，像 YAML 的再按 YAML 解析，都不行保持字符串。
func recoverValue(rendered string) interface{} {
	trimmed := strings.TrimSpace(rendered)
	if trimmed == "" {
		return rendered
	}

	var jsonValue interface{}
	if err := json.Unmarshal([]byte(trimmed), &jsonValue); err == nil {
		return jsonValue
	}

	// 单行的 "a: b" 一类字符串按 YAML 解析会变成 map，
	// 只对明显是结构的内容尝试 YAML
	if strings.Contains(trimmed, "\n") || strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		var yamlValue interface{}
		if err := yaml.Unmarshal([]byte(trimmed), &yamlValue); err == nil {
			switch yamlValue.(type) {
			case map[string]interface{}, []interface{}:
				return yamlValue
			}
		}
	}

	return rendered
}

// asBool 按 Ansible 的宽松规则把任意值转成布尔
func asBool(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y", "on", "1":
			return true
		default:
			return false
		}
	default:
		return value != nil
	}
}
