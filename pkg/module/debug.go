package module

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"

	"github.com/LeeXN/gosible/pkg/connection"
)

// DebugModule debug 模块实现
// 在控制节点打印消息或变量值，不触碰目标机
type DebugModule struct{}

// Name 模块名
func (m *DebugModule) Name() string { return "debug" }

// NeedsConnection debug 在控制节点求值
func (m *DebugModule) NeedsConnection() bool { return false }

// Run 执行 debug 模块
func (m *DebugModule) Run(ctx context.Context, conn connection.Conn, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	result := &Result{Changed: false}

	// var 的取值由上层在渲染阶段注入为 _var_value，
	// 这里只负责格式化输出
	if HasParam(args, "var") {
		name := cast.ToString(args["var"])
		value, ok := args["_var_value"]
		if !ok {
			result.Msg = fmt.Sprintf("%s: VARIABLE IS NOT DEFINED!", name)
			return result, nil
		}
		result.Msg = fmt.Sprintf("%s: %s", name, formatDebugValue(value))
		return result, nil
	}

	if HasParam(args, "msg") {
		result.Msg = formatDebugValue(args["msg"])
		return result, nil
	}

	// Ansible 的默认输出
	result.Msg = "Hello world!"
	return result, nil
}

// formatDebugValue 结构化值用缩进 JSON，标量按原样输出
func formatDebugValue(v interface{}) string {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		data, err := json.MarshalIndent(v, "", "    ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	default:
		return cast.ToString(v)
	}
}
