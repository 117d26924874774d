package template

import (
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"
)

// maxRenderDepth 限制嵌套变量的展开轮数，超出视为循环引用
const maxRenderDepth = 10

// Engine 是 Jinja2 风格的模板引擎，封装 pongo2。
// 无内部状态，可以被多个 goroutine 并发使用。
type Engine struct{}

// NewEngine 创建模板引擎并注册自定义过滤器
func NewEngine() *Engine {
	registerFilters()
	return &Engine{}
}

// RenderString 渲染单个字符串。变量值本身可能还含模板，
// 反复渲染直到不动点，轮数超限报错。
func (e *Engine) RenderString(template string, context map[string]interface{}) (string, error) {
	// 没有模板语法时直接返回
	if !hasTemplateMarkers(template) {
		return template, nil
	}

	current := template
	for i := 0; i < maxRenderDepth; i++ {
		if !hasTemplateMarkers(current) {
			return current, nil
		}

		rendered, err := renderOnce(current, context)
		if err != nil {
			return "", err
		}
		if rendered == current {
			// 输出含字面花括号，不再有可展开的内容
			return rendered, nil
		}
		current = rendered
	}

	if hasTemplateMarkers(current) {
		return "", fmt.Errorf("template recursion depth exceeded (%d) while rendering %q", maxRenderDepth, template)
	}
	return current, nil
}

// renderOnce 单轮 pongo2 渲染
func renderOnce(template string, context map[string]interface{}) (string, error) {
	tpl, err := pongo2.FromString(template)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	result, err := tpl.Execute(pongo2.Context(context))
	if err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return result, nil
}

// RenderValue 渲染并尽量保留原始类型（列表、字典、数值等）。
// 形如 "{{ var.field }}" 的简单引用直接从 context 取值，
// 复杂表达式渲染成字符串后再尝试恢复结构。
func (e *Engine) RenderValue(template string, context map[string]interface{}) (interface{}, error) {
	if !hasTemplateMarkers(template) {
		return template, nil
	}

	trimmed := strings.TrimSpace(template)
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		expr := strings.TrimSpace(trimmed[2 : len(trimmed)-2])
		if isSimplePath(expr) {
			if value, found := lookupPath(expr, context); found {
				return value, nil
			}
			// 未定义的变量渲染为空串
			return "", nil
		}
	}

	rendered, err := e.RenderString(template, context)
	if err != nil {
		return nil, err
	}
	return recoverValue(rendered), nil
}

// RenderArgs 渲染模块参数，递归处理嵌套结构
func (e *Engine) RenderArgs(args map[string]interface{}, context map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(args))

	for key, value := range args {
		rendered, err := e.RenderAny(value, context)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", key, err)
		}
		result[key] = rendered
	}

	return result, nil
}

// RenderAny 渲染任意 YAML 值，递归处理嵌套结构
func (e *Engine) RenderAny(value interface{}, context map[string]interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return e.RenderValue(v, context)
	case map[string]interface{}:
		return e.RenderArgs(v, context)
	case []interface{}:
		rendered := make([]interface{}, len(v))
		for i, item := range v {
			r, err := e.RenderAny(item, context)
			if err != nil {
				return nil, err
			}
			rendered[i] = r
		}
		return rendered, nil
	default:
		return value, nil
	}
}

// EvaluateCondition 评估 when 条件。
// Ansible 的条件不带 {{ }}，包装进 if 块后交给模板引擎判断真值。
func (e *Engine) EvaluateCondition(condition string, context map[string]interface{}) (bool, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return true, nil
	}

	// 条件里混入 {{ }} 时先展开
	if hasTemplateMarkers(condition) {
		rendered, err := e.RenderString(condition, context)
		if err != nil {
			return false, err
		}
		condition = strings.TrimSpace(rendered)
		if condition == "" {
			return false, nil
		}
	}

	template := fmt.Sprintf("{%% if %s %%}true{%% else %%}false{%% endif %%}", condition)
	result, err := renderOnce(template, context)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate condition %q: %w", condition, err)
	}

	return strings.TrimSpace(result) == "true", nil
}

// hasTemplateMarkers 判断字符串是否包含模板语法
func hasTemplateMarkers(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "{%")
}
