package playbook

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cast"

	"github.com/LeeXN/gosible/pkg/connection"
	"github.com/LeeXN/gosible/pkg/errors"
	"github.com/LeeXN/gosible/pkg/inventory"
	"github.com/LeeXN/gosible/pkg/module"
	"github.com/LeeXN/gosible/pkg/template"
)

// taskOutcome 一个 (任务, 主机) 组合的完整结果。
// 循环任务时 Result 是聚合结果，Items 保留每个循环项的明细。
type taskOutcome struct {
	Host       string
	Result     *module.Result
	Register   map[string]interface{} // register 要写入的值
	Facts      map[string]interface{} // 要并入主机作用域的 ansible_facts
	Items      []itemOutcome
	Looped     bool
	PrevFailed bool // 主机在本 play 早先的任务已失败，槽位是合成的跳过
}

// itemOutcome 单个循环项（或无循环任务本身）的结果
type itemOutcome struct {
	Item   interface{}
	Result *module.Result
}

// executeTaskOnHost 在一台主机上走完任务状态机：
// 展开循环、逐项评估 when、渲染参数、执行模块、聚合结果。
// 循环项严格串行，主机之间的并发由上层的分发器负责。
func (r *Runner) executeTaskOnHost(ctx context.Context, play *Play, task *Task, host *inventory.Host) *taskOutcome {
	outcome := &taskOutcome{Host: host.Name}
	baseContext := r.varMgr.Context(host.Name, task.Vars)

	items, looped, err := r.expandLoop(task, baseContext)
	if err != nil {
		outcome.Result = renderFailure(errors.NewRenderError(host.Name, task.DisplayName(), "loop", err))
		outcome.Items = []itemOutcome{{Result: outcome.Result}}
		outcome.Register = outcome.Result.ToMap()
		return outcome
	}
	outcome.Looped = looped

	for idx, item := range items {
		itemContext := baseContext
		if looped {
			itemContext = make(map[string]interface{}, len(baseContext)+2)
			for k, v := range baseContext {
				itemContext[k] = v
			}
			itemContext[task.LoopVar()] = item
			if task.LoopControl.IndexVar != "" {
				itemContext[task.LoopControl.IndexVar] = idx
			}
		}

		result := r.runInstance(ctx, play, task, host, itemContext)
		outcome.Items = append(outcome.Items, itemOutcome{Item: item, Result: result})

		if looped && result.Failed && r.BreakOnItemFailure {
			break
		}
	}

	r.aggregate(task, outcome)
	return outcome
}

// expandLoop 渲染 loop 属性为循环项序列。
// 无循环时返回单元素伪序列，looped=false。
// 裸字符串循环值按单项列表处理，渲染出非序列报错。
func (r *Runner) expandLoop(task *Task, context map[string]interface{}) ([]interface{}, bool, error) {
	if task.Loop == nil {
		return []interface{}{nil}, false, nil
	}

	rendered, err := r.engine.RenderAny(task.Loop, context)
	if err != nil {
		return nil, false, fmt.Errorf("failed to render loop: %w", err)
	}

	switch v := rendered.(type) {
	case []interface{}:
		return v, true, nil
	case string:
		return []interface{}{v}, true, nil
	default:
		return nil, false, fmt.Errorf("loop must evaluate to a list, got %T", rendered)
	}
}

// runInstance 执行一个已绑定循环项的任务实例：
// when 评估、参数渲染、连接建立、模块调用。
// 目标上的失败一律进入 Result，不从这里冒错误。
func (r *Runner) runInstance(ctx context.Context, play *Play, task *Task, host *inventory.Host, itemContext map[string]interface{}) *module.Result {
	// when 是 AND 语义，逐项评估，任意一条为假即跳过
	for _, condition := range task.When {
		ok, err := r.engine.EvaluateCondition(condition, itemContext)
		if err != nil {
			return renderFailure(errors.NewRenderError(host.Name, task.DisplayName(), condition, err))
		}
		if !ok {
			return &module.Result{Skipped: true, Msg: "skipped, conditional result was False"}
		}
	}

	args, err := r.engine.RenderArgs(task.Args, itemContext)
	if err != nil {
		return renderFailure(errors.NewRenderError(host.Name, task.DisplayName(), task.Module, err))
	}

	if result := r.prepareArgs(task.Module, args, itemContext); result != nil {
		return result
	}

	var conn connection.Conn
	if m, err := r.modExec.Registry().Lookup(task.Module); err == nil && m.NeedsConnection() {
		conn, err = r.connMgr.Connect(host)
		if err != nil {
			return &module.Result{Unreachable: true, Failed: true, Msg: err.Error()}
		}
	}

	result, err := r.modExec.Execute(ctx, conn, task.Module, args, task.ExecOptions(play))
	if err != nil {
		return &module.Result{Failed: true, Msg: err.Error()}
	}
	return result
}

// prepareArgs 做个别模块需要的控制节点预处理，
// 出错时返回失败结果，正常返回 nil。
func (r *Runner) prepareArgs(moduleName string, args map[string]interface{}, itemContext map[string]interface{}) *module.Result {
	switch moduleName {
	case "debug":
		// var 引用在渲染阶段解析好，保留原始类型交给模块格式化
		if name, ok := args["var"].(string); ok {
			if value, found := template.Lookup(name, itemContext); found {
				args["_var_value"] = value
			}
		}
	case "template":
		srcPath := cast.ToString(args["src"])
		if srcPath == "" {
			return &module.Result{Failed: true, Msg: errors.NewInvalidArgsError("template", "Missing required parameter: src").Error()}
		}
		content, err := r.renderTemplateFile(srcPath, itemContext)
		if err != nil {
			return &module.Result{Failed: true, Msg: err.Error()}
		}
		args["_rendered_content"] = content
	case "copy":
		// src 相对路径按 playbook 所在目录解析
		if src := cast.ToString(args["src"]); src != "" && !filepath.IsAbs(src) {
			args["src"] = filepath.Join(r.baseDir, src)
		}
	}
	return nil
}

// renderTemplateFile 读取控制节点上的模板文件并用主机上下文渲染。
// 模板内容强制按字符串渲染，不做类型恢复。
func (r *Runner) renderTemplateFile(srcPath string, context map[string]interface{}) (string, error) {
	if !filepath.IsAbs(srcPath) {
		srcPath = filepath.Join(r.baseDir, srcPath)
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", fmt.Errorf("could not read template %s: %v", srcPath, err)
	}
	return r.engine.RenderString(string(data), context)
}

// aggregate 聚合循环项结果并准备 register 值。
// 循环任务的 changed/failed 按任意一项计算，全部跳过才算跳过；
// register 的形状带 results 列表，每项标记原始 item。
func (r *Runner) aggregate(task *Task, outcome *taskOutcome) {
	if !outcome.Looped {
		result := outcome.Items[0].Result
		outcome.Result = result
		outcome.Register = result.ToMap()
		outcome.Facts = result.AnsibleFacts
		return
	}

	var changed, failed int
	skipped := 0
	results := make([]interface{}, 0, len(outcome.Items))
	facts := make(map[string]interface{})

	for _, item := range outcome.Items {
		entry := item.Result.ToMap()
		entry["item"] = item.Item
		results = append(results, entry)

		switch {
		case item.Result.Skipped:
			skipped++
		case item.Result.Failed:
			failed++
		case item.Result.Changed:
			changed++
		}
		for k, v := range item.Result.AnsibleFacts {
			facts[k] = v
		}
	}

	aggregate := &module.Result{
		Changed: changed > 0,
		Failed:  failed > 0,
		Skipped: skipped == len(outcome.Items),
		Msg: fmt.Sprintf("changed=%d ok=%d failed=%d iterations=%d",
			changed, len(outcome.Items)-failed-skipped, failed, len(outcome.Items)),
	}

	outcome.Result = aggregate
	outcome.Facts = facts
	outcome.Register = map[string]interface{}{
		"changed": aggregate.Changed,
		"failed":  aggregate.Failed,
		"skipped": aggregate.Skipped,
		"msg":     aggregate.Msg,
		"results": results,
	}
}

// renderFailure 把渲染类错误包成失败结果
func renderFailure(err error) *module.Result {
	return &module.Result{Failed: true, Msg: err.Error()}
}
