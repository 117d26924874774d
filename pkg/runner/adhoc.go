package runner

import (
	"context"

	"github.com/LeeXN/gosible/pkg/connection"
	"github.com/LeeXN/gosible/pkg/inventory"
	"github.com/LeeXN/gosible/pkg/logger"
	"github.com/LeeXN/gosible/pkg/module"
	"github.com/LeeXN/gosible/pkg/template"
)

// TaskResult 单个主机上一次模块执行的结果
type TaskResult struct {
	Host         string
	ModuleResult *module.Result
	Error        error
}

// AdhocRunner Ad-hoc 命令执行器
type AdhocRunner struct {
	inventory  *inventory.Manager
	connMgr    *connection.Manager
	modExec    *module.Executor
	engine     *template.Engine
	dispatcher *Dispatcher
}

// NewAdhocRunner 创建一个新的 Ad-hoc Runner
func NewAdhocRunner(inv *inventory.Manager, forks int) *AdhocRunner {
	return &AdhocRunner{
		inventory:  inv,
		connMgr:    connection.NewManager(),
		modExec:    module.NewExecutor(nil),
		engine:     template.NewEngine(),
		dispatcher: NewDispatcher(forks),
	}
}

// Run 在匹配 pattern 的主机上并发执行模块。
// 结果切片与主机解析顺序一一对应，与各主机完成先后无关。
func (r *AdhocRunner) Run(ctx context.Context, pattern, moduleName string, moduleArgs map[string]interface{}) []TaskResult {
	hosts := r.inventory.GetHosts(pattern)
	if len(hosts) == 0 {
		logger.Warnf("no hosts matched pattern %q", pattern)
		return nil
	}
	defer r.connMgr.CloseAll()

	results := make([]TaskResult, len(hosts))
	r.dispatcher.Run(ctx, len(hosts), func(ctx context.Context, idx int) {
		results[idx] = r.executeOnHost(ctx, hosts[idx], moduleName, moduleArgs)
	})
	return results
}

// executeOnHost 在单个主机上渲染参数并执行模块
func (r *AdhocRunner) executeOnHost(ctx context.Context, host *inventory.Host, moduleName string, moduleArgs map[string]interface{}) TaskResult {
	tmplContext := r.hostContext(host)

	args, err := r.engine.RenderArgs(moduleArgs, tmplContext)
	if err != nil {
		return TaskResult{
			Host:         host.Name,
			ModuleResult: &module.Result{Failed: true, Msg: err.Error()},
			Error:        err,
		}
	}

	// debug 的 var 在控制节点解析好再交给模块
	if moduleName == "debug" {
		if name, ok := args["var"].(string); ok {
			if value, found := template.Lookup(name, tmplContext); found {
				args["_var_value"] = value
			}
		}
	}

	// 不需要连接的模块跳过拨号，目标不可达也能在控制节点求值
	var conn connection.Conn
	if m, lookupErr := r.modExec.Registry().Lookup(moduleName); lookupErr == nil && m.NeedsConnection() {
		conn, err = r.connMgr.Connect(host)
		if err != nil {
			return TaskResult{
				Host: host.Name,
				ModuleResult: &module.Result{
					Unreachable: true,
					Msg:         err.Error(),
				},
				Error: err,
			}
		}
	}

	modResult, err := r.modExec.Execute(ctx, conn, moduleName, args, module.ExecOptions{})
	if err != nil {
		return TaskResult{
			Host: host.Name,
			ModuleResult: &module.Result{
				Failed: true,
				Msg:    err.Error(),
			},
			Error: err,
		}
	}

	return TaskResult{Host: host.Name, ModuleResult: modResult}
}

// hostContext 组装 ad-hoc 模式的模板上下文：主机变量加几个常用魔法变量
func (r *AdhocRunner) hostContext(host *inventory.Host) map[string]interface{} {
	context := make(map[string]interface{}, len(host.Vars)+3)
	for k, v := range host.Vars {
		context[k] = v
	}
	context["inventory_hostname"] = host.Name
	context["group_names"] = host.Groups
	context["groups"] = r.inventory.GroupsMap()
	return context
}
