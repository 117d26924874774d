package playbook

import (
	"context"
	"fmt"

	"github.com/LeeXN/gosible/pkg/connection"
	"github.com/LeeXN/gosible/pkg/facts"
	"github.com/LeeXN/gosible/pkg/inventory"
	"github.com/LeeXN/gosible/pkg/logger"
	"github.com/LeeXN/gosible/pkg/module"
	"github.com/LeeXN/gosible/pkg/runner"
	"github.com/LeeXN/gosible/pkg/template"
)

// Runner 按顺序执行 playbook 的各个 play。
// 同一任务的多台主机经分发器有界并发执行，任务之间严格串行：
// 上一任务所有主机的结果折回之前不开始下一任务。
type Runner struct {
	inventory  *inventory.Manager
	connMgr    *connection.Manager
	modExec    *module.Executor
	varMgr     *VariableManager
	engine     *template.Engine
	dispatcher *runner.Dispatcher
	out        *logger.AnsibleLogger

	baseDir string
	limit   string

	// BreakOnItemFailure 为 true 时循环任务首个失败项中止该主机的后续项，
	// 默认继续执行并上报混合结果
	BreakOnItemFailure bool

	stats     map[string]*logger.PlayStats
	hostOrder []string
	failed    map[string]bool // 当前 play 中已失败的主机，任务折回时更新
}

// NewRunner 创建 playbook 执行器，forks 是单任务的并发主机上限
func NewRunner(inv *inventory.Manager, forks int) *Runner {
	return &Runner{
		inventory:  inv,
		connMgr:    connection.NewManager(),
		modExec:    module.NewExecutor(nil),
		varMgr:     NewVariableManager(inv),
		engine:     template.NewEngine(),
		dispatcher: runner.NewDispatcher(forks),
		out:        logger.NewAnsibleLogger(false),
		stats:      make(map[string]*logger.PlayStats),
		failed:     make(map[string]bool),
	}
}

// SetRegistry 替换模块注册表，测试注入计数模块用
func (r *Runner) SetRegistry(registry *module.Registry) {
	r.modExec = module.NewExecutor(registry)
}

// SetExtraVars 设置 -e 变量
func (r *Runner) SetExtraVars(vars map[string]interface{}) {
	r.varMgr.SetExtraVars(vars)
}

// SetLimit 限制目标主机为同时匹配 limit 模式的子集
func (r *Runner) SetLimit(pattern string) {
	r.limit = pattern
}

// SetBaseDir 设置 playbook 所在目录，template/copy 的相对 src 以此解析
func (r *Runner) SetBaseDir(dir string) {
	r.baseDir = dir
}

// SetQuiet 静默运行输出
func (r *Runner) SetQuiet(quiet bool) {
	r.out = logger.NewAnsibleLogger(quiet)
}

// RunReport 整次运行的汇总
type RunReport struct {
	HostOrder []string
	Stats     map[string]*logger.PlayStats
}

// Success 是否全部主机成功
func (rep *RunReport) Success() bool {
	for _, stat := range rep.Stats {
		if !stat.IsSuccess() {
			return false
		}
	}
	return true
}

// FailedHosts 返回失败或不可达的主机，按首次出现顺序
func (rep *RunReport) FailedHosts() []string {
	var hosts []string
	for _, host := range rep.HostOrder {
		if stat := rep.Stats[host]; stat != nil && !stat.IsSuccess() {
			hosts = append(hosts, host)
		}
	}
	return hosts
}

// Run 执行整个 playbook，最后打印一次汇总。
// ctx 取消后不再开始新任务，在途的主机执行协作式收尾。
func (r *Runner) Run(ctx context.Context, playbook Playbook) (*RunReport, error) {
	defer r.connMgr.CloseAll()

	for _, play := range playbook {
		if ctx.Err() != nil {
			break
		}
		if err := r.executePlay(ctx, play); err != nil {
			return nil, fmt.Errorf("play %q: %w", play.Name, err)
		}
	}

	r.out.PlayRecap(r.hostOrder, r.stats)
	report := &RunReport{HostOrder: r.hostOrder, Stats: r.stats}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// executePlay 执行单个 play：facts、任务、触发的 handlers
func (r *Runner) executePlay(ctx context.Context, play *Play) error {
	r.out.PlayHeader(play.Name)

	hosts := r.targetHosts(play.Hosts)
	if len(hosts) == 0 {
		r.out.Warning(fmt.Sprintf("skipping play %q: no hosts matched pattern %q", play.Name, play.Hosts))
		return nil
	}

	names := make([]string, len(hosts))
	for i, host := range hosts {
		names[i] = host.Name
		if _, ok := r.stats[host.Name]; !ok {
			r.stats[host.Name] = &logger.PlayStats{}
			r.hostOrder = append(r.hostOrder, host.Name)
		}
	}

	r.varMgr.SetPlayVars(play.Vars)
	r.varMgr.SetPlayHosts(names)
	r.failed = make(map[string]bool)

	if play.GatherFacts {
		r.gatherFacts(ctx, hosts)
	}

	// handler 名 -> 通知过它的主机集合
	notified := make(map[string]map[string]bool)

	for _, task := range play.Tasks {
		if ctx.Err() != nil {
			return nil
		}
		if r.allFailed(hosts) {
			r.out.Warning("no more hosts left to run on, ending play")
			break
		}

		newFailures := r.runTask(ctx, play, task, hosts, notified)

		if play.FailFast && newFailures > 0 {
			r.out.Warning("fail_fast enabled, aborting play for all hosts")
			for _, host := range hosts {
				r.failed[host.Name] = true
			}
			break
		}
	}

	// 被通知的 handlers 按声明顺序各跑一轮，只针对通知过的未失败主机
	for _, handler := range play.Handlers {
		hostSet := notified[handler.Name]
		if len(hostSet) == 0 {
			continue
		}
		var targets []*inventory.Host
		for _, host := range hosts {
			if hostSet[host.Name] && !r.failed[host.Name] {
				targets = append(targets, host)
			}
		}
		if len(targets) == 0 {
			continue
		}
		r.out.HandlerHeader(handler.DisplayName())
		r.runTaskOn(ctx, play, handler, targets, notified)
	}

	return nil
}

// runTask 在 play 的全部主机上执行一个任务，返回新失败的主机数
func (r *Runner) runTask(ctx context.Context, play *Play, task *Task, hosts []*inventory.Host, notified map[string]map[string]bool) int {
	r.out.TaskHeader(task.DisplayName())
	_, newFailures := r.runTaskOn(ctx, play, task, hosts, notified)
	return newFailures
}

// runTaskOn 把任务分发到主机列表并按主机顺序折回结果。
// 结果切片与 hosts 一一对应，已失败主机占一个合成的跳过槽位。
// register、facts、失败标记的写入都发生在这里的折回循环里，
// 分发器返回之后才动共享作用域，主机之间因此无需加锁。
func (r *Runner) runTaskOn(ctx context.Context, play *Play, task *Task, hosts []*inventory.Host, notified map[string]map[string]bool) ([]*taskOutcome, int) {
	outcomes := make([]*taskOutcome, len(hosts))
	r.dispatcher.Run(ctx, len(hosts), func(ctx context.Context, idx int) {
		host := hosts[idx]
		if r.failed[host.Name] {
			outcomes[idx] = &taskOutcome{
				Host:       host.Name,
				PrevFailed: true,
				Result:     &module.Result{Skipped: true, Msg: "previous task failed"},
			}
			return
		}
		outcomes[idx] = r.executeTaskOnHost(ctx, play, task, host)
	})

	newFailures := 0
	for _, outcome := range outcomes {
		if outcome == nil || outcome.PrevFailed {
			// 取消后未启动的槽位，或之前已失败的主机：不打印不计数
			continue
		}

		r.printOutcome(task, outcome)
		r.recordStats(task, outcome)

		if task.Register != "" {
			r.varMgr.SetHostVar(outcome.Host, task.Register, outcome.Register)
		}
		if len(outcome.Facts) > 0 {
			r.varMgr.SetHostVars(outcome.Host, outcome.Facts)
		}

		if outcome.Result.Failed && !task.IgnoreErrors {
			r.failed[outcome.Host] = true
			newFailures++
			continue
		}

		if outcome.Result.Changed && !outcome.Result.Failed {
			for _, name := range task.Notify {
				if notified[name] == nil {
					notified[name] = make(map[string]bool)
				}
				notified[name][outcome.Host] = true
			}
		}
	}
	return outcomes, newFailures
}

// printOutcome 打印任务行，循环任务逐项输出
func (r *Runner) printOutcome(task *Task, outcome *taskOutcome) {
	if outcome.Looped {
		for _, item := range outcome.Items {
			res := item.Result
			r.out.ItemResult(outcome.Host, item.Item, res.Msg,
				res.Changed, res.Failed, res.Skipped, res.Failed && task.IgnoreErrors)
		}
		return
	}
	res := outcome.Result
	r.out.TaskResult(outcome.Host, res.Msg,
		res.Changed, res.Failed, res.Skipped, res.Failed && task.IgnoreErrors)
}

// recordStats 更新主机统计
func (r *Runner) recordStats(task *Task, outcome *taskOutcome) {
	stat := r.stats[outcome.Host]
	res := outcome.Result

	switch {
	case res.Unreachable:
		stat.Unreachable++
	case res.Failed && task.IgnoreErrors:
		stat.Ignored++
	case res.Failed:
		stat.Failed++
	case res.Skipped:
		stat.Skipped++
	default:
		stat.Ok++
		if res.Changed {
			stat.Changed++
		}
	}
}

// gatherFacts 在任务开始前探测目标并把 ansible_* 事实并入主机作用域
func (r *Runner) gatherFacts(ctx context.Context, hosts []*inventory.Host) {
	r.out.TaskHeader("Gathering Facts")

	type factsOutcome struct {
		gathered facts.Facts
		err      error
	}

	outcomes := make([]factsOutcome, len(hosts))
	r.dispatcher.Run(ctx, len(hosts), func(ctx context.Context, idx int) {
		host := hosts[idx]
		local := connection.IsLocal(host)

		var conn connection.Conn
		if !local {
			var err error
			conn, err = r.connMgr.Connect(host)
			if err != nil {
				outcomes[idx].err = err
				return
			}
		}
		outcomes[idx].gathered, outcomes[idx].err = facts.Gather(ctx, conn, local)
	})

	for i, host := range hosts {
		outcome := outcomes[i]
		if outcome.err != nil {
			r.out.TaskResult(host.Name, outcome.err.Error(), false, true, false, false)
			r.stats[host.Name].Unreachable++
			r.failed[host.Name] = true
			continue
		}
		r.varMgr.SetHostVars(host.Name, outcome.gathered)
		r.stats[host.Name].Ok++
		r.out.TaskResult(host.Name, "", false, false, false, false)
	}
}

// targetHosts 解析 play 的主机模式并套用 -l 限制
func (r *Runner) targetHosts(pattern string) []*inventory.Host {
	hosts := r.inventory.GetHosts(pattern)
	if r.limit == "" {
		return hosts
	}

	allowed := make(map[string]bool)
	for _, host := range r.inventory.GetHosts(r.limit) {
		allowed[host.Name] = true
	}

	var limited []*inventory.Host
	for _, host := range hosts {
		if allowed[host.Name] {
			limited = append(limited, host)
		}
	}
	return limited
}

// allFailed 判断是否所有目标主机都已失败
func (r *Runner) allFailed(hosts []*inventory.Host) bool {
	for _, host := range hosts {
		if !r.failed[host.Name] {
			return false
		}
	}
	return true
}
