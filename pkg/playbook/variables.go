package playbook

import (
	"strconv"
	"time"

	"github.com/LeeXN/gosible/pkg/inventory"
)

// VariableManager 维护每台主机的分层变量作用域。
// 合并顺序从低到高：inventory（解析时已按 all < 组 < 主机合并）
// < play vars < 任务级 vars < -e 额外变量 < register/facts < 魔法变量。
//
// 写操作只发生在协调者一侧（任务结果折回之后），各主机的并发执行
// 只读取自己的上下文快照，所以这里不需要锁。
type VariableManager struct {
	inventory *inventory.Manager
	extraVars map[string]interface{}
	playVars  map[string]interface{}
	hostVars  map[string]map[string]interface{} // register 和 facts，按主机隔离
	playHosts []string
}

// NewVariableManager 创建变量管理器
func NewVariableManager(inv *inventory.Manager) *VariableManager {
	return &VariableManager{
		inventory: inv,
		extraVars: make(map[string]interface{}),
		playVars:  make(map[string]interface{}),
		hostVars:  make(map[string]map[string]interface{}),
	}
}

// SetExtraVars 设置 -e 提供的运行时变量
func (vm *VariableManager) SetExtraVars(vars map[string]interface{}) {
	vm.extraVars = vars
}

// SetPlayVars 设置当前 play 的 vars 块
func (vm *VariableManager) SetPlayVars(vars map[string]interface{}) {
	if vars == nil {
		vars = make(map[string]interface{})
	}
	vm.playVars = vars
}

// SetPlayHosts 设置当前 play 的目标主机列表
func (vm *VariableManager) SetPlayHosts(hosts []string) {
	vm.playHosts = hosts
}

// SetHostVar 写入单个主机级变量，register 用
func (vm *VariableManager) SetHostVar(hostname, key string, value interface{}) {
	if vm.hostVars[hostname] == nil {
		vm.hostVars[hostname] = make(map[string]interface{})
	}
	vm.hostVars[hostname][key] = value
}

// SetHostVars 批量写入主机级变量，facts 和 set_fact 用
func (vm *VariableManager) SetHostVars(hostname string, vars map[string]interface{}) {
	if vm.hostVars[hostname] == nil {
		vm.hostVars[hostname] = make(map[string]interface{})
	}
	for k, v := range vars {
		vm.hostVars[hostname][k] = v
	}
}

// Context 组装一台主机的模板上下文。
// taskVars 是任务级 vars 块，只对当前任务生效，可以为 nil。
// 返回的映射是快照，调用方可以继续叠加循环项绑定。
func (vm *VariableManager) Context(hostname string, taskVars map[string]interface{}) map[string]interface{} {
	context := make(map[string]interface{})

	host, err := vm.inventory.GetHost(hostname)
	if err == nil {
		for k, v := range host.Vars {
			context[k] = v
		}
	}

	for k, v := range vm.playVars {
		context[k] = v
	}
	for k, v := range taskVars {
		context[k] = v
	}
	for k, v := range vm.extraVars {
		context[k] = v
	}
	for k, v := range vm.hostVars[hostname] {
		context[k] = v
	}

	vm.addMagicVars(context, hostname, host)
	return context
}

// addMagicVars 注入引擎保证存在的内置变量
func (vm *VariableManager) addMagicVars(context map[string]interface{}, hostname string, host *inventory.Host) {
	context["inventory_hostname"] = hostname

	if _, ok := context["ansible_host"]; !ok {
		context["ansible_host"] = hostname
	}

	context["hostvars"] = vm.buildHostvars()
	context["groups"] = vm.inventory.GroupsMap()

	if host != nil {
		context["group_names"] = host.Groups
	} else {
		context["group_names"] = []string{}
	}

	if len(vm.playHosts) > 0 {
		context["ansible_play_hosts"] = vm.playHosts
		context["ansible_play_batch"] = vm.playHosts
	}

	context["ansible_date_time"] = dateTimeVars(time.Now())
}

// buildHostvars 组装 hostvars 魔法变量：
// 每台主机各自的 inventory、play 和 register 变量合并视图
func (vm *VariableManager) buildHostvars() map[string]interface{} {
	hostvars := make(map[string]interface{})

	for _, host := range vm.inventory.GetHosts("all") {
		entry := make(map[string]interface{}, len(host.Vars)+len(vm.playVars)+2)
		for k, v := range host.Vars {
			entry[k] = v
		}
		for k, v := range vm.playVars {
			entry[k] = v
		}
		for k, v := range vm.hostVars[host.Name] {
			entry[k] = v
		}
		entry["inventory_hostname"] = host.Name
		if _, ok := entry["ansible_host"]; !ok {
			entry["ansible_host"] = host.Name
		}
		hostvars[host.Name] = entry
	}

	return hostvars
}

// dateTimeVars 构建 ansible_date_time 映射
func dateTimeVars(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"date":    now.Format("2006-01-02"),
		"time":    now.Format("15:04:05"),
		"iso8601": now.UTC().Format("2006-01-02T15:04:05Z"),
		"epoch":   strconv.FormatInt(now.Unix(), 10),
		"year":    now.Format("2006"),
		"month":   now.Format("01"),
		"day":     now.Format("02"),
		"hour":    now.Format("15"),
		"minute":  now.Format("04"),
		"second":  now.Format("05"),
		"weekday": now.Weekday().String(),
		"tz":      now.Format("MST"),
	}
}
