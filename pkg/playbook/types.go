package playbook

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/LeeXN/gosible/pkg/errors"
	"github.com/LeeXN/gosible/pkg/module"
)

// Playbook 是按顺序执行的 Play 列表
type Playbook []*Play

// Play 把一个主机模式绑定到一组任务
type Play struct {
	Name         string                 `yaml:"name"`
	Hosts        string                 `yaml:"hosts"`
	Become       bool                   `yaml:"become"`
	BecomeUser   string                 `yaml:"become_user"`
	BecomeMethod string                 `yaml:"become_method"`
	GatherFacts  bool                   `yaml:"gather_facts"`
	FailFast     bool                   `yaml:"fail_fast"`
	Vars         map[string]interface{} `yaml:"vars"`
	Tasks        []*Task                `yaml:"tasks"`
	Handlers     []*Task                `yaml:"handlers"`
}

// LoopControl 调整循环的变量绑定
type LoopControl struct {
	LoopVar  string `yaml:"loop_var"`  // item 的别名，默认 item
	IndexVar string `yaml:"index_var"` // 循环下标变量名，默认不暴露
}

// Task 一条声明的动作及其控制属性。
// Become 用指针区分“任务没写”与“任务显式关闭”，
// 没写时继承 play 级设置。
type Task struct {
	Name         string
	Module       string
	Args         map[string]interface{}
	Register     string
	When         []string
	Loop         interface{} // 序列或渲染后得到序列的模板串，nil 表示无循环
	LoopControl  LoopControl
	Notify       []string
	Vars         map[string]interface{}
	IgnoreErrors bool
	Become       *bool
	BecomeUser   string
	BecomeMethod string
}

// reservedTaskKeys 任务映射里不是模块名的键
var reservedTaskKeys = map[string]bool{
	"name":          true,
	"register":      true,
	"when":          true,
	"loop":          true,
	"with_items":    true,
	"loop_control":  true,
	"notify":        true,
	"vars":          true,
	"ignore_errors": true,
	"become":        true,
	"become_user":   true,
	"become_method": true,
	"tags":          true,
}

// UnmarshalYAML 解析任务：先取控制属性，
// 再把第一个非保留键当作模块名
func (t *Task) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("task must be a mapping, got %s", nodeKindName(node.Kind))
	}

	type taskFields struct {
		Name         string                 `yaml:"name"`
		Register     string                 `yaml:"register"`
		When         yaml.Node              `yaml:"when"`
		Loop         interface{}            `yaml:"loop"`
		WithItems    interface{}            `yaml:"with_items"`
		LoopControl  LoopControl            `yaml:"loop_control"`
		Notify       yaml.Node              `yaml:"notify"`
		Vars         map[string]interface{} `yaml:"vars"`
		IgnoreErrors interface{}            `yaml:"ignore_errors"`
		Become       *bool                  `yaml:"become"`
		BecomeUser   string                 `yaml:"become_user"`
		BecomeMethod string                 `yaml:"become_method"`
	}

	var fields taskFields
	if err := node.Decode(&fields); err != nil {
		return err
	}

	t.Name = fields.Name
	t.Register = fields.Register
	t.LoopControl = fields.LoopControl
	t.Vars = fields.Vars
	t.IgnoreErrors = module.FlexBool(fields.IgnoreErrors, false)
	t.Become = fields.Become
	t.BecomeUser = fields.BecomeUser
	t.BecomeMethod = fields.BecomeMethod

	// loop 和 with_items 等价，两个都写按 loop 算
	t.Loop = fields.Loop
	if t.Loop == nil {
		t.Loop = fields.WithItems
	}

	var err error
	if t.When, err = stringOrList(&fields.When, "when"); err != nil {
		return err
	}
	if t.Notify, err = stringOrList(&fields.Notify, "notify"); err != nil {
		return err
	}

	// 映射里第一个非保留键是模块名
	for i := 0; i < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if reservedTaskKeys[keyNode.Value] {
			continue
		}
		if t.Module != "" {
			return fmt.Errorf("task %q has multiple modules: %s and %s", t.Name, t.Module, keyNode.Value)
		}
		t.Module = keyNode.Value

		args, err := moduleArgs(t.Module, valueNode)
		if err != nil {
			return fmt.Errorf("task %q: %w", t.Name, err)
		}
		t.Args = args
	}

	if t.Module == "" {
		return fmt.Errorf("task %q has no module", t.Name)
	}
	if t.Args == nil {
		t.Args = make(map[string]interface{})
	}
	return nil
}

// moduleArgs 解析模块键的值。
// 标量是 shorthand：command: uptime 变成 _raw_params，
// debug 的 shorthand 按惯例落到 msg。
func moduleArgs(moduleName string, node *yaml.Node) (map[string]interface{}, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		args := make(map[string]interface{})
		if node.Value != "" && node.Tag != "!!null" {
			if moduleName == "debug" {
				args["msg"] = node.Value
			} else {
				args["_raw_params"] = node.Value
			}
		}
		return args, nil
	case yaml.MappingNode:
		var args map[string]interface{}
		if err := node.Decode(&args); err != nil {
			return nil, fmt.Errorf("invalid args for module %s: %w", moduleName, err)
		}
		return args, nil
	default:
		return nil, fmt.Errorf("args for module %s must be a string or mapping", moduleName)
	}
}

// stringOrList 把标量或列表形式的属性统一为字符串列表
func stringOrList(node *yaml.Node, attr string) ([]string, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}

	switch node.Kind {
	case yaml.ScalarNode:
		if strings.TrimSpace(node.Value) == "" {
			return nil, nil
		}
		return []string{node.Value}, nil
	case yaml.SequenceNode:
		var items []string
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%s list entries must be strings", attr)
			}
			items = append(items, item.Value)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("%s must be a string or list of strings", attr)
	}
}

func nodeKindName(kind yaml.Kind) string {
	switch kind {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	default:
		return "unknown"
	}
}

// Parse 解析 playbook 文档。支持多文档 YAML，
// 每个文档可以是 play 列表或单个 play 映射。
func Parse(data []byte) (Playbook, error) {
	var playbook Playbook

	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	for {
		var doc yaml.Node
		if err := decoder.Decode(&doc); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to parse playbook: %w", err)
		}

		root := &doc
		if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
			root = root.Content[0]
		}

		// 空文档跳过
		if root.Kind == 0 || root.Tag == "!!null" {
			continue
		}

		switch root.Kind {
		case yaml.SequenceNode:
			var plays []*Play
			if err := root.Decode(&plays); err != nil {
				return nil, fmt.Errorf("failed to parse playbook: %w", err)
			}
			playbook = append(playbook, plays...)
		case yaml.MappingNode:
			var play Play
			if err := root.Decode(&play); err != nil {
				return nil, fmt.Errorf("failed to parse playbook: %w", err)
			}
			playbook = append(playbook, &play)
		default:
			return nil, fmt.Errorf("playbook document must be a play or list of plays")
		}
	}

	for _, play := range playbook {
		if play.Vars == nil {
			play.Vars = make(map[string]interface{})
		}
	}
	return playbook, nil
}

// Load 从文件加载并校验 playbook
func Load(path string, registry *module.Registry) (Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewParseError(path, err)
	}

	playbook, err := Parse(data)
	if err != nil {
		return nil, errors.NewParseError(path, err)
	}

	if err := playbook.Validate(registry); err != nil {
		return nil, errors.NewParseError(path, err)
	}
	return playbook, nil
}

// Validate 做加载期检查：模块名必须已注册，
// notify 必须指向本 play 声明的 handler。
// 这些错误在任何主机被触碰之前就让整次运行失败。
func (p Playbook) Validate(registry *module.Registry) error {
	for _, play := range p {
		if play.Hosts == "" {
			return fmt.Errorf("play %q has no hosts pattern", play.Name)
		}

		handlerNames := make(map[string]bool, len(play.Handlers))
		for _, handler := range play.Handlers {
			if handler.Name == "" {
				return fmt.Errorf("play %q: handlers must be named", play.Name)
			}
			if handlerNames[handler.Name] {
				return fmt.Errorf("play %q: duplicate handler %q", play.Name, handler.Name)
			}
			handlerNames[handler.Name] = true
		}

		for _, task := range append(append([]*Task{}, play.Tasks...), play.Handlers...) {
			if registry != nil && !registry.Has(task.Module) {
				return fmt.Errorf("task %q uses unknown module %q", task.DisplayName(), task.Module)
			}
			for _, notify := range task.Notify {
				if !handlerNames[notify] {
					return fmt.Errorf("task %q notifies unknown handler %q", task.DisplayName(), notify)
				}
			}
		}
	}
	return nil
}

// DisplayName 任务的展示名，没写 name 时用模块名
func (t *Task) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Module
}

// LoopVar 循环项绑定的变量名
func (t *Task) LoopVar() string {
	if t.LoopControl.LoopVar != "" {
		return t.LoopControl.LoopVar
	}
	return "item"
}

// ExecOptions 计算任务生效的提权设置，任务级覆盖 play 级
func (t *Task) ExecOptions(play *Play) module.ExecOptions {
	opts := module.ExecOptions{
		Become:       play.Become,
		BecomeUser:   play.BecomeUser,
		BecomeMethod: play.BecomeMethod,
	}
	if t.Become != nil {
		opts.Become = *t.Become
	}
	if t.BecomeUser != "" {
		opts.BecomeUser = t.BecomeUser
	}
	if t.BecomeMethod != "" {
		opts.BecomeMethod = t.BecomeMethod
	}
	return opts
}
