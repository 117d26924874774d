package inventory

import (
	"fmt"
	"sort"
	"strings"
)

// Manager 是 Inventory 管理器
type Manager struct {
	inventory *Inventory
}

// NewManager 创建一个新的 Manager
func NewManager() *Manager {
	return &Manager{inventory: NewInventory()}
}

// Load 加载 inventory 文件
func (m *Manager) Load(path string) error {
	// 根据文件扩展名选择解析器
	var parser Parser
	if strings.HasSuffix(path, ".yml") || strings.HasSuffix(path, ".yaml") {
		return fmt.Errorf("YAML inventory not supported, use INI format")
	}
	parser = NewINIParser()

	inv, err := parser.Parse(path)
	if err != nil {
		return err
	}

	m.inventory = inv
	return nil
}

// LoadData 从内存数据解析 INI inventory
func (m *Manager) LoadData(data []byte) error {
	inv, err := NewINIParser().ParseData(data)
	if err != nil {
		return err
	}

	m.inventory = inv
	return nil
}

// GetHost 获取单个主机
func (m *Manager) GetHost(name string) (*Host, error) {
	host, exists := m.inventory.Hosts[name]
	if !exists {
		if isLocalhostName(name) {
			return localhostHost(name), nil
		}
		return nil, fmt.Errorf("host not found: %s", name)
	}
	return host, nil
}

// GetHosts 按模式解析主机列表。模式可以是 all、组名、主机名，
// 或它们的逗号组合；多个片段取并集并按首次出现去重。
// 未匹配任何主机返回空列表，不是错误。
func (m *Manager) GetHosts(pattern string) []*Host {
	var hosts []*Host
	seen := make(map[string]bool)

	add := func(h *Host) {
		if h != nil && !seen[h.Name] {
			seen[h.Name] = true
			hosts = append(hosts, h)
		}
	}

	for _, token := range strings.Split(pattern, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		if token == "all" || token == "*" {
			for _, name := range m.inventory.Groups["all"].Hosts {
				add(m.inventory.Hosts[name])
			}
			continue
		}

		if group, exists := m.inventory.Groups[token]; exists {
			for _, name := range m.collectGroupHosts(group) {
				add(m.inventory.Hosts[name])
			}
			continue
		}

		if host, exists := m.inventory.Hosts[token]; exists {
			add(host)
			continue
		}

		// localhost 不在 inventory 中也始终可用，走本地执行
		if isLocalhostName(token) {
			add(localhostHost(token))
		}
	}

	return hosts
}

// GetGroup 获取组
func (m *Manager) GetGroup(name string) (*Group, error) {
	group, exists := m.inventory.Groups[name]
	if !exists {
		return nil, fmt.Errorf("group not found: %s", name)
	}
	return group, nil
}

// HostNames 返回全部主机名，按声明顺序
func (m *Manager) HostNames() []string {
	return append([]string(nil), m.inventory.Groups["all"].Hosts...)
}

// GroupNames 返回全部组名，按字典序
func (m *Manager) GroupNames() []string {
	names := make([]string, 0, len(m.inventory.Groups))
	for name := range m.inventory.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GroupsMap 返回组名到主机名列表的映射（含子组主机），供 groups 魔法变量使用
func (m *Manager) GroupsMap() map[string][]string {
	result := make(map[string][]string, len(m.inventory.Groups))
	for name, group := range m.inventory.Groups {
		result[name] = m.collectGroupHosts(group)
	}
	return result
}

// collectGroupHosts 递归收集组中的所有主机
func (m *Manager) collectGroupHosts(group *Group) []string {
	hostnames := make([]string, 0)
	seen := make(map[string]bool)

	var collect func(*Group)
	collect = func(g *Group) {
		// 添加直接主机
		for _, hostname := range g.Hosts {
			if !seen[hostname] {
				hostnames = append(hostnames, hostname)
				seen[hostname] = true
			}
		}

		// 递归处理子组
		for _, childName := range g.Children {
			if child, exists := m.inventory.Groups[childName]; exists {
				collect(child)
			}
		}
	}

	collect(group)
	return hostnames
}

// isLocalhostName 判断是否为本机地址
func isLocalhostName(name string) bool {
	return name == "localhost" || name == "127.0.0.1" || name == "::1"
}

// localhostHost 构造隐式 localhost 主机
func localhostHost(name string) *Host {
	return &Host{
		Name: name,
		Vars: map[string]interface{}{
			"ansible_connection": "local",
		},
		Groups: []string{},
	}
}
