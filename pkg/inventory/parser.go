package inventory

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/LeeXN/gosible/pkg/errors"
)

// Parser 是 Inventory 解析器接口
type Parser interface {
	Parse(filePath string) (*Inventory, error)
}

// INIParser 解析 INI 格式的 inventory
type INIParser struct{}

// NewINIParser 创建一个新的 INI 解析器
func NewINIParser() *INIParser {
	return &INIParser{}
}

// Parse 解析 INI 格式的 inventory 文件
func (p *INIParser) Parse(filePath string) (*Inventory, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.NewParseError(filePath, err)
	}

	inv, err := p.ParseData(data)
	if err != nil {
		return nil, errors.NewParseError(filePath, err)
	}
	return inv, nil
}

// ParseData 解析 INI 格式的 inventory 内容
func (p *INIParser) ParseData(data []byte) (*Inventory, error) {
	inv := NewInventory()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	currentSection := ""
	currentGroup := ""

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// 跳过空行和注释
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		// 解析 section header [groupname] 或 [groupname:vars] 或 [groupname:children]
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section := line[1 : len(line)-1]

			switch {
			case strings.HasSuffix(section, ":vars"):
				currentGroup = strings.TrimSuffix(section, ":vars")
				currentSection = "vars"
			case strings.HasSuffix(section, ":children"):
				currentGroup = strings.TrimSuffix(section, ":children")
				currentSection = "children"
			default:
				currentGroup = section
				currentSection = "hosts"
			}

			inv.ensureGroup(currentGroup)
			continue
		}

		if err := p.parseLine(inv, line, currentSection, currentGroup, lineNum); err != nil {
			return nil, err
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// 后处理：校验组关系并合并变量
	if err := p.postProcess(inv); err != nil {
		return nil, err
	}

	return inv, nil
}

// parseLine 解析单行内容
func (p *INIParser) parseLine(inv *Inventory, line, section, group string, lineNum int) error {
	switch section {
	case "hosts":
		return p.parseHost(inv, line, group)
	case "vars":
		return p.parseGroupVar(inv, line, group, lineNum)
	case "children":
		return p.parseChild(inv, line, group)
	default:
		// 文件开头、未进入任何 section 的主机归入 ungrouped
		return p.parseHost(inv, line, "ungrouped")
	}
}

// parseHost 解析主机行，格式: hostname[:port] [key=value key="v v" ...]
func (p *INIParser) parseHost(inv *Inventory, line, group string) error {
	parts := splitFields(line)
	if len(parts) == 0 {
		return nil
	}

	hostname := parts[0]
	vars := make(map[string]interface{})

	// hostname:2222 形式携带 SSH 端口
	if idx := strings.LastIndex(hostname, ":"); idx > 0 {
		if port, err := strconv.Atoi(hostname[idx+1:]); err == nil {
			vars["ansible_port"] = port
			hostname = hostname[:idx]
		}
	}

	// 解析行内变量
	for _, part := range parts[1:] {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return fmt.Errorf("invalid host variable %q on host %s", part, hostname)
		}
		vars[kv[0]] = parseScalarValue(kv[1])
	}

	// 创建或更新主机
	host, exists := inv.Hosts[hostname]
	if !exists {
		host = &Host{
			Name:   hostname,
			Vars:   vars,
			Groups: []string{},
		}
		inv.Hosts[hostname] = host
	} else {
		for k, v := range vars {
			host.Vars[k] = v
		}
	}

	// 添加到组
	if group != "" {
		if !contains(host.Groups, group) {
			host.Groups = append(host.Groups, group)
		}
		g := inv.ensureGroup(group)
		if !contains(g.Hosts, hostname) {
			g.Hosts = append(g.Hosts, hostname)
		}
	}

	// 添加到 all 组，all 组的 Hosts 顺序即全局声明顺序
	if !contains(inv.Groups["all"].Hosts, hostname) {
		inv.Groups["all"].Hosts = append(inv.Groups["all"].Hosts, hostname)
	}

	return nil
}

// parseGroupVar 解析组变量
func (p *INIParser) parseGroupVar(inv *Inventory, line string, group string, lineNum int) error {
	kv := strings.SplitN(line, "=", 2)
	if len(kv) != 2 {
		return fmt.Errorf("invalid variable line %d: %s", lineNum, line)
	}

	key := strings.TrimSpace(kv[0])
	value := strings.TrimSpace(kv[1])

	inv.ensureGroup(group).Vars[key] = parseScalarValue(value)
	return nil
}

// parseChild 解析子组
func (p *INIParser) parseChild(inv *Inventory, line, group string) error {
	childName := strings.TrimSpace(line)

	child := inv.ensureGroup(childName)
	parent := inv.ensureGroup(group)

	if !contains(parent.Children, childName) {
		parent.Children = append(parent.Children, childName)
	}
	if !contains(child.Parents, group) {
		child.Parents = append(child.Parents, group)
	}

	return nil
}

// postProcess 后处理：检测组环、计算深度、按优先级合并变量
func (p *INIParser) postProcess(inv *Inventory) error {
	if err := detectGroupCycles(inv); err != nil {
		return err
	}

	depths := groupDepths(inv)

	// 有其他组的主机从 ungrouped 中移除
	for _, host := range inv.Hosts {
		if len(host.Groups) > 1 && contains(host.Groups, "ungrouped") {
			host.Groups = removeString(host.Groups, "ungrouped")
			ug := inv.Groups["ungrouped"]
			ug.Hosts = removeString(ug.Hosts, host.Name)
		}
	}

	// 为每个主机合并变量（按优先级 all < 父组 < 子组 < 主机）
	for _, host := range inv.Hosts {
		host.Vars = p.mergeHostVars(inv, host, depths)
	}

	return nil
}

// mergeHostVars 合并主机的所有变量
func (p *INIParser) mergeHostVars(inv *Inventory, host *Host, depths map[string]int) map[string]interface{} {
	result := make(map[string]interface{})

	// 1. all 组变量（最低优先级）
	if allGroup, exists := inv.Groups["all"]; exists {
		for k, v := range allGroup.Vars {
			result[k] = v
		}
	}

	// 2. 所属组及其祖先组，按深度从浅到深应用（父组在前，子组覆盖）
	for _, groupName := range ancestryOrdered(inv, host.Groups, depths) {
		if group, exists := inv.Groups[groupName]; exists {
			for k, v := range group.Vars {
				result[k] = v
			}
		}
	}

	// 3. 主机自身变量（最高优先级）
	for k, v := range host.Vars {
		result[k] = v
	}

	return result
}

// detectGroupCycles 沿 Children 边做三色 DFS，发现环即报错
func detectGroupCycles(inv *Inventory) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case gray:
			return fmt.Errorf("circular group dependency detected involving group %q", name)
		case black:
			return nil
		}
		color[name] = gray
		if g, exists := inv.Groups[name]; exists {
			for _, child := range g.Children {
				if err := visit(child); err != nil {
					return err
				}
			}
		}
		color[name] = black
		return nil
	}

	for name := range inv.Groups {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// groupDepths 计算每个组到 all 的深度，用于变量应用顺序
func groupDepths(inv *Inventory) map[string]int {
	depths := make(map[string]int)
	depths["all"] = 0

	var depth func(name string, seen map[string]bool) int
	depth = func(name string, seen map[string]bool) int {
		if d, ok := depths[name]; ok {
			return d
		}
		if seen[name] {
			return 1
		}
		seen[name] = true

		g, exists := inv.Groups[name]
		if !exists || len(g.Parents) == 0 {
			depths[name] = 1
			return 1
		}
		max := 0
		for _, parent := range g.Parents {
			if d := depth(parent, seen); d > max {
				max = d
			}
		}
		depths[name] = max + 1
		return max + 1
	}

	for name := range inv.Groups {
		depth(name, make(map[string]bool))
	}
	return depths
}

// ancestryOrdered 展开 groups 的全部祖先组（不含 all），按深度从浅到深排序
func ancestryOrdered(inv *Inventory, groups []string, depths map[string]int) []string {
	var ordered []string
	seen := make(map[string]bool)

	var expand func(name string)
	expand = func(name string) {
		if name == "all" || seen[name] {
			return
		}
		seen[name] = true
		if g, exists := inv.Groups[name]; exists {
			for _, parent := range g.Parents {
				expand(parent)
			}
		}
		ordered = append(ordered, name)
	}

	for _, name := range groups {
		expand(name)
	}

	// 插入排序保持同深度组的先后关系
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && depths[ordered[j-1]] > depths[ordered[j]]; j-- {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
		}
	}
	return ordered
}

// splitFields 按空白切分一行，但保留引号内的空白
func splitFields(line string) []string {
	var fields []string
	var cur strings.Builder
	var quote rune

	for _, r := range line {
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
			cur.WriteRune(r)
		case r == ' ' || r == '\t':
			if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}

// parseScalarValue 将裸标量转换成 bool/int/float，带引号的保持字符串
func parseScalarValue(raw string) interface{} {
	if len(raw) >= 2 {
		if (raw[0] == '"' && raw[len(raw)-1] == '"') || (raw[0] == '\'' && raw[len(raw)-1] == '\'') {
			return raw[1 : len(raw)-1]
		}
	}
	if raw == "" {
		return ""
	}

	var v interface{}
	if err := yaml.Unmarshal([]byte(raw), &v); err == nil {
		switch v.(type) {
		case bool, int, int64, float64:
			return v
		}
	}
	return raw
}

// contains 检查切片是否包含元素
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// removeString 返回去掉 item 后的切片
func removeString(slice []string, item string) []string {
	out := slice[:0]
	for _, s := range slice {
		if s != item {
			out = append(out, s)
		}
	}
	return out
}
