package facts

import (
	"context"
	"fmt"
	"strings"

	"github.com/LeeXN/gosible/pkg/connection"
)

// Facts 收集到的主机事实
type Facts map[string]interface{}

// Gather 通过连接收集目标主机的系统信息。
// 本地目标走进程内采集路径，信息更全且无需起子进程。
func Gather(ctx context.Context, conn connection.Conn, local bool) (Facts, error) {
	if local {
		return gatherLocal()
	}
	return gatherRemote(ctx, conn)
}

// gatherRemote 用可移植的 shell 探针远程收集事实
func gatherRemote(ctx context.Context, conn connection.Conn) (Facts, error) {
	facts := make(Facts)

	system, err := probe(ctx, conn, "uname -s")
	if err != nil {
		return nil, fmt.Errorf("failed to gather system facts: %w", err)
	}
	facts["ansible_system"] = system

	arch, err := probe(ctx, conn, "uname -m")
	if err != nil {
		return nil, fmt.Errorf("failed to gather architecture facts: %w", err)
	}
	facts["ansible_architecture"] = arch

	if kernel, err := probe(ctx, conn, "uname -r"); err == nil {
		facts["ansible_kernel"] = kernel
	}
	if hostname, err := probe(ctx, conn, "hostname"); err == nil {
		facts["ansible_hostname"] = hostname
	}

	if system == "Linux" {
		// 有些系统没有标准的 release 文件，探测失败不算错误
		gatherDistribution(ctx, conn, facts)
	}

	return facts, nil
}

// probe 执行命令并返回去掉首尾空白的 stdout
func probe(ctx context.Context, conn connection.Conn, cmd string) (string, error) {
	stdout, _, rc, err := conn.Exec(ctx, cmd)
	if err != nil {
		return "", err
	}
	if rc != 0 {
		return "", fmt.Errorf("%s exited with %d", cmd, rc)
	}
	return strings.TrimSpace(string(stdout)), nil
}

// gatherDistribution 从常见的 release 文件填充发行版事实
func gatherDistribution(ctx context.Context, conn connection.Conn, facts Facts) {
	if content, err := probe(ctx, conn, "cat /etc/os-release"); err == nil {
		parseOSRelease(content, facts)
		return
	}
	if content, err := probe(ctx, conn, "cat /etc/lsb-release"); err == nil {
		parseLSBRelease(content, facts)
		return
	}
	if content, err := probe(ctx, conn, "cat /etc/redhat-release"); err == nil {
		parseRedHatRelease(content, facts)
	}
}

// parseOSRelease 解析 /etc/os-release 格式
func parseOSRelease(content string, facts Facts) {
	osInfo := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), "\"")
		osInfo[key] = value
	}

	if id, ok := osInfo["ID"]; ok {
		facts["ansible_distribution"] = capitalize(id)
	} else if name, ok := osInfo["NAME"]; ok {
		facts["ansible_distribution"] = name
	}

	if version, ok := osInfo["VERSION_ID"]; ok {
		facts["ansible_distribution_version"] = version
		facts["ansible_distribution_major_version"] = strings.Split(version, ".")[0]
	}

	if idLike, ok := osInfo["ID_LIKE"]; ok {
		facts["ansible_os_family"] = osFamily(idLike)
	} else if id, ok := osInfo["ID"]; ok {
		facts["ansible_os_family"] = osFamily(id)
	}
}

// parseLSBRelease 解析 /etc/lsb-release 格式
func parseLSBRelease(content string, facts Facts) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), "\"")

		switch key {
		case "DISTRIB_ID":
			facts["ansible_distribution"] = value
		case "DISTRIB_RELEASE":
			facts["ansible_distribution_version"] = value
			facts["ansible_distribution_major_version"] = strings.Split(value, ".")[0]
		}
	}

	if dist, ok := facts["ansible_distribution"].(string); ok {
		facts["ansible_os_family"] = osFamily(dist)
	}
}

// parseRedHatRelease 解析老式的 /etc/redhat-release 格式，
// 例如 "CentOS Linux release 7.9.2009 (Core)"
func parseRedHatRelease(content string, facts Facts) {
	content = strings.TrimSpace(content)
	lower := strings.ToLower(content)

	switch {
	case strings.Contains(lower, "centos"):
		facts["ansible_distribution"] = "CentOS"
		facts["ansible_os_family"] = "RedHat"
	case strings.Contains(lower, "red hat"):
		facts["ansible_distribution"] = "RedHat"
		facts["ansible_os_family"] = "RedHat"
	case strings.Contains(lower, "fedora"):
		facts["ansible_distribution"] = "Fedora"
		facts["ansible_os_family"] = "RedHat"
	}

	words := strings.Fields(content)
	for i, word := range words {
		if strings.EqualFold(word, "release") && i+1 < len(words) {
			version := words[i+1]
			facts["ansible_distribution_version"] = version
			facts["ansible_distribution_major_version"] = strings.Split(version, ".")[0]
			break
		}
	}
}

// osFamily 把发行版 ID（或 ID_LIKE 列表）映射到所属家族
func osFamily(distID string) string {
	distID = strings.ToLower(distID)

	switch {
	case strings.Contains(distID, "debian"), strings.Contains(distID, "ubuntu"):
		return "Debian"
	case strings.Contains(distID, "rhel"), strings.Contains(distID, "centos"),
		strings.Contains(distID, "fedora"), strings.Contains(distID, "red hat"):
		return "RedHat"
	case strings.Contains(distID, "arch"):
		return "Arch"
	case strings.Contains(distID, "alpine"):
		return "Alpine"
	case strings.Contains(distID, "suse"):
		return "Suse"
	default:
		return "Unknown"
	}
}

// capitalize 首字母大写，跟事实值的命名习惯保持一致
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
