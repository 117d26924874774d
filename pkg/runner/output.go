package runner

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatResults 按 Ansible 风格格式化 ad-hoc 结果。
// 不重新排序，保持调用方给出的主机顺序。
func FormatResults(results []TaskResult) string {
	var b strings.Builder

	for _, result := range results {
		status := "SUCCESS"
		color := "\033[32m" // 绿色

		if result.ModuleResult.Unreachable {
			status = "UNREACHABLE"
			color = "\033[31m" // 红色
		} else if result.ModuleResult.Failed {
			status = "FAILED"
			color = "\033[31m" // 红色
		} else if result.ModuleResult.Changed {
			status = "CHANGED"
			color = "\033[33m" // 黄色
		}

		jsonData, err := json.Marshal(result.ModuleResult.ToMap())
		if err != nil {
			jsonData = []byte(fmt.Sprintf(`{"error": "failed to marshal result: %v"}`, err))
		}

		fmt.Fprintf(&b, "%s | %s%s\033[0m => %s\n",
			result.Host,
			color,
			status,
			string(jsonData))
	}

	return b.String()
}
