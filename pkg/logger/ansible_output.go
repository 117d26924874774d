package logger

import (
	"fmt"
	"os"
	"strings"
)

// AnsibleLogger Ansible 风格的日志输出
type AnsibleLogger struct {
	quiet bool
}

// NewAnsibleLogger 创建 Ansible 风格的日志记录器
func NewAnsibleLogger(quiet bool) *AnsibleLogger {
	return &AnsibleLogger{
		quiet: quiet,
	}
}

// 颜色代码
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
)

// PlayHeader 打印 Play 头部
func (a *AnsibleLogger) PlayHeader(playName string) {
	if a.quiet {
		return
	}
	header := fmt.Sprintf("\nPLAY [%s] %s\n", playName, strings.Repeat("*", 44))
	fmt.Print(header)
}

// TaskHeader 打印任务头部
func (a *AnsibleLogger) TaskHeader(taskName string) {
	if a.quiet {
		return
	}
	header := fmt.Sprintf("TASK [%s] %s", taskName, strings.Repeat("*", 44))
	fmt.Println(header)
}

// HandlerHeader 打印 Handler 头部
func (a *AnsibleLogger) HandlerHeader(handlerName string) {
	if a.quiet {
		return
	}
	header := fmt.Sprintf("RUNNING HANDLER [%s] %s", handlerName, strings.Repeat("*", 44))
	fmt.Println(header)
}

// TaskResult 打印任务结果
func (a *AnsibleLogger) TaskResult(host, msg string, changed, failed, skipped, ignored bool) {
	if a.quiet && !failed {
		return
	}

	var color, statusText string

	switch {
	case failed && ignored:
		statusText = "FAILED"
		color = ColorRed
		msg = msg + " ...ignoring"
	case failed:
		statusText = "FAILED"
		color = ColorRed
	case skipped:
		statusText = "skipped"
		color = ColorCyan
	case changed:
		statusText = "changed"
		color = ColorYellow
	default:
		statusText = "ok"
		color = ColorGreen
	}

	// 控制台输出 - Ansible 风格
	output := fmt.Sprintf("%s: [%s] => %s%s%s", statusText, host, color, msg, ColorReset)
	fmt.Println(output)
}

// ItemResult 打印循环中单个 item 的结果
func (a *AnsibleLogger) ItemResult(host string, item interface{}, msg string, changed, failed, skipped, ignored bool) {
	a.TaskResult(host, fmt.Sprintf("(item=%v) %s", item, msg), changed, failed, skipped, ignored)
}

// PlayRecap 打印 Play 总结，按 hosts 顺序输出
func (a *AnsibleLogger) PlayRecap(hosts []string, stats map[string]*PlayStats) {
	if a.quiet {
		return
	}

	fmt.Println("\nPLAY RECAP " + strings.Repeat("*", 44))

	for _, host := range hosts {
		stat := stats[host]
		if stat == nil {
			continue
		}
		statusColor := ColorGreen
		if !stat.IsSuccess() {
			statusColor = ColorRed
		} else if stat.Changed > 0 {
			statusColor = ColorYellow
		}

		output := fmt.Sprintf("%s%-20s%s : %s",
			statusColor, host, ColorReset, stat.String())
		fmt.Println(output)
	}

	fmt.Println()
}

// Warning 打印警告信息
func (a *AnsibleLogger) Warning(msg string) {
	if a.quiet {
		return
	}
	fmt.Printf("%s[WARNING]: %s%s\n", ColorYellow, msg, ColorReset)
}

// Error 打印错误信息
func (a *AnsibleLogger) Error(msg string) {
	fmt.Printf("%s[ERROR]: %s%s\n", ColorRed, msg, ColorReset)
}

// Fatal 打印致命错误并退出
func (a *AnsibleLogger) Fatal(msg string) {
	fmt.Printf("%s[FATAL]: %s%s\n", ColorRed, msg, ColorReset)
	os.Exit(1)
}

// Info 打印信息
func (a *AnsibleLogger) Info(msg string) {
	if a.quiet {
		return
	}
	fmt.Println(msg)
}

// PlayStats Play 统计信息
type PlayStats struct {
	Ok          int
	Changed     int
	Unreachable int
	Failed      int
	Skipped     int
	Ignored     int
}

// IsSuccess 检查是否成功
func (s *PlayStats) IsSuccess() bool {
	return s.Failed == 0 && s.Unreachable == 0
}

// String 返回统计信息字符串
func (s *PlayStats) String() string {
	return fmt.Sprintf("ok=%d changed=%d unreachable=%d failed=%d skipped=%d rescued=0 ignored=%d",
		s.Ok, s.Changed, s.Unreachable, s.Failed, s.Skipped, s.Ignored)
}
