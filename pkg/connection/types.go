package connection

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Conn 是到目标主机的执行通道，实现有 SSH 和本地两种
type Conn interface {
	// Exec 在目标上执行命令，返回输出和退出码。
	// 命令以非零退出码结束不算错误，err 只表示通道层面的失败。
	Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error)

	// ExecBecome 以提权身份执行命令
	ExecBecome(ctx context.Context, cmd, becomeUser, becomeMethod string) (stdout, stderr []byte, exitCode int, err error)

	// WriteFile 将内容原子写入远程路径（先写临时文件再重命名）
	WriteFile(ctx context.Context, data []byte, remotePath string, mode os.FileMode) error

	// Close 关闭连接
	Close() error
}

// becomeCommand 构建提权命令行
func becomeCommand(cmd, becomeUser, becomeMethod string) (string, error) {
	if becomeUser == "" {
		becomeUser = "root"
	}
	if becomeMethod == "" {
		becomeMethod = "sudo"
	}

	// -n 避免密码提示（依赖 NOPASSWD 配置）
	switch becomeMethod {
	case "sudo":
		if becomeUser == "root" {
			return fmt.Sprintf("sudo -n sh -c %s", shellQuote(cmd)), nil
		}
		return fmt.Sprintf("sudo -n -u %s sh -c %s", becomeUser, shellQuote(cmd)), nil
	case "su":
		return fmt.Sprintf("su - %s -c %s", becomeUser, shellQuote(cmd)), nil
	default:
		return "", fmt.Errorf("unsupported become method: %s", becomeMethod)
	}
}

// shellQuote 为 shell 命令添加引号
func shellQuote(s string) string {
	// 使用单引号，并转义内部的单引号
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
