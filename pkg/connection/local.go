package connection

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalConnection 在控制节点本地执行命令，localhost 与
// ansible_connection=local 的主机走这条通道。
type LocalConnection struct{}

// NewLocalConnection 创建本地连接
func NewLocalConnection() *LocalConnection {
	return &LocalConnection{}
}

// Exec 通过 sh -c 在本地执行命令
func (l *LocalConnection) Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	command := exec.CommandContext(ctx, "sh", "-c", cmd)

	var stdoutBuf, stderrBuf bytes.Buffer
	command.Stdout = &stdoutBuf
	command.Stderr = &stderrBuf

	runErr := command.Run()
	stdout = stdoutBuf.Bytes()
	stderr = stderrBuf.Bytes()

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return stdout, stderr, exitErr.ExitCode(), nil
		}
		return stdout, stderr, -1, runErr
	}
	return stdout, stderr, 0, nil
}

// ExecBecome 使用权限提升在本地执行命令
func (l *LocalConnection) ExecBecome(ctx context.Context, cmd, becomeUser, becomeMethod string) (stdout, stderr []byte, exitCode int, err error) {
	becomeCmd, err := becomeCommand(cmd, becomeUser, becomeMethod)
	if err != nil {
		return nil, nil, -1, err
	}
	return l.Exec(ctx, becomeCmd)
}

// WriteFile 原子写入本地文件
func (l *LocalConnection) WriteFile(ctx context.Context, data []byte, path string, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".gosible-%s", uuid.NewString()[:8]))

	if err := os.WriteFile(tmpPath, data, mode); err != nil {
		return err
	}
	// WriteFile 的 mode 受 umask 影响，显式修正
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Close 本地连接无需关闭
func (l *LocalConnection) Close() error {
	return nil
}
