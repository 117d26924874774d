package connection

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"github.com/spf13/cast"
	"golang.org/x/crypto/ssh"

	"github.com/LeeXN/gosible/pkg/errors"
	"github.com/LeeXN/gosible/pkg/inventory"
)

// SSHConnection 表示一个 SSH 连接
type SSHConnection struct {
	client *ssh.Client
	sftpc  *sftp.Client
	host   *inventory.Host
}

// DialSSH 根据主机变量建立 SSH 连接
func DialSSH(host *inventory.Host, timeout time.Duration) (*SSHConnection, error) {
	// 从 host.Vars 获取连接参数
	ansibleHost := firstVar(host, "ansible_host", "ansible_ssh_host")
	if ansibleHost == "" {
		ansibleHost = host.Name
	}

	port := 22
	if p := cast.ToInt(firstVarValue(host, "ansible_port", "ansible_ssh_port")); p > 0 {
		port = p
	}

	user := firstVar(host, "ansible_user", "ansible_ssh_user")
	if user == "" {
		user = "root"
	}

	password := firstVar(host, "ansible_password", "ansible_ssh_pass")
	keyFile := firstVar(host, "ansible_ssh_private_key_file", "ansible_private_key_file")

	// 构建 SSH 配置
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // 测试用，生产环境应该验证
		Timeout:         timeout,
	}

	// 添加认证方式
	if password != "" {
		config.Auth = append(config.Auth, ssh.Password(password))
	}

	if keyFile != "" {
		auth, err := publicKeyAuth(keyFile)
		if err == nil {
			config.Auth = append(config.Auth, auth)
		}
	}

	// 如果没有指定认证方式，尝试默认密钥
	if len(config.Auth) == 0 {
		homeDir, _ := os.UserHomeDir()
		defaultKeys := []string{
			filepath.Join(homeDir, ".ssh", "id_rsa"),
			filepath.Join(homeDir, ".ssh", "id_ed25519"),
		}

		for _, keyPath := range defaultKeys {
			if auth, err := publicKeyAuth(keyPath); err == nil {
				config.Auth = append(config.Auth, auth)
			}
		}
	}

	addr := fmt.Sprintf("%s:%d", ansibleHost, port)
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, errors.NewUnreachableError(host.Name, err)
	}

	return &SSHConnection{
		client: client,
		host:   host,
	}, nil
}

// firstVar 按顺序取第一个非空字符串变量
func firstVar(host *inventory.Host, names ...string) string {
	for _, name := range names {
		if v, ok := host.Vars[name]; ok {
			if s := cast.ToString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// firstVarValue 按顺序取第一个存在的变量
func firstVarValue(host *inventory.Host, names ...string) interface{} {
	for _, name := range names {
		if v, ok := host.Vars[name]; ok {
			return v
		}
	}
	return nil
}

// publicKeyAuth 创建公钥认证
func publicKeyAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, err
	}

	return ssh.PublicKeys(signer), nil
}

// Exec 执行命令，跟随 ctx 取消
func (c *SSHConnection) Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, nil, -1, err
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	if err := session.Start(cmd); err != nil {
		return nil, nil, -1, err
	}

	// 等待完成或取消
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return nil, nil, -1, ctx.Err()
	case err := <-done:
		stdout = stdoutBuf.Bytes()
		stderr = stderrBuf.Bytes()

		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				return stdout, stderr, exitErr.ExitStatus(), nil
			}
			return stdout, stderr, -1, err
		}
		return stdout, stderr, 0, nil
	}
}

// ExecBecome 使用权限提升执行命令
func (c *SSHConnection) ExecBecome(ctx context.Context, cmd, becomeUser, becomeMethod string) (stdout, stderr []byte, exitCode int, err error) {
	becomeCmd, err := becomeCommand(cmd, becomeUser, becomeMethod)
	if err != nil {
		return nil, nil, -1, err
	}
	return c.Exec(ctx, becomeCmd)
}

// WriteFile 原子写入远程文件：优先 SFTP，子系统不可用时退回 shell 管道。
// 先写临时文件再重命名，避免读到半成品。
func (c *SSHConnection) WriteFile(ctx context.Context, data []byte, remotePath string, mode os.FileMode) error {
	tmpPath := fmt.Sprintf("%s.gosible-%s", remotePath, uuid.NewString()[:8])

	if client, err := c.sftpClient(); err == nil {
		return c.writeFileSFTP(client, data, tmpPath, remotePath, mode)
	}
	return c.writeFilePipe(ctx, data, tmpPath, remotePath, mode)
}

// sftpClient 懒加载 SFTP 客户端
func (c *SSHConnection) sftpClient() (*sftp.Client, error) {
	if c.sftpc != nil {
		return c.sftpc, nil
	}
	client, err := sftp.NewClient(c.client)
	if err != nil {
		return nil, err
	}
	c.sftpc = client
	return client, nil
}

func (c *SSHConnection) writeFileSFTP(client *sftp.Client, data []byte, tmpPath, remotePath string, mode os.FileMode) error {
	f, err := client.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create remote file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		client.Remove(tmpPath)
		return fmt.Errorf("failed to write remote file: %w", err)
	}
	if err := f.Chmod(mode); err != nil {
		f.Close()
		client.Remove(tmpPath)
		return fmt.Errorf("failed to chmod remote file: %w", err)
	}
	if err := f.Close(); err != nil {
		client.Remove(tmpPath)
		return err
	}

	if err := client.PosixRename(tmpPath, remotePath); err != nil {
		// 服务端缺少 posix-rename 扩展时退回普通 rename
		client.Remove(remotePath)
		if err := client.Rename(tmpPath, remotePath); err != nil {
			client.Remove(tmpPath)
			return fmt.Errorf("failed to rename remote file: %w", err)
		}
	}
	return nil
}

func (c *SSHConnection) writeFilePipe(ctx context.Context, data []byte, tmpPath, remotePath string, mode os.FileMode) error {
	session, err := c.client.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()

	cmd := fmt.Sprintf("cat > %s && chmod %o %s && mv %s %s",
		shellQuote(tmpPath), mode.Perm(), shellQuote(tmpPath), shellQuote(tmpPath), shellQuote(remotePath))

	stdin, err := session.StdinPipe()
	if err != nil {
		return err
	}

	if err := session.Start(cmd); err != nil {
		return err
	}

	if _, err := io.Copy(stdin, bytes.NewReader(data)); err != nil {
		return err
	}
	stdin.Close()

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Close 关闭连接
func (c *SSHConnection) Close() error {
	if c.sftpc != nil {
		c.sftpc.Close()
		c.sftpc = nil
	}
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
