package module

import (
	"context"

	"github.com/LeeXN/gosible/pkg/connection"
)

// PingModule ping 模块实现
// 只验证连接可达并返回 pong，不依赖目标机上的任何解释器
type PingModule struct{}

// Name 模块名
func (m *PingModule) Name() string { return "ping" }

// NeedsConnection ping 需要真实连接
func (m *PingModule) NeedsConnection() bool { return true }

// Run 执行 ping 模块
func (m *PingModule) Run(ctx context.Context, conn connection.Conn, args map[string]interface{}, opts ExecOptions) (*Result, error) {
	// 执行一个空命令确认通道可用
	_, _, rc, err := conn.Exec(ctx, "true")
	if err != nil {
		return nil, err
	}
	if rc != 0 {
		return &Result{
			Failed: true,
			RC:     rc,
			Msg:    "ping command returned non-zero",
		}, nil
	}

	return &Result{
		Changed: false,
		Ping:    "pong",
	}, nil
}
