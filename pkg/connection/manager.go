package connection

import (
	"sync"
	"time"

	"github.com/spf13/cast"

	"github.com/LeeXN/gosible/pkg/inventory"
)

// Manager 管理到各主机的连接，并发安全，按主机名缓存
type Manager struct {
	timeout time.Duration

	mu    sync.Mutex
	conns map[string]Conn
}

// NewManager 创建一个新的连接管理器
func NewManager() *Manager {
	return &Manager{
		timeout: 30 * time.Second,
		conns:   make(map[string]Conn),
	}
}

// Connect 获取到主机的连接，已存在时复用
func (m *Manager) Connect(host *inventory.Host) (Conn, error) {
	m.mu.Lock()
	if conn, ok := m.conns[host.Name]; ok {
		m.mu.Unlock()
		return conn, nil
	}
	m.mu.Unlock()

	var conn Conn
	var err error
	if IsLocal(host) {
		conn = NewLocalConnection()
	} else {
		conn, err = DialSSH(host, m.timeout)
		if err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// 并发建立时保留先到的连接
	if existing, ok := m.conns[host.Name]; ok {
		conn.Close()
		return existing, nil
	}
	m.conns[host.Name] = conn
	return conn, nil
}

// CloseAll 关闭全部连接
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, conn := range m.conns {
		conn.Close()
		delete(m.conns, name)
	}
}

// IsLocal 判断主机是否走本地执行
func IsLocal(host *inventory.Host) bool {
	if cast.ToString(host.Vars["ansible_connection"]) == "local" {
		return true
	}
	switch host.Name {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
