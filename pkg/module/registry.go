package module

import (
	"fmt"
	"sort"
	"sync"

	"github.com/LeeXN/gosible/pkg/errors"
)

// Registry 模块注册表，按名称管理所有可用模块
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry 创建空的模块注册表
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]Module),
	}
}

// Register 注册一个模块，名称重复时报错
func (r *Registry) Register(m Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := m.Name()
	if _, exists := r.modules[name]; exists {
		return fmt.Errorf("module %s already registered", name)
	}
	r.modules[name] = m
	return nil
}

// MustRegister 注册模块，名称重复时 panic，仅用于内置模块初始化
func (r *Registry) MustRegister(m Module) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

// Lookup 按名称查找模块
func (r *Registry) Lookup(name string) (Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.modules[name]
	if !exists {
		return nil, errors.NewModuleNotFoundError(name)
	}
	return m, nil
}

// Has 判断模块是否已注册
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.modules[name]
	return exists
}

// Names 返回所有已注册模块名，按字典序排序
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry 创建包含全部内置模块的注册表
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(&PingModule{})
	r.MustRegister(&DebugModule{})
	r.MustRegister(&CommandModule{})
	r.MustRegister(&ShellModule{})
	r.MustRegister(&RawModule{})
	r.MustRegister(&CopyModule{})
	r.MustRegister(&TemplateModule{})
	r.MustRegister(&FileModule{})
	r.MustRegister(&LineinfileModule{})
	r.MustRegister(&ServiceModule{})
	r.MustRegister(&SystemdModule{})
	r.MustRegister(&PackageModule{})
	r.MustRegister(&GetURLModule{})
	r.MustRegister(&FailModule{})
	r.MustRegister(&SetFactModule{})
	return r
}
