// Package pathlock 提供按路径划分的互斥区：同一路径的 fetch/store/prune 串行执行，
// 不同路径互不阻塞。条目按引用计数回收，冷路径不会在表中长期残留。
package pathlock

import "sync"

// Monitor 与单个路径绑定，是该路径临界区唯一的同步原语。
type Monitor struct {
	mu   sync.Mutex
	path string
}

// Path 返回 Monitor 对应的路径。
func (m *Monitor) Path() string {
	return m.path
}

// Lock 进入该路径的临界区。
func (m *Monitor) Lock() {
	m.mu.Lock()
}

// Unlock 离开该路径的临界区。
func (m *Monitor) Unlock() {
	m.mu.Unlock()
}

type entry struct {
	monitor *Monitor
	refs    int
}

// Registry 维护 path -> (monitor, refcount) 表，表本身由一把粗粒度锁保护，
// 仅在插入/删除条目时持有。
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New 创建空的 Registry。
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

var defaultRegistry = New()

// Default 返回进程级共享的 Registry。
func Default() *Registry {
	return defaultRegistry
}

// Acquire 返回 path 对应的 Monitor 并增加引用计数；并发调用拿到的是同一个实例。
// 返回的 Monitor 尚未加锁。
func (r *Registry) Acquire(path string) *Monitor {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entries[path]
	if e == nil {
		e = &entry{monitor: &Monitor{path: path}}
		r.entries[path] = e
	}
	e.refs++
	return e.monitor
}

// Release 归还一次引用，计数归零时删除条目。monitor 未登记时返回 false。
func (r *Registry) Release(monitor *Monitor) bool {
	if monitor == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entries[monitor.path]
	if e == nil || e.monitor != monitor {
		return false
	}
	e.refs--
	if e.refs == 0 {
		delete(r.entries, monitor.path)
	}
	return true
}

// Len 返回当前存活的条目数量，供诊断接口与测试使用。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Key 把命名空间（通常是仓库名）与路径拼成锁键，不同仓库的同名路径互不阻塞。
func Key(namespace, path string) string {
	if namespace == "" {
		return path
	}
	return namespace + ":" + path
}

// Do 在 path 的临界区内执行 fn，任何退出路径（含 panic）都会解锁并归还引用。
func (r *Registry) Do(path string, fn func() error) error {
	monitor := r.Acquire(path)
	defer r.Release(monitor)

	monitor.Lock()
	defer monitor.Unlock()

	return fn()
}

// Locked 是 Do 的带返回值版本。
func Locked[T any](r *Registry, path string, fn func() (T, error)) (T, error) {
	var result T
	err := r.Do(path, func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}
