package repokind

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/any-hub/unzip-hub/internal/storage"
)

// Options 是构造上游时的输入。
type Options struct {
	Name     string
	Upstream string
	Client   *http.Client
}

// Kind 描述一种上游类型。
type Kind struct {
	Key         string
	Description string
	// Validate 在加载配置时校验 Upstream 字段，可为空。
	Validate func(upstream string) error
	Open     func(opts Options) (storage.Upstream, error)
}

var globalRegistry = newRegistry()

type registry struct {
	mu    sync.RWMutex
	kinds map[string]Kind
}

func newRegistry() *registry {
	return &registry{kinds: make(map[string]Kind)}
}

// Register 将类型加入全局注册表，重复键会返回错误。
func Register(kind Kind) error {
	return globalRegistry.register(kind)
}

// MustRegister 在注册失败时 panic，适合 init() 中调用。
func MustRegister(kind Kind) {
	if err := Register(kind); err != nil {
		panic(err)
	}
}

// Resolve 返回指定键的类型，大小写不敏感。
func Resolve(key string) (Kind, bool) {
	return globalRegistry.resolve(key)
}

// List 返回按键排序的类型列表。
func List() []Kind {
	return globalRegistry.list()
}

// Keys 返回所有已注册类型的键，形如 hosted|proxy，供校验提示使用。
func Keys() []string {
	items := List()
	result := make([]string, len(items))
	for i, kind := range items {
		result[i] = kind.Key
	}
	return result
}

// Open 按类型键构造上游。
func Open(key string, opts Options) (storage.Upstream, error) {
	kind, ok := Resolve(key)
	if !ok {
		return nil, fmt.Errorf("unknown repository type %q", key)
	}
	upstream, err := kind.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open %s upstream for %s: %w", kind.Key, opts.Name, err)
	}
	return upstream, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r *registry) register(kind Kind) error {
	key := normalizeKey(kind.Key)
	if key == "" {
		return fmt.Errorf("repository kind key is required")
	}
	if kind.Open == nil {
		return fmt.Errorf("repository kind %s has no constructor", key)
	}
	kind.Key = key

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[key]; exists {
		return fmt.Errorf("repository kind %s already registered", key)
	}
	r.kinds[key] = kind
	return nil
}

func (r *registry) resolve(key string) (Kind, bool) {
	normalized := normalizeKey(key)
	if normalized == "" {
		return Kind{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	kind, ok := r.kinds[normalized]
	return kind, ok
}

func (r *registry) list() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.kinds) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.kinds))
	for key := range r.kinds {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Kind, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.kinds[key])
	}
	return result
}
