package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/unzip-hub/internal/cache"
	"github.com/any-hub/unzip-hub/internal/config"
	"github.com/any-hub/unzip-hub/internal/pathlock"
	"github.com/any-hub/unzip-hub/internal/repokind"
	"github.com/any-hub/unzip-hub/internal/repository"
)

// RepoRoute 聚合仓库配置与构造完成的 Repository，供路由/处理层直接复用。
type RepoRoute struct {
	// Config 是 config.toml 中声明的仓库字段副本。
	Config     config.RepoConfig
	ListenPort int
	Repository *repository.Repository
}

// RegistryOptions 是构造 RepoRegistry 时可注入的共享依赖。
type RegistryOptions struct {
	Client *http.Client
	Logger *logrus.Logger
	// Store 为空时在 StoragePath 下创建磁盘缓存，各仓库以名称分区。
	Store cache.Store
	// Locks 为空时使用进程级默认注册表。
	Locks *pathlock.Registry
}

// RepoRegistry 提供 Host/Host:port 到 RepoRoute 的查询能力，所有仓库共享同一个监听端口。
type RepoRegistry struct {
	routes  map[string]*RepoRoute
	ordered []*RepoRoute
	locks   *pathlock.Registry
}

// NewRepoRegistry 根据配置构建所有仓库。调用方应在启动阶段创建一次并复用。
func NewRepoRegistry(cfg *config.Config, opts RegistryOptions) (*RepoRegistry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	locks := opts.Locks
	if locks == nil {
		locks = pathlock.Default()
	}
	store := opts.Store
	if store == nil {
		var err error
		store, err = cache.NewStore(cfg.Global.StoragePath)
		if err != nil {
			return nil, err
		}
	}
	client := opts.Client
	if client == nil {
		client = NewUpstreamClient(cfg)
	}

	registry := &RepoRegistry{
		routes: make(map[string]*RepoRoute, len(cfg.Repos)),
		locks:  locks,
	}

	for _, repo := range cfg.Repos {
		normalizedHost := normalizeDomain(repo.Domain)
		if normalizedHost == "" {
			return nil, fmt.Errorf("invalid domain for repo %s", repo.Name)
		}
		if _, exists := registry.routes[normalizedHost]; exists {
			return nil, fmt.Errorf("duplicate domain mapping detected for %s", normalizedHost)
		}

		upstream, err := repokind.Open(repo.Type, repokind.Options{
			Name:     repo.Name,
			Upstream: repo.Upstream,
			Client:   client,
		})
		if err != nil {
			return nil, err
		}
		built, err := repository.New(repository.Options{
			Name:            repo.Name,
			Upstream:        upstream,
			Store:           store,
			Locks:           locks,
			VirtualVersions: repo.UseVirtualVersion,
			Logger:          opts.Logger,
		})
		if err != nil {
			return nil, err
		}

		route := &RepoRoute{
			Config:     repo,
			ListenPort: cfg.Global.ListenPort,
			Repository: built,
		}
		registry.routes[normalizedHost] = route
		registry.ordered = append(registry.ordered, route)
	}

	return registry, nil
}

// Lookup 根据 Host 或 Host:port 查找 RepoRoute。
func (r *RepoRegistry) Lookup(host string) (*RepoRoute, bool) {
	if r == nil {
		return nil, false
	}

	normalizedHost, _ := normalizeHost(host)
	if normalizedHost == "" {
		return nil, false
	}

	route, ok := r.routes[normalizedHost]
	return route, ok
}

// List 返回按配置顺序排列的路由副本，用于诊断输出。
func (r *RepoRegistry) List() []RepoRoute {
	if r == nil || len(r.ordered) == 0 {
		return nil
	}

	result := make([]RepoRoute, len(r.ordered))
	for i, route := range r.ordered {
		result[i] = *route
	}
	return result
}

// Locks 返回所有仓库共享的路径锁注册表。
func (r *RepoRegistry) Locks() *pathlock.Registry {
	if r == nil {
		return nil
	}
	return r.locks
}

func normalizeDomain(domain string) string {
	host, _ := normalizeHost(domain)
	return host
}

func normalizeHost(raw string) (string, int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", 0
	}

	host := raw
	port := 0

	if strings.Contains(raw, ":") {
		if h, p, err := net.SplitHostPort(raw); err == nil {
			host = h
			if parsedPort, err := strconv.Atoi(p); err == nil {
				port = parsedPort
			}
		} else if idx := strings.LastIndex(raw, ":"); idx > -1 && strings.Count(raw[idx+1:], ":") == 0 {
			if parsedPort, err := strconv.Atoi(raw[idx+1:]); err == nil {
				host = raw[:idx]
				port = parsedPort
			}
		}
	}

	host = strings.TrimSuffix(host, ".")
	host = strings.ToLower(host)
	return host, port
}
