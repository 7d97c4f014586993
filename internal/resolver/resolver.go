// Package resolver 将 Maven 风格的符号版本路径（-SNAPSHOT、SNAPSHOT、RELEASE）
// 改写为上游真实存在的具体版本路径。
package resolver

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/unzip-hub/internal/logging"
	"github.com/any-hub/unzip-hub/internal/maven"
	"github.com/any-hub/unzip-hub/internal/pathlock"
	"github.com/any-hub/unzip-hub/internal/storage"
)

// Resolver 针对单个上游仓库解析版本路径，元数据读取按路径串行化。
type Resolver struct {
	upstream storage.Upstream
	locks    *pathlock.Registry
	repoName string
	logger   *logrus.Logger
}

// Option 自定义 Resolver。
type Option func(*Resolver)

// WithLocks 指定路径锁表，默认使用进程级共享表。
func WithLocks(locks *pathlock.Registry) Option {
	return func(r *Resolver) {
		if locks != nil {
			r.locks = locks
		}
	}
}

// WithLogger 指定日志输出。
func WithLogger(logger *logrus.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New 创建 Resolver，repoName 仅用于错误信息与日志。
func New(upstream storage.Upstream, repoName string, opts ...Option) *Resolver {
	r := &Resolver{
		upstream: upstream,
		locks:    pathlock.Default(),
		repoName: repoName,
		logger:   logging.OrDiscard(nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve 解析 path。enabled 为 false 时直接返回 Unchanged；rng 为 nil 表示不限范围。
func (r *Resolver) Resolve(ctx context.Context, path string, enabled bool, rng *maven.VersionRange) (ConversionResult, error) {
	if !enabled {
		return Unchanged(path), nil
	}
	result, err := parseRequest(path, rng).resolve(ctx, r)
	if err != nil {
		return ConversionResult{}, err
	}
	if result.PathConverted() {
		latest, _ := result.LatestVersion()
		r.logger.WithFields(logrus.Fields{
			"action":    "resolve",
			"repo":      r.repoName,
			"path":      path,
			"converted": result.ConvertedPath(),
			"latest":    latest,
		}).Debug("virtual version resolved")
	}
	return result, nil
}

func (r *Resolver) repository() string {
	return r.repoName
}

// versioning 在元数据路径锁内读取 maven-metadata.xml；文件缺失时返回 ErrNotFound，
// 文件存在但没有 versioning 元素时返回 nil。
func (r *Resolver) versioning(ctx context.Context, metadataPath string) (*maven.Versioning, error) {
	return pathlock.Locked(r.locks, pathlock.Key(r.repoName, metadataPath), func() (*maven.Versioning, error) {
		item, err := r.upstream.Retrieve(ctx, metadataPath)
		if err != nil {
			return nil, err
		}
		if item.IsCollection() {
			return nil, storage.NotFound(metadataPath, "metadata path is a collection")
		}
		body, err := item.Open(ctx)
		if err != nil {
			return nil, err
		}
		defer body.Close()

		md, err := maven.ParseMetadata(io.LimitReader(body, maxMetadataBytes))
		if err != nil {
			return nil, err
		}
		return md.Versioning, nil
	})
}

const maxMetadataBytes = 4 << 20

var _ metadataReader = (*Resolver)(nil)
