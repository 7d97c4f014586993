package cache

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/unzip-hub/internal/logging"
	"github.com/any-hub/unzip-hub/internal/pathlock"
	"github.com/any-hub/unzip-hub/internal/resolver"
	"github.com/any-hub/unzip-hub/internal/storage"
)

// LocalFile 指向已缓存到本地的归档文件。
type LocalFile struct {
	Path     string
	FilePath string
	Size     int64
	Modified time.Time
	store    Store
	locator  Locator
}

// Open 打开缓存文件，调用方负责关闭。
func (f LocalFile) Open(ctx context.Context) (File, error) {
	if f.store == nil {
		return nil, ErrNotFound
	}
	result, err := f.store.Get(ctx, f.locator)
	if err != nil {
		return nil, err
	}
	return result.Reader, nil
}

// ArchiveCache 按需把上游归档拉取到本地 Store，并清理已被新快照取代的旧文件。
// 同一父目录下的拉取与清理共用一把路径锁。
type ArchiveCache struct {
	store    Store
	upstream storage.Upstream
	repo     string
	locks    *pathlock.Registry
	logger   *logrus.Logger
}

// ArchiveOption 自定义 ArchiveCache。
type ArchiveOption func(*ArchiveCache)

// WithArchiveLocks 指定路径锁表，默认使用进程级共享表。
func WithArchiveLocks(locks *pathlock.Registry) ArchiveOption {
	return func(c *ArchiveCache) {
		if locks != nil {
			c.locks = locks
		}
	}
}

// WithArchiveLogger 指定日志输出。
func WithArchiveLogger(logger *logrus.Logger) ArchiveOption {
	return func(c *ArchiveCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewArchiveCache 创建 repo 对应的归档缓存。
func NewArchiveCache(store Store, upstream storage.Upstream, repo string, opts ...ArchiveOption) *ArchiveCache {
	c := &ArchiveCache{
		store:    store,
		upstream: upstream,
		repo:     repo,
		locks:    pathlock.Default(),
		logger:   logging.OrDiscard(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureLocal 返回 archivePath 的本地副本，缺失时从上游拉取并以上游修改时间落盘。
func (c *ArchiveCache) EnsureLocal(ctx context.Context, archivePath string) (LocalFile, error) {
	locator := Locator{RepoName: c.repo, Path: archivePath}

	return pathlock.Locked(c.locks, pathlock.Key(c.repo, parentDir(archivePath)), func() (LocalFile, error) {
		entry, err := c.store.Stat(ctx, locator)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return LocalFile{}, err
		}
		if entry != nil && entry.IsDir {
			return LocalFile{}, storage.NotFound(archivePath, "the path points to a collection, not to an archive")
		}
		if entry == nil {
			if entry, err = c.fetch(ctx, locator); err != nil {
				return LocalFile{}, err
			}
		}
		c.logger.WithFields(logrus.Fields{
			"action": "cache",
			"repo":   c.repo,
			"path":   archivePath,
		}).Debug("accessed cached archive")

		return LocalFile{
			Path:     archivePath,
			FilePath: entry.FilePath,
			Size:     entry.SizeBytes,
			Modified: entry.ModTime,
			store:    c.store,
			locator:  locator,
		}, nil
	})
}

func (c *ArchiveCache) fetch(ctx context.Context, locator Locator) (*Entry, error) {
	item, err := c.upstream.Retrieve(ctx, locator.Path)
	if err != nil {
		return nil, err
	}
	if item.IsCollection() {
		return nil, storage.NotFound(locator.Path, "the path points to a collection, not to an archive")
	}

	c.logger.WithFields(logrus.Fields{
		"action":     "cache",
		"repo":       c.repo,
		"path":       locator.Path,
		"size_bytes": item.Size,
	}).Debug("caching archive from upstream")

	body, err := item.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return c.store.Put(ctx, locator, body, PutOptions{ModTime: item.Modified})
}

// PruneStale 删除被 result 判定为过期的快照文件：快照已不存在时清空整个版本目录，
// 否则删除同一版本前缀下不含最新时间戳的文件。清理失败只记录告警。
func (c *ArchiveCache) PruneStale(ctx context.Context, result resolver.ConversionResult) {
	if !result.NeedsPrune() {
		return
	}
	upTo, ok := result.PathUpToVersion()
	if !ok {
		return
	}
	latest, _ := result.LatestVersion()
	dir := parentDir(upTo)

	err := c.locks.Do(pathlock.Key(c.repo, dir), func() error {
		entries, err := c.store.List(ctx, Locator{RepoName: c.repo, Path: dir})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}

		// 先收集路径再删除，避免边遍历边修改目录。
		var stale []string
		for _, entry := range entries {
			if entry.IsDir {
				continue
			}
			p := entry.Locator.Path
			if !result.SnapshotAvailable() || (strings.HasPrefix(p, upTo) && !strings.Contains(p, latest)) {
				stale = append(stale, p)
			}
		}
		// 单个文件删除失败（被占用、已被删除）不影响其余文件。
		for _, p := range stale {
			fields := logrus.Fields{
				"action": "prune",
				"repo":   c.repo,
				"path":   p,
			}
			if err := c.store.Remove(ctx, Locator{RepoName: c.repo, Path: p}); err != nil {
				c.logger.WithFields(fields).WithError(err).Warn("unable to delete cached snapshot archive")
				continue
			}
			c.logger.WithFields(fields).Debug("deleted outdated snapshot archive")
		}
		return nil
	})
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"action": "prune",
			"repo":   c.repo,
			"dir":    dir,
		}).WithError(err).Warn("unable to list cached snapshot archives")
	}
}

// parentDir 返回父目录并保留结尾的 "/"，与仓库名一起构成路径锁的键。
func parentDir(p string) string {
	dir := path.Dir(strings.TrimSuffix(p, "/"))
	if dir == "/" || dir == "." {
		return dir
	}
	return dir + "/"
}
