// Package repository 组合虚拟版本解析、归档缓存与归档浏览，对外提供只读的
// ResolveAndServe 入口。
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/unzip-hub/internal/cache"
	"github.com/any-hub/unzip-hub/internal/logging"
	"github.com/any-hub/unzip-hub/internal/maven"
	"github.com/any-hub/unzip-hub/internal/pathlock"
	"github.com/any-hub/unzip-hub/internal/resolver"
	"github.com/any-hub/unzip-hub/internal/storage"
	"github.com/any-hub/unzip-hub/internal/zipview"
)

// Options 描述一个仓库实例的依赖。
type Options struct {
	Name            string
	Upstream        storage.Upstream
	Store           cache.Store
	Locks           *pathlock.Registry
	VirtualVersions bool
	Logger          *logrus.Logger
}

// Repository 是单个上游仓库的只读浏览视图。
type Repository struct {
	name     string
	upstream storage.Upstream
	resolver *resolver.Resolver
	archives *cache.ArchiveCache
	overlay  *zipview.Overlay
	virtual  bool
	logger   *logrus.Logger
}

// Result 是一次请求的解析结果。
type Result struct {
	Node       zipview.Node
	Conversion resolver.ConversionResult
}

// New 校验依赖并组装仓库。
func New(opts Options) (*Repository, error) {
	if opts.Name == "" {
		return nil, errors.New("repository name required")
	}
	if opts.Upstream == nil {
		return nil, fmt.Errorf("repository %s: upstream required", opts.Name)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("repository %s: cache store required", opts.Name)
	}
	locks := opts.Locks
	if locks == nil {
		locks = pathlock.Default()
	}
	logger := logging.OrDiscard(opts.Logger)

	pathResolver := resolver.New(opts.Upstream, opts.Name, resolver.WithLocks(locks), resolver.WithLogger(logger))
	archives := cache.NewArchiveCache(opts.Store, opts.Upstream, opts.Name,
		cache.WithArchiveLocks(locks), cache.WithArchiveLogger(logger))

	return &Repository{
		name:     opts.Name,
		upstream: opts.Upstream,
		resolver: pathResolver,
		archives: archives,
		overlay:  zipview.NewOverlay(opts.Upstream, archives, pathResolver, opts.VirtualVersions, logger),
		virtual:  opts.VirtualVersions,
		logger:   logger,
	}, nil
}

// Name 返回仓库名称。
func (r *Repository) Name() string { return r.name }

// VirtualVersioningEnabled 表示是否解析 SNAPSHOT/RELEASE 等虚拟版本。
func (r *Repository) VirtualVersioningEnabled() bool { return r.virtual }

// ResolveAndServe 解析虚拟版本、按需清理过期快照，然后返回请求路径对应的节点：
// 带 "-unzip" 段的路径从本地缓存的归档中读取，其余路径直接取自上游。
func (r *Repository) ResolveAndServe(ctx context.Context, requestPath string, rng *maven.VersionRange) (Result, error) {
	conversion, err := r.resolver.Resolve(ctx, requestPath, r.virtual, rng)
	if err != nil {
		return Result{}, err
	}
	if conversion.NeedsPrune() {
		r.archives.PruneStale(ctx, conversion)
	}

	target := conversion.ConvertedPath()
	if archivePath, innerPath, ok := zipview.SplitPath(target); ok {
		node, err := r.serveArchive(ctx, requestPath, archivePath, innerPath)
		return Result{Node: node, Conversion: conversion}, err
	}

	item, err := r.upstream.Retrieve(ctx, target)
	if err != nil {
		return Result{}, err
	}
	return Result{Node: zipview.ItemNode(item), Conversion: conversion}, nil
}

// serveArchive 以请求中的归档路径对外展示，以解析后的归档路径读取。
func (r *Repository) serveArchive(ctx context.Context, requestPath, archivePath, innerPath string) (zipview.Node, error) {
	display := archivePath
	if requested, _, ok := zipview.SplitPath(requestPath); ok {
		display = requested
	}

	local, err := r.archives.EnsureLocal(ctx, archivePath)
	if err != nil {
		return zipview.Node{}, err
	}
	entry, err := zipview.Resolve(ctx, local, display, innerPath)
	if err != nil {
		return zipview.Node{}, err
	}
	return zipview.EntryNode(entry), nil
}

// List 列出目录类节点的直接成员。
func (r *Repository) List(ctx context.Context, node zipview.Node) ([]zipview.Node, error) {
	return r.overlay.List(ctx, node)
}

// Store 归档视图只读。
func (r *Repository) Store(context.Context, string) error {
	return fmt.Errorf("store into %s: %w", r.name, storage.ErrUnsupportedOperation)
}

// Delete 归档视图只读。
func (r *Repository) Delete(context.Context, string) error {
	return fmt.Errorf("delete from %s: %w", r.name, storage.ErrUnsupportedOperation)
}

// CreateLink 接受并忽略链接请求。
func (r *Repository) CreateLink(context.Context, string) error { return nil }

// DeleteLink 接受并忽略链接删除。
func (r *Repository) DeleteLink(context.Context, string) error { return nil }
