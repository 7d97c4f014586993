package zipview

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/any-hub/unzip-hub/internal/cache"
	"github.com/any-hub/unzip-hub/internal/logging"
	"github.com/any-hub/unzip-hub/internal/maven"
	"github.com/any-hub/unzip-hub/internal/resolver"
	"github.com/any-hub/unzip-hub/internal/storage"
)

// snapshotProbeName 拼在目录后用来判断该目录是否为快照版本目录。
const snapshotProbeName = "artifact-1-SNAPSHOT.xml"

// probeLimit 限制列目录时并发探测 mime 类型的请求数。
const probeLimit = 4

// ArchiveSource 保证归档存在于本地缓存。
type ArchiveSource interface {
	EnsureLocal(ctx context.Context, archivePath string) (cache.LocalFile, error)
}

// PathResolver 解析虚拟版本路径。
type PathResolver interface {
	Resolve(ctx context.Context, path string, enabled bool, rng *maven.VersionRange) (resolver.ConversionResult, error)
}

// Overlay 列目录时把上游的归档文件替换为可浏览的归档根节点。
type Overlay struct {
	upstream storage.Upstream
	archives ArchiveSource
	resolver PathResolver
	virtual  bool
	logger   *logrus.Logger
}

// NewOverlay 创建 Overlay；virtual 控制是否把快照目录折叠为单个 SNAPSHOT 归档。
func NewOverlay(upstream storage.Upstream, archives ArchiveSource, pathResolver PathResolver, virtual bool, logger *logrus.Logger) *Overlay {
	return &Overlay{
		upstream: upstream,
		archives: archives,
		resolver: pathResolver,
		virtual:  virtual,
		logger:   logging.OrDiscard(logger),
	}
}

// List 按节点类型列出直接成员。
func (o *Overlay) List(ctx context.Context, n Node) ([]Node, error) {
	switch n.Kind {
	case KindFile:
		return nil, fmt.Errorf("%s: %w", n.Path, ErrNotDirectory)
	case KindArchiveRoot:
		entry := n.entry
		if entry == nil {
			local, err := o.archives.EnsureLocal(ctx, n.archivePath)
			if err != nil {
				return nil, err
			}
			if entry, err = Resolve(ctx, local, strings.TrimSuffix(n.Path, Suffix), ""); err != nil {
				return nil, err
			}
		}
		return entryNodes(ctx, entry)
	case KindDirectory:
		if n.entry != nil {
			return entryNodes(ctx, n.entry)
		}
		return o.listUpstream(ctx, n.Path)
	default:
		return nil, fmt.Errorf("%s: unknown node kind %d", n.Path, n.Kind)
	}
}

func entryNodes(ctx context.Context, entry *Entry) ([]Node, error) {
	members, err := entry.MemberList(ctx)
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(members))
	for _, member := range members {
		nodes = append(nodes, EntryNode(member))
	}
	return nodes, nil
}

// listUpstream 保留子目录，把归档替换为归档根节点，隐藏其他文件。
// 目录是快照版本目录时只展示最新时间戳的归档，并以 SNAPSHOT 命名。
func (o *Overlay) listUpstream(ctx context.Context, dir string) ([]Node, error) {
	probe := strings.TrimSuffix(dir, "/") + "/" + snapshotProbeName
	conversion, err := o.resolver.Resolve(ctx, probe, o.virtual, nil)
	if err != nil {
		return nil, err
	}

	members, err := o.upstream.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	members, err = o.probeMimeTypes(ctx, members)
	if err != nil {
		return nil, err
	}

	latest, converted := conversion.LatestVersion()
	nodes := make([]Node, 0, len(members))
	for _, member := range members {
		switch {
		case member.IsCollection():
			nodes = append(nodes, ItemNode(member))
		case !storage.IsArchiveMimeType(member.MimeType):
			continue
		case converted:
			if strings.Contains(member.Path, latest) {
				display := strings.ReplaceAll(member.Path, latest, "SNAPSHOT")
				nodes = append(nodes, ArchiveRootNode(display, member.Path, member.Modified))
			}
		default:
			nodes = append(nodes, ArchiveRootNode(member.Path, member.Path, member.Modified))
		}
	}
	return nodes, nil
}

// probeMimeTypes 对 mime 类型缺失或笼统的文件逐个 Retrieve，必要时读取文件头识别 zip。
// 探测失败的成员从结果中剔除。
func (o *Overlay) probeMimeTypes(ctx context.Context, members []storage.Item) ([]storage.Item, error) {
	probed := make([]storage.Item, len(members))
	keep := make([]bool, len(members))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeLimit)
	for i, member := range members {
		if member.IsCollection() || !storage.IsGenericMimeType(member.MimeType) {
			probed[i], keep[i] = member, true
			continue
		}
		g.Go(func() error {
			item, err := o.probe(gctx, member.Path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				o.logger.WithFields(logrus.Fields{
					"action": "list",
					"path":   member.Path,
				}).WithError(err).Debug("dropping member whose type could not be determined")
				return nil
			}
			probed[i], keep[i] = item, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make([]storage.Item, 0, len(members))
	for i := range probed {
		if keep[i] {
			result = append(result, probed[i])
		}
	}
	return result, nil
}

func (o *Overlay) probe(ctx context.Context, p string) (storage.Item, error) {
	item, err := o.upstream.Retrieve(ctx, p)
	if err != nil || item.IsCollection() || !storage.IsGenericMimeType(item.MimeType) {
		return item, err
	}
	body, err := item.Open(ctx)
	if err != nil {
		return storage.Item{}, err
	}
	defer body.Close()

	sniffed, err := storage.SniffArchiveType(ctx, path.Base(p), body)
	if err != nil {
		return storage.Item{}, err
	}
	if sniffed != "" {
		item = item.WithMimeType(sniffed)
	}
	return item, nil
}
