package zipview

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/any-hub/unzip-hub/internal/storage"
)

// Kind 区分节点类型。
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindArchiveRoot
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindArchiveRoot:
		return "archive"
	default:
		return "file"
	}
}

// Node 是浏览树中的一个节点，来源可能是上游条目或归档内条目。
type Node struct {
	Kind     Kind
	Path     string
	MimeType string
	Size     int64
	Modified time.Time

	// 归档根节点实际读取的归档路径，展示路径中的 SNAPSHOT 在这里是具体时间戳。
	archivePath string
	item        *storage.Item
	entry       *Entry
}

// ItemNode 包装上游条目：目录为 KindDirectory，文件为 KindFile。
func ItemNode(item storage.Item) Node {
	n := Node{
		Kind:     KindFile,
		Path:     item.Path,
		MimeType: item.MimeType,
		Size:     item.Size,
		Modified: item.Modified,
		item:     &item,
	}
	if item.IsCollection() {
		n.Kind = KindDirectory
		n.MimeType = ""
		n.Size = 0
	}
	return n
}

// ArchiveRootNode 构造以归档为根的目录节点。displayPath 为对外展示的归档路径，
// archivePath 为实际读取的归档路径。
func ArchiveRootNode(displayPath, archivePath string, modified time.Time) Node {
	return Node{
		Kind:        KindArchiveRoot,
		Path:        ExternalPath(displayPath, ""),
		Modified:    modified,
		archivePath: archivePath,
	}
}

// EntryNode 包装归档内条目。
func EntryNode(e *Entry) Node {
	n := Node{
		Kind:        KindFile,
		Path:        e.Path(),
		MimeType:    e.MimeType(),
		Size:        e.Size(),
		Modified:    e.Modified(),
		archivePath: e.local.Path,
		entry:       e,
	}
	if e.IsDir() {
		n.Kind = KindDirectory
	}
	if e.InnerPath() == "" {
		n.Kind = KindArchiveRoot
	}
	return n
}

// Name 返回最后一个路径段。
func (n Node) Name() string {
	return path.Base(strings.TrimSuffix(n.Path, "/"))
}

// IsDir 表示节点是否可以列目录。
func (n Node) IsDir() bool {
	return n.Kind != KindFile
}

// ArchivePath 返回归档节点实际读取的归档路径。
func (n Node) ArchivePath() string {
	return n.archivePath
}

// Open 打开文件节点正文。
func (n Node) Open(ctx context.Context) (io.ReadCloser, error) {
	switch {
	case n.Kind != KindFile:
		return nil, fmt.Errorf("%s: collections have no content", n.Path)
	case n.entry != nil:
		return n.entry.Open(ctx)
	case n.item != nil:
		return n.item.Open(ctx)
	default:
		return nil, storage.NotFound(n.Path, "node has no content")
	}
}
