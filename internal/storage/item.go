package storage

import (
	"context"
	"io"
	"time"
)

// Upstream 是权威上游仓库的只读视图。
type Upstream interface {
	// Retrieve 返回 path 对应的条目，不存在时返回 ErrNotFound。
	Retrieve(ctx context.Context, path string) (Item, error)
	// List 返回目录的直接成员，目录不存在时返回 ErrNotFound。
	List(ctx context.Context, path string) ([]Item, error)
}

// ItemKind 区分文件与目录。
type ItemKind int

const (
	KindFile ItemKind = iota
	KindCollection
)

func (k ItemKind) String() string {
	if k == KindCollection {
		return "collection"
	}
	return "file"
}

// OpenFunc 打开条目正文。
type OpenFunc func(ctx context.Context) (io.ReadCloser, error)

// Item 是上游返回的条目：文件携带 mime/size/modified 与正文打开函数，目录只有路径。
type Item struct {
	Path     string
	Kind     ItemKind
	MimeType string
	Size     int64
	Modified time.Time
	open     OpenFunc
}

// NewFileItem 构造文件条目。
func NewFileItem(path, mimeType string, size int64, modified time.Time, open OpenFunc) Item {
	return Item{
		Path:     path,
		Kind:     KindFile,
		MimeType: mimeType,
		Size:     size,
		Modified: modified,
		open:     open,
	}
}

// NewCollectionItem 构造目录条目。
func NewCollectionItem(path string, modified time.Time) Item {
	return Item{Path: path, Kind: KindCollection, Modified: modified}
}

// IsCollection 表示条目是否为目录。
func (i Item) IsCollection() bool {
	return i.Kind == KindCollection
}

// Open 打开文件正文，调用方负责关闭。
func (i Item) Open(ctx context.Context) (io.ReadCloser, error) {
	if i.Kind == KindCollection {
		return nil, &NotFoundError{Path: i.Path, Reason: "collections have no content"}
	}
	if i.open == nil {
		return nil, &NotFoundError{Path: i.Path, Reason: "item content is not available"}
	}
	return i.open(ctx)
}

// WithMimeType 返回替换了 mime 类型的副本。
func (i Item) WithMimeType(mimeType string) Item {
	i.MimeType = mimeType
	return i
}
