package cache

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/any-hub/unzip-hub/internal/storage"
)

// Store 负责管理本地缓存文件的读写。磁盘布局遵循：
//
//	<StoragePath>/<RepoName>/<path>    # 原样保存的上游文件
//
// 文件的 ModTime 取自上游的 Last-Modified，Size 由文件系统提供。
type Store interface {
	// Stat 返回条目信息（文件或目录）。若不存在则返回 ErrNotFound。
	Stat(ctx context.Context, locator Locator) (*Entry, error)

	// Get 返回一个可随机读取的缓存文件。目录或不存在时返回 ErrNotFound。
	Get(ctx context.Context, locator Locator) (*ReadResult, error)

	// Put 将上游正文写入缓存。实现需通过临时文件 + rename 保证写入原子性，
	// 并在失败时清理临时文件。可选地根据 opts.ModTime 设置文件时间戳。
	Put(ctx context.Context, locator Locator, body io.Reader, opts PutOptions) (*Entry, error)

	// Remove 删除文件，不存在时视为成功。
	Remove(ctx context.Context, locator Locator) error

	// List 返回目录的直接成员，目录不存在时返回 ErrNotFound。
	List(ctx context.Context, locator Locator) ([]Entry, error)
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	ModTime time.Time
}

// Locator 唯一定位一个缓存条目（Repo + 相对路径），所有路径均为 URL 路径风格。
type Locator struct {
	RepoName string
	Path     string
}

// Entry 描述一个缓存条目。
type Entry struct {
	Locator   Locator   `json:"locator"`
	FilePath  string    `json:"file_path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
	IsDir     bool      `json:"is_dir"`
}

// File 是缓存文件句柄，支持随机读取以便 zip 读取器定位中央目录。
type File interface {
	io.Reader
	io.ReaderAt
	io.Seeker
	io.Closer
}

// ReadResult 组合 Entry 与文件句柄。
type ReadResult struct {
	Entry  Entry
	Reader File
}

// ErrNotFound 表示缓存不存在，同时满足 storage.IsNotFound。
var ErrNotFound = fmt.Errorf("cache entry not found: %w", storage.ErrNotFound)
