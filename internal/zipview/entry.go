// Package zipview 把缓存在本地的 zip 归档呈现为文件/目录树：条目按需从中央目录解析，
// 不做任何解压落盘。
package zipview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/any-hub/unzip-hub/internal/cache"
	"github.com/any-hub/unzip-hub/internal/storage"
)

// ErrNotDirectory 表示对文件条目列目录。
var ErrNotDirectory = errors.New("members cannot be listed for a file")

// Entry 是归档内的一个文件或目录。修改时间继承自归档文件本身。
type Entry struct {
	archivePath string
	innerPath   string
	dir         bool
	size        int64
	modified    time.Time
	local       cache.LocalFile
}

// Resolve 在 local 归档中定位 innerPath。archivePath 是对外展示的归档路径，
// 可以与 local.Path 不同（例如展示 SNAPSHOT 而实际读取带时间戳的文件）。
// 空 innerPath 表示归档根目录，总能解析成功。
func Resolve(ctx context.Context, local cache.LocalFile, archivePath, innerPath string) (*Entry, error) {
	entry := &Entry{
		archivePath: archivePath,
		innerPath:   trimTrailingSlash(innerPath),
		modified:    local.Modified,
		local:       local,
	}
	if entry.innerPath == "" {
		entry.dir = true
		return entry, nil
	}

	r, closer, err := openArchive(ctx, local)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	for f := range files(r) {
		if trimTrailingSlash(f.Name) == entry.innerPath {
			entry.dir, entry.size = describe(f)
			return entry, nil
		}
	}
	return nil, storage.NotFound(entry.Path(), "the path within the zip file does not point to an existing zip entry")
}

// Path 返回对外可见的绝对路径，不带结尾 "/"。
func (e *Entry) Path() string {
	return ExternalPath(e.archivePath, e.innerPath)
}

// InnerPath 返回相对归档根目录的路径，根目录为空串。
func (e *Entry) InnerPath() string { return e.innerPath }

// ArchivePath 返回对外展示的归档路径。
func (e *Entry) ArchivePath() string { return e.archivePath }

// Name 返回最后一个路径段，根目录返回归档目录名。
func (e *Entry) Name() string {
	if e.innerPath == "" {
		return path.Base(e.archivePath) + Suffix
	}
	return path.Base(e.innerPath)
}

func (e *Entry) IsDir() bool         { return e.dir }
func (e *Entry) Size() int64         { return e.size }
func (e *Entry) Modified() time.Time { return e.modified }

// MimeType 按扩展名猜测，目录返回空串。
func (e *Entry) MimeType() string {
	if e.dir {
		return ""
	}
	return storage.GuessMimeType(e.innerPath)
}

// Members 惰性枚举直接子条目：每次迭代重新打开归档并单遍扫描中央目录，
// 迭代结束或提前停止时关闭归档。对文件条目产出 ErrNotDirectory。
func (e *Entry) Members(ctx context.Context) iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		if !e.dir {
			yield(nil, fmt.Errorf("%s: %w", e.Path(), ErrNotDirectory))
			return
		}
		r, closer, err := openArchive(ctx, e.local)
		if err != nil {
			yield(nil, err)
			return
		}
		defer closer.Close()

		for f := range files(r) {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !e.isDirectMember(f.Name) {
				continue
			}
			child := &Entry{
				archivePath: e.archivePath,
				innerPath:   trimTrailingSlash(f.Name),
				modified:    e.modified,
				local:       e.local,
			}
			child.dir, child.size = describe(f)
			if !yield(child, nil) {
				return
			}
		}
	}
}

// MemberList 收集 Members 的结果。
func (e *Entry) MemberList(ctx context.Context) ([]*Entry, error) {
	var members []*Entry
	for member, err := range e.Members(ctx) {
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, nil
}

// isDirectMember 判断 name 是否为当前目录的直接成员，"dir2/x" 不属于 "dir"。
func (e *Entry) isDirectMember(name string) bool {
	name = trimTrailingSlash(name)
	if name == "" {
		return false
	}
	if e.innerPath == "" {
		return !strings.Contains(name, "/")
	}
	prefix := e.innerPath + "/"
	return strings.HasPrefix(name, prefix) && !strings.Contains(name[len(prefix):], "/")
}

func describe(f *zip.File) (dir bool, size int64) {
	if strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir() {
		return true, 0
	}
	return false, int64(f.UncompressedSize64)
}

// files 按中央目录顺序产出条目。
func files(r *zip.Reader) iter.Seq[*zip.File] {
	return func(yield func(*zip.File) bool) {
		for _, f := range r.File {
			if !yield(f) {
				return
			}
		}
	}
}

func openArchive(ctx context.Context, local cache.LocalFile) (*zip.Reader, io.Closer, error) {
	f, err := local.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	r, err := zip.NewReader(f, local.Size)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("open archive %s: %w", local.Path, err)
	}
	return r, f, nil
}
