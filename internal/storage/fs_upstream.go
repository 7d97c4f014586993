package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/afero"
)

// FsUpstream 把一棵本地目录树当作上游仓库，供托管（hosted）仓库使用。
type FsUpstream struct {
	fs afero.Fs
}

// NewFsUpstream 以 fsys 的根目录作为仓库根。
func NewFsUpstream(fsys afero.Fs) *FsUpstream {
	return &FsUpstream{fs: fsys}
}

// NewDirUpstream 以磁盘目录 dir 作为仓库根，目录必须已存在。
func NewDirUpstream(dir string) (*FsUpstream, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve hosted path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("hosted path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("hosted path %s is not a directory", abs)
	}
	return NewFsUpstream(afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), abs))), nil
}

// Retrieve 返回文件或目录条目；扩展名无法判断类型的文件会读取文件头识别 zip。
func (u *FsUpstream) Retrieve(ctx context.Context, p string) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	clean := cleanPath(p)
	info, err := u.fs.Stat(clean)
	if err != nil {
		return Item{}, u.translate(clean, err)
	}
	if info.IsDir() {
		return NewCollectionItem(clean, info.ModTime()), nil
	}
	return u.fileItem(ctx, clean, info)
}

// List 返回目录的直接成员，按名称排序。
func (u *FsUpstream) List(ctx context.Context, p string) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := cleanPath(p)
	infos, err := afero.ReadDir(u.fs, clean)
	if err != nil {
		return nil, u.translate(clean, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	items := make([]Item, 0, len(infos))
	for _, info := range infos {
		child := path.Join(clean, info.Name())
		if info.IsDir() {
			items = append(items, NewCollectionItem(child, info.ModTime()))
			continue
		}
		item, err := u.fileItem(ctx, child, info)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (u *FsUpstream) fileItem(ctx context.Context, p string, info fs.FileInfo) (Item, error) {
	open := func(context.Context) (io.ReadCloser, error) {
		f, err := u.fs.Open(p)
		if err != nil {
			return nil, u.translate(p, err)
		}
		return f, nil
	}

	mimeType := GuessMimeType(p)
	if IsGenericMimeType(mimeType) {
		sniffed, err := u.sniff(ctx, p)
		if err != nil {
			return Item{}, err
		}
		switch {
		case sniffed != "":
			mimeType = sniffed
		case mimeType == "":
			mimeType = MimeOctetStream
		}
	}
	return NewFileItem(p, mimeType, info.Size(), info.ModTime(), open), nil
}

func (u *FsUpstream) sniff(ctx context.Context, p string) (string, error) {
	f, err := u.fs.Open(p)
	if err != nil {
		return "", u.translate(p, err)
	}
	defer f.Close()
	return SniffArchiveType(ctx, path.Base(p), f)
}

func (u *FsUpstream) translate(p string, err error) error {
	// 路径中间段是文件时磁盘文件系统返回 ENOTDIR，同样视为不存在。
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return NotFound(p, "")
	}
	return err
}

var _ Upstream = (*FsUpstream)(nil)
