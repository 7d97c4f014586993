package cache

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
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/any-hub/unzip-hub/internal/pathlock"
)

// NewStore 以 basePath 为根目录构建磁盘缓存，整站复用一份实例。
func NewStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return NewStoreOnFs(afero.NewBasePathFs(afero.NewOsFs(), abs)), nil
}

// NewMemStore 构建纯内存缓存，供测试与临时仓库使用。
func NewMemStore() Store {
	return NewStoreOnFs(afero.NewMemMapFs())
}

// NewStoreOnFs 在任意 afero 文件系统上构建缓存，路径以 "/" 为根。
func NewStoreOnFs(fsys afero.Fs) Store {
	return &fileStore{
		fs:    fsys,
		locks: pathlock.New(),
	}
}

// fileStore 通过按条目划分的路径锁避免同一 Locator 并发写入。
type fileStore struct {
	fs    afero.Fs
	locks *pathlock.Registry
}

func (s *fileStore) Stat(ctx context.Context, locator Locator) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, err := s.entryPath(locator)
	if err != nil {
		return nil, err
	}
	info, err := s.fs.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	entry := s.entry(locator, name, info)
	return &entry, nil
}

func (s *fileStore) Get(ctx context.Context, locator Locator) (*ReadResult, error) {
	entry, err := s.Stat(ctx, locator)
	if err != nil {
		return nil, err
	}
	if entry.IsDir {
		return nil, ErrNotFound
	}

	name, _ := s.entryPath(locator)
	f, err := s.fs.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &ReadResult{
		Entry:  *entry,
		Reader: f,
	}, nil
}

func (s *fileStore) Put(ctx context.Context, locator Locator, body io.Reader, opts PutOptions) (*Entry, error) {
	name, err := s.entryPath(locator)
	if err != nil {
		return nil, err
	}

	return pathlock.Locked(s.locks, locatorKey(locator), func() (*Entry, error) {
		dir := path.Dir(name)
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}

		tempFile, err := afero.TempFile(s.fs, dir, ".cache-*")
		if err != nil {
			return nil, err
		}
		tempName := tempFile.Name()

		written, err := copyWithContext(ctx, tempFile, body)
		closeErr := tempFile.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			s.fs.Remove(tempName)
			return nil, err
		}

		if err := s.fs.Rename(tempName, name); err != nil {
			s.fs.Remove(tempName)
			return nil, err
		}

		modTime := opts.ModTime
		if modTime.IsZero() {
			modTime = time.Now().UTC()
		}
		if err := s.fs.Chtimes(name, modTime, modTime); err != nil {
			return nil, err
		}

		return &Entry{
			Locator:   locator,
			FilePath:  s.realPath(name),
			SizeBytes: written,
			ModTime:   modTime,
		}, nil
	})
}

func (s *fileStore) Remove(ctx context.Context, locator Locator) error {
	name, err := s.entryPath(locator)
	if err != nil {
		return err
	}

	return s.locks.Do(locatorKey(locator), func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.fs.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	})
}

func (s *fileStore) List(ctx context.Context, locator Locator) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, err := s.entryPath(locator)
	if err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(s.fs, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	base := locator.Path
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		if strings.HasPrefix(info.Name(), ".cache-") {
			continue
		}
		child := Locator{RepoName: locator.RepoName, Path: base + info.Name()}
		entries = append(entries, s.entry(child, path.Join(name, info.Name()), info))
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Locator.Path < entries[j].Locator.Path
	})
	return entries, nil
}

func (s *fileStore) entry(locator Locator, name string, info fs.FileInfo) Entry {
	entry := Entry{
		Locator:  locator,
		FilePath: s.realPath(name),
		ModTime:  info.ModTime(),
		IsDir:    info.IsDir(),
	}
	if !info.IsDir() {
		entry.SizeBytes = info.Size()
	}
	return entry
}

// realPath 返回条目在宿主文件系统上的位置，内存文件系统直接返回虚拟路径。
func (s *fileStore) realPath(name string) string {
	if base, ok := s.fs.(*afero.BasePathFs); ok {
		if real, err := base.RealPath(name); err == nil {
			return real
		}
	}
	return name
}

func (s *fileStore) entryPath(locator Locator) (string, error) {
	if locator.RepoName == "" {
		return "", errors.New("repo name required")
	}
	if strings.Contains(locator.RepoName, "/") || strings.Contains(locator.RepoName, "..") {
		return "", errors.New("invalid repo name")
	}

	rel := path.Clean("/" + locator.Path)
	root := "/" + locator.RepoName
	if rel == "/" {
		return root, nil
	}
	return root + rel, nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}

func locatorKey(locator Locator) string {
	return pathlock.Key(locator.RepoName, locator.Path)
}
