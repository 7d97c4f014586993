package zipview

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/any-hub/unzip-hub/internal/storage"
)

// closingStream 在关闭条目流的同时关闭归档文件句柄。
type closingStream struct {
	io.ReadCloser
	archive io.Closer
}

func (s *closingStream) Close() error {
	return errors.Join(s.ReadCloser.Close(), s.archive.Close())
}

// Open 重新打开归档并返回条目正文流，关闭流时归档一并关闭。
func (e *Entry) Open(ctx context.Context) (io.ReadCloser, error) {
	if e.dir {
		return nil, fmt.Errorf("%s: collections have no content", e.Path())
	}
	r, closer, err := openArchive(ctx, e.local)
	if err != nil {
		return nil, err
	}
	for f := range files(r) {
		if trimTrailingSlash(f.Name) != e.innerPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			closer.Close()
			return nil, fmt.Errorf("open %s: %w", e.Path(), err)
		}
		return &closingStream{ReadCloser: rc, archive: closer}, nil
	}
	closer.Close()
	return nil, storage.NotFound(e.Path(), "the path within the zip file does not point to an existing zip entry")
}
