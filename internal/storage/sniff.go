package storage

import (
	"context"
	"io"

	"github.com/mholt/archives"
)

// SniffArchiveType 通过文件头识别 zip 结构，命中时返回 MimeZip（.jar 返回 MimeJavaArchive），
// 否则返回空串。stream 会被读取少量字节。
func SniffArchiveType(ctx context.Context, name string, stream io.Reader) (string, error) {
	result, err := archives.Zip{}.Match(ctx, name, stream)
	if err != nil {
		return "", err
	}
	if !result.ByStream {
		return "", nil
	}
	if GuessMimeType(name) == MimeJavaArchive {
		return MimeJavaArchive, nil
	}
	return MimeZip, nil
}
