package zipview

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"

	"github.com/any-hub/unzip-hub/internal/cache"
	"github.com/any-hub/unzip-hub/internal/pathlock"
	"github.com/any-hub/unzip-hub/internal/resolver"
	"github.com/any-hub/unzip-hub/internal/storage"
)

type zipMember struct {
	name    string
	content string
}

// sampleArchive mirrors the layout used throughout the tests:
//
//	dir/
//	dir/test.txt
//	dir/subdir/
//	dir/subdir/a.txt
//	dir2/
//	dir2/x.properties
//	test.txt
var sampleArchive = []zipMember{
	{name: "dir/"},
	{name: "dir/test.txt", content: "some file content"},
	{name: "dir/subdir/"},
	{name: "dir/subdir/a.txt", content: "some more content"},
	{name: "dir2/"},
	{name: "dir2/x.properties", content: "x=1"},
	{name: "test.txt", content: "some content"},
}

var archiveModified = time.Date(2011, 7, 18, 11, 13, 22, 0, time.UTC)

func buildZip(t *testing.T, members []zipMember) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, m := range members {
		f, err := w.Create(m.name)
		if err != nil {
			t.Fatalf("create %s: %v", m.name, err)
		}
		if m.content != "" {
			if _, err := f.Write([]byte(m.content)); err != nil {
				t.Fatalf("write %s: %v", m.name, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// fixture is an in-memory upstream tree with an archive cache on top.
type fixture struct {
	fs       afero.Fs
	upstream storage.Upstream
	archives *cache.ArchiveCache
	resolver *resolver.Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fsys := afero.NewMemMapFs()
	upstream := storage.NewFsUpstream(fsys)
	locks := pathlock.New()
	return &fixture{
		fs:       fsys,
		upstream: upstream,
		archives: cache.NewArchiveCache(cache.NewMemStore(), upstream, "test", cache.WithArchiveLocks(locks)),
		resolver: resolver.New(upstream, "test", resolver.WithLocks(locks)),
	}
}

func (f *fixture) write(t *testing.T, p string, body []byte) {
	t.Helper()
	if err := afero.WriteFile(f.fs, p, body, 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	if err := f.fs.Chtimes(p, archiveModified, archiveModified); err != nil {
		t.Fatalf("chtimes %s: %v", p, err)
	}
}

func (f *fixture) local(t *testing.T, archivePath string) cache.LocalFile {
	t.Helper()
	local, err := f.archives.EnsureLocal(context.Background(), archivePath)
	if err != nil {
		t.Fatalf("ensure local %s: %v", archivePath, err)
	}
	return local
}

func names(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name())
	}
	return out
}
