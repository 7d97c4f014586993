package proxy

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/unzip-hub/internal/cache"
	"github.com/any-hub/unzip-hub/internal/config"
	"github.com/any-hub/unzip-hub/internal/pathlock"
	"github.com/any-hub/unzip-hub/internal/server"
)

var fixtureModified = time.Date(2011, 7, 18, 11, 13, 22, 0, time.UTC)

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range []string{"dir/", "dir/test.txt", "dir/subdir/", "dir/subdir/a.txt", "test.txt"} {
		content, ok := files[name]
		if !ok {
			continue
		}
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func sampleArchive(t *testing.T, top string) []byte {
	return zipOf(t, map[string]string{
		"dir/":             "",
		"dir/test.txt":     "some file content",
		"dir/subdir/":      "",
		"dir/subdir/a.txt": "some more content",
		"test.txt":         top,
	})
}

func writeTree(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for rel, body := range files {
		target := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(target, body, 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
		if err := os.Chtimes(target, fixtureModified, fixtureModified); err != nil {
			t.Fatalf("chtimes %s: %v", rel, err)
		}
	}
}

// newHostedApp serves root as a hosted repository on hosted.local.
func newHostedApp(t *testing.T, root string, virtual bool) (*fiber.App, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{
		Global: config.GlobalConfig{ListenPort: 5000, StoragePath: "./unused"},
		Repos: []config.RepoConfig{{
			Name:              "hosted",
			Domain:            "hosted.local",
			Type:              "hosted",
			Upstream:          root,
			UseVirtualVersion: virtual,
		}},
	}
	logs := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(logs)
	logger.SetFormatter(&logrus.JSONFormatter{})

	registry, err := server.NewRepoRegistry(cfg, server.RegistryOptions{
		Store:  cache.NewMemStore(),
		Locks:  pathlock.New(),
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Registry:   registry,
		Handler:    NewForwarder(NewHandler(logger), logger),
		ListenPort: 5000,
	})
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	return app, logs
}

func readBody(t *testing.T, body io.Reader) string {
	t.Helper()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}
