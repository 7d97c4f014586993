package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/unzip-hub/internal/config"
	"github.com/any-hub/unzip-hub/internal/pathlock"
	"github.com/any-hub/unzip-hub/internal/proxy"
	"github.com/any-hub/unzip-hub/internal/server"
	"github.com/any-hub/unzip-hub/internal/server/routes"
)

func archiveWith(t *testing.T, top string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, m := range []struct{ name, content string }{
		{"dir/", ""},
		{"dir/test.txt", "some file content"},
		{"test.txt", top},
	} {
		f, err := w.Create(m.name)
		if err != nil {
			t.Fatalf("create %s: %v", m.name, err)
		}
		if _, err := f.Write([]byte(m.content)); err != nil {
			t.Fatalf("write %s: %v", m.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// newHubApp 组装与 main 相同的处理链，额外返回路径锁注册表用于断言。
func newHubApp(t *testing.T, cfg *config.Config) (*fiber.App, *pathlock.Registry) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	locks := pathlock.New()
	registry, err := server.NewRepoRegistry(cfg, server.RegistryOptions{
		Client: server.NewUpstreamClient(cfg),
		Logger: logger,
		Locks:  locks,
	})
	if err != nil {
		t.Fatalf("registry error: %v", err)
	}
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Registry:   registry,
		Handler:    proxy.NewForwarder(proxy.NewHandler(logger), logger),
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}
	routes.RegisterRepoRoutes(app, registry)
	return app, locks
}

func get(t *testing.T, app *fiber.App, host, target string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "http://"+host+target, nil)
	req.Host = host
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("GET %s%s: %v", host, target, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, body
}

func memberNames(t *testing.T, body []byte) []string {
	t.Helper()
	var payload struct {
		Members []struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		} `json:"members"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode listing %s: %v", body, err)
	}
	names := make([]string, 0, len(payload.Members))
	for _, m := range payload.Members {
		names = append(names, m.Name+":"+m.Kind)
	}
	return names
}
