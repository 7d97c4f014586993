package integration

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

type stubFile struct {
	body        []byte
	contentType string
}

// mavenStub 模拟 Maven 布局的 HTTP 仓库：文件支持 HEAD/GET，目录返回 HTML 索引页。
type mavenStub struct {
	server   *httptest.Server
	URL      string
	modified time.Time

	mu    sync.Mutex
	files map[string]stubFile
	gets  map[string]int
}

func newMavenStub(t *testing.T) *mavenStub {
	t.Helper()
	stub := &mavenStub{
		files:    make(map[string]stubFile),
		gets:     make(map[string]int),
		modified: time.Date(2011, 7, 18, 11, 13, 22, 0, time.UTC),
	}
	stub.server = httptest.NewServer(http.HandlerFunc(stub.serve))
	stub.URL = stub.server.URL + "/repo"
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *mavenStub) Put(p string, body []byte, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files["/repo"+p] = stubFile{body: body, contentType: contentType}
}

// Gets 返回某路径收到的 GET 次数。
func (s *mavenStub) Gets(p string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets["/repo"+p]
}

func (s *mavenStub) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if r.Method == http.MethodGet {
		s.gets[r.URL.Path]++
	}
	file, isFile := s.files[r.URL.Path]
	var members []string
	if strings.HasSuffix(r.URL.Path, "/") {
		members = s.membersLocked(r.URL.Path)
	}
	s.mu.Unlock()

	switch {
	case isFile:
		if file.contentType != "" {
			w.Header().Set("Content-Type", file.contentType)
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(file.body)))
		w.Header().Set("Last-Modified", s.modified.Format(http.TimeFormat))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(file.body)
	case len(members) > 0:
		w.Header().Set("Content-Type", "text/html")
		var b strings.Builder
		b.WriteString(`<html><body><a href="../">../</a>`)
		for _, m := range members {
			fmt.Fprintf(&b, `<a href="%s">%s</a>`, m, m)
		}
		b.WriteString(`</body></html>`)
		_, _ = w.Write([]byte(b.String()))
	default:
		http.NotFound(w, r)
	}
}

func (s *mavenStub) membersLocked(dir string) []string {
	seen := map[string]struct{}{}
	for p := range s.files {
		if !strings.HasPrefix(p, dir) {
			continue
		}
		rest := strings.TrimPrefix(p, dir)
		if idx := strings.Index(rest, "/"); idx >= 0 {
			rest = rest[:idx+1]
		}
		seen[rest] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
