package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// maxIndexBytes 限制目录索引页大小，防止异常上游撑爆内存。
const maxIndexBytes = 8 << 20

// HTTPUpstream 以 Maven 目录布局的 HTTP(S) 仓库作为上游：文件通过 HEAD 获取元信息、
// GET 获取正文，目录通过解析 HTML 索引页列出成员。
type HTTPUpstream struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPUpstream 基于 base URL 与共享 http.Client 构造上游。
func NewHTTPUpstream(base string, client *http.Client) (*HTTPUpstream, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported upstream scheme: %s", parsed.Scheme)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPUpstream{base: parsed, client: client}, nil
}

// Retrieve 通过 HEAD 获取条目信息；以 / 结尾或被重定向到 / 结尾的路径视为目录。
func (u *HTTPUpstream) Retrieve(ctx context.Context, p string) (Item, error) {
	clean := cleanPath(p)
	if strings.HasSuffix(p, "/") || clean == "/" {
		if _, err := u.fetchIndex(ctx, clean); err != nil {
			return Item{}, err
		}
		return NewCollectionItem(clean, time.Time{}), nil
	}

	resp, err := u.do(ctx, http.MethodHead, clean)
	if err != nil {
		return Item{}, err
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusMethodNotAllowed {
		resp, err = u.do(ctx, http.MethodGet, clean)
		if err != nil {
			return Item{}, err
		}
		resp.Body.Close()
	}
	if err := checkStatus(clean, resp); err != nil {
		return Item{}, err
	}

	if strings.HasSuffix(resp.Request.URL.Path, "/") {
		return NewCollectionItem(clean, lastModified(resp.Header)), nil
	}

	mimeType := responseMimeType(resp.Header)
	if IsGenericMimeType(mimeType) {
		if guessed := GuessMimeType(clean); guessed != "" {
			mimeType = guessed
		}
	}

	open := func(ctx context.Context) (io.ReadCloser, error) {
		resp, err := u.do(ctx, http.MethodGet, clean)
		if err != nil {
			return nil, err
		}
		if err := checkStatus(clean, resp); err != nil {
			resp.Body.Close()
			return nil, err
		}
		return resp.Body, nil
	}
	return NewFileItem(clean, mimeType, resp.ContentLength, lastModified(resp.Header), open), nil
}

// List 解析目录索引页中的相对链接，子目录链接以 / 结尾。
func (u *HTTPUpstream) List(ctx context.Context, p string) ([]Item, error) {
	clean := cleanPath(p)
	body, err := u.fetchIndex(ctx, clean)
	if err != nil {
		return nil, err
	}
	names, err := parseIndexLinks(body)
	if err != nil {
		return nil, fmt.Errorf("parse index of %s: %w", clean, err)
	}

	items := make([]Item, 0, len(names))
	for _, name := range names {
		childPath := path.Join(clean, strings.TrimSuffix(name, "/"))
		if strings.HasSuffix(name, "/") {
			items = append(items, NewCollectionItem(childPath, time.Time{}))
			continue
		}
		child := childPath
		open := func(ctx context.Context) (io.ReadCloser, error) {
			item, err := u.Retrieve(ctx, child)
			if err != nil {
				return nil, err
			}
			return item.Open(ctx)
		}
		items = append(items, NewFileItem(child, GuessMimeType(child), -1, time.Time{}, open))
	}
	return items, nil
}

func (u *HTTPUpstream) fetchIndex(ctx context.Context, clean string) ([]byte, error) {
	dir := clean
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	resp, err := u.do(ctx, http.MethodGet, dir)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(clean, resp); err != nil {
		return nil, err
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxIndexBytes))
}

func (u *HTTPUpstream) do(ctx context.Context, method, p string) (*http.Response, error) {
	target := *u.base
	target.Path = strings.TrimSuffix(u.base.Path, "/") + p
	target.RawPath = ""
	req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream %s %s: %w", method, target.String(), err)
	}
	return resp, nil
}

func checkStatus(p string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return NotFound(p, "not present in upstream")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("upstream %s: unexpected status %d", p, resp.StatusCode)
	}
	return nil
}

func responseMimeType(header http.Header) string {
	raw := header.Get("Content-Type")
	if raw == "" {
		return ""
	}
	if idx := strings.Index(raw, ";"); idx >= 0 {
		raw = raw[:idx]
	}
	return strings.TrimSpace(strings.ToLower(raw))
}

func lastModified(header http.Header) time.Time {
	if raw := header.Get("Last-Modified"); raw != "" {
		if parsed, err := http.ParseTime(raw); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

// parseIndexLinks 收集索引页中指向当前目录直接成员的相对链接。
func parseIndexLinks(body []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var names []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if name, ok := memberName(attr.Val); ok {
					if _, dup := seen[name]; !dup {
						seen[name] = struct{}{}
						names = append(names, name)
					}
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return names, nil
}

func memberName(href string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(href))
	if err != nil || parsed.IsAbs() || parsed.Host != "" || parsed.RawQuery != "" {
		return "", false
	}
	name := parsed.Path
	if name == "" || strings.HasPrefix(name, "/") || strings.HasPrefix(name, "..") || strings.HasPrefix(name, "./") {
		return "", false
	}
	trimmed := strings.TrimSuffix(name, "/")
	if trimmed == "" || strings.Contains(trimmed, "/") {
		return "", false
	}
	return name, true
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

var _ Upstream = (*HTTPUpstream)(nil)
