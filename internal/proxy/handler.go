package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/unzip-hub/internal/logging"
	"github.com/any-hub/unzip-hub/internal/maven"
	"github.com/any-hub/unzip-hub/internal/repository"
	"github.com/any-hub/unzip-hub/internal/server"
	"github.com/any-hub/unzip-hub/internal/storage"
	"github.com/any-hub/unzip-hub/internal/zipview"
)

// rangeParam 携带 Maven 版本区间，例如 ?range=[1.0,2.0)。
const rangeParam = "range"

// Handler 把请求交给仓库解析：文件直接流式返回，目录返回 JSON 成员列表。
type Handler struct {
	logger *logrus.Logger
}

// NewHandler 构造 Handler，logger 为空时丢弃日志。
func NewHandler(logger *logrus.Logger) *Handler {
	return &Handler{logger: logging.OrDiscard(logger)}
}

// Handle 实现 server.RepoHandler。
func (h *Handler) Handle(c fiber.Ctx, route *server.RepoRoute) error {
	reqPath := requestPath(c)
	fields := logging.RequestFields(route.Config.Name, route.Config.Domain, route.Config.Type, route.Config.UseVirtualVersion)
	fields["method"] = c.Method()
	if requestID := server.RequestID(c); requestID != "" {
		fields["request_id"] = requestID
	}
	trace := logging.StartServe(h.logger, fields, reqPath)

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	repo := route.Repository
	var (
		converted string
		err       error
	)
	switch c.Method() {
	case http.MethodGet, http.MethodHead:
		converted, err = h.serve(ctx, c, repo, reqPath)
	case http.MethodPut, http.MethodPost:
		err = repo.Store(ctx, reqPath)
	case http.MethodDelete:
		err = repo.Delete(ctx, reqPath)
	default:
		err = fmt.Errorf("%s %s: %w", c.Method(), reqPath, storage.ErrUnsupportedOperation)
	}
	if err != nil {
		status, code := classifyError(err)
		h.logger.WithFields(fields).WithFields(logrus.Fields{
			"action": "serve",
			"error":  code,
		}).Debug(err.Error())
		writeErr := c.Status(status).JSON(fiber.Map{"error": code, "message": err.Error()})
		trace.Finish(converted, status)
		return writeErr
	}
	trace.Finish(converted, c.Response().StatusCode())
	return nil
}

// serve 解析路径并写出响应，返回解析后的路径供日志使用。
func (h *Handler) serve(ctx context.Context, c fiber.Ctx, repo *repository.Repository, reqPath string) (string, error) {
	rng, err := parseRange(c.Query(rangeParam))
	if err != nil {
		return "", err
	}

	result, err := repo.ResolveAndServe(ctx, reqPath, rng)
	if err != nil {
		return "", err
	}
	converted := result.Conversion.ConvertedPath()
	node := result.Node

	if node.IsDir() {
		members, err := repo.List(ctx, node)
		if err != nil {
			return converted, err
		}
		return converted, c.Status(fiber.StatusOK).JSON(encodeListing(node, members))
	}
	return converted, sendFile(ctx, c, node)
}

func sendFile(ctx context.Context, c fiber.Ctx, node zipview.Node) error {
	contentType := node.MimeType
	if contentType == "" {
		contentType = storage.MimeOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	if !node.Modified.IsZero() {
		c.Set(fiber.HeaderLastModified, node.Modified.UTC().Format(http.TimeFormat))
	}
	c.Status(fiber.StatusOK)

	if c.Method() == http.MethodHead {
		if node.Size >= 0 {
			c.Set(fiber.HeaderContentLength, strconv.FormatInt(node.Size, 10))
		}
		return nil
	}

	body, err := node.Open(ctx)
	if err != nil {
		return err
	}
	size := -1
	if node.Size >= 0 {
		size = int(node.Size)
	}
	// fasthttp 在写完响应后关闭 body。
	return c.SendStream(body, size)
}

func parseRange(raw string) (*maven.VersionRange, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	rng, err := maven.ParseVersionRange(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid version range %q: %v", storage.ErrIllegalRequest, raw, err)
	}
	return rng, nil
}

// classifyError 把仓库错误映射为 HTTP 状态码与错误码。
func classifyError(err error) (int, string) {
	var inconsistent *storage.InconsistentMetadataError
	switch {
	case storage.IsNotFound(err):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, storage.ErrIllegalRequest):
		return fiber.StatusBadRequest, "illegal_request"
	case errors.Is(err, storage.ErrUnsupportedOperation):
		return fiber.StatusMethodNotAllowed, "unsupported_operation"
	case errors.As(err, &inconsistent):
		return fiber.StatusBadGateway, "inconsistent_metadata"
	default:
		return fiber.StatusBadGateway, "upstream_failed"
	}
}

func requestPath(c fiber.Ctx) string {
	pathVal := string(c.Request().URI().Path())
	if pathVal == "" {
		return "/"
	}
	return pathVal
}

type listing struct {
	Path    string          `json:"path"`
	Kind    string          `json:"kind"`
	Members []listingMember `json:"members"`
}

type listingMember struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	Kind     string     `json:"kind"`
	Size     int64      `json:"size"`
	MimeType string     `json:"mime_type,omitempty"`
	Modified *time.Time `json:"modified,omitempty"`
}

func encodeListing(dir zipview.Node, members []zipview.Node) listing {
	out := listing{
		Path:    dir.Path,
		Kind:    dir.Kind.String(),
		Members: make([]listingMember, 0, len(members)),
	}
	for _, m := range members {
		member := listingMember{
			Name:     m.Name(),
			Path:     m.Path,
			Kind:     m.Kind.String(),
			Size:     m.Size,
			MimeType: m.MimeType,
		}
		if !m.Modified.IsZero() {
			modified := m.Modified.UTC()
			member.Modified = &modified
		}
		out.Members = append(out.Members, member)
	}
	return out
}
