package proxy

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/unzip-hub/internal/logging"
	"github.com/any-hub/unzip-hub/internal/server"
)

// Forwarder 包装仓库处理器：路由缺少仓库时返回 500，处理器 panic 时恢复并返回 500。
type Forwarder struct {
	handler server.RepoHandler
	logger  *logrus.Logger
}

// NewForwarder 创建 Forwarder，handler 为空时所有请求按缺失处理。
func NewForwarder(handler server.RepoHandler, logger *logrus.Logger) *Forwarder {
	return &Forwarder{
		handler: handler,
		logger:  logging.OrDiscard(logger),
	}
}

// Handle 实现 server.RepoHandler。
func (f *Forwarder) Handle(c fiber.Ctx, route *server.RepoRoute) error {
	requestID := server.RequestID(c)
	if f.handler == nil || route == nil || route.Repository == nil {
		return f.respondUnavailable(c, route, requestID)
	}
	return f.invokeHandler(c, route, requestID)
}

func (f *Forwarder) respondUnavailable(c fiber.Ctx, route *server.RepoRoute, requestID string) error {
	f.logRepoError(route, "repo_unavailable", nil, requestID)
	setRequestIDHeader(c, requestID)
	return c.Status(fiber.StatusInternalServerError).
		JSON(fiber.Map{"error": "repo_unavailable"})
}

func (f *Forwarder) invokeHandler(c fiber.Ctx, route *server.RepoRoute, requestID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = f.respondHandlerPanic(c, route, r, requestID)
		}
	}()
	return f.handler.Handle(c, route)
}

func (f *Forwarder) respondHandlerPanic(c fiber.Ctx, route *server.RepoRoute, recovered interface{}, requestID string) error {
	f.logRepoError(route, "handler_panic", fmt.Errorf("panic: %v", recovered), requestID)
	setRequestIDHeader(c, requestID)
	return c.Status(fiber.StatusInternalServerError).
		JSON(fiber.Map{"error": "handler_panic"})
}

func setRequestIDHeader(c fiber.Ctx, requestID string) {
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
}

func (f *Forwarder) logRepoError(route *server.RepoRoute, code string, err error, requestID string) {
	fields := routeFields(route)
	fields["action"] = "serve"
	fields["error"] = code
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		f.logger.WithFields(fields).Error(err.Error())
		return
	}
	f.logger.WithFields(fields).Error("repository unavailable")
}

func routeFields(route *server.RepoRoute) logrus.Fields {
	if route == nil {
		return logging.RequestFields("", "", "", false)
	}
	return logging.RequestFields(route.Config.Name, route.Config.Domain, route.Config.Type, route.Config.UseVirtualVersion)
}
