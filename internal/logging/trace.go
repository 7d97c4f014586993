package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// ServeTrace 记录单次请求的耗时。
type ServeTrace struct {
	logger *logrus.Logger
	fields logrus.Fields
	path   string
	start  time.Time
}

// StartServe 开始计时，fields 通常来自 RequestFields。
func StartServe(logger *logrus.Logger, fields logrus.Fields, path string) *ServeTrace {
	return &ServeTrace{
		logger: OrDiscard(logger),
		fields: fields,
		path:   path,
		start:  time.Now(),
	}
}

// Finish 输出 action=serve 的结构化日志，debug 级别额外输出一行可读的耗时。
func (t *ServeTrace) Finish(convertedPath string, status int) time.Duration {
	elapsed := time.Since(t.start)
	if convertedPath == "" {
		convertedPath = t.path
	}

	entry := t.logger.WithFields(t.fields).WithFields(logrus.Fields{
		"action":         "serve",
		"path":           t.path,
		"converted_path": convertedPath,
		"status":         status,
		"elapsed_ms":     elapsed.Milliseconds(),
	})
	switch {
	case status >= 500:
		entry.Error("request failed")
	case status >= 400:
		entry.Warn("request rejected")
	default:
		entry.Info("request served")
	}

	if t.logger.IsLevelEnabled(logrus.DebugLevel) {
		t.logger.Debugf("served request in %dms: %s", elapsed.Milliseconds(), t.path)
	}
	return elapsed
}
