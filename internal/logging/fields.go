package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供仓库/域名/类型/虚拟版本开关字段，供请求日志复用。
func RequestFields(repo, domain, kind string, virtual bool) logrus.Fields {
	return logrus.Fields{
		"repo":            repo,
		"domain":          domain,
		"repo_type":       kind,
		"virtual_version": virtual,
	}
}

// OrDiscard 在 logger 为 nil 时返回丢弃全部输出的 logger，便于组件在测试中零配置使用。
func OrDiscard(logger *logrus.Logger) *logrus.Logger {
	if logger != nil {
		return logger
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return discard
}
