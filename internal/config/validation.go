package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/unzip-hub/internal/repokind"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if g.LogLevel != "" {
		if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
			return newFieldError("Global.LogLevel", fmt.Sprintf("无法识别: %s", g.LogLevel))
		}
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}

	if len(c.Repos) == 0 {
		return errors.New("至少需要配置一个 Repo")
	}

	seenNames := map[string]struct{}{}
	seenDomains := map[string]string{}
	for i := range c.Repos {
		repo := &c.Repos[i]
		if repo.Name == "" {
			return newFieldError("Repo[].Name", "不能为空")
		}
		if strings.ContainsAny(repo.Name, "/\\") || strings.Contains(repo.Name, "..") {
			return newFieldError(repoField(repo.Name, "Name"), "不能包含路径分隔符")
		}
		if _, exists := seenNames[repo.Name]; exists {
			return newFieldError(repoField(repo.Name, "Name"), "重复")
		}
		seenNames[repo.Name] = struct{}{}

		if err := validateDomain(repo.Domain); err != nil {
			return fmt.Errorf("%s: %w", repoField(repo.Name, "Domain"), err)
		}
		domain := strings.ToLower(repo.Domain)
		if owner, exists := seenDomains[domain]; exists {
			return newFieldError(repoField(repo.Name, "Domain"), fmt.Sprintf("与 %s 重复", owner))
		}
		seenDomains[domain] = repo.Name

		normalizedType := strings.ToLower(strings.TrimSpace(repo.Type))
		if normalizedType == "" {
			return newFieldError(repoField(repo.Name, "Type"), "不能为空")
		}
		kind, ok := repokind.Resolve(normalizedType)
		if !ok {
			return newFieldError(repoField(repo.Name, "Type"), "仅支持 "+strings.Join(repokind.Keys(), "|"))
		}
		repo.Type = kind.Key

		if kind.Validate != nil {
			if err := kind.Validate(repo.Upstream); err != nil {
				return fmt.Errorf("%s: %w", repoField(repo.Name, "Upstream"), err)
			}
		}
	}

	return nil
}

func validateDomain(domain string) error {
	if domain == "" {
		return errors.New("Domain 不能为空")
	}
	if strings.Contains(domain, "/") {
		return errors.New("Domain 不允许包含路径")
	}
	if strings.Contains(domain, " ") {
		return errors.New("Domain 不允许包含空格")
	}
	if strings.HasPrefix(domain, "http") {
		return errors.New("Domain 不应包含协议头")
	}
	return nil
}
