package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别 "30s"、"5m" 或纯数字秒值等写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// GlobalConfig 描述全局运行时行为，所有仓库共享。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	StoragePath     string   `mapstructure:"StoragePath"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// RepoConfig 描述一个可浏览的仓库：通过 Domain 路由，Upstream 的含义取决于 Type。
type RepoConfig struct {
	Name              string `mapstructure:"Name"`
	Domain            string `mapstructure:"Domain"`
	Type              string `mapstructure:"Type"`
	Upstream          string `mapstructure:"Upstream"`
	UseVirtualVersion bool   `mapstructure:"UseVirtualVersion"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Repos  []RepoConfig `mapstructure:"Repo"`
}

// VersionMode 输出 `virtual` 或 `plain`，供日志字段使用。
func (r RepoConfig) VersionMode() string {
	if r.UseVirtualVersion {
		return "virtual"
	}
	return "plain"
}

// RepoSummaries 返回所有仓库的摘要，例如 central:proxy:virtual。
func RepoSummaries(repos []RepoConfig) []string {
	if len(repos) == 0 {
		return nil
	}
	result := make([]string, len(repos))
	for i, repo := range repos {
		result[i] = fmt.Sprintf("%s:%s:%s", repo.Name, repo.Type, repo.VersionMode())
	}
	return result
}
