// Package proxy 注册 Maven 布局的 HTTP(S) 远程仓库类型：文件走 GET，元信息走 HEAD，
// 目录列表解析上游的 HTML 索引页。
package proxy

import (
	"fmt"
	"net/url"

	"github.com/any-hub/unzip-hub/internal/repokind"
	"github.com/any-hub/unzip-hub/internal/storage"
)

// Key 是配置中 Type 字段的取值。
const Key = "proxy"

func init() {
	repokind.MustRegister(repokind.Kind{
		Key:         Key,
		Description: "remote Maven layout repository over HTTP(S)",
		Validate:    validateUpstream,
		Open: func(opts repokind.Options) (storage.Upstream, error) {
			return storage.NewHTTPUpstream(opts.Upstream, opts.Client)
		},
	})
}

func validateUpstream(raw string) error {
	if raw == "" {
		return fmt.Errorf("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
