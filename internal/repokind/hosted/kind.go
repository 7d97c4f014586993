// Package hosted 注册本地目录仓库类型，目录树以只读方式暴露。
package hosted

import (
	"errors"

	"github.com/any-hub/unzip-hub/internal/repokind"
	"github.com/any-hub/unzip-hub/internal/storage"
)

const Key = "hosted"

func init() {
	repokind.MustRegister(repokind.Kind{
		Key:         Key,
		Description: "local directory tree served read-only",
		Validate: func(upstream string) error {
			if upstream == "" {
				return errors.New("缺少仓库目录")
			}
			return nil
		},
		Open: func(opts repokind.Options) (storage.Upstream, error) {
			return storage.NewDirUpstream(opts.Upstream)
		},
	})
}
