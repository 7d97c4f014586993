// Package repokind 登记仓库的上游类型（proxy、hosted 等），并提供统一的注册入口。
//
// 新类型需要：
//   1. 在 internal/repokind/<kind>/ 目录下实现 storage.Upstream 的构造逻辑；
//   2. 在 init() 中调用 MustRegister 注册 Kind；
//   3. 在 internal/config/kinds.go 中以空白导入启用。
package repokind
