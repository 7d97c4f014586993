package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 表示路径、版本或压缩包内条目不存在。
	ErrNotFound = errors.New("item not found")
	// ErrUnsupportedOperation 表示对只读视图的写操作。
	ErrUnsupportedOperation = errors.New("unsupported storage operation")
	// ErrIllegalRequest 表示请求参数非法，例如无法解析的版本范围。
	ErrIllegalRequest = errors.New("illegal request")
)

// NotFoundError 携带缺失路径与原因，errors.Is(err, ErrNotFound) 成立。
type NotFoundError struct {
	Path   string
	Reason string
}

func (e *NotFoundError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", e.Path, ErrNotFound)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NotFound 是 NotFoundError 的快捷构造。
func NotFound(path, reason string) error {
	return &NotFoundError{Path: path, Reason: reason}
}

// InconsistentMetadataError 表示 maven-metadata.xml 存在但缺少必需元素，属于上游损坏。
type InconsistentMetadataError struct {
	Path       string
	Element    string
	Repository string
}

func (e *InconsistentMetadataError) Error() string {
	return fmt.Sprintf("%s does not contain %s information in repository %s", e.Path, e.Element, e.Repository)
}

// IsNotFound 是 errors.Is(err, ErrNotFound) 的简写。
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
