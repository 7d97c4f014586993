package zipview

import "strings"

// Suffix 追加在归档路径后，表示把该归档当作目录浏览。
const Suffix = "-unzip"

// SplitPath 在第一个以 Suffix 结尾的路径段处拆分请求路径，返回归档路径（去掉后缀）
// 与归档内路径。路径中没有该后缀时 ok 为 false。
func SplitPath(p string) (archivePath, innerPath string, ok bool) {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		if len(seg) <= len(Suffix) || !strings.HasSuffix(seg, Suffix) {
			continue
		}
		archive := strings.Join(segments[:i+1], "/")
		return strings.TrimSuffix(archive, Suffix), strings.Join(segments[i+1:], "/"), true
	}
	return "", "", false
}

// ExternalPath 返回归档内条目对外可见的路径。
func ExternalPath(archivePath, innerPath string) string {
	if innerPath == "" {
		return archivePath + Suffix
	}
	return archivePath + Suffix + "/" + innerPath
}

// trimTrailingSlash 只去掉一个结尾的 "/"。
func trimTrailingSlash(p string) string {
	return strings.TrimSuffix(p, "/")
}
