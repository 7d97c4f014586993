package storage

import (
	"mime"
	"path"
	"strings"
)

const (
	MimeZip         = "application/zip"
	MimeJavaArchive = "application/java-archive"
	MimeOctetStream = "application/octet-stream"
)

// 平台 mime 表缺失或不稳定的扩展名。
var extraMimeTypes = map[string]string{
	"js":         "application/javascript",
	"properties": "text/plain",
	"json":       "application/json",
	"css":        "text/css",
	"less":       "text/css",
	"txt":        "text/plain",
	"xml":        "application/xml",
	"pom":        "application/xml",
	"zip":        MimeZip,
	"jar":        MimeJavaArchive,
	"md5":        "text/plain",
	"sha1":       "text/plain",
	"mf":         "text/plain",
}

// archiveExtensions 不受平台表影响，平台表可能给出 x-java-archive、x-zip-compressed 等别名。
var archiveExtensions = map[string]string{
	"zip": MimeZip,
	"jar": MimeJavaArchive,
}

// archiveAliases 是各平台及上游常见的 zip/jar 别名。
var archiveAliases = map[string]struct{}{
	MimeZip:                        {},
	MimeJavaArchive:                {},
	"application/x-zip-compressed": {},
	"application/x-zip":            {},
	"application/x-java-archive":   {},
}

// GuessMimeType 按扩展名猜测 mime 类型：zip/jar 固定取补充表，其余先查平台表
// （去掉 charset 等参数）再查补充表，均未命中时返回空串。
func GuessMimeType(name string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSuffix(name, "/")))
	if ext == "" {
		return ""
	}
	if archive, ok := archiveExtensions[strings.TrimPrefix(ext, ".")]; ok {
		return archive
	}
	if guessed := mime.TypeByExtension(ext); guessed != "" {
		if mediaType, _, err := mime.ParseMediaType(guessed); err == nil {
			return mediaType
		}
		return guessed
	}
	return extraMimeTypes[strings.TrimPrefix(ext, ".")]
}

// IsArchiveMimeType 判断 mime 类型是否为可展开的 zip 类压缩包。
func IsArchiveMimeType(mimeType string) bool {
	mediaType := mimeType
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mediaType = parsed
	}
	_, ok := archiveAliases[strings.ToLower(mediaType)]
	return ok
}

// IsGenericMimeType 表示 mime 类型缺失或无法区分内容。
func IsGenericMimeType(mimeType string) bool {
	return mimeType == "" || strings.HasPrefix(mimeType, MimeOctetStream)
}
