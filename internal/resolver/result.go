package resolver

// ConversionResult 描述一次路径解析的结果，构造后不可变。
type ConversionResult struct {
	originalPath      string
	convertedPath     string
	latestVersion     string
	pathUpToVersion   string
	snapshotAvailable bool
}

// Unchanged 表示路径无需改写。
func Unchanged(path string) ConversionResult {
	return ConversionResult{
		originalPath:      path,
		convertedPath:     path,
		snapshotAvailable: true,
	}
}

// Converted 表示路径被改写为具体版本。
func Converted(originalPath, convertedPath, latestVersion, pathUpToVersion string) ConversionResult {
	return ConversionResult{
		originalPath:      originalPath,
		convertedPath:     convertedPath,
		latestVersion:     latestVersion,
		pathUpToVersion:   pathUpToVersion,
		snapshotAvailable: true,
	}
}

// NoSnapshot 表示快照目录下没有版本元数据，该版本在上游并不存在。
func NoSnapshot(originalPath, pathUpToVersion string) ConversionResult {
	return ConversionResult{
		originalPath:      originalPath,
		convertedPath:     originalPath,
		pathUpToVersion:   pathUpToVersion,
		snapshotAvailable: false,
	}
}

func (r ConversionResult) OriginalPath() string  { return r.originalPath }
func (r ConversionResult) ConvertedPath() string { return r.convertedPath }

// PathConverted 当且仅当改写后的路径与原路径不同。
func (r ConversionResult) PathConverted() bool {
	return r.convertedPath != r.originalPath
}

// SnapshotAvailable 为 false 表示找不到任何版本元数据。
func (r ConversionResult) SnapshotAvailable() bool { return r.snapshotAvailable }

// LatestVersion 返回被替换进路径的具体版本，仅在 PathConverted 时有值。
func (r ConversionResult) LatestVersion() (string, bool) {
	if !r.PathConverted() {
		return "", false
	}
	return r.latestVersion, true
}

// PathUpToVersion 返回版本号之前（含）的路径前缀，用于构造改写路径与限定清理范围。
func (r ConversionResult) PathUpToVersion() (string, bool) {
	return r.pathUpToVersion, r.pathUpToVersion != ""
}

// NeedsPrune 表示该结果是否应触发过期快照清理。
func (r ConversionResult) NeedsPrune() bool {
	return r.PathConverted() || !r.snapshotAvailable
}
