package maven

import "errors"

var (
	// ErrNoVersions 表示元数据没有列出任何版本。
	ErrNoVersions = errors.New(MetadataFileName + " does not contain any version")
	// ErrNoVersionInRange 表示没有候选版本落在请求的范围内。
	ErrNoVersionInRange = errors.New("no version found within range")
)

// SelectVersion 在 versioning 中选择适用的具体版本：取 Maven 排序下的最高版本
// （includeSnapshots 为 false 时忽略快照），<latest>/<release> 标记不参与判断。
// 若给定 rng 且最高版本不在范围内，则改选范围内的最高候选。
func SelectVersion(versioning *Versioning, rng *VersionRange, includeSnapshots bool) (string, error) {
	latest, err := LatestVersion(versioning, includeSnapshots)
	if err != nil {
		return "", err
	}
	if rng == nil || rng.Contains(latest) {
		return latest, nil
	}

	candidates := make([]string, 0, len(versioning.Versions))
	for _, v := range versioning.Versions {
		if includeSnapshots || !IsSnapshot(v) {
			candidates = append(candidates, v)
		}
	}
	matched, ok := rng.Match(candidates)
	if !ok {
		return "", ErrNoVersionInRange
	}
	return matched, nil
}

// LatestVersion 返回最高版本。
func LatestVersion(versioning *Versioning, includeSnapshots bool) (string, error) {
	if versioning == nil {
		return "", ErrNoVersions
	}
	var (
		best    string
		bestVer Version
		found   bool
	)
	for _, v := range versioning.Versions {
		if v == "" || (!includeSnapshots && IsSnapshot(v)) {
			continue
		}
		parsed := ParseVersion(v)
		if !found || parsed.Compare(bestVer) > 0 {
			best, bestVer, found = v, parsed, true
		}
	}
	if !found {
		return "", ErrNoVersions
	}
	return best, nil
}
