package resolver

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/any-hub/unzip-hub/internal/maven"
	"github.com/any-hub/unzip-hub/internal/storage"
)

var (
	// 具体快照目录 + 文件名中的 SNAPSHOT：.../0.1.0-SNAPSHOT/name-0.1.0-SNAPSHOT.zip
	snapshotPattern = regexp.MustCompile(`^(.*/(?:\d*\.?)+(?:-\w+)*-SNAPSHOT/)([^/]*-)SNAPSHOT[^/]`)
	// 符号版本目录 SNAPSHOT：.../SNAPSHOT/name-SNAPSHOT.zip
	latestVersionPattern = regexp.MustCompile(`/SNAPSHOT/([^/]*)-SNAPSHOT[^/]`)
	// 符号版本目录 RELEASE：.../RELEASE/name-RELEASE.zip
	releasePattern = regexp.MustCompile(`/RELEASE/([^/]*)-RELEASE[^/]`)
)

// metadataReader 在路径锁保护下读取并解析版本元数据。
type metadataReader interface {
	versioning(ctx context.Context, metadataPath string) (*maven.Versioning, error)
	repository() string
}

// parsedRequest 是请求路径的分类结果，resolve 只调用一次。
type parsedRequest interface {
	resolve(ctx context.Context, md metadataReader) (ConversionResult, error)
}

// parseRequest 依次尝试快照、SNAPSHOT、RELEASE 三种形态，首个命中者生效。
func parseRequest(path string, rng *maven.VersionRange) parsedRequest {
	if m := snapshotPattern.FindStringSubmatchIndex(path); m != nil {
		versionDir := path[m[2]:m[3]]
		return snapshotRequest{
			path:            path,
			versionDir:      versionDir,
			pathUpToVersion: versionDir + path[m[4]:m[5]],
			nameEnd:         path[m[1]-1:],
		}
	}
	if m := latestVersionPattern.FindStringSubmatchIndex(path); m != nil {
		return latestVersionRequest{symbolicRequest: newSymbolicRequest(path, m, rng)}
	}
	if m := releasePattern.FindStringSubmatchIndex(path); m != nil {
		return latestReleaseRequest{symbolicRequest: newSymbolicRequest(path, m, rng)}
	}
	return unchangedRequest{path: path}
}

type unchangedRequest struct {
	path string
}

func (r unchangedRequest) resolve(context.Context, metadataReader) (ConversionResult, error) {
	return Unchanged(r.path), nil
}

// snapshotRequest 把文件名中的 SNAPSHOT 替换为版本目录元数据里的 timestamp-buildNumber。
type snapshotRequest struct {
	path            string
	versionDir      string
	pathUpToVersion string
	nameEnd         string
}

func (r snapshotRequest) resolve(ctx context.Context, md metadataReader) (ConversionResult, error) {
	metadataPath := r.versionDir + maven.MetadataFileName
	versioning, err := md.versioning(ctx, metadataPath)
	if err != nil {
		if storage.IsNotFound(err) {
			return NoSnapshot(r.path, r.pathUpToVersion), nil
		}
		return ConversionResult{}, err
	}
	latest, err := currentSnapshot(md, metadataPath, versioning)
	if err != nil {
		return ConversionResult{}, err
	}
	return Converted(r.path, r.pathUpToVersion+latest+r.nameEnd, latest, r.pathUpToVersion), nil
}

func currentSnapshot(md metadataReader, metadataPath string, versioning *maven.Versioning) (string, error) {
	if versioning == nil {
		return "", &storage.InconsistentMetadataError{Path: metadataPath, Element: "versioning", Repository: md.repository()}
	}
	if !versioning.Snapshot.Current() {
		return "", &storage.InconsistentMetadataError{Path: metadataPath, Element: "current snapshot", Repository: md.repository()}
	}
	return versioning.Snapshot.TimestampVersion(), nil
}

// symbolicRequest 是 SNAPSHOT/RELEASE 两种符号版本目录共享的路径片段。
type symbolicRequest struct {
	path              string
	groupArtifactPath string
	artifactNameStart string
	artifactNameEnd   string
	rng               *maven.VersionRange
}

func newSymbolicRequest(path string, m []int, rng *maven.VersionRange) symbolicRequest {
	return symbolicRequest{
		path:              path,
		groupArtifactPath: path[:m[0]],
		artifactNameStart: path[m[2]:m[3]],
		artifactNameEnd:   path[m[1]-1:],
		rng:               rng,
	}
}

func (r symbolicRequest) metadataPath() string {
	return r.groupArtifactPath + "/" + maven.MetadataFileName
}

func (r symbolicRequest) outerVersioning(ctx context.Context, md metadataReader) (*maven.Versioning, error) {
	versioning, err := md.versioning(ctx, r.metadataPath())
	if err != nil {
		return nil, err
	}
	if versioning == nil {
		return nil, &storage.InconsistentMetadataError{Path: r.metadataPath(), Element: "versioning", Repository: md.repository()}
	}
	return versioning, nil
}

// latestVersionRequest 解析到最高版本（含快照），快照再下钻到时间戳版本。
type latestVersionRequest struct {
	symbolicRequest
}

func (r latestVersionRequest) resolve(ctx context.Context, md metadataReader) (ConversionResult, error) {
	result, err := r.resolveLatest(ctx, md)
	if isSelectionMiss(err) {
		return Unchanged(r.path), nil
	}
	return result, err
}

func (r latestVersionRequest) resolveLatest(ctx context.Context, md metadataReader) (ConversionResult, error) {
	versioning, err := r.outerVersioning(ctx, md)
	if err != nil {
		return ConversionResult{}, err
	}
	selected, err := maven.SelectVersion(versioning, r.rng, true)
	if err != nil {
		return ConversionResult{}, err
	}

	versionDir := r.groupArtifactPath + "/" + selected + "/"
	if !maven.IsSnapshot(selected) {
		upTo := versionDir + r.artifactNameStart + "-" + selected
		return Converted(r.path, upTo+r.artifactNameEnd, selected, upTo), nil
	}

	innerPath := versionDir + maven.MetadataFileName
	inner, err := md.versioning(ctx, innerPath)
	if err != nil {
		return ConversionResult{}, err
	}
	timestamp, err := currentSnapshot(md, innerPath, inner)
	if err != nil {
		return ConversionResult{}, err
	}
	base := strings.TrimSuffix(selected, maven.SnapshotSuffix)
	upTo := versionDir + r.artifactNameStart + "-" + base
	latest := base + "-" + timestamp
	return Converted(r.path, upTo+"-"+timestamp+r.artifactNameEnd, latest, upTo), nil
}

// latestReleaseRequest 仅在元数据声明了 release 时解析，快照不参与候选。
type latestReleaseRequest struct {
	symbolicRequest
}

func (r latestReleaseRequest) resolve(ctx context.Context, md metadataReader) (ConversionResult, error) {
	versioning, err := r.outerVersioning(ctx, md)
	if isSelectionMiss(err) {
		return Unchanged(r.path), nil
	}
	if err != nil {
		return ConversionResult{}, err
	}
	if versioning.Release == "" {
		return Unchanged(r.path), nil
	}
	selected, err := maven.SelectVersion(versioning, r.rng, false)
	if isSelectionMiss(err) {
		return Unchanged(r.path), nil
	}
	if err != nil {
		return ConversionResult{}, err
	}
	upTo := r.groupArtifactPath + "/" + selected + "/" + r.artifactNameStart + "-" + selected
	return Converted(r.path, upTo+r.artifactNameEnd, selected, upTo), nil
}

// isSelectionMiss 判断错误是否属于"找不到"一类，此类错误回退为不改写。
func isSelectionMiss(err error) bool {
	return err != nil && (storage.IsNotFound(err) ||
		errors.Is(err, maven.ErrNoVersions) ||
		errors.Is(err, maven.ErrNoVersionInRange))
}
