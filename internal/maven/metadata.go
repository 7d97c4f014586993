package maven

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// MetadataFileName 是仓库中版本元数据文件的固定名称。
const MetadataFileName = "maven-metadata.xml"

// SnapshotSuffix 是快照版本号的后缀。
const SnapshotSuffix = "-SNAPSHOT"

// Metadata 对应 maven-metadata.xml 的根元素。
type Metadata struct {
	XMLName    xml.Name    `xml:"metadata"`
	GroupID    string      `xml:"groupId"`
	ArtifactID string      `xml:"artifactId"`
	Version    string      `xml:"version"`
	Versioning *Versioning `xml:"versioning"`
}

// Versioning 汇总已发布版本、release 标记与当前快照描述。
type Versioning struct {
	Latest      string    `xml:"latest"`
	Release     string    `xml:"release"`
	Versions    []string  `xml:"versions>version"`
	Snapshot    *Snapshot `xml:"snapshot"`
	LastUpdated string    `xml:"lastUpdated"`
}

// Snapshot 描述快照目录下最新一次部署的时间戳与构建号。
type Snapshot struct {
	Timestamp   string `xml:"timestamp"`
	BuildNumber int    `xml:"buildNumber"`
	LocalCopy   bool   `xml:"localCopy"`
}

// Current 表示快照描述是否完整可用。
func (s *Snapshot) Current() bool {
	return s != nil && strings.TrimSpace(s.Timestamp) != ""
}

// TimestampVersion 返回 "<timestamp>-<buildNumber>"，用于替换文件名中的 SNAPSHOT。
func (s *Snapshot) TimestampVersion() string {
	return fmt.Sprintf("%s-%d", strings.TrimSpace(s.Timestamp), s.BuildNumber)
}

// ParseMetadata 解码 maven-metadata.xml。
func ParseMetadata(r io.Reader) (*Metadata, error) {
	var md Metadata
	decoder := xml.NewDecoder(r)
	decoder.Strict = false
	if err := decoder.Decode(&md); err != nil {
		return nil, fmt.Errorf("decode %s: %w", MetadataFileName, err)
	}
	if v := md.Versioning; v != nil {
		v.Latest = strings.TrimSpace(v.Latest)
		v.Release = strings.TrimSpace(v.Release)
		for i := range v.Versions {
			v.Versions[i] = strings.TrimSpace(v.Versions[i])
		}
	}
	return &md, nil
}

// IsSnapshot 判断版本号是否为快照版本。
func IsSnapshot(version string) bool {
	return strings.HasSuffix(strings.TrimSpace(version), SnapshotSuffix)
}
