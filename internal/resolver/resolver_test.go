package resolver

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/any-hub/unzip-hub/internal/maven"
	"github.com/any-hub/unzip-hub/internal/pathlock"
	"github.com/any-hub/unzip-hub/internal/storage"
)

const (
	updatesiteDir = "org/eclipse/tycho/example/org.eclipse.tycho.example.updatesite/"
	targetGA      = "org/eclipse/tycho/nexus/org.eclipse.tycho.example.target"
	timestamp     = "20100505.133931-1"
)

const snapshotMetadata = `<?xml version="1.0" encoding="UTF-8"?>
<metadata>
  <groupId>org.eclipse.tycho.example</groupId>
  <artifactId>org.eclipse.tycho.example.updatesite</artifactId>
  <version>0.1.0-SNAPSHOT</version>
  <versioning>
    <snapshot>
      <timestamp>20100505.133931</timestamp>
      <buildNumber>1</buildNumber>
    </snapshot>
    <lastUpdated>20100505133931</lastUpdated>
  </versioning>
</metadata>`

const missingSnapshotMetadata = `<metadata>
  <version>0.1.0-SNAPSHOT</version>
  <versioning>
    <lastUpdated>20100505133931</lastUpdated>
  </versioning>
</metadata>`

const missingVersioningMetadata = `<metadata>
  <version>0.1.0-SNAPSHOT</version>
</metadata>`

const outerMetadata = `<metadata>
  <groupId>org.eclipse.tycho.nexus</groupId>
  <artifactId>org.eclipse.tycho.example.target</artifactId>
  <versioning>
    <latest>0.7.1-SNAPSHOT</latest>
    <release>0.7.0</release>
    <versions>
      <version>0.5.0</version>
      <version>0.6.0</version>
      <version>0.6.1-SNAPSHOT</version>
      <version>0.7.0</version>
      <version>0.7.1-SNAPSHOT</version>
    </versions>
  </versioning>
</metadata>`

const outerMetadataWithoutRelease = `<metadata>
  <versioning>
    <latest>0.7.1-SNAPSHOT</latest>
    <versions>
      <version>0.6.1-SNAPSHOT</version>
      <version>0.7.1-SNAPSHOT</version>
    </versions>
  </versioning>
</metadata>`

const outerMetadataLatestRelease = `<metadata>
  <versioning>
    <latest>0.7.0</latest>
    <release>0.7.0</release>
    <versions>
      <version>0.5.0</version>
      <version>0.6.0</version>
      <version>0.7.0</version>
    </versions>
  </versioning>
</metadata>`

const innerSnapshotMetadata = `<metadata>
  <versioning>
    <snapshot>
      <timestamp>20110718.111322</timestamp>
      <buildNumber>2</buildNumber>
    </snapshot>
  </versioning>
</metadata>`

// fakeUpstream 以 path -> 内容 的映射模拟上游仓库，并记录访问过的路径。
type fakeUpstream struct {
	mu        sync.Mutex
	files     map[string]string
	requested []string
	failWith  error
}

func newFakeUpstream(files map[string]string) *fakeUpstream {
	return &fakeUpstream{files: files}
}

func (f *fakeUpstream) Retrieve(_ context.Context, p string) (storage.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, p)
	if f.failWith != nil {
		return storage.Item{}, f.failWith
	}
	content, ok := f.files[p]
	if !ok {
		return storage.Item{}, storage.NotFound(p, "")
	}
	open := func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(content)), nil
	}
	return storage.NewFileItem(p, "application/xml", int64(len(content)), time.Time{}, open), nil
}

func (f *fakeUpstream) List(_ context.Context, p string) ([]storage.Item, error) {
	return nil, storage.NotFound(p, "")
}

func (f *fakeUpstream) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requested...)
}

func newTestResolver(upstream storage.Upstream) (*Resolver, *pathlock.Registry) {
	locks := pathlock.New()
	return New(upstream, "test-repo", WithLocks(locks)), locks
}

func targetUpstream(outer string) *fakeUpstream {
	return newFakeUpstream(map[string]string{
		targetGA + "/maven-metadata.xml":                innerOrOuter(outer),
		targetGA + "/0.7.1-SNAPSHOT/maven-metadata.xml": innerSnapshotMetadata,
		targetGA + "/0.6.1-SNAPSHOT/maven-metadata.xml": innerSnapshotMetadata,
	})
}

func innerOrOuter(outer string) string {
	if outer == "" {
		return outerMetadata
	}
	return outer
}

func TestSnapshotPathConversion(t *testing.T) {
	cases := []struct {
		name       string
		version    string
		converted  string
		classifier string
		inner      string
	}{
		{name: "archive", version: "0.1.0-SNAPSHOT", converted: "0.1.0-" + timestamp},
		{name: "classifier", version: "0.1.0-SNAPSHOT", converted: "0.1.0-" + timestamp, classifier: "x.y-z"},
		{name: "trailing slash", version: "0.1.0-SNAPSHOT", converted: "0.1.0-" + timestamp, inner: "/"},
		{name: "directory", version: "0.1.0-SNAPSHOT", converted: "0.1.0-" + timestamp, inner: "/plugins/", classifier: "x-y.z"},
		{name: "snapshot in member", version: "0.1.0-SNAPSHOT", converted: "0.1.0-" + timestamp,
			inner: "/plugins/org.eclipse.tycho.example.updatesite-0.1.0-SNAPSHOT.jar", classifier: "assembly"},
		{name: "beta qualifier", version: "0.1.0-BETA-1-SNAPSHOT", converted: "0.1.0-BETA-1-" + timestamp,
			inner: "/plugins/org.eclipse.tycho.example.updatesite-0.1.0-SNAPSHOT.jar", classifier: "assembly"},
		{name: "member file", version: "0.1.0-SNAPSHOT", converted: "0.1.0-" + timestamp, inner: "/plugins/myplugin.jar"},
		{name: "two part version", version: "0.1-SNAPSHOT", converted: "0.1-" + timestamp, classifier: "xyz"},
		{name: "multi digit parts", version: "11.222.3333-SNAPSHOT", converted: "11.222.3333-" + timestamp},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classifier := ""
			if tc.classifier != "" {
				classifier = "-" + tc.classifier
			}
			parent := updatesiteDir + tc.version + "/"
			fileName := "org.eclipse.tycho.example.updatesite-" + tc.version + classifier + ".zip-unzip"
			requestPath := parent + fileName + tc.inner
			expected := parent + strings.Replace(fileName, tc.version, tc.converted, 1) + tc.inner

			upstream := newFakeUpstream(map[string]string{parent + "maven-metadata.xml": snapshotMetadata})
			r, locks := newTestResolver(upstream)

			result, err := r.Resolve(context.Background(), requestPath, true, nil)
			if err != nil {
				t.Fatalf("resolve error: %v", err)
			}
			if !result.PathConverted() {
				t.Fatalf("expected path to be converted: %s", requestPath)
			}
			if result.ConvertedPath() != expected {
				t.Fatalf("converted path mismatch:\n got %s\nwant %s", result.ConvertedPath(), expected)
			}
			latest, ok := result.LatestVersion()
			if !ok || latest != timestamp {
				t.Fatalf("latest version mismatch: %q %v", latest, ok)
			}
			upTo, ok := result.PathUpToVersion()
			wantUpTo := parent + "org.eclipse.tycho.example.updatesite-" + strings.TrimSuffix(tc.version, "SNAPSHOT")
			if !ok || upTo != wantUpTo {
				t.Fatalf("path up to version mismatch: %q want %q", upTo, wantUpTo)
			}
			if got := upstream.paths(); len(got) != 1 || got[0] != parent+"maven-metadata.xml" {
				t.Fatalf("unexpected metadata requests: %v", got)
			}
			if locks.Len() != 0 {
				t.Fatalf("metadata lock leaked, %d entries left", locks.Len())
			}
		})
	}
}

func TestNonSnapshotPathsAreUnchanged(t *testing.T) {
	paths := []string{
		updatesiteDir + "0.1.0-MYSNAPSHOT/org.eclipse.tycho.example.updatesite-0.1.0-MYSNAPSHOT.zip",
		updatesiteDir + "0.1-BETA/org.eclipse.tycho.example.updatesite-0.1-BETA.zip",
		updatesiteDir + "0.1.0-BETA/org.eclipse.tycho.example.updatesite-0.1.0-BETA.zip/plugins/org.eclipse.tycho.example.updatesite-SNAPSHOT.jar",
		updatesiteDir + "0.1.0-BETA/org.eclipse.tycho.example.updatesite-0.1.0-SNAPSHOT.zip/plugins/org.eclipse.tycho.example.updatesite-0.1.0-SNAPSHOT.jar",
		updatesiteDir + "0.1.0-SNAPSHOT/org.eclipse.tycho.example.updatesite-0.1.0-20100505.zip/plugins/org.eclipse.tycho.example.updatesite-0.1.0-SNAPSHOT.jar",
		"/dir/subdir/archive.zip-unzip/test.txt",
	}
	for _, p := range paths {
		upstream := newFakeUpstream(nil)
		r, _ := newTestResolver(upstream)
		result, err := r.Resolve(context.Background(), p, true, nil)
		if err != nil {
			t.Fatalf("resolve %s: %v", p, err)
		}
		if result.PathConverted() || result.ConvertedPath() != p {
			t.Fatalf("expected %s to stay unchanged, got %s", p, result.ConvertedPath())
		}
		if !result.SnapshotAvailable() || result.NeedsPrune() {
			t.Fatalf("unchanged result should neither be pruned nor flagged missing: %s", p)
		}
		if len(upstream.paths()) != 0 {
			t.Fatalf("unchanged path should not read metadata: %v", upstream.paths())
		}
	}
}

func TestResolveDisabledSkipsMetadata(t *testing.T) {
	upstream := newFakeUpstream(nil)
	r, _ := newTestResolver(upstream)
	p := targetGA + "/SNAPSHOT/org.eclipse.tycho.example.target-SNAPSHOT.zip-unzip"

	result, err := r.Resolve(context.Background(), p, false, nil)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if result.PathConverted() || len(upstream.paths()) != 0 {
		t.Fatalf("disabled resolution must not touch upstream")
	}
}

func TestSnapshotMetadataProblems(t *testing.T) {
	parent := updatesiteDir + "0.1.0-SNAPSHOT/"
	p := parent + "org.eclipse.tycho.example.updatesite-0.1.0-SNAPSHOT.zip-unzip/plugins/org.eclipse.tycho.example.updatesite-0.1.0-SNAPSHOT.jar"

	cases := []struct {
		name     string
		metadata string
		want     string
	}{
		{name: "missing snapshot", metadata: missingSnapshotMetadata, want: "current"},
		{name: "missing versioning", metadata: missingVersioningMetadata, want: "versioning"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newTestResolver(newFakeUpstream(map[string]string{parent + "maven-metadata.xml": tc.metadata}))
			_, err := r.Resolve(context.Background(), p, true, nil)
			var inconsistent *storage.InconsistentMetadataError
			if !errors.As(err, &inconsistent) {
				t.Fatalf("expected inconsistent metadata error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) || !strings.Contains(err.Error(), "test-repo") {
				t.Fatalf("unexpected error message: %v", err)
			}
		})
	}
}

func TestSnapshotWithoutMetadataIsUnavailable(t *testing.T) {
	parent := updatesiteDir + "0.1.0-SNAPSHOT/"
	p := parent + "org.eclipse.tycho.example.updatesite-0.1.0-SNAPSHOT.zip"
	r, _ := newTestResolver(newFakeUpstream(nil))

	result, err := r.Resolve(context.Background(), p, true, nil)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if result.SnapshotAvailable() {
		t.Fatalf("expected snapshot to be unavailable")
	}
	if result.PathConverted() || result.ConvertedPath() != p {
		t.Fatalf("unavailable snapshot must keep the original path")
	}
	if !result.NeedsPrune() {
		t.Fatalf("unavailable snapshot should request pruning")
	}
	upTo, ok := result.PathUpToVersion()
	if !ok || upTo != parent+"org.eclipse.tycho.example.updatesite-0.1.0-" {
		t.Fatalf("unexpected path up to version: %q", upTo)
	}
}

func TestUpstreamFailurePropagates(t *testing.T) {
	upstream := newFakeUpstream(nil)
	upstream.failWith = errors.New("connection reset")
	r, locks := newTestResolver(upstream)

	p := updatesiteDir + "0.1.0-SNAPSHOT/org.eclipse.tycho.example.updatesite-0.1.0-SNAPSHOT.zip"
	if _, err := r.Resolve(context.Background(), p, true, nil); err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if locks.Len() != 0 {
		t.Fatalf("metadata lock leaked after failure")
	}
}

func TestSymbolicVersionConversion(t *testing.T) {
	cases := []struct {
		name      string
		outer     string
		path      string
		rng       string
		converted string
		latest    string
	}{
		{
			name:      "latest snapshot",
			path:      targetGA + "/SNAPSHOT/org.eclipse.tycho.example.target-SNAPSHOT.zip-unzip",
			converted: targetGA + "/0.7.1-SNAPSHOT/org.eclipse.tycho.example.target-0.7.1-20110718.111322-2.zip-unzip",
			latest:    "0.7.1-20110718.111322-2",
		},
		{
			name:      "latest release",
			path:      targetGA + "/RELEASE/org.eclipse.tycho.example.target-RELEASE.zip-unzip",
			converted: targetGA + "/0.7.0/org.eclipse.tycho.example.target-0.7.0.zip-unzip",
			latest:    "0.7.0",
		},
		{
			name:      "latest is not a snapshot",
			outer:     outerMetadataLatestRelease,
			path:      targetGA + "/SNAPSHOT/org.eclipse.tycho.example.target-SNAPSHOT.zip-unzip",
			converted: targetGA + "/0.7.0/org.eclipse.tycho.example.target-0.7.0.zip-unzip",
			latest:    "0.7.0",
		},
		{
			name:      "latest within range",
			path:      targetGA + "/SNAPSHOT/org.eclipse.tycho.example.target-SNAPSHOT.zip-unzip",
			rng:       "[0.5.0,0.7.0-SNAPSHOT)",
			converted: targetGA + "/0.6.1-SNAPSHOT/org.eclipse.tycho.example.target-0.6.1-20110718.111322-2.zip-unzip",
			latest:    "0.6.1-20110718.111322-2",
		},
		{
			name:      "release within range",
			path:      targetGA + "/RELEASE/org.eclipse.tycho.example.target-RELEASE.zip-unzip/plugins/",
			rng:       "[0.5.0,0.7.0)",
			converted: targetGA + "/0.6.0/org.eclipse.tycho.example.target-0.6.0.zip-unzip/plugins/",
			latest:    "0.6.0",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newTestResolver(targetUpstream(tc.outer))
			var rng *maven.VersionRange
			if tc.rng != "" {
				var err error
				if rng, err = maven.ParseVersionRange(tc.rng); err != nil {
					t.Fatalf("parse range: %v", err)
				}
			}
			result, err := r.Resolve(context.Background(), tc.path, true, rng)
			if err != nil {
				t.Fatalf("resolve error: %v", err)
			}
			if result.ConvertedPath() != tc.converted {
				t.Fatalf("converted path mismatch:\n got %s\nwant %s", result.ConvertedPath(), tc.converted)
			}
			latest, ok := result.LatestVersion()
			if !ok || latest != tc.latest {
				t.Fatalf("latest mismatch: %q want %q", latest, tc.latest)
			}
			upTo, _ := result.PathUpToVersion()
			if !strings.HasPrefix(result.ConvertedPath(), upTo) || !strings.Contains(result.ConvertedPath(), latest) {
				t.Fatalf("converted path %s must start with %s and contain %s", result.ConvertedPath(), upTo, latest)
			}
		})
	}
}

func TestSymbolicVersionFallsBackToUnchanged(t *testing.T) {
	cases := []struct {
		name  string
		outer string
		path  string
		rng   string
	}{
		{
			name:  "no release tag",
			outer: outerMetadataWithoutRelease,
			path:  targetGA + "/RELEASE/org.eclipse.tycho.example.target-RELEASE.zip-unzip",
		},
		{
			name: "nothing within range",
			path: targetGA + "/SNAPSHOT/org.eclipse.tycho.example.target-SNAPSHOT.zip-unzip",
			rng:  "[1.0.0,2.0.0)",
		},
		{
			name: "unknown artifact",
			path: "org/example/other/SNAPSHOT/other-SNAPSHOT.zip-unzip",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newTestResolver(targetUpstream(tc.outer))
			var rng *maven.VersionRange
			if tc.rng != "" {
				rng, _ = maven.ParseVersionRange(tc.rng)
			}
			result, err := r.Resolve(context.Background(), tc.path, true, rng)
			if err != nil {
				t.Fatalf("resolve error: %v", err)
			}
			if result.PathConverted() || result.ConvertedPath() != tc.path {
				t.Fatalf("expected unchanged path, got %s", result.ConvertedPath())
			}
			if !result.SnapshotAvailable() {
				t.Fatalf("symbolic fallback must keep snapshot available")
			}
		})
	}
}

func TestReleaseWithoutVersioningIsInconsistent(t *testing.T) {
	upstream := newFakeUpstream(map[string]string{targetGA + "/maven-metadata.xml": missingVersioningMetadata})
	r, _ := newTestResolver(upstream)

	_, err := r.Resolve(context.Background(), targetGA+"/RELEASE/org.eclipse.tycho.example.target-RELEASE.zip", true, nil)
	var inconsistent *storage.InconsistentMetadataError
	if !errors.As(err, &inconsistent) || inconsistent.Element != "versioning" {
		t.Fatalf("expected missing versioning error, got %v", err)
	}
}

func TestConcurrentResolutionSharesMetadataLock(t *testing.T) {
	r, locks := newTestResolver(targetUpstream(""))
	p := targetGA + "/SNAPSHOT/org.eclipse.tycho.example.target-SNAPSHOT.zip-unzip"

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := r.Resolve(context.Background(), p, true, nil)
			if err == nil && !result.PathConverted() {
				err = errors.New("not converted")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent resolve failed: %v", err)
		}
	}
	if locks.Len() != 0 {
		t.Fatalf("locks leaked: %d", locks.Len())
	}
}
