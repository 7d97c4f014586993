// Package cache maintains the local archive cache: StoragePath/<repo>/<path>
// files written through afero (temp file + rename) so that zip archives fetched
// from an upstream repository can be opened with random access. ArchiveCache
// layers per-directory locking on top of the store, fetches archives on demand
// and prunes snapshot builds that are no longer current.
package cache
