// Package storage defines the collaborator contracts shared by the resolver,
// the archive cache and the overlay: the upstream store (retrieve/list), the
// Item value returned by it, and the error taxonomy surfaced to callers. It
// also ships the HTTP implementation used for proxy repositories and the mime
// guessing helper used wherever a path needs a content type.
package storage
