// Package maven implements the pieces of Maven repository semantics the
// resolver needs: decoding maven-metadata.xml, ordering artifact versions,
// parsing version ranges, and selecting a concrete version from versioning
// metadata.
package maven
