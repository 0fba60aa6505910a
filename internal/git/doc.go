// Package git reads version-control facts a build plan depends on: the
// commit range a build covers and, between two commits, which files of a
// version root were created, updated or deleted.
package git
