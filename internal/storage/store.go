// Package storage provides content-addressable storage for persisted build
// state: the build record, and per version the dependency graph, fingerprint
// table, output manifest, cross-reference map and build log.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	ferrors "git.home.luguber.info/inful/docdelta/internal/foundation/errors"
)

// ObjectStore provides content-addressable storage for state blobs.
// Objects are stored by their content hash, so an unchanged blob is written
// once and shared by every build record that references it.
type ObjectStore interface {
	// Put stores an object and returns its content hash.
	// If the object already exists, it returns the existing hash without writing.
	Put(ctx context.Context, obj *Object) (hash string, err error)

	// Get retrieves an object by its content hash.
	// Returns ErrNotFound if the object doesn't exist.
	Get(ctx context.Context, hash string) (*Object, error)

	// Exists checks if an object with the given hash exists.
	Exists(ctx context.Context, hash string) (bool, error)

	// Delete removes an object by its content hash.
	// Returns ErrNotFound if the object doesn't exist.
	Delete(ctx context.Context, hash string) error

	// List returns all object hashes matching the given type filter.
	// If objectType is empty, returns all objects.
	List(ctx context.Context, objectType ObjectType) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// RefStore keeps named pointers to object hashes. SetRef replaces a pointer
// atomically: readers observe either the old or the new hash.
type RefStore interface {
	SetRef(ctx context.Context, name, hash string) error
	// Ref returns "" with a nil error when the pointer does not exist.
	Ref(ctx context.Context, name string) (string, error)
}

// Backend is an object store that also keeps refs.
type Backend interface {
	ObjectStore
	RefStore
}

// Object represents a stored blob with its metadata.
type Object struct {
	// Hash is the content hash (SHA256) of the data.
	Hash string

	// Type identifies the kind of object.
	Type ObjectType

	// Size is the size of the data in bytes.
	Size int64

	// Data is the object content.
	Data []byte

	// Metadata stores additional key-value pairs.
	Metadata Metadata
}

// Metadata stores object metadata.
type Metadata struct {
	CreatedAt    time.Time         `json:"created_at"`
	LastAccessed time.Time         `json:"last_accessed"`
	Custom       map[string]string `json:"custom,omitempty"`
}

// ObjectType identifies the kind of stored object.
type ObjectType string

const (
	ObjectTypeBuildRecord    ObjectType = "build_record"
	ObjectTypeGraph          ObjectType = "dependency_graph"
	ObjectTypeFingerprints   ObjectType = "fingerprints"
	ObjectTypeOutputManifest ObjectType = "output_manifest"
	ObjectTypeXRefMap        ObjectType = "xref_map"
	ObjectTypeBuildLog       ObjectType = "build_log"
)

const metaObjectType = "object_type"

// ErrNotFound is returned when an object doesn't exist. Compare with errors.Is.
var ErrNotFound = ferrors.NewError(ferrors.CategoryNotFound, "object not found").Build()

func notFound(hash string) error {
	return ErrNotFound.WithContext("hash", hash)
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// HashData returns the content hash used as object key.
func HashData(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func hashOf(obj *Object) string {
	if obj.Hash != "" {
		return obj.Hash
	}
	return HashData(obj.Data)
}

func newMetadata(obj *Object, now time.Time) Metadata {
	md := Metadata{
		CreatedAt:    now,
		LastAccessed: now,
		Custom:       make(map[string]string, len(obj.Metadata.Custom)+1),
	}
	for k, v := range obj.Metadata.Custom {
		md.Custom[k] = v
	}
	md.Custom[metaObjectType] = string(obj.Type)
	return md
}
