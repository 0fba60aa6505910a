package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	badgerObjectPrefix = "obj/"
	badgerMetaPrefix   = "meta/"
	badgerRefPrefix    = "ref/"
)

// BadgerConfig holds configuration for a BadgerStore.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Used in tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives badger's internal log output. Nil disables it.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns a durable configuration for path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{Path: path, SyncWrites: true}
}

// InMemoryBadgerConfig returns a configuration for tests.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// BadgerStore is a Backend on an embedded BadgerDB. Each Put writes the blob
// and its metadata in one transaction; SetRef is a single-key transaction.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (creating if needed) a BadgerDB-backed store.
func OpenBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent badger store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Put stores an object and returns its content hash.
func (b *BadgerStore) Put(ctx context.Context, obj *Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	hash := hashOf(obj)
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(badgerObjectPrefix + hash)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		meta, err := json.Marshal(newMetadata(obj, time.Now()))
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(badgerObjectPrefix+hash), obj.Data); err != nil {
			return err
		}
		return txn.Set([]byte(badgerMetaPrefix+hash), meta)
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return hash, nil
}

// Get retrieves an object by its content hash.
func (b *BadgerStore) Get(ctx context.Context, hash string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	var md Metadata
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerObjectPrefix + hash))
		if err != nil {
			return err
		}
		if data, err = item.ValueCopy(nil); err != nil {
			return err
		}
		metaItem, err := txn.Get([]byte(badgerMetaPrefix + hash))
		if err != nil {
			return nil
		}
		return metaItem.Value(func(val []byte) error {
			return json.Unmarshal(val, &md)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound(hash)
	}
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	if md.Custom == nil {
		md.Custom = map[string]string{}
	}
	md.LastAccessed = time.Now()
	return &Object{
		Hash:     hash,
		Type:     ObjectType(md.Custom[metaObjectType]),
		Size:     int64(len(data)),
		Data:     data,
		Metadata: md,
	}, nil
}

// Exists checks if an object with the given hash exists.
func (b *BadgerStore) Exists(_ context.Context, hash string) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(badgerObjectPrefix + hash))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat object: %w", err)
	}
	return true, nil
}

// Delete removes an object by its content hash.
func (b *BadgerStore) Delete(_ context.Context, hash string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return deleteObject(txn, hash)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return notFound(hash)
	}
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func deleteObject(txn *badger.Txn, hash string) error {
	if _, err := txn.Get([]byte(badgerObjectPrefix + hash)); err != nil {
		return err
	}
	if err := txn.Delete([]byte(badgerObjectPrefix + hash)); err != nil {
		return err
	}
	return txn.Delete([]byte(badgerMetaPrefix + hash))
}

// List returns all object hashes matching the given type filter, sorted.
func (b *BadgerStore) List(_ context.Context, objectType ObjectType) ([]string, error) {
	var hashes []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(badgerMetaPrefix)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			hash := strings.TrimPrefix(string(item.Key()), badgerMetaPrefix)
			if objectType != "" {
				var md Metadata
				if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &md) }); err != nil {
					continue
				}
				if ObjectType(md.Custom[metaObjectType]) != objectType {
					continue
				}
			}
			hashes = append(hashes, hash)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	slices.Sort(hashes)
	return hashes, nil
}

// SetRef atomically points name at hash.
func (b *BadgerStore) SetRef(_ context.Context, name, hash string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerRefPrefix+name), []byte(hash))
	})
}

// Ref returns the hash name points at, or "" if the ref does not exist.
func (b *BadgerStore) Ref(_ context.Context, name string) (string, error) {
	var hash string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerRefPrefix + name))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		hash = string(val)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read ref %s: %w", name, err)
	}
	return hash, nil
}

// GC removes every object whose hash is not in keep and returns how many
// were removed.
func (b *BadgerStore) GC(ctx context.Context, keep map[string]bool) (int, error) {
	all, err := b.List(ctx, "")
	if err != nil {
		return 0, err
	}
	removed := 0
	err = b.db.Update(func(txn *badger.Txn) error {
		for _, hash := range all {
			if keep[hash] {
				continue
			}
			if err := deleteObject(txn, hash); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("gc objects: %w", err)
	}
	return removed, nil
}

// Close closes the underlying database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
