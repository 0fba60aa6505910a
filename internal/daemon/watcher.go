package daemon

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docdelta/internal/changes"
	"git.home.luguber.info/inful/docdelta/internal/config"
	"git.home.luguber.info/inful/docdelta/internal/fingerprint"
	"git.home.luguber.info/inful/docdelta/internal/foundation/errors"
	"git.home.luguber.info/inful/docdelta/internal/logfields"
)

// Batch maps a version name to the complete explicit change list of that
// version: every current input, unchanged unless touched since the last
// flush, plus the inputs removed since then.
type Batch map[string]map[string]changes.Kind

// ChangeWatcher collects file system events below the version roots and,
// once no event arrived for the debounce window, hands the collected
// changes to the flush callback.
type ChangeWatcher struct {
	versions []config.VersionConfig
	debounce time.Duration
	flush    func(context.Context, Batch)
	logger   *slog.Logger

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	touched map[string]map[string]bool // version -> path -> created
	timer   *time.Timer
}

// NewChangeWatcher watches every directory below the roots of versions.
func NewChangeWatcher(versions []config.VersionConfig, debounce time.Duration, flush func(context.Context, Batch), logger *slog.Logger) (*ChangeWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create file watcher").Build()
	}
	cw := &ChangeWatcher{
		versions: versions,
		debounce: debounce,
		flush:    flush,
		logger:   logger,
		watcher:  w,
		touched:  make(map[string]map[string]bool),
	}
	for _, v := range versions {
		if err := cw.addTree(v.Root); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	return cw, nil
}

func (cw *ChangeWatcher) addTree(root string) error {
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return werr
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return cw.watcher.Add(p)
	})
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to watch version root").
			WithContext("root", root).
			Build()
	}
	return nil
}

// Run processes events until ctx is canceled.
func (cw *ChangeWatcher) Run(ctx context.Context) {
	defer func() { _ = cw.watcher.Close() }()
	cw.logger.Info("Watching version roots", logfields.Count(len(cw.versions)))

	for {
		select {
		case <-ctx.Done():
			cw.mu.Lock()
			if cw.timer != nil {
				cw.timer.Stop()
			}
			cw.mu.Unlock()
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handle(ctx, event)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("File watcher error", logfields.Error(err))
		}
	}
}

func (cw *ChangeWatcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	version, rel, ok := cw.locate(event.Name)
	if !ok {
		return
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := cw.addTree(event.Name); err != nil {
				cw.logger.Warn("Failed to watch new directory", logfields.Path(event.Name), logfields.Error(err))
			}
			return
		}
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()
	paths, exists := cw.touched[version.Name]
	if !exists {
		paths = make(map[string]bool)
		cw.touched[version.Name] = paths
	}
	if _, seen := paths[rel]; !seen {
		paths[rel] = event.Op.Has(fsnotify.Create)
	}
	cw.logger.Debug("Input change observed", logfields.Version(version.Name), logfields.Path(rel), slog.String("op", event.Op.String()))

	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.debounce, func() { cw.flushPending(ctx) })
}

// locate maps an absolute event path to its version and version-relative
// path. Hidden files and directories are ignored.
func (cw *ChangeWatcher) locate(name string) (config.VersionConfig, string, bool) {
	for _, v := range cw.versions {
		rel, err := filepath.Rel(v.Root, name)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)
		for _, part := range strings.Split(rel, "/") {
			if strings.HasPrefix(part, ".") {
				return config.VersionConfig{}, "", false
			}
		}
		return v, rel, true
	}
	return config.VersionConfig{}, "", false
}

func (cw *ChangeWatcher) flushPending(ctx context.Context) {
	cw.mu.Lock()
	touched := cw.touched
	cw.touched = make(map[string]map[string]bool)
	cw.timer = nil
	cw.mu.Unlock()

	if len(touched) == 0 || ctx.Err() != nil {
		return
	}
	batch := make(Batch, len(touched))
	for _, v := range cw.versions {
		paths, ok := touched[v.Name]
		if !ok {
			continue
		}
		list, err := explicitChanges(v, paths)
		if err != nil {
			cw.logger.Warn("Failed to list version inputs", logfields.Version(v.Name), logfields.Error(err))
			continue
		}
		batch[v.Name] = list
	}
	if len(batch) > 0 {
		cw.flush(ctx, batch)
	}
}

// explicitChanges lists every current input of v as unchanged, then applies
// touched: paths that no longer exist are deleted, paths first seen through
// a create event are created and the rest are updated.
func explicitChanges(v config.VersionConfig, touched map[string]bool) (map[string]changes.Kind, error) {
	files, err := fingerprint.NewFSSource(v.Root, nil).List(v.Include)
	if err != nil {
		return nil, err
	}
	out := make(map[string]changes.Kind, len(files)+len(touched))
	for _, f := range files {
		out[f] = changes.Base(changes.None)
	}
	for rel, created := range touched {
		_, current := out[rel]
		switch {
		case !current:
			if !fingerprint.Matches(v.Include, rel) {
				continue
			}
			if _, err := os.Stat(filepath.Join(v.Root, filepath.FromSlash(rel))); os.IsNotExist(err) {
				out[rel] = changes.Base(changes.Deleted)
			}
		case created:
			out[rel] = changes.Base(changes.Created)
		default:
			out[rel] = changes.Base(changes.Updated)
		}
	}
	return out, nil
}
