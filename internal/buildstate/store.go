package buildstate

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/docdelta/internal/depgraph"
	"git.home.luguber.info/inful/docdelta/internal/fingerprint"
	"git.home.luguber.info/inful/docdelta/internal/foundation/errors"
	"git.home.luguber.info/inful/docdelta/internal/logfields"
	"git.home.luguber.info/inful/docdelta/internal/storage"
)

// CurrentRef names the pointer to the latest saved BuildRecord.
const CurrentRef = "current"

// recordDoc is the persisted top-level record. Versions link to their blobs
// instead of embedding them.
type recordDoc struct {
	ID           string       `json:"id"`
	StartedAt    time.Time    `json:"started_at"`
	ToolVersion  string       `json:"tool_version"`
	PluginHash   string       `json:"plugin_hash"`
	TemplateHash string       `json:"template_hash"`
	CommitRange  *CommitRange `json:"commit_range,omitempty"`
	Versions     []versionDoc `json:"versions"`
}

type versionDoc struct {
	Name       string             `json:"name"`
	ConfigHash string             `json:"config_hash"`
	Processors []*ProcessorRecord `json:"processors"`
	Links      BlobLinks          `json:"links"`
}

// Store loads and saves BuildRecords in a storage.Backend.
type Store struct {
	backend storage.Backend
	logger  *slog.Logger
}

// NewStore creates a store on backend.
func NewStore(backend storage.Backend) *Store {
	return &Store{backend: backend, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Load returns the latest saved record, or nil when there is none or it
// cannot be read. Read failures are logged, never returned: a damaged prior
// state only disables incremental reuse.
func (s *Store) Load(ctx context.Context) *BuildRecord {
	rec, err := s.LoadStrict(ctx)
	if err != nil {
		s.logger.Warn("Prior build state unreadable, treating as no prior build", logfields.Error(err))
		return nil
	}
	return rec
}

// LoadStrict is Load with errors returned. A missing pointer yields (nil, nil).
func (s *Store) LoadStrict(ctx context.Context) (*BuildRecord, error) {
	hash, err := s.backend.Ref(ctx, CurrentRef)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryState, "read current build pointer").Build()
	}
	if hash == "" {
		return nil, nil
	}

	var doc recordDoc
	if err := s.getJSON(ctx, hash, &doc); err != nil {
		return nil, err
	}
	rec := &BuildRecord{
		ID:           doc.ID,
		StartedAt:    doc.StartedAt,
		ToolVersion:  doc.ToolVersion,
		PluginHash:   doc.PluginHash,
		TemplateHash: doc.TemplateHash,
		CommitRange:  doc.CommitRange,
	}
	for _, vd := range doc.Versions {
		v, err := s.loadVersion(ctx, vd)
		if err != nil {
			return nil, err
		}
		rec.Versions = append(rec.Versions, v)
	}
	return rec, nil
}

func (s *Store) loadVersion(ctx context.Context, vd versionDoc) (*VersionRecord, error) {
	v := &VersionRecord{
		Name:       vd.Name,
		ConfigHash: vd.ConfigHash,
		Processors: vd.Processors,
		Links:      vd.Links,
	}

	var model depgraph.Model
	if err := s.getJSON(ctx, vd.Links.Graph, &model); err != nil {
		return nil, err
	}
	g, err := depgraph.FromModel(model, s.logger)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryState, "rebuild dependency graph").
			WithContext("version", vd.Name).
			Build()
	}
	v.Graph = g

	v.Fingerprints = fingerprint.NewTable()
	if err := s.getJSON(ctx, vd.Links.Fingerprints, v.Fingerprints); err != nil {
		return nil, err
	}
	if err := s.getJSON(ctx, vd.Links.OutputManifest, &v.OutputManifest); err != nil {
		return nil, err
	}
	if err := s.getJSON(ctx, vd.Links.XRefMap, &v.XRefMap); err != nil {
		return nil, err
	}
	if err := s.getJSON(ctx, vd.Links.BuildLog, &v.BuildLog); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Store) getJSON(ctx context.Context, hash string, into any) error {
	if hash == "" {
		return errors.StateError("missing blob link").Build()
	}
	obj, err := s.backend.Get(ctx, hash)
	if err != nil {
		return errors.WrapError(err, errors.CategoryState, "read state blob").
			WithContext("hash", hash).
			Build()
	}
	if storage.HashData(obj.Data) != hash {
		return errors.StateError("state blob content does not match its hash").
			WithContext("hash", hash).
			Build()
	}
	if err := json.Unmarshal(obj.Data, into); err != nil {
		return errors.WrapError(err, errors.CategoryState, "decode state blob").
			WithContext("hash", hash).
			Build()
	}
	return nil
}

// Save writes every version's blobs, then the top-level record, then moves
// the current pointer. The prior record and its blobs stay intact until the
// pointer is replaced. It returns the record's object hash.
func (s *Store) Save(ctx context.Context, rec *BuildRecord) (string, error) {
	doc := recordDoc{
		ID:           rec.ID,
		StartedAt:    rec.StartedAt.UTC(),
		ToolVersion:  rec.ToolVersion,
		PluginHash:   rec.PluginHash,
		TemplateHash: rec.TemplateHash,
		CommitRange:  rec.CommitRange,
		Versions:     make([]versionDoc, 0, len(rec.Versions)),
	}
	for _, v := range rec.Versions {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		links, err := s.saveVersion(ctx, v)
		if err != nil {
			return "", err
		}
		v.Links = links
		procs := v.Processors
		if procs == nil {
			procs = []*ProcessorRecord{}
		}
		doc.Versions = append(doc.Versions, versionDoc{
			Name:       v.Name,
			ConfigHash: v.ConfigHash,
			Processors: procs,
			Links:      links,
		})
	}

	hash, err := s.putJSON(ctx, storage.ObjectTypeBuildRecord, doc)
	if err != nil {
		return "", err
	}
	if err := s.backend.SetRef(ctx, CurrentRef, hash); err != nil {
		return "", errors.WrapError(err, errors.CategoryStorage, "update current build pointer").Build()
	}
	s.logger.Info("Saved build state",
		logfields.BuildID(rec.ID),
		logfields.Hash(hash),
		logfields.Count(len(rec.Versions)))
	return hash, nil
}

func (s *Store) saveVersion(ctx context.Context, v *VersionRecord) (BlobLinks, error) {
	var links BlobLinks
	var err error

	graph := v.Graph
	if graph == nil {
		graph = depgraph.New()
	}
	if links.Graph, err = s.putJSON(ctx, storage.ObjectTypeGraph, graph.Model()); err != nil {
		return links, err
	}
	fps := v.Fingerprints
	if fps == nil {
		fps = fingerprint.NewTable()
	}
	if links.Fingerprints, err = s.putJSON(ctx, storage.ObjectTypeFingerprints, fps); err != nil {
		return links, err
	}
	if links.OutputManifest, err = s.putJSON(ctx, storage.ObjectTypeOutputManifest, orEmpty(v.OutputManifest)); err != nil {
		return links, err
	}
	if links.XRefMap, err = s.putJSON(ctx, storage.ObjectTypeXRefMap, orEmpty(v.XRefMap)); err != nil {
		return links, err
	}
	if links.BuildLog, err = s.putJSON(ctx, storage.ObjectTypeBuildLog, orEmpty(v.BuildLog)); err != nil {
		return links, err
	}
	return links, nil
}

func orEmpty[M ~map[K]V, K comparable, V any](m M) M {
	if m == nil {
		return M{}
	}
	return m
}

func (s *Store) putJSON(ctx context.Context, typ storage.ObjectType, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryState, "encode state blob").
			WithContext("object_type", string(typ)).
			Build()
	}
	hash, err := s.backend.Put(ctx, &storage.Object{Type: typ, Data: data})
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryStorage, "write state blob").
			WithContext("object_type", string(typ)).
			Build()
	}
	return hash, nil
}

type collector interface {
	GC(ctx context.Context, keep map[string]bool) (int, error)
}

// GC deletes every object not referenced by the current record. Backends
// without garbage collection are left untouched.
func (s *Store) GC(ctx context.Context) (int, error) {
	c, ok := s.backend.(collector)
	if !ok {
		return 0, nil
	}
	head, err := s.backend.Ref(ctx, CurrentRef)
	if err != nil {
		return 0, errors.WrapError(err, errors.CategoryState, "read current build pointer").Build()
	}
	if head == "" {
		return 0, nil
	}
	var doc recordDoc
	if err := s.getJSON(ctx, head, &doc); err != nil {
		return 0, err
	}
	keep := map[string]bool{head: true}
	for _, v := range doc.Versions {
		for _, h := range []string{v.Links.Graph, v.Links.Fingerprints, v.Links.OutputManifest, v.Links.XRefMap, v.Links.BuildLog} {
			keep[h] = true
		}
	}
	removed, err := c.GC(ctx, keep)
	if err != nil {
		return removed, errors.WrapError(err, errors.CategoryStorage, "collect unreferenced state blobs").Build()
	}
	s.logger.Info("Collected unreferenced state blobs", logfields.Count(removed))
	return removed, nil
}

// Open returns the backend selected by name ("fs" or "badger") rooted at dir.
func Open(backend, dir string, logger *slog.Logger) (storage.Backend, error) {
	switch backend {
	case "", "fs":
		fs, err := storage.NewFSStore(dir)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryStorage, "open filesystem state store").
				WithContext("dir", dir).
				Build()
		}
		return fs.WithLogger(logger), nil
	case "badger":
		cfg := storage.DefaultBadgerConfig(dir)
		cfg.Logger = logger
		bs, err := storage.OpenBadgerStore(cfg)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryStorage, "open badger state store").
				WithContext("dir", dir).
				Build()
		}
		return bs, nil
	default:
		return nil, errors.ConfigError("unknown state backend").
			WithContext("backend", backend).
			Build()
	}
}
