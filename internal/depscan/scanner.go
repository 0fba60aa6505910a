package depscan

import (
	"context"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"git.home.luguber.info/inful/docdelta/internal/depgraph"
	"git.home.luguber.info/inful/docdelta/internal/foundation/errors"
	"git.home.luguber.info/inful/docdelta/internal/logfields"
)

// Scanner reads documentation sources from a version root and reports the
// dependencies they declare.
type Scanner struct {
	fsys   fs.FS
	logger *slog.Logger
}

// NewScanner creates a scanner over fsys (typically os.DirFS(versionRoot)).
func NewScanner(fsys fs.FS) *Scanner {
	return &Scanner{fsys: fsys, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (s *Scanner) WithLogger(logger *slog.Logger) *Scanner {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Scan returns the edges declared by files. Each edge is reported by the
// file it was found in. Files that are missing or fail to parse are logged
// and skipped; their edges simply disappear from the graph.
func (s *Scanner) Scan(ctx context.Context, files []string) ([]depgraph.Edge, error) {
	var edges []depgraph.Edge
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, errors.WrapError(err, errors.CategoryRuntime, "dependency scan canceled").Build()
		}
		found, err := s.scanFile(file)
		if err != nil {
			s.logger.Warn("Skipping dependency scan of file", logfields.Path(file), logfields.Error(err))
			continue
		}
		edges = append(edges, found...)
	}
	return edges, nil
}

func (s *Scanner) scanFile(file string) ([]depgraph.Edge, error) {
	var scan func([]byte) ([]reference, error)
	switch strings.ToLower(path.Ext(file)) {
	case ".md", ".markdown":
		scan = func(b []byte) ([]reference, error) { return scanMarkdown(b), nil }
	case ".html", ".htm":
		scan = scanHTML
	default:
		return nil, nil
	}

	body, err := fs.ReadFile(s.fsys, file)
	if err != nil {
		return nil, err
	}
	refs, err := scan(body)
	if err != nil {
		return nil, err
	}

	edges := make([]depgraph.Edge, 0, len(refs))
	for _, ref := range refs {
		to, ok := resolve(file, ref.dest)
		if !ok || to == file {
			continue
		}
		edges = append(edges, depgraph.Edge{From: file, To: to, ReportedBy: file, Type: ref.typ})
	}
	return edges, nil
}
