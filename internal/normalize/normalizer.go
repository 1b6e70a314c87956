// Package normalize turns submodule content into search documents.
//
// Each source is run through a fixed list of SourceAdapters (cases first,
// then markdown). Per-item failures become Issues and never abort the run.
package normalize

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/bananaindex/internal/document"
	"github.com/Aman-CERP/bananaindex/internal/scanner"
)

// Source is one resolved submodule directory.
type Source struct {
	Name   string // submodule name, stored on every document
	Dir    string // absolute directory
	RelDir string // directory relative to the pipeline root
}

// Issue records an item that was skipped during extraction.
type Issue struct {
	Source string
	Path   string
	Err    error
}

// SourceAdapter extracts documents of one source-format variant.
type SourceAdapter interface {
	Name() string
	Extract(ctx context.Context, src Source) ([]document.Document, []Issue)
}

// Result is the outcome of a normalization run.
type Result struct {
	Documents []document.Document
	Issues    []Issue
	// Skipped lists descriptors that had no usable directory.
	Skipped []scanner.SubmoduleInfo
}

// Normalizer fans sources out to adapters with bounded parallelism.
type Normalizer struct {
	root     string
	adapters []SourceAdapter
	workers  int
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithAdapters replaces the default adapter list.
func WithAdapters(adapters ...SourceAdapter) Option {
	return func(n *Normalizer) { n.adapters = adapters }
}

// WithWorkers bounds how many sources are extracted at once.
func WithWorkers(workers int) Option {
	return func(n *Normalizer) {
		if workers > 0 {
			n.workers = workers
		}
	}
}

// New creates a Normalizer rooted at root. Paths on documents are relative
// to root.
func New(root string, opts ...Option) *Normalizer {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	n := &Normalizer{
		root:     abs,
		adapters: []SourceAdapter{CaseAdapter{Root: abs}, MarkdownAdapter{Root: abs}},
		workers:  runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Root returns the absolute pipeline root.
func (n *Normalizer) Root() string { return n.root }

// Normalize extracts documents from every descriptor. Output order follows
// descriptor order, then adapter order. When two items produce the same id
// the last one wins.
func (n *Normalizer) Normalize(ctx context.Context, subs []scanner.SubmoduleInfo) (*Result, error) {
	res := &Result{}

	var sources []Source
	for _, sub := range subs {
		src, ok := n.resolve(sub)
		if !ok {
			res.Skipped = append(res.Skipped, sub)
			continue
		}
		sources = append(sources, src)
	}

	docs := make([][]document.Document, len(sources))
	issues := make([][]Issue, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.workers)
	for i, src := range sources {
		g.Go(func() error {
			for _, a := range n.adapters {
				if err := gctx.Err(); err != nil {
					return err
				}
				d, is := a.Extract(gctx, src)
				docs[i] = append(docs[i], d...)
				issues[i] = append(issues[i], is...)
			}
			slog.Debug("source_normalized",
				slog.String("source", src.Name),
				slog.Int("documents", len(docs[i])),
				slog.Int("issues", len(issues[i])))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range sources {
		res.Documents = append(res.Documents, docs[i]...)
		res.Issues = append(res.Issues, issues[i]...)
	}
	for _, is := range res.Issues {
		slog.Warn("item_skipped",
			slog.String("source", is.Source),
			slog.String("path", is.Path),
			slog.String("error", is.Err.Error()))
	}
	res.Documents = Dedupe(res.Documents)
	return res, nil
}

func (n *Normalizer) resolve(sub scanner.SubmoduleInfo) (Source, bool) {
	if sub.Path == "" {
		slog.Warn("submodule_without_path", slog.String("name", sub.Name))
		return Source{}, false
	}

	dir := filepath.Join(n.root, filepath.FromSlash(sub.Path))
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		slog.Warn("submodule_path_missing",
			slog.String("name", sub.Name),
			slog.String("path", dir))
		return Source{}, false
	}

	name := sub.Name
	if name == "" {
		name = sub.Path
	}
	return Source{Name: name, Dir: dir, RelDir: relSlash(n.root, dir)}, true
}

// Dedupe drops earlier documents whose id reappears later. The survivor
// keeps the position of the first occurrence.
func Dedupe(docs []document.Document) []document.Document {
	pos := make(map[string]int, len(docs))
	out := make([]document.Document, 0, len(docs))
	for _, d := range docs {
		if i, ok := pos[d.ID]; ok {
			out[i] = d
			continue
		}
		pos[d.ID] = len(out)
		out = append(out, d)
	}
	return out
}
