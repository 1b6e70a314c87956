package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/bananaindex/internal/document"
	"github.com/Aman-CERP/bananaindex/internal/engine"
	"github.com/Aman-CERP/bananaindex/internal/errors"
)

const (
	indexSuffix = ".bleve"
	docPrefix   = "doc:"
	metaKey     = "meta:index"
)

// indexMeta is persisted inside each bleve index.
type indexMeta struct {
	PrimaryKey string          `json:"primary_key"`
	Settings   engine.Settings `json:"settings"`
}

type bleveIndex struct {
	idx  bleve.Index
	meta indexMeta
}

// BleveEngine is an embedded engine.Engine. Writes are applied
// synchronously and recorded as already-finished tasks, so callers written
// against the asynchronous task model work unchanged.
type BleveEngine struct {
	mu       sync.RWMutex
	dir      string
	indexes  map[string]*bleveIndex
	tasks    []engine.Task
	nextTask int64
	closed   bool
	now      func() time.Time
}

var _ engine.Engine = (*BleveEngine)(nil)

// NewBleveEngine opens every index under dir. An empty dir keeps all
// indexes in memory.
func NewBleveEngine(dir string) (*BleveEngine, error) {
	e := &BleveEngine{
		dir:     dir,
		indexes: make(map[string]*bleveIndex),
		now:     time.Now,
	}
	if dir == "" {
		return e, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), indexSuffix) {
			continue
		}
		uid := strings.TrimSuffix(entry.Name(), indexSuffix)
		bi, err := openIndex(filepath.Join(dir, entry.Name()))
		if err != nil {
			slog.Warn("bleve index unusable, skipping",
				slog.String("index", uid),
				slog.String("error", err.Error()))
			continue
		}
		e.indexes[uid] = bi
	}
	return e, nil
}

// NewMemoryEngine returns an in-memory engine.
func NewMemoryEngine() *BleveEngine {
	e, _ := NewBleveEngine("")
	return e
}

func openIndex(path string) (*bleveIndex, error) {
	if err := validateIndexIntegrity(path); err != nil {
		slog.Warn("bleve index corrupted, clearing",
			slog.String("path", path),
			slog.String("error", err.Error()))
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return nil, fmt.Errorf("index corrupted at %s and cannot remove: %w", path, rmErr)
		}
		return nil, err
	}

	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	bi := &bleveIndex{idx: idx}
	raw, err := idx.GetInternal([]byte(metaKey))
	if err == nil && raw != nil {
		_ = json.Unmarshal(raw, &bi.meta)
	}
	return bi, nil
}

// validateIndexIntegrity checks index_meta.json before bleve.Open, which
// fails obscurely on a half-written index.
func validateIndexIntegrity(path string) error {
	info, err := os.Stat(filepath.Join(path, "index_meta.json"))
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}
	return nil
}

// Health always succeeds while the engine is open.
func (e *BleveEngine) Health(context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return fmt.Errorf("%w: embedded engine closed", engine.ErrUnreachable)
	}
	return nil
}

// lookup returns the named index. Caller holds mu.
func (e *BleveEngine) lookup(uid string) (*bleveIndex, error) {
	if e.closed {
		return nil, fmt.Errorf("%w: embedded engine closed", engine.ErrUnreachable)
	}
	bi, ok := e.indexes[uid]
	if !ok {
		return nil, errors.New(errors.ErrCodeIndexNotFound, fmt.Sprintf("index %q not found", uid), nil)
	}
	return bi, nil
}

// IndexStats reports the document count.
func (e *BleveEngine) IndexStats(_ context.Context, uid string) (engine.IndexStats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	bi, err := e.lookup(uid)
	if err != nil {
		return engine.IndexStats{}, err
	}
	n, err := bi.idx.DocCount()
	if err != nil {
		return engine.IndexStats{}, errors.Wrap(errors.ErrCodeIndexFailed, err)
	}
	return engine.IndexStats{NumberOfDocuments: int64(n)}, nil
}

// create opens a new index. Caller holds the write lock.
func (e *BleveEngine) create(uid, primaryKey string) (*bleveIndex, error) {
	var (
		idx bleve.Index
		err error
	)
	if e.dir == "" {
		idx, err = bleve.NewMemOnly(newIndexMapping())
	} else {
		idx, err = bleve.New(filepath.Join(e.dir, uid+indexSuffix), newIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create index %s: %w", uid, err)
	}
	bi := &bleveIndex{idx: idx, meta: indexMeta{PrimaryKey: primaryKey}}
	if err := bi.saveMeta(); err != nil {
		_ = idx.Close()
		return nil, err
	}
	e.indexes[uid] = bi
	return bi, nil
}

func (bi *bleveIndex) saveMeta() error {
	raw, err := json.Marshal(bi.meta)
	if err != nil {
		return err
	}
	return bi.idx.SetInternal([]byte(metaKey), raw)
}

// record appends a finished task. Caller holds the write lock.
func (e *BleveEngine) record(uid, typ string, details engine.TaskDetails, failure *engine.TaskError) engine.TaskInfo {
	e.nextTask++
	now := e.now()
	status := engine.TaskSucceeded
	if failure != nil {
		status = engine.TaskFailed
	}
	e.tasks = append(e.tasks, engine.Task{
		UID:        e.nextTask,
		IndexUID:   uid,
		Status:     status,
		Type:       typ,
		Details:    details,
		Error:      failure,
		EnqueuedAt: now,
		FinishedAt: &now,
	})
	return engine.TaskInfo{
		TaskUID:    e.nextTask,
		IndexUID:   uid,
		Status:     engine.TaskEnqueued,
		Type:       typ,
		EnqueuedAt: now,
	}
}

// CreateIndex creates uid. An existing index yields a failed task, as a server would.
func (e *BleveEngine) CreateIndex(_ context.Context, uid, primaryKey string) (engine.TaskInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return engine.TaskInfo{}, fmt.Errorf("%w: embedded engine closed", engine.ErrUnreachable)
	}
	details := engine.TaskDetails{PrimaryKey: primaryKey}
	if _, ok := e.indexes[uid]; ok {
		return e.record(uid, engine.TaskTypeIndexCreation, details, &engine.TaskError{
			Code:    engine.CodeIndexAlreadyExists,
			Message: fmt.Sprintf("index %q already exists", uid),
		}), nil
	}
	if _, err := e.create(uid, primaryKey); err != nil {
		return engine.TaskInfo{}, errors.Wrap(errors.ErrCodeIndexFailed, err)
	}
	return e.record(uid, engine.TaskTypeIndexCreation, details, nil), nil
}

// DeleteIndex drops uid and its files.
func (e *BleveEngine) DeleteIndex(_ context.Context, uid string) (engine.TaskInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	bi, err := e.lookup(uid)
	if err != nil {
		if errors.GetCode(err) == errors.ErrCodeIndexNotFound {
			return e.record(uid, engine.TaskTypeIndexDeletion, engine.TaskDetails{}, &engine.TaskError{
				Code: engine.CodeIndexNotFound, Message: err.Error(),
			}), nil
		}
		return engine.TaskInfo{}, err
	}
	_ = bi.idx.Close()
	delete(e.indexes, uid)
	if e.dir != "" {
		if err := os.RemoveAll(filepath.Join(e.dir, uid+indexSuffix)); err != nil {
			return engine.TaskInfo{}, errors.Wrap(errors.ErrCodeIndexFailed, err)
		}
	}
	return e.record(uid, engine.TaskTypeIndexDeletion, engine.TaskDetails{}, nil), nil
}

// ensure returns uid, creating it when missing. Caller holds the write lock.
func (e *BleveEngine) ensure(uid, primaryKey string) (*bleveIndex, error) {
	if e.closed {
		return nil, fmt.Errorf("%w: embedded engine closed", engine.ErrUnreachable)
	}
	if bi, ok := e.indexes[uid]; ok {
		return bi, nil
	}
	return e.create(uid, primaryKey)
}

// UpdateSettings stores attribute roles; missing indexes are created.
func (e *BleveEngine) UpdateSettings(_ context.Context, uid string, s engine.Settings) (engine.TaskInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	bi, err := e.ensure(uid, "")
	if err != nil {
		return engine.TaskInfo{}, err
	}
	for _, f := range s.FilterableAttributes {
		if !isKeywordField(f) {
			return e.record(uid, engine.TaskTypeSettingsUpdate, engine.TaskDetails{}, &engine.TaskError{
				Code:    "invalid_settings_filterable_attributes",
				Message: fmt.Sprintf("attribute %q cannot be filterable in the embedded engine", f),
			}), nil
		}
	}
	bi.meta.Settings = s
	if err := bi.saveMeta(); err != nil {
		return engine.TaskInfo{}, errors.Wrap(errors.ErrCodeIndexFailed, err)
	}
	return e.record(uid, engine.TaskTypeSettingsUpdate, engine.TaskDetails{}, nil), nil
}

// AddDocuments upserts docs by id in one bleve batch.
func (e *BleveEngine) AddDocuments(_ context.Context, uid string, docs []document.Document, primaryKey string) (engine.TaskInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	bi, err := e.ensure(uid, primaryKey)
	if err != nil {
		return engine.TaskInfo{}, err
	}

	received := int64(len(docs))
	details := engine.TaskDetails{ReceivedDocuments: &received}

	batch := bi.idx.NewBatch()
	for _, d := range docs {
		if d.ID == "" {
			zero := int64(0)
			details.IndexedDocuments = &zero
			return e.record(uid, engine.TaskTypeDocumentAddition, details, &engine.TaskError{
				Code:    "missing_document_id",
				Message: "document has no id",
			}), nil
		}
		raw, err := json.Marshal(d)
		if err != nil {
			return engine.TaskInfo{}, errors.InternalError("encode document "+d.ID, err)
		}
		if err := batch.Index(d.ID, indexedFields(d)); err != nil {
			return engine.TaskInfo{}, errors.Wrap(errors.ErrCodeIndexFailed, err)
		}
		batch.SetInternal([]byte(docPrefix+d.ID), raw)
	}
	if err := bi.idx.Batch(batch); err != nil {
		return engine.TaskInfo{}, errors.Wrap(errors.ErrCodeIndexFailed, err)
	}

	details.IndexedDocuments = &received
	return e.record(uid, engine.TaskTypeDocumentAddition, details, nil), nil
}

// GetTask returns a recorded task.
func (e *BleveEngine) GetTask(_ context.Context, taskUID int64) (engine.Task, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if taskUID < 1 || taskUID > int64(len(e.tasks)) {
		return engine.Task{}, errors.New(errors.ErrCodeEngineRejected, fmt.Sprintf("task %d not found", taskUID), nil)
	}
	return e.tasks[taskUID-1], nil
}

// ListTasks returns matching tasks, newest first.
func (e *BleveEngine) ListTasks(_ context.Context, q engine.TaskQuery) ([]engine.Task, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []engine.Task
	for i := len(e.tasks) - 1; i >= 0; i-- {
		t := e.tasks[i]
		if q.IndexUID != "" && t.IndexUID != q.IndexUID {
			continue
		}
		if len(q.Types) > 0 && !contains(q.Types, t.Type) {
			continue
		}
		if len(q.Statuses) > 0 && !containsStatus(q.Statuses, t.Status) {
			continue
		}
		out = append(out, t)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

// Search matches the query against the searchable attributes and applies the filter.
func (e *BleveEngine) Search(ctx context.Context, uid string, req engine.SearchRequest) (engine.SearchResponse, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	bi, err := e.lookup(uid)
	if err != nil {
		return engine.SearchResponse{}, err
	}

	q, err := bi.buildQuery(req)
	if err != nil {
		return engine.SearchResponse{}, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	sr := bleve.NewSearchRequestOptions(q, limit, req.Offset, false)
	sr.SortBy([]string{"-_score", "_id"})

	res, err := bi.idx.SearchInContext(ctx, sr)
	if err != nil {
		return engine.SearchResponse{}, errors.Wrap(errors.ErrCodeSearchFailed, err)
	}

	hits := make([]document.Document, 0, len(res.Hits))
	for _, h := range res.Hits {
		d, err := bi.load(h.ID)
		if err != nil {
			continue
		}
		hits = append(hits, d)
	}

	return engine.SearchResponse{
		Hits:             hits,
		TotalHits:        int64(res.Total),
		Limit:            limit,
		Offset:           req.Offset,
		ProcessingTimeMs: res.Took.Milliseconds(),
	}, nil
}

func (bi *bleveIndex) buildQuery(req engine.SearchRequest) (query.Query, error) {
	var text query.Query = bleve.NewMatchAllQuery()
	if terms := strings.TrimSpace(req.Query); terms != "" {
		fields := bi.meta.Settings.SearchableAttributes
		if len(fields) == 0 {
			fields = textFields
		}
		var alts []query.Query
		last := lastTerm(terms)
		for _, f := range fields {
			m := bleve.NewMatchQuery(terms)
			m.SetField(f)
			alts = append(alts, m)
			// prefix on the last word keeps type-ahead working
			if len([]rune(last)) >= 2 {
				p := bleve.NewPrefixQuery(last)
				p.SetField(f)
				alts = append(alts, p)
			}
		}
		text = bleve.NewDisjunctionQuery(alts...)
	}

	if req.Filter.IsZero() {
		return text, nil
	}
	fq, err := bi.filterQuery(req.Filter)
	if err != nil {
		return nil, err
	}
	return bleve.NewConjunctionQuery(text, fq), nil
}

func lastTerm(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func (bi *bleveIndex) filterQuery(f engine.Filter) (query.Query, error) {
	switch f.Op() {
	case engine.OpEq:
		if !bi.filterable(f.Field()) {
			return nil, errors.New(errors.ErrCodeInvalidFilter,
				fmt.Sprintf("attribute %q is not filterable", f.Field()), nil)
		}
		tq := bleve.NewTermQuery(f.Value())
		tq.SetField(keywordField(f.Field()))
		return tq, nil
	case engine.OpAnd, engine.OpOr:
		var parts []query.Query
		for _, c := range f.Children() {
			q, err := bi.filterQuery(c)
			if err != nil {
				return nil, err
			}
			parts = append(parts, q)
		}
		if f.Op() == engine.OpAnd {
			return bleve.NewConjunctionQuery(parts...), nil
		}
		return bleve.NewDisjunctionQuery(parts...), nil
	}
	return bleve.NewMatchAllQuery(), nil
}

func (bi *bleveIndex) filterable(field string) bool {
	if !isKeywordField(field) {
		return false
	}
	if len(bi.meta.Settings.FilterableAttributes) == 0 {
		return true
	}
	return contains(bi.meta.Settings.FilterableAttributes, field)
}

func (bi *bleveIndex) load(id string) (document.Document, error) {
	raw, err := bi.idx.GetInternal([]byte(docPrefix + id))
	if err != nil {
		return document.Document{}, errors.Wrap(errors.ErrCodeSearchFailed, err)
	}
	if raw == nil {
		return document.Document{}, errors.New(errors.ErrCodeDocNotFound, fmt.Sprintf("document %q not found", id), nil)
	}
	var d document.Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return document.Document{}, errors.InternalError("decode document "+id, err)
	}
	return d, nil
}

// GetDocument loads one stored document.
func (e *BleveEngine) GetDocument(_ context.Context, uid, id string) (document.Document, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	bi, err := e.lookup(uid)
	if err != nil {
		return document.Document{}, err
	}
	return bi.load(id)
}

// IndexNames lists the open indexes.
func (e *BleveEngine) IndexNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.indexes))
	for n := range e.indexes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close closes all indexes.
func (e *BleveEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	var firstErr error
	for _, bi := range e.indexes {
		if err := bi.idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsStatus(list []engine.TaskStatus, s engine.TaskStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
