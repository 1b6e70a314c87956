// Package engine defines the port to the external full-text engine.
//
// Two adapters implement it: engine/meilisearch talks to a Meilisearch
// server over HTTP, and store provides an embedded bleve index for offline
// use and tests. The pipeline and query service only see this interface.
package engine

import (
	"context"
	"time"

	"github.com/Aman-CERP/bananaindex/internal/document"
	"github.com/Aman-CERP/bananaindex/internal/errors"
)

// Sentinel errors. Adapters return errors that match these with errors.Is.
var (
	ErrUnreachable      = errors.New(errors.ErrCodeEngineUnreachable, "search engine unreachable", nil)
	ErrIndexNotFound    = errors.New(errors.ErrCodeIndexNotFound, "index not found", nil)
	ErrDocumentNotFound = errors.New(errors.ErrCodeDocNotFound, "document not found", nil)
	ErrIndexExists      = errors.New(errors.ErrCodeIndexConflict, "index already exists", nil)
	ErrTaskTimeout      = errors.New(errors.ErrCodeTaskTimeout, "task did not finish in time", nil)
	ErrInvalidFilter    = errors.New(errors.ErrCodeInvalidFilter, "invalid filter", nil)
)

// TaskStatus is the lifecycle state of an asynchronous engine task.
type TaskStatus string

const (
	TaskEnqueued   TaskStatus = "enqueued"
	TaskProcessing TaskStatus = "processing"
	TaskSucceeded  TaskStatus = "succeeded"
	TaskFailed     TaskStatus = "failed"
	TaskCanceled   TaskStatus = "canceled"
)

// Terminal reports whether the task will not change state again.
func (s TaskStatus) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed || s == TaskCanceled
}

// Task types the pipeline cares about.
const (
	TaskTypeDocumentAddition = "documentAdditionOrUpdate"
	TaskTypeIndexCreation    = "indexCreation"
	TaskTypeSettingsUpdate   = "settingsUpdate"
	TaskTypeIndexDeletion    = "indexDeletion"
)

// Engine error codes carried in TaskError.Code.
const (
	CodeIndexAlreadyExists = "index_already_exists"
	CodeIndexNotFound      = "index_not_found"
	CodeDocumentNotFound   = "document_not_found"
	CodeInvalidFilter      = "invalid_search_filter"
)

// TaskInfo is the handle returned when a write is accepted.
type TaskInfo struct {
	TaskUID    int64      `json:"taskUid"`
	IndexUID   string     `json:"indexUid"`
	Status     TaskStatus `json:"status"`
	Type       string     `json:"type"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
}

// TaskDetails holds per-type counters. Any field may be missing.
type TaskDetails struct {
	ReceivedDocuments *int64 `json:"receivedDocuments,omitempty"`
	IndexedDocuments  *int64 `json:"indexedDocuments,omitempty"`
	PrimaryKey        string `json:"primaryKey,omitempty"`
}

// TaskError describes why a task failed.
type TaskError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Type    string `json:"type"`
}

// Task is the full state of an engine task.
type Task struct {
	UID        int64       `json:"uid"`
	IndexUID   string      `json:"indexUid"`
	Status     TaskStatus  `json:"status"`
	Type       string      `json:"type"`
	Details    TaskDetails `json:"details"`
	Error      *TaskError  `json:"error,omitempty"`
	EnqueuedAt time.Time   `json:"enqueuedAt"`
	FinishedAt *time.Time  `json:"finishedAt,omitempty"`
}

// TaskQuery filters ListTasks. Results are newest first.
type TaskQuery struct {
	IndexUID string
	Types    []string
	Statuses []TaskStatus
	Limit    int
}

// IndexStats summarises an index.
type IndexStats struct {
	NumberOfDocuments int64 `json:"numberOfDocuments"`
	IsIndexing        bool  `json:"isIndexing"`
}

// Settings are the attribute roles applied to an index.
type Settings struct {
	SearchableAttributes []string `json:"searchableAttributes,omitempty"`
	FilterableAttributes []string `json:"filterableAttributes,omitempty"`
	SortableAttributes   []string `json:"sortableAttributes,omitempty"`
}

// SearchRequest is one query against an index.
type SearchRequest struct {
	Query  string
	Filter Filter
	Limit  int
	Offset int
}

// SearchResponse is one page of hits.
type SearchResponse struct {
	Hits             []document.Document
	TotalHits        int64
	Limit            int
	Offset           int
	ProcessingTimeMs int64
}

// Engine is the full-text engine port.
type Engine interface {
	// Health returns ErrUnreachable when the engine cannot be reached.
	Health(ctx context.Context) error

	// IndexStats returns ErrIndexNotFound for a missing index.
	IndexStats(ctx context.Context, uid string) (IndexStats, error)

	CreateIndex(ctx context.Context, uid, primaryKey string) (TaskInfo, error)
	DeleteIndex(ctx context.Context, uid string) (TaskInfo, error)
	UpdateSettings(ctx context.Context, uid string, s Settings) (TaskInfo, error)

	// AddDocuments upserts by primary key.
	AddDocuments(ctx context.Context, uid string, docs []document.Document, primaryKey string) (TaskInfo, error)

	GetTask(ctx context.Context, taskUID int64) (Task, error)
	ListTasks(ctx context.Context, q TaskQuery) ([]Task, error)

	Search(ctx context.Context, uid string, req SearchRequest) (SearchResponse, error)

	// GetDocument returns ErrDocumentNotFound when id is absent.
	GetDocument(ctx context.Context, uid, id string) (document.Document, error)

	Close() error
}
