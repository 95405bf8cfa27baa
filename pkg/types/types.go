package types

import (
	"time"

	"github.com/gofrs/uuid"
)

// FileCategory is the classification output for an uploaded file. It is the
// single input to strategy resolution.
type FileCategory string

const (
	// ImageCategory covers raster and vector images.
	ImageCategory FileCategory = "IMAGE"
	// DocumentCategory covers prose documents (pdf, word, text, markdown...).
	DocumentCategory FileCategory = "DOCUMENT"
	// SpreadsheetCategory covers tabular formats (csv, xlsx, ods...).
	SpreadsheetCategory FileCategory = "SPREADSHEET"
	// CodeCategory covers source code and notebooks.
	CodeCategory FileCategory = "CODE"
	// AudioCategory covers audio recordings.
	AudioCategory FileCategory = "AUDIO"
	// VideoCategory covers video files.
	VideoCategory FileCategory = "VIDEO"
	// ArchiveCategory covers compressed bundles.
	ArchiveCategory FileCategory = "ARCHIVE"
	// UnknownCategory is the total-function fallback.
	UnknownCategory FileCategory = "UNKNOWN"
)

// Strategy identifies a processing path a file can be routed to. A file has
// exactly one primary strategy and zero or more background strategies.
type Strategy string

const (
	// ImageStrategy stores the raw bytes and serves them to the model
	// provider as an image part.
	ImageStrategy Strategy = "IMAGE"
	// FileSearchStrategy indexes the file's text for semantic search.
	FileSearchStrategy Strategy = "FILE_SEARCH"
	// CodeExecutorStrategy makes the file available inside the
	// code-execution sandbox.
	CodeExecutorStrategy Strategy = "CODE_EXECUTOR"
	// TextContextStrategy inlines the extracted text directly into the
	// conversation context.
	TextContextStrategy Strategy = "TEXT_CONTEXT"
	// ProviderStrategy passes the raw file through to the model provider's
	// own file API.
	ProviderStrategy Strategy = "PROVIDER"
)

// Strategies lists every defined strategy. Used to validate strategy keys at
// the system boundary before they reach the persisted matrix.
var Strategies = []Strategy{
	ImageStrategy,
	FileSearchStrategy,
	CodeExecutorStrategy,
	TextContextStrategy,
	ProviderStrategy,
}

// ValidStrategy reports whether s is one of the defined strategies.
func ValidStrategy(s Strategy) bool {
	for _, known := range Strategies {
		if s == known {
			return true
		}
	}
	return false
}

// StrategyStatus is the per-strategy processing state recorded in the file's
// strategy matrix.
type StrategyStatus string

const (
	StatusPending    StrategyStatus = "PENDING"
	StatusUploading  StrategyStatus = "UPLOADING"
	StatusExtracting StrategyStatus = "EXTRACTING"
	StatusEmbedding  StrategyStatus = "EMBEDDING"
	StatusCompleted  StrategyStatus = "COMPLETED"
	StatusFailed     StrategyStatus = "FAILED"
)

// StrategyStatuses lists every defined status. Used to validate status
// values at the system boundary before they reach the persisted matrix.
var StrategyStatuses = []StrategyStatus{
	StatusPending,
	StatusUploading,
	StatusExtracting,
	StatusEmbedding,
	StatusCompleted,
	StatusFailed,
}

// ValidStrategyStatus reports whether s is one of the defined statuses.
func ValidStrategyStatus(s StrategyStatus) bool {
	for _, known := range StrategyStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// TerminalStatus reports whether s is a terminal state.
func TerminalStatus(s StrategyStatus) bool {
	return s == StatusCompleted || s == StatusFailed
}

// StatusRecord tracks one strategy's processing progress on a file.
type StatusRecord struct {
	Status      StrategyStatus `json:"status"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
	// Error carries the failure description of the last FAILED transition.
	Error *string `json:"error,omitempty"`
}

// NewStatusRecord stamps a fresh record at the given status.
func NewStatusRecord(status StrategyStatus) StatusRecord {
	now := time.Now().UTC()
	rec := StatusRecord{Status: status, StartedAt: &now, UpdatedAt: now}
	if TerminalStatus(status) {
		rec.CompletedAt = &now
	}
	return rec
}

// ToolResource is the agent capability a file is bound to.
type ToolResource string

const (
	// FileSearchResource binds the file to the semantic search capability.
	FileSearchResource ToolResource = "file_search"
	// CodeExecutorResource binds the file to the code-execution capability.
	CodeExecutorResource ToolResource = "execute_code"
	// ImageResource routes the file to the model provider as an image.
	ImageResource ToolResource = "image"
	// ContextResource inlines the file's text as conversation context.
	ContextResource ToolResource = "context"
)

// FileContext tags how an uploaded file is used.
type FileContext string

const (
	MessageAttachmentContext FileContext = "message_attachment"
	AgentResourceContext     FileContext = "agent_resource"
	AssistantResourceContext FileContext = "assistant_resource"
	OutputContext            FileContext = "output"
)

// StorageSource tags which storage backend holds a file's bytes.
type StorageSource string

const (
	MinIOSource    StorageSource = "minio"
	GCSSource      StorageSource = "gcs"
	LocalSource    StorageSource = "local"
	ProviderSource StorageSource = "provider"
	// TextSource marks records whose extracted text is the artifact itself;
	// no storage backend holds bytes for them.
	TextSource StorageSource = "text"
)

// UploadIntent is the inferred purpose of an agent upload when the caller
// supplies no explicit tool resource.
type UploadIntent string

const (
	CodeIntent     UploadIntent = "code"
	SearchIntent   UploadIntent = "search"
	ProviderIntent UploadIntent = "provider"
)

type (
	// FileUIDType is the file unique identifier.
	FileUIDType = uuid.UUID
	// UserUIDType is the owning principal unique identifier.
	UserUIDType = uuid.UUID
	// EntityUIDType scopes shared agent-level uploads vs per-conversation
	// uploads in the embedding service.
	EntityUIDType = uuid.UUID
	// AgentUIDType is the agent unique identifier.
	AgentUIDType = uuid.UUID
)
