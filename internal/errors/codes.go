// Package errors provides structured error handling for bananaindex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Source content errors (files, extraction, locks)
//   - 3XX: Search engine errors
//   - 4XX: Validation and lookup errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategorySource     Category = "SOURCE"
	CategoryEngine     Category = "ENGINE"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal aborts the current pipeline run.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails one operation; the caller may continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning means degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Source errors (200-299)
	ErrCodeFileNotFound     = "ERR_201_FILE_NOT_FOUND"
	ErrCodeExtractionFailed = "ERR_202_EXTRACTION_FAILED"
	ErrCodeLockHeld         = "ERR_203_LOCK_HELD"
	ErrCodeNoDocuments      = "ERR_204_NO_DOCUMENTS"

	// Engine errors (300-399)
	ErrCodeEngineUnreachable = "ERR_301_ENGINE_UNREACHABLE"
	ErrCodeEngineTimeout     = "ERR_302_ENGINE_TIMEOUT"
	ErrCodeTaskTimeout       = "ERR_303_TASK_TIMEOUT"
	ErrCodeIndexConflict     = "ERR_304_INDEX_CONFLICT"
	ErrCodeEngineRejected    = "ERR_305_ENGINE_REJECTED"
	ErrCodeTaskFailed        = "ERR_306_TASK_FAILED"

	// Validation and lookup errors (400-499)
	ErrCodeInvalidInput  = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidFilter = "ERR_402_INVALID_FILTER"
	ErrCodeIndexNotFound = "ERR_403_INDEX_NOT_FOUND"
	ErrCodeDocNotFound   = "ERR_404_DOCUMENT_NOT_FOUND"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeIndexFailed  = "ERR_502_INDEX_FAILED"
	ErrCodeSearchFailed = "ERR_503_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "301" from "ERR_301_ENGINE_UNREACHABLE"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategorySource
	case '3':
		return CategoryEngine
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeEngineUnreachable, ErrCodeNoDocuments, ErrCodeConfigInvalid:
		return SeverityFatal
	case ErrCodeTaskTimeout, ErrCodeExtractionFailed, ErrCodeIndexConflict:
		return SeverityWarning
	}
	return SeverityError
}

func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEngineUnreachable, ErrCodeEngineTimeout:
		return true
	default:
		return false
	}
}
