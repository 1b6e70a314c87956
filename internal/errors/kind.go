package errors

// Kind is the failure taxonomy the pipeline and query surfaces reason about.
type Kind string

const (
	KindNone                  Kind = ""
	KindConnectionFailure     Kind = "connection_failure"
	KindNotFound              Kind = "not_found"
	KindExtractionFailure     Kind = "extraction_failure"
	KindConfigurationConflict Kind = "configuration_conflict"
	KindTaskTimeout           Kind = "task_timeout"
	KindInvalid               Kind = "invalid"
	KindInternal              Kind = "internal"
)

// KindOf classifies err. Errors without an IndexError in their chain are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	ie, ok := as(err)
	if !ok {
		return KindInternal
	}
	switch ie.Code {
	case ErrCodeEngineUnreachable, ErrCodeEngineTimeout:
		return KindConnectionFailure
	case ErrCodeIndexNotFound, ErrCodeDocNotFound, ErrCodeFileNotFound, ErrCodeConfigNotFound:
		return KindNotFound
	case ErrCodeExtractionFailed:
		return KindExtractionFailure
	case ErrCodeIndexConflict:
		return KindConfigurationConflict
	case ErrCodeTaskTimeout:
		return KindTaskTimeout
	case ErrCodeInvalidInput, ErrCodeInvalidFilter, ErrCodeConfigInvalid:
		return KindInvalid
	default:
		return KindInternal
	}
}
