package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is a stable, machine-readable failure reason.
type ErrorKind string

const (
	KindNoDocuments      ErrorKind = "NoDocuments"
	KindInvalidLimit     ErrorKind = "InvalidLimit"
	KindInvalidRef       ErrorKind = "InvalidRef"
	KindTooManyDocuments ErrorKind = "TooManyDocuments"

	KindNotFound       ErrorKind = "NotFound"
	KindTimeout        ErrorKind = "Timeout"
	KindTransportError ErrorKind = "TransportError"
	KindTooLarge       ErrorKind = "TooLarge"

	KindEncrypted ErrorKind = "Encrypted"
	KindCorrupt   ErrorKind = "Corrupt"
	KindEmpty     ErrorKind = "Empty"

	KindPartialChunkFailure ErrorKind = "PartialChunkFailure"
	KindReductionFailure    ErrorKind = "ReductionFailure"

	KindCapacityExhausted ErrorKind = "CapacityExhausted"
)

// Category groups error kinds by the stage that produces them.
type Category string

const (
	CategoryValidation Category = "ValidationError"
	CategoryFetch      Category = "FetchError"
	CategoryExtract    Category = "ExtractError"
	CategorySummarize  Category = "SummarizeError"
	CategoryResource   Category = "ResourceError"
	CategoryUnknown    Category = "UnknownError"
)

func (k ErrorKind) Category() Category {
	switch k {
	case KindNoDocuments, KindInvalidLimit, KindInvalidRef, KindTooManyDocuments:
		return CategoryValidation
	case KindNotFound, KindTimeout, KindTransportError, KindTooLarge:
		return CategoryFetch
	case KindEncrypted, KindCorrupt, KindEmpty:
		return CategoryExtract
	case KindPartialChunkFailure, KindReductionFailure:
		return CategorySummarize
	case KindCapacityExhausted:
		return CategoryResource
	default:
		return CategoryUnknown
	}
}

// Error attaches an ErrorKind to an underlying cause.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}

	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, err error) error {
	return &Error{Kind: kind, Err: err}
}

func Errorf(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the outermost ErrorKind found in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}

	return "", false
}

func IsValidation(err error) bool {
	kind, ok := KindOf(err)

	return ok && kind.Category() == CategoryValidation
}
