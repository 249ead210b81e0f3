package sync

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAmbiguousMatch indicates a fallback lookup matched more than one local record.
	ErrAmbiguousMatch = errors.New("ambiguous local match")

	// ErrConflict indicates an inbound change was rejected because the local record is newer.
	ErrConflict = errors.New("local record is newer than ERP record")

	// ErrForeignRecord indicates a local record owned by another store was handed to an orchestrator.
	ErrForeignRecord = errors.New("local record belongs to another store")

	// ErrLocalRecordNotFound indicates the local record for an ERP document does not exist.
	ErrLocalRecordNotFound = errors.New("local record not found")

	// ErrMissingERPConfig indicates the store has no usable ERP credentials.
	ErrMissingERPConfig = errors.New("ERP configuration not found for store")

	// ErrMissingExternalID indicates an ERP document carries no external link.
	ErrMissingExternalID = errors.New("ERP document has no external id")

	// ErrUnknownTable indicates a sync request named a table that cannot be synced.
	ErrUnknownTable = errors.New("unknown sync table")

	// ErrUnsupportedDoctype indicates a webhook for a doctype without a handler.
	ErrUnsupportedDoctype = errors.New("unsupported ERP doctype")
)

// ConflictError describes a rejected inbound update.
type ConflictError struct {
	// EntityID is the local record id.
	EntityID string

	// LocalUpdatedAt is when the local record last changed.
	LocalUpdatedAt time.Time

	// RemoteModified is when the ERP record last changed.
	RemoteModified time.Time
}

// Error implements error.
func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"%s: %s updated at %s, ERP modified at %s",
		ErrConflict,
		e.EntityID,
		e.LocalUpdatedAt.Format(time.RFC3339Nano),
		e.RemoteModified.Format(time.RFC3339Nano),
	)
}

// Is matches ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
