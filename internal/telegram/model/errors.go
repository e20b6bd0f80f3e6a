package model

import (
	"github.com/Laisky/errors/v2"
)

var (
	// ErrNotFound no artifact recorded under the decoded identifier.
	ErrNotFound = errors.New("artifact not found")
	// ErrUnsupportedMedia the attachment matched none of the recognized
	// media kinds.
	ErrUnsupportedMedia = errors.New("unsupported media kind")
	// ErrDuplicateFileID an artifact already exists under this id.
	// Identifiers are never reused, so hitting this means the caller is
	// replaying an already-recorded upload.
	ErrDuplicateFileID = errors.New("duplicate file id")
)
