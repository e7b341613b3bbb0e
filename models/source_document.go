package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceDocument represents an archived original document (PDF, scan, export)
// backing an entry in the legal corpus
type SourceDocument struct {
	ID          uuid.UUID  `json:"id"`
	OrgID       uuid.UUID  `json:"org_id"`
	SourceID    *uuid.UUID `json:"source_id,omitempty"`
	Filename    string     `json:"filename"`
	MimeType    string     `json:"mime_type"`
	Size        int64      `json:"size"`
	StoragePath string     `json:"storage_path"`
	CreatedAt   time.Time  `json:"created_at"`
}
