// internal/models/image.go
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrImageNotFound is returned by the storage layer when a record does not
// exist. Pipelines treat it as "deleted after enqueue" and complete as a no-op.
var ErrImageNotFound = errors.New("image not found")

type Image struct {
	ID           uuid.UUID `db:"id"`
	OutputFormat string    `db:"output_format"` // empty means webp
	ResizeWidth  int       `db:"resize_width"`  // 0 means keep original width
	Quality      int       `db:"quality"`       // 0 means default (75)
	SeoTerms     string    `db:"seo_terms"`
	Language     string    `db:"language"` // empty means "en"
	AltText      string    `db:"alt_text"`

	OriginalPath     string `db:"original_path"`
	OriginalFilename string `db:"original_filename"`
	OriginalMime     string `db:"original_mime"`

	ProcessedPath     string `db:"processed_path"`
	ProcessedFilename string `db:"processed_filename"`
	ProcessedMime     string `db:"processed_mime"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Task types carried on the queue topic.
const (
	TaskProcessImage = "process_image"
	TaskBulkDescribe = "bulk_describe"
)

// Task is the queue message payload. Exactly one of ImageID/ImageIDs is set
// depending on Type. Delivery is at-least-once; both pipelines are idempotent.
type Task struct {
	Type     string      `json:"type"`
	ImageID  uuid.UUID   `json:"image_id,omitempty"`
	ImageIDs []uuid.UUID `json:"image_ids,omitempty"`
}
