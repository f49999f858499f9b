// Package pipeline implements the asynchronous image processing tasks: the
// single-image transform/describe pipeline and the bulk description pipeline.
//
// Records are not locked per id. Concurrent single and bulk runs against the
// same record race on alt_text with the last writer winning; each write is a
// whole value, so no interleaved state is possible. Every run is idempotent,
// which makes at-least-once task redelivery safe.
package pipeline

import (
	"context"

	"github.com/google/uuid"

	"imageseo/internal/models"
	"imageseo/internal/vision"
)

// RecordStore is the slice of the storage layer the pipelines consume.
type RecordStore interface {
	GetImage(ctx context.Context, id uuid.UUID) (*models.Image, error)
	GetImagesByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Image, error)
	UpdateAltText(ctx context.Context, id uuid.UUID, altText string) error
	ApplyProcessedResult(ctx context.Context, id uuid.UUID, altText string, data []byte, filename, mimeType string) error
}

// Describer sends one vision-model call and returns its raw text.
type Describer interface {
	Describe(ctx context.Context, req vision.DescribeRequest) (string, error)
}
