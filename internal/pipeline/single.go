// internal/pipeline/single.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"imageseo/internal/codec"
	"imageseo/internal/models"
	"imageseo/internal/vision"
)

// Single re-encodes one image per its record parameters, asks the vision model
// for an SEO alt text and filename for the transformed bytes, and commits both
// the description and the processed blob together.
type Single struct {
	store  RecordStore
	client Describer
	model  string
	log    *zap.Logger
}

func NewSingle(store RecordStore, client Describer, model string, log *zap.Logger) *Single {
	return &Single{store: store, client: client, model: model, log: log}
}

// Run processes one image. A missing record or a record without an original
// file completes as a no-op; the record may have been deleted or not fully
// created after enqueue. Codec and client errors are returned to the caller
// for logging and leave the record untouched.
func (p *Single) Run(ctx context.Context, id uuid.UUID) error {
	const op = "pipeline.Single.Run"

	img, err := p.store.GetImage(ctx, id)
	if errors.Is(err, models.ErrImageNotFound) {
		p.log.Info("image gone before processing, skipping", zap.String("image_id", id.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if img.OriginalPath == "" {
		p.log.Info("image has no original file, skipping", zap.String("image_id", id.String()))
		return nil
	}

	data, err := os.ReadFile(img.OriginalPath)
	if err != nil {
		return fmt.Errorf("%s: read original: %w", op, err)
	}

	out, mimeType, err := codec.Transform(data, img.OutputFormat, img.Quality, img.ResizeWidth)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// The model sees the transformed bytes, not the original, so the
	// description matches what will actually ship.
	raw, err := p.client.Describe(ctx, vision.DescribeRequest{
		Model: p.model,
		Parts: []vision.Part{
			vision.TextPart(singlePrompt(img)),
			vision.ImagePart(out, mimeType),
		},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res, ok := vision.ParseSingle(raw)
	if !ok {
		p.log.Warn("could not parse vision response, using fallback description",
			zap.String("image_id", id.String()))
	}

	name := slugify(res.Filename)
	if name == "" {
		name = "optimized-image-" + shortID(img.ID)
	}
	filename := name + "." + codec.Extension(img.OutputFormat)

	if err := p.store.ApplyProcessedResult(ctx, img.ID, res.Description, out, filename, mimeType); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.log.Info("image processed",
		zap.String("image_id", id.String()),
		zap.String("filename", filename),
		zap.Int("size", len(out)))
	return nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
