// internal/pipeline/bulk.go
package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"imageseo/internal/models"
	"imageseo/internal/vision"
)

// bulkMaxTokens caps the bulk response size; descriptions are short.
const bulkMaxTokens = 300

// Bulk asks the vision model for descriptions of many images in one call and
// fans the result back out by image id. It sends each record's original bytes
// (single mode sends the transformed ones; the asymmetry is inherited behavior
// and kept on purpose) and only updates alt text, never the processed file.
type Bulk struct {
	store  RecordStore
	client Describer
	model  string
	log    *zap.Logger
}

func NewBulk(store RecordStore, client Describer, model string, log *zap.Logger) *Bulk {
	return &Bulk{store: store, client: client, model: model, log: log}
}

// Run describes the existing records among ids. Any error before the response
// is parsed aborts the whole batch. Per-record alt text updates afterwards are
// independent; a record whose id is missing from the parsed mapping gets the
// fallback description.
func (p *Bulk) Run(ctx context.Context, ids []uuid.UUID) error {
	const op = "pipeline.Bulk.Run"

	imgs, err := p.store.GetImagesByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(imgs) == 0 {
		p.log.Info("no existing images in bulk batch, skipping")
		return nil
	}

	// One ordered parts sequence: the instruction, then per image its intro
	// text immediately followed by its attachment.
	parts := make([]vision.Part, 0, 1+2*len(imgs))
	parts = append(parts, vision.TextPart(bulkPrompt))
	for _, img := range imgs {
		data, err := os.ReadFile(img.OriginalPath)
		if err != nil {
			return fmt.Errorf("%s: read original %s: %w", op, img.ID, err)
		}
		parts = append(parts,
			vision.TextPart(bulkIntro(img)),
			vision.ImagePart(data, originalMime(img)))
	}

	raw, err := p.client.Describe(ctx, vision.DescribeRequest{
		Model:     p.model,
		Parts:     parts,
		MaxTokens: bulkMaxTokens,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	mapping, ok := vision.ParseBulk(raw)
	if !ok {
		p.log.Warn("could not parse bulk vision response, all images get the fallback description",
			zap.Int("batch_size", len(imgs)))
	}

	for _, img := range imgs {
		altText := mapping[img.ID.String()]
		if strings.TrimSpace(altText) == "" {
			altText = vision.FallbackDescription
		}
		if err := p.store.UpdateAltText(ctx, img.ID, altText); err != nil {
			// Updates are independent per record; keep going.
			p.log.Error("failed to update alt text",
				zap.String("image_id", img.ID.String()),
				zap.Error(err))
		}
	}

	p.log.Info("bulk description applied", zap.Int("batch_size", len(imgs)))
	return nil
}
