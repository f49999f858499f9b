// internal/storage/storage.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"imageseo/internal/models"
)

const imageColumns = `id, output_format, resize_width, quality, seo_terms, language, alt_text,
	 original_path, original_filename, original_mime,
	 processed_path, processed_filename, processed_mime,
	 created_at, updated_at`

// Storage keeps image records in Postgres and their blobs on disk under
// basePath. Row updates are atomic at the single-record level; an update
// against a deleted record affects zero rows and is treated as a no-op.
type Storage struct {
	pool     *pgxpool.Pool
	db       *sql.DB // For migrations
	basePath string
}

func NewStorage(dsn, basePath string) (*Storage, error) {
	const op = "storage.NewStorage"

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	for _, sub := range []string{"original", "processed"} {
		if err := os.MkdirAll(filepath.Join(basePath, sub), 0755); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %v", op, err)
		}
	}

	return &Storage{pool: pool, db: db, basePath: basePath}, nil
}

func (s *Storage) Close() {
	s.db.Close()
	s.pool.Close()
}

// SaveImage writes the original blob to disk and inserts the record. The
// original file is immutable after this point.
func (s *Storage) SaveImage(ctx context.Context, img *models.Image, data []byte) error {
	const op = "storage.SaveImage"

	path := filepath.Join(s.basePath, "original", img.ID.String()+filepath.Ext(img.OriginalFilename))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	img.OriginalPath = path

	_, err := s.pool.Exec(ctx,
		`INSERT INTO images (id, output_format, resize_width, quality, seo_terms, language, alt_text,
			original_path, original_filename, original_mime,
			processed_path, processed_filename, processed_mime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		img.ID, img.OutputFormat, img.ResizeWidth, img.Quality, img.SeoTerms, img.Language, img.AltText,
		img.OriginalPath, img.OriginalFilename, img.OriginalMime,
		img.ProcessedPath, img.ProcessedFilename, img.ProcessedMime)
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (s *Storage) GetImage(ctx context.Context, id uuid.UUID) (*models.Image, error) {
	const op = "storage.GetImage"

	row := s.pool.QueryRow(ctx, `SELECT `+imageColumns+` FROM images WHERE id = $1`, id)
	img, err := scanImage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrImageNotFound
		}
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return img, nil
}

// GetImagesByIDs returns the subset of existing records among ids, preserving
// the input ordering. Missing ids are silently skipped.
func (s *Storage) GetImagesByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Image, error) {
	const op = "storage.GetImagesByIDs"

	rows, err := s.pool.Query(ctx, `SELECT `+imageColumns+` FROM images WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*models.Image, len(ids))
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}
		byID[img.ID] = img
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	result := make([]*models.Image, 0, len(byID))
	for _, id := range ids {
		if img, ok := byID[id]; ok {
			result = append(result, img)
		}
	}
	return result, nil
}

func (s *Storage) ListImages(ctx context.Context) ([]*models.Image, error) {
	const op = "storage.ListImages"

	rows, err := s.pool.Query(ctx, `SELECT `+imageColumns+` FROM images ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	defer rows.Close()

	var result []*models.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}
		result = append(result, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return result, nil
}

// UpdateAltText sets only the generated description. Zero affected rows means
// the record was deleted after enqueue, which is not an error.
func (s *Storage) UpdateAltText(ctx context.Context, id uuid.UUID, altText string) error {
	const op = "storage.UpdateAltText"

	_, err := s.pool.Exec(ctx,
		`UPDATE images SET alt_text = $2, updated_at = now() WHERE id = $1`, id, altText)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

// ApplyProcessedResult writes the transformed blob and commits alt text plus
// attachment in one UPDATE, so either both generated fields change or neither
// does. A prior processed blob is fully replaced.
func (s *Storage) ApplyProcessedResult(ctx context.Context, id uuid.UUID, altText string, data []byte, filename, mimeType string) error {
	const op = "storage.ApplyProcessedResult"

	dir := filepath.Join(s.basePath, "processed", id.String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	var oldPath string
	err := s.pool.QueryRow(ctx,
		`SELECT processed_path FROM images WHERE id = $1`, id).Scan(&oldPath)
	if errors.Is(err, pgx.ErrNoRows) {
		// Record deleted after enqueue; drop the orphaned blob.
		os.Remove(path)
		return nil
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("%s: %v", op, err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE images SET alt_text = $2, processed_path = $3, processed_filename = $4,
			processed_mime = $5, updated_at = now()
		WHERE id = $1`,
		id, altText, path, filename, mimeType)
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("%s: %v", op, err)
	}
	if tag.RowsAffected() == 0 {
		os.Remove(path)
		return nil
	}

	if oldPath != "" && oldPath != path {
		os.Remove(oldPath)
	}
	return nil
}

func (s *Storage) DeleteImage(ctx context.Context, id uuid.UUID) error {
	const op = "storage.DeleteImage"

	img, err := s.GetImage(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM images WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	// Blob removal is best-effort; an orphaned file is preferable to a
	// half-deleted record.
	if img.OriginalPath != "" {
		os.Remove(img.OriginalPath)
	}
	if img.ProcessedPath != "" {
		os.Remove(img.ProcessedPath)
		os.Remove(filepath.Dir(img.ProcessedPath))
	}
	return nil
}

func scanImage(row pgx.Row) (*models.Image, error) {
	var img models.Image
	err := row.Scan(&img.ID, &img.OutputFormat, &img.ResizeWidth, &img.Quality,
		&img.SeoTerms, &img.Language, &img.AltText,
		&img.OriginalPath, &img.OriginalFilename, &img.OriginalMime,
		&img.ProcessedPath, &img.ProcessedFilename, &img.ProcessedMime,
		&img.CreatedAt, &img.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &img, nil
}
