// Package file manages uploaded files: their metadata rows and backing objects.
package file

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// File is the metadata recorded for one uploaded object.
type File struct {
	ID          string    `json:"id"          example:"7b0c1c52-3b8e-4d3e-9a57-2f1d0c9b5a11"`
	Filename    string    `json:"filename"    example:"report.pdf"`
	StoragePath string    `json:"storagePath" example:"uploads/report.pdf"`
	ContentType string    `json:"contentType" example:"application/pdf"`
	Size        int64     `json:"size"        example:"10"`
	UploadedAt  time.Time `json:"uploadedAt"  example:"2026-02-27T14:48:34Z"`
}

// ErrNotFound is returned when a file record does not exist.
var ErrNotFound = errors.New("file not found")

// ErrAlreadyExists is returned when another record already uses the filename.
var ErrAlreadyExists = errors.New("file with this filename already exists")

// MetadataStore is the persistence contract the Service depends on.
type MetadataStore interface {
	ExistsByFilename(ctx context.Context, filename string) (bool, error)
	Create(ctx context.Context, f *File) (*File, error)
	List(ctx context.Context) ([]File, error)
	GetByID(ctx context.Context, id string) (*File, error)
	UpdateFilename(ctx context.Context, id, filename, storagePath string) error
	Delete(ctx context.Context, id string) error
}

// Repository handles all file database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, filename, storage_path, content_type, size, uploaded_at`

// ExistsByFilename reports whether a record with filename is present.
func (r *Repository) ExistsByFilename(ctx context.Context, filename string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM files WHERE filename = $1)`,
		filename,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check filename: %w", err)
	}
	return exists, nil
}

// Create inserts f and returns the stored record with its generated id.
func (r *Repository) Create(ctx context.Context, f *File) (*File, error) {
	out := &File{}
	err := r.db.QueryRow(ctx,
		`INSERT INTO files (filename, storage_path, content_type, size, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+selectColumns,
		f.Filename, f.StoragePath, f.ContentType, f.Size, f.UploadedAt,
	).Scan(&out.ID, &out.Filename, &out.StoragePath, &out.ContentType, &out.Size, &out.UploadedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert file: %w", err)
	}
	out.UploadedAt = out.UploadedAt.UTC()
	return out, nil
}

// List returns every record in the table's natural scan order.
func (r *Repository) List(ctx context.Context) ([]File, error) {
	rows, err := r.db.Query(ctx, `SELECT `+selectColumns+` FROM files`)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	files, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (File, error) {
		var f File
		err := row.Scan(&f.ID, &f.Filename, &f.StoragePath, &f.ContentType, &f.Size, &f.UploadedAt)
		f.UploadedAt = f.UploadedAt.UTC()
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan files: %w", err)
	}
	return files, nil
}

// GetByID fetches a record by its UUID.
func (r *Repository) GetByID(ctx context.Context, id string) (*File, error) {
	f := &File{}
	err := r.db.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM files WHERE id = $1`,
		id,
	).Scan(&f.ID, &f.Filename, &f.StoragePath, &f.ContentType, &f.Size, &f.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file by id: %w", err)
	}
	f.UploadedAt = f.UploadedAt.UTC()
	return f, nil
}

// UpdateFilename sets the filename and storage path of a record.
func (r *Repository) UpdateFilename(ctx context.Context, id, filename, storagePath string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE files SET filename = $2, storage_path = $3 WHERE id = $1`,
		id, filename, storagePath,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("update filename: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation checks whether an error is a PostgreSQL unique_violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
