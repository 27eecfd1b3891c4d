package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/filedrop/service/internal/storage"
)

// DownloadURLExpiry is how long a presigned download URL stays valid.
const DownloadURLExpiry = 60 * time.Second

// DefaultContentType is recorded when an upload declares no content type.
const DefaultContentType = "application/octet-stream"

// ErrFilenameRequired is returned when an operation is given an empty filename.
var ErrFilenameRequired = errors.New("filename required")

// StorageError wraps a failure reported by the object store.
// Op names the operation that was being performed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

// UploadInput describes one file received from a client.
type UploadInput struct {
	Filename    string
	ContentType string
	Content     io.ReadSeeker
}

// Service contains the business logic for file management.
type Service struct {
	repo  MetadataStore
	store storage.Storage
	log   *zap.Logger
	now   func() time.Time
}

// NewService creates a new file Service.
func NewService(repo MetadataStore, store storage.Storage, log *zap.Logger) *Service {
	return &Service{
		repo:  repo,
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores the content under its filename and records its metadata.
// If the record cannot be written the stored object is removed again.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*File, error) {
	if in.Filename == "" {
		return nil, ErrFilenameRequired
	}

	exists, err := s.repo.ExistsByFilename(ctx, in.Filename)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyExists
	}

	size, err := streamSize(in.Content)
	if err != nil {
		return nil, fmt.Errorf("measure upload: %w", err)
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	if err := s.store.Upload(ctx, in.Filename, in.Content, size, contentType); err != nil {
		return nil, &StorageError{Op: "upload", Err: err}
	}

	f, err := s.repo.Create(ctx, &File{
		Filename:    in.Filename,
		StoragePath: s.store.Path(in.Filename),
		ContentType: contentType,
		Size:        size,
		UploadedAt:  s.now(),
	})
	if errors.Is(err, ErrAlreadyExists) {
		// A concurrent upload inserted first and owns the key now.
		return nil, err
	}
	if err != nil {
		s.undo(ctx, "remove uploaded object", func(ctx context.Context) error {
			return s.store.Delete(ctx, in.Filename)
		})
		return nil, fmt.Errorf("record upload: %w", err)
	}

	s.log.Info("file uploaded",
		zap.String("id", f.ID),
		zap.String("filename", f.Filename),
		zap.Int64("size", f.Size),
	)
	return f, nil
}

// List returns every file record.
func (s *Service) List(ctx context.Context) ([]File, error) {
	files, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []File{}
	}
	return files, nil
}

// Get returns a file record by id. Ids that are not UUIDs are reported as not found.
// Any accepted spelling (braced, urn:uuid:) is looked up in canonical form.
func (s *Service) Get(ctx context.Context, id string) (*File, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.repo.GetByID(ctx, parsed.String())
}

// Rename moves a file to newName. The returned bool is false when the file
// already has that name and nothing was changed.
//
// The object is copied to the new key and the record updated before the old
// key is removed; a failure in either of the first two steps undoes the
// steps already taken.
func (s *Service) Rename(ctx context.Context, id, newName string) (bool, error) {
	if newName == "" {
		return false, ErrFilenameRequired
	}

	f, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if f.Filename == newName {
		return false, nil
	}

	taken, err := s.repo.ExistsByFilename(ctx, newName)
	if err != nil {
		return false, err
	}
	if taken {
		return false, ErrAlreadyExists
	}

	id = f.ID
	oldName := f.Filename
	err = s.run(ctx, []step{
		{
			name: "copy object",
			do: func(ctx context.Context) error {
				if err := s.store.Copy(ctx, oldName, newName); err != nil {
					return &StorageError{Op: "rename", Err: err}
				}
				return nil
			},
			undo: func(ctx context.Context) error {
				return s.store.Delete(ctx, newName)
			},
			// A concurrent writer that inserted newName first owns the key.
			keepOn: ErrAlreadyExists,
		},
		{
			name: "update record",
			do: func(ctx context.Context) error {
				return s.repo.UpdateFilename(ctx, id, newName, s.store.Path(newName))
			},
			undo: func(ctx context.Context) error {
				return s.repo.UpdateFilename(ctx, id, oldName, s.store.Path(oldName))
			},
		},
	})
	if err != nil {
		return false, err
	}

	// The record already points at the new key, so a leftover old object is
	// only an orphan.
	if err := s.store.Delete(ctx, oldName); err != nil {
		s.log.Warn("rename left orphaned object",
			zap.String("id", id),
			zap.String("key", oldName),
			zap.Error(err),
		)
	}

	s.log.Info("file renamed", zap.String("id", id), zap.String("from", oldName), zap.String("to", newName))
	return true, nil
}

// Delete removes the backing object and then the record.
// When the object cannot be removed the record is kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	f, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, f.Filename); err != nil {
		return &StorageError{Op: "delete", Err: err}
	}

	// The object is gone, so the row must follow even if the client left.
	id = f.ID
	if err := s.repo.Delete(context.WithoutCancel(ctx), id); err != nil {
		s.log.Error("object removed but record remains",
			zap.String("id", id),
			zap.String("key", f.Filename),
			zap.Error(err),
		)
		return err
	}

	s.log.Info("file deleted", zap.String("id", id), zap.String("filename", f.Filename))
	return nil
}

// DownloadURL returns a presigned URL for the file's object.
func (s *Service) DownloadURL(ctx context.Context, id string) (string, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	u, err := s.store.PresignedURL(ctx, f.Filename, DownloadURLExpiry)
	if err != nil {
		return "", &StorageError{Op: "presign", Err: err}
	}
	return u, nil
}

// streamSize measures r by seeking to its end and rewinds it.
func streamSize(r io.Seeker) (int64, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return size, nil
}
