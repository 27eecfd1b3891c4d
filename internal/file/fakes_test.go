package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is an in-memory MetadataStore that keeps insertion order.
type memRepo struct {
	mu    sync.Mutex
	order []string
	rows  map[string]File

	// failUpdate, when set, is returned by UpdateFilename for the given filename.
	failUpdate map[string]error
	failCreate error
	// honorCancel makes Delete fail once its context is done, as pgx does.
	honorCancel bool
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string]File{}, failUpdate: map[string]error{}}
}

func (m *memRepo) ExistsByFilename(_ context.Context, filename string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.rows {
		if f.Filename == filename {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) Create(ctx context.Context, f *File) (*File, error) {
	if m.failCreate != nil {
		return nil, m.failCreate
	}
	if exists, _ := m.ExistsByFilename(ctx, f.Filename); exists {
		return nil, ErrAlreadyExists
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := *f
	out.ID = uuid.NewString()
	m.rows[out.ID] = out
	m.order = append(m.order, out.ID)
	return &out, nil
}

func (m *memRepo) List(_ context.Context) ([]File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []File
	for _, id := range m.order {
		if f, ok := m.rows[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (m *memRepo) UpdateFilename(_ context.Context, id, filename, storagePath string) error {
	if err := m.failUpdate[filename]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	f.Filename = filename
	f.StoragePath = storagePath
	m.rows[id] = f
	return nil
}

func (m *memRepo) Delete(ctx context.Context, id string) error {
	if m.honorCancel && ctx.Err() != nil {
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

// memStore is an in-memory storage.Storage that records every call.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	calls   []string

	failCopy    error
	failPresign error
	// failDelete is returned by Delete for the given key.
	failDelete map[string]error
	failUpload error
	// afterDelete runs once an object has been removed.
	afterDelete func()
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, failDelete: map[string]error{}}
}

func (s *memStore) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *memStore) Upload(_ context.Context, key string, reader io.Reader, size int64, _ string) error {
	s.record("upload " + key)
	if s.failUpload != nil {
		return s.failUpload
	}
	b, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if int64(len(b)) != size {
		return fmt.Errorf("size mismatch: read %d, declared %d", len(b), size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
	return nil
}

func (s *memStore) Copy(_ context.Context, srcKey, dstKey string) error {
	s.record("copy " + srcKey + " " + dstKey)
	if s.failCopy != nil {
		return s.failCopy
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[srcKey]
	if !ok {
		return errors.New("NoSuchKey")
	}
	s.objects[dstKey] = b
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.record("delete " + key)
	if err := s.failDelete[key]; err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	if s.afterDelete != nil {
		s.afterDelete()
	}
	return nil
}

func (s *memStore) PresignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	s.record("presign " + key)
	if s.failPresign != nil {
		return "", s.failPresign
	}
	return fmt.Sprintf("http://minio:9000/uploads/%s?X-Amz-Expires=%d", url.PathEscape(key), int(expiry.Seconds())), nil
}

func (s *memStore) Path(key string) string {
	return "uploads/" + key
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *memStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
