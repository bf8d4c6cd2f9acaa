package evidence

import (
	"context"
	"sync"

	"garage-repair-api-server/internal/apperr"
)

// MemoryStore keeps photos in process memory. Err, when set, fails every Put.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]Photo
	Err     error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string]Photo{}}
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	s.objects[key] = Photo{Data: append([]byte(nil), data...), ContentType: contentType}
	return "mem://" + key, nil
}

func (s *MemoryStore) Open(_ context.Context, key string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.objects[key]
	if !ok {
		return nil, "", apperr.NotFound("image %s", key)
	}
	return p.Data, p.ContentType, nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
