package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStorage keeps objects in process memory. It backs local runs without an S3 endpoint.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (m *MemoryStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read object %s: %w", key, err)
	}
	m.mu.Lock()
	m.objects[key] = data
	m.types[key] = contentType
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryStorage) GetURL(key string) string {
	return "memory://" + key
}

func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	delete(m.types, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	return ok, nil
}

// ContentType returns the content type recorded for key.
func (m *MemoryStorage) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.types[key]
}
