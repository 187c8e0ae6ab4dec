package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"dubline/internal/services"
)

const memoryScheme = "mem://"

type memoryObject struct {
	data        []byte
	contentType string
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memoryObject)}
}

func (m *Memory) Put(_ context.Context, data []byte, key, contentType string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", services.Wrap(services.ErrValidation, "storage", "put", "key required", nil)
	}
	m.mu.Lock()
	m.objects[key] = memoryObject{data: append([]byte(nil), data...), contentType: contentType}
	m.mu.Unlock()
	return memoryScheme + key, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "storage", "get", fmt.Sprintf("object %q", key), nil)
	}
	return append([]byte(nil), obj.data...), nil
}

// ContentType reports the stored MIME type for key.
func (m *Memory) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects[key].contentType
}

func (m *Memory) PresignedGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", services.Wrap(services.ErrNotFound, "storage", "presign", fmt.Sprintf("object %q", key), nil)
	}
	q := url.Values{}
	q.Set("expires", fmt.Sprintf("%d", int(ttl.Seconds())))
	return "https://memory.invalid/" + url.PathEscape(key) + "?" + q.Encode(), nil
}

func (m *Memory) KeyFor(uri string) (string, bool) {
	key, ok := strings.CutPrefix(uri, memoryScheme)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

func (m *Memory) HealthCheck(context.Context) error { return nil }

// EnsureBucket is a no-op; the memory store has no bucket to create.
func (m *Memory) EnsureBucket(context.Context) (bool, error) { return false, nil }

// Len reports how many objects are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
