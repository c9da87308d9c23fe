package storage

import (
	"context"
	"io"
	"strings"
	"sync"

	apperrors "github.com/jrsteele09/campus-market/internal/errors"
	"github.com/pkg/errors"
)

var _ ObjectStore = (*MemoryStore)(nil)

type storedObject struct {
	data        []byte
	contentType string
}

// MemoryStore keeps objects in process. It backs local development and tests.
type MemoryStore struct {
	lock    sync.RWMutex
	objects map[string]storedObject
	baseURL string
	putErr  error
	delErr  error
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]storedObject),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// SetErrors makes Put and Delete fail; nil restores normal behaviour.
func (m *MemoryStore) SetErrors(putErr, deleteErr error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.putErr = putErr
	m.delErr = deleteErr
}

func (m *MemoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) (string, error) {
	m.lock.RLock()
	putErr := m.putErr
	m.lock.RUnlock()
	if putErr != nil {
		return "", putErr
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return "", errors.Wrapf(err, "[MemoryStore.Put] read %s", key)
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.objects[key] = storedObject{data: data, contentType: contentType}
	return m.baseURL + "/" + key, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.objects, key)
	return nil
}

// Get returns a stored object and its content type.
func (m *MemoryStore) Get(key string) ([]byte, string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", apperrors.ErrNotFound
	}
	return obj.data, obj.contentType, nil
}

func (m *MemoryStore) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.objects)
}
