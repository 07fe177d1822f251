package inmemory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/batchupload/applications/server/interfaces"
)

const DefaultCapacityInBytes = 100 * 1024 * 1024 // 100 Mb

type inMemoryStorage struct {
	dataByKey map[string][]byte
	freeSpace int64
	url       string
	log       log.Logger
	mutex     sync.RWMutex
}

// NewStorage keeps files in memory. Writes that do not fit into the
// remaining capacity fail.
func NewStorage(url string, capacity int64, logger log.Logger) interfaces.Storage {
	return &inMemoryStorage{
		url:       url,
		log:       logger,
		dataByKey: map[string][]byte{},
		freeSpace: capacity,
	}
}

func (m *inMemoryStorage) GetStorageURL() string {
	return m.url
}

func (m *inMemoryStorage) WriteFile(ctx context.Context, key string, body io.Reader, _ int64) (int64, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return 0, fmt.Errorf("can't read body: %w", err)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	dataLen := int64(len(data))
	// replacing a key frees its previous content first
	available := m.freeSpace + int64(len(m.dataByKey[key]))
	if dataLen > available {
		return 0, fmt.Errorf("not enough free space")
	}

	m.dataByKey[key] = data
	m.freeSpace = available - dataLen

	level.Debug(m.log).Log("msg", "file stored",
		"key", key,
		"storage", m.url,
		"size", humanize.Bytes(uint64(dataLen)),
		"free_space", humanize.Bytes(uint64(m.freeSpace)),
	)

	return dataLen, nil
}

func (m *inMemoryStorage) ReadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	data, ok := m.dataByKey[key]
	if !ok {
		return nil, fmt.Errorf("file with key = %s: %w", key, os.ErrNotExist)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}
