package keys

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFormat(t *testing.T) {
	id := uuid.MustParse("5f0c7e7a-6a4b-4c3e-9d7a-0b6c2a9f1e11")
	g := &Generator{
		now:   func() time.Time { return time.UnixMilli(1700000000123) },
		newID: func() uuid.UUID { return id },
	}

	assert.Equal(t, "1700000000123_5f0c7e7a-6a4b-4c3e-9d7a-0b6c2a9f1e11_notes.txt", g.Generate("../../etc/notes.txt"))
}

func TestGenerateIsNeverRepeated(t *testing.T) {
	g := NewGenerator()

	const workers, perWorker = 8, 500
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				key := g.Generate("same.txt")
				mu.Lock()
				seen[key] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestGenerateSameInputDiffers(t *testing.T) {
	g := NewGenerator()

	first := g.Generate("report.txt")
	second := g.Generate("report.txt")

	assert.NotEqual(t, first, second)
	parts := strings.SplitN(first, "_", 3)
	require.Len(t, parts, 3)
	_, err := uuid.Parse(parts[1])
	assert.NoError(t, err)
	assert.Equal(t, "report.txt", parts[2])
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "a.txt", "a.txt"},
		{"unix path", "dir/sub/a.txt", "a.txt"},
		{"windows path", `C:\Users\me\a.txt`, "a.txt"},
		{"traversal", "../../a.txt", "a.txt"},
		{"only dots", "..", fallbackName},
		{"trailing slash", "dir/", fallbackName},
		{"empty", "", fallbackName},
		{"control chars", "a\x00b\n.txt", "ab.txt"},
		{"underscores kept", "my_file.txt", "my_file.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}
