package keys

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const fallbackName = "file"

// Generator builds storage keys in the form <unix millis>_<uuid>_<name>.
type Generator struct {
	now   func() time.Time
	newID func() uuid.UUID
}

func NewGenerator() *Generator {
	return &Generator{
		now:   time.Now,
		newID: uuid.New,
	}
}

func (g *Generator) Generate(originalName string) string {
	return fmt.Sprintf("%d_%s_%s", g.now().UnixMilli(), g.newID(), Sanitize(originalName))
}

// Sanitize reduces a client supplied name to its last path element.
// Names that would still point outside the storage root are replaced.
func Sanitize(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)

	switch strings.TrimSpace(name) {
	case "", ".", "..":
		return fallbackName
	}
	return name
}
