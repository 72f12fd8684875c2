package server

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// playerDirectory maps display names to stable player identities.
// The same name always resolves to the same id for the life of the
// process, so rejoining players keep their identity.
type playerDirectory struct {
	mu  sync.Mutex
	ids map[string]string
}

func newPlayerDirectory() *playerDirectory {
	return &playerDirectory{
		ids: make(map[string]string),
	}
}

// Resolve validates the display name and returns its player id,
// creating one on first sight.
func (d *playerDirectory) Resolve(name string) (string, string, error) {
	cleaned, err := validateName(name)
	if err != nil {
		return "", "", invalidArgument("%s", err.Error())
	}
	key := strings.ToLower(cleaned)
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.ids[key]; ok {
		return id, cleaned, nil
	}
	id := uuid.NewString()
	d.ids[key] = id
	return id, cleaned, nil
}
