package transcripts

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/contentlab/seo-assistant/internal/models"
	"github.com/contentlab/seo-assistant/internal/storage"
	"github.com/sirupsen/logrus"
)

// StorageKey is where the transcript feature keeps its history
const StorageKey = "transcriptHistory"

// Transcript is a stored transcript available for analysis
type Transcript struct {
	ID      models.ID `json:"id"`
	Name    string    `json:"title"`
	Content string    `json:"transcriptContent"`
}

// History reads the persisted transcript history
type History struct {
	storage storage.StorageInterface
}

func NewHistory(st storage.StorageInterface) *History {
	return &History{storage: st}
}

// List returns every stored transcript. Missing or corrupt history is empty.
func (h *History) List() []Transcript {
	data, err := h.storage.Retrieve(StorageKey)
	if errors.Is(err, storage.ErrNotExist) {
		return []Transcript{}
	}
	if err != nil {
		logrus.Warnf("Failed to read transcript history: %v", err)
		return []Transcript{}
	}

	var items []Transcript
	if err := json.Unmarshal(data, &items); err != nil {
		logrus.Warnf("Transcript history is corrupt, ignoring it: %v", err)
		return []Transcript{}
	}
	return items
}

// Find returns the transcripts with the given ids, in the order requested.
// Unknown ids are reported in the error but do not stop the lookup.
func (h *History) Find(ids []models.ID) ([]Transcript, error) {
	byID := make(map[models.ID]Transcript)
	for _, t := range h.List() {
		byID[t.ID] = t
	}

	var found []Transcript
	var missing []models.ID
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			found = append(found, t)
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		return found, fmt.Errorf("unknown transcripts: %v", missing)
	}
	return found, nil
}

// Add appends a transcript to the history
func (h *History) Add(t Transcript) error {
	items := h.List()
	items = append(items, t)

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript history: %w", err)
	}
	return h.storage.Store(StorageKey, data)
}
