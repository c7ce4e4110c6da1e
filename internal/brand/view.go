// Package brand is the read/filter layer over brand keywords and their
// model-derived mentions. Aggregation happens server-side; this view keeps
// a consistent local copy and refreshes it after every keyword mutation.
package brand

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aidso/geo-console/internal/api"
	"github.com/aidso/geo-console/internal/models"
	"github.com/aidso/geo-console/internal/storage"
	"github.com/sirupsen/logrus"
)

// mentionClient is the slice of the API client the view needs.
type mentionClient interface {
	ListBrandKeywords(ctx context.Context) ([]models.BrandKeyword, error)
	CreateBrandKeyword(ctx context.Context, kw models.BrandKeyword) (*models.BrandKeyword, error)
	UpdateBrandKeyword(ctx context.Context, kw models.BrandKeyword) (*models.BrandKeyword, error)
	DeleteBrandKeyword(ctx context.Context, id string) error
	Mentions(ctx context.Context, keywordID string) (*api.MentionsResponse, error)
	ExportMentionsCSV(ctx context.Context, keywordID string) ([]byte, error)
}

// Filter narrows the mention listing. Zero-value fields are inactive;
// active criteria compose with AND.
type Filter struct {
	Query     string // case-insensitive match on task id, model key, or context
	ModelKey  string // exact
	Sentiment models.Sentiment
}

// Matches reports whether a mention passes every active criterion.
func (f Filter) Matches(m models.BrandMention) bool {
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(m.TaskID), q) &&
			!strings.Contains(strings.ToLower(m.ModelKey), q) &&
			!strings.Contains(strings.ToLower(m.Context), q) {
			return false
		}
	}
	if f.ModelKey != "" && m.ModelKey != f.ModelKey {
		return false
	}
	if f.Sentiment != "" && m.Sentiment != f.Sentiment {
		return false
	}
	return true
}

// View holds the keyword list and the mentions of the selected keyword.
type View struct {
	api       mentionClient
	downloads storage.StorageInterface
	archive   storage.StorageInterface // optional, may be nil

	mu       sync.RWMutex
	keywords []models.BrandKeyword
	selected string
	mentions []models.BrandMention
	stats    models.MentionStats
}

// NewView creates a view. downloads receives exported CSVs; archive, when
// non-nil, gets a copy of every export.
func NewView(client mentionClient, downloads, archive storage.StorageInterface) *View {
	return &View{api: client, downloads: downloads, archive: archive}
}

// LoadKeywords fetches the keyword list.
func (v *View) LoadKeywords(ctx context.Context) error {
	keywords, err := v.api.ListBrandKeywords(ctx)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.keywords = keywords
	v.mu.Unlock()
	return nil
}

// Keywords returns the cached keyword list.
func (v *View) Keywords() []models.BrandKeyword {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.BrandKeyword, len(v.keywords))
	copy(out, v.keywords)
	return out
}

// CreateKeyword registers a keyword and refreshes the list so derived
// fields (ids, mention counts) come from the server.
func (v *View) CreateKeyword(ctx context.Context, kw models.BrandKeyword) error {
	if _, err := v.api.CreateBrandKeyword(ctx, kw); err != nil {
		return err
	}
	return v.LoadKeywords(ctx)
}

// UpdateKeyword edits a keyword and refreshes the list. When the edited
// keyword is selected, its mentions are refetched as well.
func (v *View) UpdateKeyword(ctx context.Context, kw models.BrandKeyword) error {
	if _, err := v.api.UpdateBrandKeyword(ctx, kw); err != nil {
		return err
	}
	if err := v.LoadKeywords(ctx); err != nil {
		return err
	}

	if v.SelectedID() == kw.ID {
		return v.SelectKeyword(ctx, kw.ID)
	}
	return nil
}

// ToggleKeyword flips a keyword's enabled state.
func (v *View) ToggleKeyword(ctx context.Context, id string) error {
	v.mu.RLock()
	var target *models.BrandKeyword
	for i := range v.keywords {
		if v.keywords[i].ID == id {
			kw := v.keywords[i]
			target = &kw
			break
		}
	}
	v.mu.RUnlock()

	if target == nil {
		return fmt.Errorf("unknown brand keyword %s", id)
	}
	target.Enabled = !target.Enabled
	return v.UpdateKeyword(ctx, *target)
}

// DeleteKeyword removes a keyword (the backend cascades to its mentions)
// and refreshes the list. A deleted selection is cleared.
func (v *View) DeleteKeyword(ctx context.Context, id string) error {
	if err := v.api.DeleteBrandKeyword(ctx, id); err != nil {
		return err
	}

	v.mu.Lock()
	if v.selected == id {
		v.selected = ""
		v.mentions = nil
		v.stats = models.MentionStats{}
	}
	v.mu.Unlock()

	return v.LoadKeywords(ctx)
}

// SelectKeyword fetches the keyword's mentions and precomputed stats in one
// call and makes it the current selection.
func (v *View) SelectKeyword(ctx context.Context, id string) error {
	resp, err := v.api.Mentions(ctx, id)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.selected = id
	v.mentions = resp.Mentions
	v.stats = resp.Stats
	v.mu.Unlock()
	return nil
}

// SelectedID returns the selected keyword id, or "".
func (v *View) SelectedID() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.selected
}

// Stats returns the server-computed aggregates for the selection.
func (v *View) Stats() models.MentionStats {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.stats
}

// Mentions returns the selection's mentions passing the filter, newest
// first.
func (v *View) Mentions(f Filter) []models.BrandMention {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var out []models.BrandMention
	for _, m := range v.mentions {
		if f.Matches(m) {
			out = append(out, m)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ExportCSV asks the backend to render the selected keyword's mentions as
// CSV, saves the bytes verbatim to the download store, and archives a copy
// when an archive backend is configured. Returns the saved filename.
func (v *View) ExportCSV(ctx context.Context) (string, error) {
	id := v.SelectedID()
	if id == "" {
		return "", fmt.Errorf("no brand keyword selected")
	}

	data, err := v.api.ExportMentionsCSV(ctx, id)
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("mentions-%s-%s.csv", id, time.Now().Format("2006-01-02-15-04-05"))
	if err := v.downloads.Store(filename, data); err != nil {
		return "", fmt.Errorf("failed to save export: %w", err)
	}

	if v.archive != nil {
		if err := v.archive.Store(filename, data); err != nil {
			logrus.Warnf("Failed to archive export %s: %v", filename, err)
		}
	}

	logrus.Infof("Exported %d bytes of mentions for keyword %s to %s", len(data), id, filename)
	return filename, nil
}
