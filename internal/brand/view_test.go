package brand

import (
	"context"
	"testing"
	"time"

	"github.com/aidso/geo-console/internal/api"
	"github.com/aidso/geo-console/internal/models"
	"github.com/aidso/geo-console/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBrandBackend is a mock implementation of the brand API client
type MockBrandBackend struct {
	mock.Mock
}

func (m *MockBrandBackend) ListBrandKeywords(ctx context.Context) ([]models.BrandKeyword, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BrandKeyword), args.Error(1)
}

func (m *MockBrandBackend) CreateBrandKeyword(ctx context.Context, kw models.BrandKeyword) (*models.BrandKeyword, error) {
	args := m.Called(ctx, kw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BrandKeyword), args.Error(1)
}

func (m *MockBrandBackend) UpdateBrandKeyword(ctx context.Context, kw models.BrandKeyword) (*models.BrandKeyword, error) {
	args := m.Called(ctx, kw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BrandKeyword), args.Error(1)
}

func (m *MockBrandBackend) DeleteBrandKeyword(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBrandBackend) Mentions(ctx context.Context, keywordID string) (*api.MentionsResponse, error) {
	args := m.Called(ctx, keywordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.MentionsResponse), args.Error(1)
}

func (m *MockBrandBackend) ExportMentionsCSV(ctx context.Context, keywordID string) ([]byte, error) {
	args := m.Called(ctx, keywordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func sampleMentions() []models.BrandMention {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []models.BrandMention{
		{ID: "m1", TaskID: "task-aaa", ModelKey: "gpt", Sentiment: models.SentimentPositive, Context: "Acme ranks first for GEO", CreatedAt: base},
		{ID: "m2", TaskID: "task-bbb", ModelKey: "claude", Sentiment: models.SentimentNegative, Context: "Acme missing from answer", CreatedAt: base.Add(time.Hour)},
		{ID: "m3", TaskID: "task-ccc", ModelKey: "gpt", Sentiment: models.SentimentNeutral, Context: "mentions competitor widgetco", CreatedAt: base.Add(2 * time.Hour)},
	}
}

func TestFilter_Matches(t *testing.T) {
	mentions := sampleMentions()

	tests := []struct {
		name     string
		filter   Filter
		expected []string
	}{
		{
			name:     "empty filter passes everything",
			filter:   Filter{},
			expected: []string{"m1", "m2", "m3"},
		},
		{
			name:     "query matches task id case-insensitively",
			filter:   Filter{Query: "TASK-AAA"},
			expected: []string{"m1"},
		},
		{
			name:     "query matches context substring",
			filter:   Filter{Query: "widgetco"},
			expected: []string{"m3"},
		},
		{
			name:     "query matches model key",
			filter:   Filter{Query: "claude"},
			expected: []string{"m2"},
		},
		{
			name:     "model key is exact",
			filter:   Filter{ModelKey: "gpt"},
			expected: []string{"m1", "m3"},
		},
		{
			name:     "sentiment is exact",
			filter:   Filter{Sentiment: models.SentimentNegative},
			expected: []string{"m2"},
		},
		{
			name:     "criteria compose with AND",
			filter:   Filter{Query: "acme", ModelKey: "gpt", Sentiment: models.SentimentPositive},
			expected: []string{"m1"},
		},
		{
			name:     "AND composition can exclude everything",
			filter:   Filter{ModelKey: "gpt", Sentiment: models.SentimentNegative},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, m := range mentions {
				if tt.filter.Matches(m) {
					got = append(got, m.ID)
				}
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestView_MentionsSortedNewestFirst(t *testing.T) {
	backend := &MockBrandBackend{}
	backend.On("Mentions", mock.Anything, "bk1").Return(&api.MentionsResponse{
		Mentions: sampleMentions(),
		Stats:    models.MentionStats{TotalMentions: 3},
	}, nil)

	view := NewView(backend, nil, nil)
	require.NoError(t, view.SelectKeyword(context.Background(), "bk1"))

	got := view.Mentions(Filter{})
	require.Len(t, got, 3)
	assert.Equal(t, "m3", got[0].ID)
	assert.Equal(t, "m1", got[2].ID)
	assert.Equal(t, 3, view.Stats().TotalMentions)
}

func TestView_CreateRefreshesKeywordList(t *testing.T) {
	backend := &MockBrandBackend{}
	view := NewView(backend, nil, nil)

	kw := models.BrandKeyword{Keyword: "acme", IsOwn: true}
	created := kw
	created.ID = "bk1"

	backend.On("CreateBrandKeyword", mock.Anything, kw).Return(&created, nil).Once()
	backend.On("ListBrandKeywords", mock.Anything).Return([]models.BrandKeyword{created}, nil).Once()

	require.NoError(t, view.CreateKeyword(context.Background(), kw))

	keywords := view.Keywords()
	require.Len(t, keywords, 1)
	assert.Equal(t, "bk1", keywords[0].ID)
	backend.AssertExpectations(t)
}

func TestView_DeleteClearsSelection(t *testing.T) {
	backend := &MockBrandBackend{}
	view := NewView(backend, nil, nil)

	backend.On("Mentions", mock.Anything, "bk1").Return(&api.MentionsResponse{
		Mentions: sampleMentions(),
	}, nil)
	require.NoError(t, view.SelectKeyword(context.Background(), "bk1"))
	require.Equal(t, "bk1", view.SelectedID())

	backend.On("DeleteBrandKeyword", mock.Anything, "bk1").Return(nil)
	backend.On("ListBrandKeywords", mock.Anything).Return([]models.BrandKeyword{}, nil)

	require.NoError(t, view.DeleteKeyword(context.Background(), "bk1"))

	assert.Equal(t, "", view.SelectedID())
	assert.Empty(t, view.Mentions(Filter{}))
	assert.Equal(t, models.MentionStats{}, view.Stats())
}

func TestView_ToggleKeyword(t *testing.T) {
	backend := &MockBrandBackend{}
	view := NewView(backend, nil, nil)

	enabled := models.BrandKeyword{ID: "bk1", Keyword: "acme", Enabled: true}
	disabled := enabled
	disabled.Enabled = false

	backend.On("ListBrandKeywords", mock.Anything).Return([]models.BrandKeyword{enabled}, nil).Once()
	require.NoError(t, view.LoadKeywords(context.Background()))

	backend.On("UpdateBrandKeyword", mock.Anything, disabled).Return(&disabled, nil).Once()
	backend.On("ListBrandKeywords", mock.Anything).Return([]models.BrandKeyword{disabled}, nil).Once()

	require.NoError(t, view.ToggleKeyword(context.Background(), "bk1"))

	keywords := view.Keywords()
	require.Len(t, keywords, 1)
	assert.False(t, keywords[0].Enabled)
}

func TestView_ExportCSVSavesBackendBytesVerbatim(t *testing.T) {
	downloads, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	csv := "taskId,modelKey,mentions\ntask-aaa,gpt,4\n"
	backend := &MockBrandBackend{}
	backend.On("Mentions", mock.Anything, "bk1").Return(&api.MentionsResponse{}, nil)
	backend.On("ExportMentionsCSV", mock.Anything, "bk1").Return([]byte(csv), nil)

	view := NewView(backend, downloads, nil)
	require.NoError(t, view.SelectKeyword(context.Background(), "bk1"))

	filename, err := view.ExportCSV(context.Background())
	require.NoError(t, err)

	saved, err := downloads.Retrieve(filename)
	require.NoError(t, err)
	assert.Equal(t, csv, string(saved))
}

func TestView_ExportCSVRequiresSelection(t *testing.T) {
	view := NewView(&MockBrandBackend{}, nil, nil)

	_, err := view.ExportCSV(context.Background())
	assert.Error(t, err)
}
