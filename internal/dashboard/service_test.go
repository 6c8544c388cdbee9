package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contentlab/seo-assistant/internal/chat"
	"github.com/contentlab/seo-assistant/internal/models"
	"github.com/contentlab/seo-assistant/internal/sessions"
	"github.com/contentlab/seo-assistant/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBackend is a mock implementation of Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) GetAllDashboardData(ctx context.Context) (*models.DashboardSnapshot, error) {
	args := m.Called(ctx)
	snapshot, _ := args.Get(0).(*models.DashboardSnapshot)
	return snapshot, args.Error(1)
}

type staticTracker struct {
	state chat.RelatedPostsState
}

func (s staticTracker) RelatedPosts() chat.RelatedPostsState {
	return s.state
}

func snapshot() *models.DashboardSnapshot {
	return &models.DashboardSnapshot{
		Data: models.AllDashboardData{
			Keywords: []models.KeywordData{
				{ID: "1", Name: "seo tips", Traffic: 1200},
				{ID: "2", Name: "link building", Traffic: 800},
			},
			Suggested: []models.KeywordSuggestions{
				{Keyword: "seo tips", Suggestions: []string{"seo tips guide"}},
			},
			PlatformTrendsInitial: []models.KeywordTrends{
				{KeywordName: "seo tips", Trends: []models.PlatformScore{{Platform: "Google", Score: 90}}},
				{KeywordName: "", Trends: []models.PlatformScore{{Platform: "Bing", Score: 1}}},
			},
			RelatedPostsInitial: []models.KeywordPosts{
				{KeywordName: "seo tips", Posts: []models.Post{{Title: "Intro", Link: "http://intro", Source: "blog"}}},
			},
		},
		ActivityTrends:      []models.ActivityTrend{{Name: "Mon", Interactions: 3, Chats: 2, Uploads: 1}},
		GenerationBreakdown: []models.GenerationBreakdown{{Name: "chat", Value: 4}},
	}
}

func newTestService(t *testing.T, tracker RelatedPostsTracker) (*Service, *sessions.Store, *MockBackend) {
	t.Helper()
	store := sessions.NewStore(storage.NewMemoryStorage())
	mb := &MockBackend{}
	svc := NewService(store, mb, tracker)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc, store, mb
}

func TestLoadInitial_SeedsEmptyRegistry(t *testing.T) {
	svc, store, mb := newTestService(t, nil)
	mb.On("GetAllDashboardData", mock.Anything).Return(snapshot(), nil).Once()

	created, err := svc.LoadInitial(context.Background())
	require.NoError(t, err)
	assert.True(t, created)

	session, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, "session-1700000000000", session.ID)
	assert.Equal(t, InitialSessionName, session.Name)
	assert.Equal(t, models.SessionInitial, session.Type)
	assert.Equal(t, "Initial data load", session.LastUserMessage)
	require.NotNil(t, session.SelectedKeyword)
	assert.Equal(t, "seo tips", session.SelectedKeyword.Name)
	assert.Equal(t, []string{"seo tips guide"}, session.AllData.Suggested["seo tips"])
	assert.Len(t, session.AllData.PlatformTrends, 1)
	assert.Len(t, session.AllData.RelatedPosts["seo tips"], 1)
	require.Len(t, session.RecentGenerations, 1)
	assert.Equal(t, "Initial Data", session.RecentGenerations[0].Name)
	assert.Len(t, session.ActivityTrends, 1)

	created, err = svc.LoadInitial(context.Background())
	require.NoError(t, err)
	assert.False(t, created)
	mb.AssertNumberOfCalls(t, "GetAllDashboardData", 1)
}

func TestLoadInitial_BackendError(t *testing.T) {
	svc, store, mb := newTestService(t, nil)
	mb.On("GetAllDashboardData", mock.Anything).Return(nil, errors.New("down")).Once()

	created, err := svc.LoadInitial(context.Background())
	assert.Error(t, err)
	assert.False(t, created)
	assert.Equal(t, 0, store.Len())
}

func TestService_KeywordEditsPersistOnCurrentSession(t *testing.T) {
	st := storage.NewMemoryStorage()
	store := sessions.NewStore(st)
	mb := &MockBackend{}
	svc := NewService(store, mb, nil)
	mb.On("GetAllDashboardData", mock.Anything).Return(snapshot(), nil).Once()
	_, err := svc.LoadInitial(context.Background())
	require.NoError(t, err)

	kw, err := svc.AddKeyword("content marketing")
	require.NoError(t, err)
	assert.Equal(t, []string{"content marketing ideas", "content marketing best practices"}, kw.Suggestions)

	_, err = svc.AddKeyword("SEO TIPS")
	assert.ErrorIs(t, err, ErrDuplicateKeyword)

	_, err = svc.RenameKeyword("2", "seo tips")
	require.NoError(t, err)

	require.NoError(t, svc.MoveKeyword(0, 2))

	_, err = svc.SelectKeyword("2")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteKeyword("2"))

	session, ok := store.Current()
	require.True(t, ok)
	require.Len(t, session.AllData.Keywords, 2)
	assert.Equal(t, "seo tips", session.AllData.Keywords[0].Name)
	assert.Equal(t, "content marketing", session.AllData.Keywords[1].Name)
	require.NotNil(t, session.SelectedKeyword)
	assert.Equal(t, models.ID("1"), session.SelectedKeyword.ID)

	reloaded, ok := sessions.NewStore(st).Current()
	require.True(t, ok)
	assert.Len(t, reloaded.AllData.Keywords, 2)
	assert.Equal(t, models.ID("1"), reloaded.SelectedKeyword.ID)
}

func TestService_NoCurrentSession(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	_, err := svc.AddKeyword("x")
	assert.ErrorIs(t, err, sessions.ErrNotFound)

	_, err = svc.View()
	assert.ErrorIs(t, err, sessions.ErrNotFound)
}

func TestView(t *testing.T) {
	tracker := staticTracker{state: chat.RelatedPostsState{Status: chat.RelatedPostsLoading, JobID: "J1", SessionID: "J1"}}
	svc, store, _ := newTestService(t, tracker)

	require.NoError(t, store.Save(initialSession(snapshot(), time.UnixMilli(1))))
	chatSession := models.Session{
		ID:      "J1",
		Name:    "Analyze my blog...",
		Type:    models.SessionChat,
		AllData: models.NewAggregatedData(),
	}
	chatSession.AllData.Keywords = []models.Keyword{{ID: "k", Name: "seo tips"}}
	chatSession.AllData.Suggested["seo tips"] = []string{"guide"}
	chatSession.SelectedKeyword = &models.Keyword{ID: "k", Name: "seo tips"}
	require.NoError(t, store.Save(chatSession))

	v, err := svc.View()
	require.NoError(t, err)
	assert.Equal(t, "J1", v.SessionID)
	assert.Equal(t, []string{"guide"}, v.Suggestions)
	assert.Equal(t, []models.PlatformScore{}, v.PlatformTrends)
	assert.Equal(t, []models.Post{}, v.RelatedPosts)
	assert.Equal(t, chat.RelatedPostsLoading, v.RelatedPostsState.Status)

	require.Len(t, v.RecentActivity, 1)
	assert.Equal(t, "Analyze my blog...", v.RecentActivity[0].Name)

	require.True(t, store.LoadByID("session-1"))
	v, err = svc.View()
	require.NoError(t, err)
	assert.Equal(t, chat.RelatedPostsReady, v.RelatedPostsState.Status)
	assert.Len(t, v.RelatedPosts, 1)
}
