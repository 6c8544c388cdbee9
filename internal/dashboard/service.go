package dashboard

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/contentlab/seo-assistant/internal/chat"
	"github.com/contentlab/seo-assistant/internal/models"
	"github.com/contentlab/seo-assistant/internal/sessions"
	"github.com/sirupsen/logrus"
)

// InitialSessionName marks the session seeded from getAllDashboardData. It
// is hidden from the recent activity list.
const InitialSessionName = "Initial Dashboard Data"

// Backend loads the default dashboard
type Backend interface {
	GetAllDashboardData(ctx context.Context) (*models.DashboardSnapshot, error)
}

// RelatedPostsTracker reports the loading state of related posts
type RelatedPostsTracker interface {
	RelatedPosts() chat.RelatedPostsState
}

// View is what the dashboard renders for the current session
type View struct {
	SessionID           string                       `json:"sessionId"`
	SessionName         string                       `json:"sessionName"`
	Keywords            []models.Keyword             `json:"keywords"`
	SelectedKeyword     *models.Keyword              `json:"selectedKeyword"`
	Suggestions         []string                     `json:"suggestions"`
	PlatformTrends      []models.PlatformScore       `json:"platformTrends"`
	RelatedPosts        []models.Post                `json:"relatedPosts"`
	RelatedPostsState   chat.RelatedPostsState       `json:"relatedPostsState"`
	ActivityTrends      []models.ActivityTrend       `json:"userActivityTrendsData"`
	GenerationBreakdown []models.GenerationBreakdown `json:"generationTypeBreakdownData"`
	RecentActivity      []models.RecentGeneration    `json:"recentActivity"`
}

// Service applies keyword edits to the current session and seeds the
// initial dashboard
type Service struct {
	store   *sessions.Store
	backend Backend
	related RelatedPostsTracker
	now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func NewService(store *sessions.Store, backend Backend, related RelatedPostsTracker) *Service {
	return &Service{
		store:   store,
		backend: backend,
		related: related,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Service) newKeyword(name string) models.Keyword {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewKeyword(name, s.rng)
}

// LoadInitial seeds the registry from getAllDashboardData when it holds no
// sessions. It reports whether a session was created.
func (s *Service) LoadInitial(ctx context.Context) (bool, error) {
	if s.store.Len() > 0 {
		return false, nil
	}

	snapshot, err := s.backend.GetAllDashboardData(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load initial dashboard data: %w", err)
	}

	session := initialSession(snapshot, s.now())
	if err := s.store.Save(session); err != nil {
		return false, fmt.Errorf("failed to save initial session: %w", err)
	}

	logrus.Infof("Seeded initial dashboard with %d keywords", len(session.AllData.Keywords))
	return true, nil
}

func initialSession(snapshot *models.DashboardSnapshot, now time.Time) models.Session {
	data := models.NewAggregatedData()
	for _, kd := range snapshot.Data.Keywords {
		data.Keywords = append(data.Keywords, kd.ToKeyword())
	}
	for _, item := range snapshot.Data.Suggested {
		data.Suggested[item.Keyword] = item.Suggestions
	}
	for _, item := range snapshot.Data.PlatformTrendsInitial {
		if item.KeywordName == "" {
			continue
		}
		trends := item.Trends
		if trends == nil {
			trends = []models.PlatformScore{}
		}
		data.PlatformTrends[item.KeywordName] = trends
	}
	for _, item := range snapshot.Data.RelatedPostsInitial {
		if item.KeywordName == "" {
			continue
		}
		posts := item.Posts
		if posts == nil {
			posts = []models.Post{}
		}
		data.RelatedPosts[item.KeywordName] = posts
	}

	ms := now.UnixMilli()
	session := models.Session{
		ID:                  fmt.Sprintf("session-%d", ms),
		Name:                InitialSessionName,
		Type:                models.SessionInitial,
		Timestamp:           ms,
		LastUserMessage:     "Initial data load",
		AllData:             data,
		ActivityTrends:      snapshot.ActivityTrends,
		GenerationBreakdown: snapshot.GenerationBreakdown,
		RecentGenerations: []models.RecentGeneration{{
			ID:        models.ID(fmt.Sprintf("%d", ms)),
			Name:      "Initial Data",
			Type:      models.SessionInitial,
			Timestamp: ms,
		}},
	}
	if len(data.Keywords) > 0 {
		first := data.Keywords[0].Clone()
		session.SelectedKeyword = &first
	}
	return session
}

// AddKeyword prepends a keyword to the current session
func (s *Service) AddKeyword(name string) (models.Keyword, error) {
	var kw models.Keyword
	err := s.store.UpdateCurrent(func(session *models.Session) error {
		var err error
		kw, err = AddKeyword(session, name, s.newKeyword)
		return err
	})
	return kw, err
}

// RenameKeyword renames a keyword of the current session
func (s *Service) RenameKeyword(id models.ID, name string) (models.Keyword, error) {
	var kw models.Keyword
	err := s.store.UpdateCurrent(func(session *models.Session) error {
		var err error
		kw, err = RenameKeyword(session, id, name)
		return err
	})
	return kw, err
}

// DeleteKeyword removes a keyword from the current session
func (s *Service) DeleteKeyword(id models.ID) error {
	return s.store.UpdateCurrent(func(session *models.Session) error {
		return DeleteKeyword(session, id)
	})
}

// MoveKeyword reorders the current session's keywords
func (s *Service) MoveKeyword(from, to int) error {
	return s.store.UpdateCurrent(func(session *models.Session) error {
		return MoveKeyword(session, from, to)
	})
}

// SelectKeyword changes the current session's selected keyword
func (s *Service) SelectKeyword(id models.ID) (models.Keyword, error) {
	var kw models.Keyword
	err := s.store.UpdateCurrent(func(session *models.Session) error {
		var err error
		kw, err = SelectKeyword(session, id)
		return err
	})
	return kw, err
}

// View derives the panel data of the current session
func (s *Service) View() (View, error) {
	session, ok := s.store.Current()
	if !ok {
		return View{}, sessions.ErrNotFound
	}

	v := View{
		SessionID:           session.ID,
		SessionName:         session.Name,
		Keywords:            session.AllData.Keywords,
		SelectedKeyword:     session.SelectedKeyword,
		Suggestions:         []string{},
		PlatformTrends:      []models.PlatformScore{},
		RelatedPosts:        []models.Post{},
		RelatedPostsState:   chat.RelatedPostsState{Status: chat.RelatedPostsReady, SessionID: session.ID},
		ActivityTrends:      session.ActivityTrends,
		GenerationBreakdown: session.GenerationBreakdown,
		RecentActivity:      s.RecentActivity(),
	}
	if session.SelectedKeyword != nil {
		name := session.SelectedKeyword.Name
		v.Suggestions = session.AllData.SuggestionsFor(name)
		v.PlatformTrends = session.AllData.TrendsFor(name)
		v.RelatedPosts = session.AllData.PostsFor(name)
	}
	if s.related != nil {
		if state := s.related.RelatedPosts(); state.SessionID == session.ID {
			v.RelatedPostsState = state
		}
	}
	return v, nil
}

// RecentActivity lists saved sessions except the seeded initial one
func (s *Service) RecentActivity() []models.RecentGeneration {
	out := []models.RecentGeneration{}
	for _, session := range s.store.All() {
		if session.Name == InitialSessionName {
			continue
		}
		out = append(out, models.RecentGeneration{
			ID:        models.ID(session.ID),
			Name:      session.Name,
			Type:      session.Type,
			Timestamp: session.Timestamp,
		})
	}
	return out
}
