package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contentlab/seo-assistant/internal/backend"
	"github.com/contentlab/seo-assistant/internal/models"
	"github.com/contentlab/seo-assistant/internal/poller"
	"github.com/contentlab/seo-assistant/internal/progress"
	"github.com/contentlab/seo-assistant/internal/sessions"
	"github.com/contentlab/seo-assistant/internal/storage"
	"github.com/contentlab/seo-assistant/internal/transcripts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// MockBackend is a mock implementation of Backend and poller.StatusFetcher
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) SendChatMessage(ctx context.Context, req backend.ChatRequest) (*models.ChatResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*models.ChatResponse)
	return resp, args.Error(1)
}

func (m *MockBackend) GetDetailedJobResult(ctx context.Context, jobID string) (*models.DetailedJobResult, error) {
	args := m.Called(ctx, jobID)
	result, _ := args.Get(0).(*models.DetailedJobResult)
	return result, args.Error(1)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyJob(notice models.JobNotice) error {
	args := m.Called(notice)
	return args.Error(0)
}

type fixture struct {
	backend *MockBackend
	store   *sessions.Store
	history *transcripts.History
	orch    *Orchestrator
}

func newFixture(t *testing.T, notifier Notifier) *fixture {
	t.Helper()

	mb := &MockBackend{}
	st := storage.NewMemoryStorage()
	store := sessions.NewStore(st)
	history := transcripts.NewHistory(st)

	deps := Dependencies{
		Backend:     mb,
		Sessions:    store,
		Poller:      poller.New(mb, 2*time.Millisecond, time.Second),
		Progress:    progress.NewSimulator(time.Second, 5*time.Millisecond),
		Transcripts: history,
	}
	if notifier != nil {
		deps.Notifier = notifier
	}

	return &fixture{backend: mb, store: store, history: history, orch: NewOrchestrator(deps)}
}

func seoTipsResponse(jobID string) *models.ChatResponse {
	return &models.ChatResponse{
		JobID: jobID,
		InitialData: &models.InitialData{
			KeywordsData: []models.KeywordData{
				{ID: "1", Name: "seo tips", Traffic: 1200, PrevTraffic: 900, Trend: []int{1, 2, 3}, Suggestions: []string{"seo tips 2024"}},
			},
			PlatformTrendsMap:  [][]models.PlatformScore{{{Platform: "Google", Score: 80}}},
			PrimaryKeywordName: "seo tips",
		},
	}
}

func jobStatus(jobID string, s models.JobStatus) *models.DetailedJobResult {
	return &models.DetailedJobResult{JobID: jobID, Status: s}
}

func TestSubmit_DerivesAndSavesSession(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, nil)
	defer f.orch.Close()

	f.backend.On("SendChatMessage", mock.Anything, backend.ChatRequest{Message: "Analyze my blog"}).
		Return(seoTipsResponse("J1"), nil).Once()
	f.backend.On("GetDetailedJobResult", mock.Anything, "J1").Return(jobStatus("J1", models.JobPending), nil).Maybe()

	result, err := f.orch.Submit(context.Background(), "Analyze my blog")
	require.NoError(t, err)
	assert.Equal(t, "J1", result.JobID)

	msgs := f.orch.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.SenderUser, msgs[0].Sender)
	assert.Equal(t, "Analyze my blog", msgs[0].Text)
	assert.Equal(t, models.SenderAI, msgs[1].Sender)
	assert.True(t, msgs[1].IsThinking)
	assert.Equal(t, textInitialReady, msgs[1].Text)
	assert.Equal(t, "J1", msgs[1].JobID)
	assert.NotNil(t, msgs[1].InitialData)

	session, ok := f.store.Current()
	require.True(t, ok)
	assert.Equal(t, "J1", session.ID)
	assert.Equal(t, "Analyze my blog...", session.Name)
	assert.Equal(t, models.SessionChat, session.Type)
	assert.Equal(t, "Analyze my blog", session.LastUserMessage)
	require.NotNil(t, session.SelectedKeyword)
	assert.Equal(t, "seo tips", session.SelectedKeyword.Name)
	assert.Equal(t, []string{"seo tips 2024"}, session.AllData.Suggested["seo tips"])
	assert.Equal(t, []models.PlatformScore{{Platform: "Google", Score: 80}}, session.AllData.PlatformTrends["seo tips"])
	assert.Empty(t, session.AllData.RelatedPosts)

	assert.Equal(t, StateAwaitingDetailedData, f.orch.State())
	assert.Equal(t, RelatedPostsLoading, f.orch.RelatedPosts().Status)
}

func TestSubmit_DetailedDataCompletes(t *testing.T) {
	defer goleak.VerifyNone(t)

	notified := make(chan struct{})
	notifier := &MockNotifier{}
	notifier.On("NotifyJob", mock.MatchedBy(func(n models.JobNotice) bool {
		return n.JobID == "J1" && n.Outcome == models.OutcomeCompleted && n.Posts == 1
	})).Run(func(mock.Arguments) { close(notified) }).Return(nil).Once()

	f := newFixture(t, notifier)
	defer f.orch.Close()

	posts := []models.Post{{Title: "X", Link: "http://x", Source: "blog"}}
	f.backend.On("SendChatMessage", mock.Anything, mock.Anything).Return(seoTipsResponse("J1"), nil).Once()
	f.backend.On("GetDetailedJobResult", mock.Anything, "J1").Return(jobStatus("J1", models.JobPending), nil).Once()
	f.backend.On("GetDetailedJobResult", mock.Anything, "J1").Return(&models.DetailedJobResult{
		JobID:           "J1",
		Status:          models.JobCompleted,
		RelatedPostsMap: []models.KeywordPosts{{KeywordName: "seo tips", Posts: posts}},
	}, nil).Once()

	_, err := f.orch.Submit(context.Background(), "Analyze my blog")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return f.orch.State() == StateDetailedDataReady
	}, time.Second, 2*time.Millisecond)

	session, ok := f.store.Get("J1")
	require.True(t, ok)
	assert.Equal(t, posts, session.AllData.RelatedPosts["seo tips"])
	require.Len(t, session.AllData.Keywords, 1)
	assert.Equal(t, "seo tips", session.SelectedKeyword.Name)

	msgs := f.orch.Messages()
	assert.Equal(t, textAllLoaded, msgs[1].Text)
	assert.False(t, msgs[1].IsThinking)
	assert.Equal(t, RelatedPostsReady, f.orch.RelatedPosts().Status)

	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("job notice not sent")
	}
	notifier.AssertExpectations(t)
}

func TestSubmit_JobNotFoundKeepsSession(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, nil)
	defer f.orch.Close()

	f.backend.On("SendChatMessage", mock.Anything, mock.Anything).Return(seoTipsResponse("J1"), nil).Once()
	f.backend.On("GetDetailedJobResult", mock.Anything, "J1").Return(jobStatus("J1", models.JobNotFound), nil).Once()

	_, err := f.orch.Submit(context.Background(), "Analyze my blog")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return f.orch.State() == StateDetailedDataFailed
	}, time.Second, 2*time.Millisecond)

	session, ok := f.store.Get("J1")
	require.True(t, ok)
	assert.Len(t, session.AllData.Keywords, 1)
	assert.Empty(t, session.AllData.RelatedPosts)

	msgs := f.orch.Messages()
	assert.Equal(t, textJobFailed, msgs[1].Text)
	assert.False(t, msgs[1].IsThinking)

	related := f.orch.RelatedPosts()
	assert.Equal(t, RelatedPostsFailed, related.Status)
	assert.Equal(t, textJobFailed, related.Message)
	assert.Equal(t, 1, f.orch.Metrics().JobsFailed)
}

func TestSubmit_PollFailureTexts(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"graphql", &backend.GraphQLError{Operation: "getDetailedDashboardJobResult", Messages: []string{"bad"}}, textPollGraphQL},
		{"transport", &backend.TransportError{Operation: "getDetailedDashboardJobResult", Err: errors.New("refused")}, textPollNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			f := newFixture(t, nil)
			defer f.orch.Close()

			f.backend.On("SendChatMessage", mock.Anything, mock.Anything).Return(seoTipsResponse("J1"), nil).Once()
			f.backend.On("GetDetailedJobResult", mock.Anything, "J1").Return(nil, tt.err).Once()

			_, err := f.orch.Submit(context.Background(), "Analyze my blog")
			require.NoError(t, err)

			assert.Eventually(t, func() bool {
				return f.orch.State() == StateDetailedDataFailed
			}, time.Second, 2*time.Millisecond)
			assert.Equal(t, tt.want, f.orch.Messages()[1].Text)

			_, ok := f.store.Get("J1")
			assert.True(t, ok)
		})
	}
}

func TestSubmit_SupersededJobIsIgnored(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, nil)
	defer f.orch.Close()

	started := make(chan struct{})
	release := make(chan struct{})

	f.backend.On("SendChatMessage", mock.Anything, backend.ChatRequest{Message: "first"}).Return(&models.ChatResponse{
		JobID:       "J1",
		InitialData: &models.InitialData{KeywordsData: []models.KeywordData{{ID: "1", Name: "a"}}},
	}, nil).Once()
	f.backend.On("SendChatMessage", mock.Anything, backend.ChatRequest{Message: "second"}).Return(&models.ChatResponse{
		JobID:       "J2",
		InitialData: &models.InitialData{KeywordsData: []models.KeywordData{{ID: "2", Name: "b"}}},
	}, nil).Once()
	f.backend.On("GetDetailedJobResult", mock.Anything, "J1").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(&models.DetailedJobResult{
		JobID:           "J1",
		Status:          models.JobCompleted,
		RelatedPostsMap: []models.KeywordPosts{{KeywordName: "a", Posts: []models.Post{{Title: "late"}}}},
	}, nil).Once()
	f.backend.On("GetDetailedJobResult", mock.Anything, "J2").Return(&models.DetailedJobResult{
		JobID:           "J2",
		Status:          models.JobCompleted,
		RelatedPostsMap: []models.KeywordPosts{{KeywordName: "b", Posts: []models.Post{{Title: "fresh"}}}},
	}, nil).Once()

	_, err := f.orch.Submit(context.Background(), "first")
	require.NoError(t, err)
	<-started

	_, err = f.orch.Submit(context.Background(), "second")
	require.NoError(t, err)
	close(release)

	assert.Eventually(t, func() bool {
		return f.orch.State() == StateDetailedDataReady
	}, time.Second, 2*time.Millisecond)

	// give the superseded loop time to see its late answer
	time.Sleep(20 * time.Millisecond)

	first, ok := f.store.Get("J1")
	require.True(t, ok)
	assert.Empty(t, first.AllData.RelatedPosts)

	second, ok := f.store.Get("J2")
	require.True(t, ok)
	assert.Equal(t, "fresh", second.AllData.RelatedPosts["b"][0].Title)

	msgs := f.orch.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, textInitialReady, msgs[1].Text)
	assert.Equal(t, textAllLoaded, msgs[3].Text)
	assert.Equal(t, "J2", f.orch.RelatedPosts().JobID)

	assert.Eventually(t, func() bool {
		return f.orch.Metrics().JobsSuperseded == 1
	}, time.Second, 2*time.Millisecond)
	m := f.orch.Metrics()
	assert.Equal(t, 2, m.Submissions)
	assert.Equal(t, 1, m.JobsCompleted)
	assert.Equal(t, 2, m.SessionsByType["chat"])
}

func TestSubmit_EmptyIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	defer f.orch.Close()

	_, err := f.orch.Submit(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptySubmission)
	assert.Empty(t, f.orch.Messages())
	assert.Equal(t, StateIdle, f.orch.State())
	f.backend.AssertNotCalled(t, "SendChatMessage", mock.Anything, mock.Anything)
}

func TestSubmit_SendFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"graphql", &backend.GraphQLError{Operation: "sendChatMessage", Messages: []string{"quota exceeded"}}, "Backend error: quota exceeded"},
		{"transport", &backend.TransportError{Operation: "sendChatMessage", StatusCode: 502, Err: errors.New("bad gateway")}, textSendNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			defer f.orch.Close()

			f.backend.On("SendChatMessage", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			_, err := f.orch.Submit(context.Background(), "Analyze my blog")
			assert.ErrorIs(t, err, tt.err)

			msgs := f.orch.Messages()
			require.Len(t, msgs, 2)
			assert.Equal(t, tt.want, msgs[1].Text)
			assert.False(t, msgs[1].IsThinking)
			assert.Equal(t, 0, f.store.Len())
			assert.Equal(t, StateIdle, f.orch.State())

			m := f.orch.Metrics()
			assert.Equal(t, 1, m.Submissions)
			assert.Equal(t, 1, m.SubmitErrors)
			assert.Empty(t, m.SessionsByType)
		})
	}
}

func TestSubmit_WithoutJobIDSkipsPolling(t *testing.T) {
	f := newFixture(t, nil)
	defer f.orch.Close()

	f.backend.On("SendChatMessage", mock.Anything, mock.Anything).Return(seoTipsResponse(""), nil).Once()
	now := time.UnixMilli(1700000000000)
	f.orch.now = func() time.Time { return now }

	result, err := f.orch.Submit(context.Background(), "Analyze my blog")
	require.NoError(t, err)
	assert.Equal(t, "session-1700000000000", result.Session.ID)
	assert.Equal(t, StateInitialDataReady, f.orch.State())
	assert.Equal(t, textInitialOnly, f.orch.Messages()[1].Text)
	f.backend.AssertNotCalled(t, "GetDetailedJobResult", mock.Anything, mock.Anything)
}

func TestSubmit_FileAttachmentOnly(t *testing.T) {
	f := newFixture(t, nil)
	defer f.orch.Close()

	file, err := f.orch.StageFile("notes.txt", "")
	require.NoError(t, err)
	assert.NotEmpty(t, file.ID)

	want := backend.ChatRequest{
		Message: "Generate an SEO analysis based on the following files: notes.txt.",
		Files:   []string{"Content of file notes.txt (placeholder for real content)"},
	}
	f.backend.On("SendChatMessage", mock.Anything, want).Return(seoTipsResponse(""), nil).Once()

	result, err := f.orch.Submit(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, models.SessionFile, result.Session.Type)
	require.Len(t, result.Session.RecentGenerations, 1)
	assert.Equal(t, "File Upload: notes.txt", result.Session.RecentGenerations[0].Name)
	assert.Empty(t, f.orch.Attachments().Files)
	f.backend.AssertExpectations(t)
}

func TestSubmit_TranscriptAttachmentOnly(t *testing.T) {
	f := newFixture(t, nil)
	defer f.orch.Close()

	require.NoError(t, f.history.Add(transcripts.Transcript{ID: "t1", Name: "Episode 1", Content: "hello world"}))
	require.NoError(t, f.history.Add(transcripts.Transcript{ID: "t2", Name: "Episode 2", Content: "second"}))

	staged, err := f.orch.StageTranscripts([]models.ID{"t1", "t2", "t1"})
	require.NoError(t, err)
	assert.Len(t, staged, 2)

	want := backend.ChatRequest{
		Message:     "Analyze the transcripts: Episode 1, Episode 2.",
		Transcripts: []string{"hello world", "second"},
	}
	f.backend.On("SendChatMessage", mock.Anything, want).Return(seoTipsResponse(""), nil).Once()

	result, err := f.orch.Submit(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, models.SessionTranscript, result.Session.Type)
	assert.Equal(t, "Transcript: Episode 1", result.Session.RecentGenerations[0].Name)
}

func TestStageTranscripts_Unknown(t *testing.T) {
	f := newFixture(t, nil)
	defer f.orch.Close()

	_, err := f.orch.StageTranscripts([]models.ID{"nope"})
	assert.ErrorIs(t, err, ErrUnknownTranscript)
	assert.Empty(t, f.orch.Attachments().Transcripts)
}

func TestSubmit_YouTubeAttachmentOnly(t *testing.T) {
	f := newFixture(t, nil)
	defer f.orch.Close()

	_, err := f.orch.ConfirmYouTube()
	assert.ErrorIs(t, err, ErrNoYouTubePreview)

	preview, err := f.orch.PreviewYouTube("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "YouTube Video (dQw4w...)", preview.Title)

	info, err := f.orch.ConfirmYouTube()
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", info.ID)

	want := backend.ChatRequest{
		Message: "Generate an SEO analysis based on the following YouTube video: YouTube Video (dQw4w...).",
		YouTube: &backend.YouTubeInfo{ID: "dQw4w9WgXcQ", URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", Name: "YouTube Video (dQw4w...)"},
	}
	f.backend.On("SendChatMessage", mock.Anything, want).Return(seoTipsResponse(""), nil).Once()

	result, err := f.orch.Submit(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, models.SessionYouTube, result.Session.Type)
	assert.Equal(t, "YouTube URL: YouTube Video (dQw4w...)", result.Session.RecentGenerations[0].Name)
}

func TestAttachments_StagingResetsConversation(t *testing.T) {
	f := newFixture(t, nil)
	defer f.orch.Close()

	f.backend.On("SendChatMessage", mock.Anything, mock.Anything).Return(seoTipsResponse(""), nil).Once()
	_, err := f.orch.Submit(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, f.orch.Messages(), 2)

	_, err = f.orch.PreviewYouTube("https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Empty(t, f.orch.Messages())

	_, err = f.orch.PreviewYouTube("  ")
	assert.ErrorIs(t, err, ErrEmptyURL)
}

func TestRemoveAttachment(t *testing.T) {
	f := newFixture(t, nil)
	defer f.orch.Close()

	a, err := f.orch.StageFile("a.txt", "A")
	require.NoError(t, err)
	_, err = f.orch.StageFile("b.txt", "B")
	require.NoError(t, err)

	require.NoError(t, f.orch.RemoveAttachment(AttachmentFile, a.ID))
	files := f.orch.Attachments().Files
	require.Len(t, files, 1)
	assert.Equal(t, "b.txt", files[0].Name)

	err = f.orch.RemoveAttachment(AttachmentFile, a.ID)
	assert.ErrorIs(t, err, ErrAttachmentNotFound)

	_, err = f.orch.StageFile(" ", "")
	assert.ErrorIs(t, err, ErrEmptyFileName)
}
