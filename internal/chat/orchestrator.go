package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/contentlab/seo-assistant/internal/backend"
	"github.com/contentlab/seo-assistant/internal/models"
	"github.com/contentlab/seo-assistant/internal/poller"
	"github.com/contentlab/seo-assistant/internal/transcripts"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmptySubmission    = errors.New("nothing to submit: message is empty and no attachments are staged")
	ErrNoYouTubePreview   = errors.New("no YouTube preview to confirm")
	ErrEmptyURL           = errors.New("YouTube URL is empty")
	ErrEmptyFileName      = errors.New("file name is empty")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrUnknownTranscript  = errors.New("unknown transcript")
)

// Chat message texts shown to the user
const (
	textGenerating      = "Generating SEO Analysis Report"
	stepGenerating      = "Generating Analysis"
	textInitialReady    = "Initial SEO data is ready! Now fetching related posts..."
	textInitialOnly     = "Initial SEO data is ready!"
	stepFetchingPosts   = "Fetching related posts"
	textAllLoaded       = "All SEO data loaded successfully!"
	textJobFailed       = "Failed to load detailed data."
	textPollGraphQL     = "Error fetching detailed data."
	textPollNetwork     = "Network error during detailed data fetch."
	textPollTimeout     = "Could not load related posts within the expected time."
	textSendNetwork     = "Network error during data generation."
	textSendBackendFmt  = "Backend error: %s"
	filePlaceholderFmt  = "Content of file %s (placeholder for real content)"
	relatedPostsTimeout = "Could not load related posts within the expected time. Please try another keyword."
)

// State is the phase of the most recent submission
type State string

const (
	StateIdle                 State = "idle"
	StateSubmitting           State = "submitting"
	StateAwaitingInitialData  State = "awaiting_initial_data"
	StateInitialDataReady     State = "initial_data_ready"
	StateAwaitingDetailedData State = "awaiting_detailed_data"
	StateDetailedDataReady    State = "detailed_data_ready"
	StateDetailedDataFailed   State = "detailed_data_failed"
)

// RelatedPostsStatus is the loading state of the related posts panel
type RelatedPostsStatus string

const (
	RelatedPostsIdle    RelatedPostsStatus = "idle"
	RelatedPostsLoading RelatedPostsStatus = "loading"
	RelatedPostsReady   RelatedPostsStatus = "ready"
	RelatedPostsFailed  RelatedPostsStatus = "failed"
)

// RelatedPostsState tells the dashboard what to show while posts load
type RelatedPostsState struct {
	Status    RelatedPostsStatus `json:"status"`
	JobID     string             `json:"jobId,omitempty"`
	SessionID string             `json:"sessionId,omitempty"`
	Message   string             `json:"message,omitempty"`
}

// Backend is the part of the GraphQL client the orchestrator needs
type Backend interface {
	SendChatMessage(ctx context.Context, req backend.ChatRequest) (*models.ChatResponse, error)
}

// SessionStore persists derived sessions and their detailed data
type SessionStore interface {
	Save(session models.Session) error
	PatchDetailedData(id string, relatedPosts map[string][]models.Post) (bool, error)
}

// JobPoller polls one detailed-data job at a time
type JobPoller interface {
	Poll(ctx context.Context, jobID string, cb poller.Callbacks) *poller.Handle
	Cancel()
}

// Progress is the simulated progress clock shown while generating
type Progress interface {
	Start()
	Stop()
	Value() float64
}

// TranscriptSource resolves staged transcript ids
type TranscriptSource interface {
	Find(ids []models.ID) ([]transcripts.Transcript, error)
}

// Notifier is told when a detailed-data job finishes
type Notifier interface {
	NotifyJob(notice models.JobNotice) error
}

// Dependencies wires an Orchestrator. Transcripts and Notifier are optional.
type Dependencies struct {
	Backend     Backend
	Sessions    SessionStore
	Poller      JobPoller
	Progress    Progress
	Transcripts TranscriptSource
	Notifier    Notifier
}

// StagedTranscript is a transcript queued for the next submission
type StagedTranscript struct {
	ID   models.ID `json:"id"`
	Name string    `json:"name"`
}

// StagedFile is a file queued for the next submission
type StagedFile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"-"`
}

// Attachments is everything staged for the next submission
type Attachments struct {
	Transcripts []StagedTranscript   `json:"transcripts"`
	Files       []StagedFile         `json:"files"`
	YouTube     *backend.YouTubeInfo `json:"youtube,omitempty"`
	Preview     *YouTubePreview      `json:"youtubePreview,omitempty"`
}

func (a Attachments) empty() bool {
	return len(a.Transcripts) == 0 && len(a.Files) == 0 && a.YouTube == nil
}

// AttachmentKind names a kind of staged attachment
type AttachmentKind string

const (
	AttachmentTranscript AttachmentKind = "transcripts"
	AttachmentFile       AttachmentKind = "files"
	AttachmentYouTube    AttachmentKind = "youtube"
)

// SubmitResult describes an accepted submission
type SubmitResult struct {
	UserMessageID string          `json:"userMessageId"`
	AIMessageID   string          `json:"aiMessageId"`
	JobID         string          `json:"jobId,omitempty"`
	Session       *models.Session `json:"session,omitempty"`
}

// Metrics counts submissions and job outcomes since startup
type Metrics struct {
	Submissions        int            `json:"submissions"`
	SubmitErrors       int            `json:"submit_errors"`
	JobsCompleted      int            `json:"jobs_completed"`
	JobsFailed         int            `json:"jobs_failed"`
	JobsSuperseded     int            `json:"jobs_superseded"`
	SessionsByType     map[string]int `json:"sessions_by_type"`
	LastSubmission     time.Time      `json:"last_submission"`
	LastSubmitDuration string         `json:"last_submit_duration"`
}

// Orchestrator runs the submit, derive, persist and poll flow for chat
// submissions and owns the transient chat log.
type Orchestrator struct {
	backend     Backend
	sessions    SessionStore
	poller      JobPoller
	progress    Progress
	transcripts TranscriptSource
	notifier    Notifier
	now         func() time.Time

	// polls outlive the request that started them
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	messages  []models.ChatMessage
	staged    Attachments
	related   RelatedPostsState
	activeJob string
	metrics   Metrics
}

func NewOrchestrator(deps Dependencies) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		backend:     deps.Backend,
		sessions:    deps.Sessions,
		poller:      deps.Poller,
		progress:    deps.Progress,
		transcripts: deps.Transcripts,
		notifier:    deps.Notifier,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		state:       StateIdle,
		messages:    []models.ChatMessage{},
		related:     RelatedPostsState{Status: RelatedPostsIdle},
		metrics:     Metrics{SessionsByType: make(map[string]int)},
	}
}

// Close abandons any running poll and stops the progress clock
func (o *Orchestrator) Close() {
	o.cancel()
	o.poller.Cancel()
	o.progress.Stop()
}

// Submit sends text with the staged attachments to the backend. On success
// the derived session is saved and detailed data is polled in the
// background.
func (o *Orchestrator) Submit(ctx context.Context, text string) (*SubmitResult, error) {
	o.mu.Lock()
	text = strings.TrimSpace(text)
	if text == "" && o.staged.empty() {
		o.mu.Unlock()
		return nil, ErrEmptySubmission
	}

	staged := o.staged
	o.staged = Attachments{}

	req, activity := o.compose(text, staged)

	userMsg := models.ChatMessage{ID: uuid.NewString(), Text: req.Message, Sender: models.SenderUser}
	aiMsg := models.ChatMessage{
		ID:             uuid.NewString(),
		Text:           textGenerating,
		Sender:         models.SenderAI,
		IsThinking:     true,
		ProcessingStep: stepGenerating,
	}
	o.messages = append(o.messages, userMsg, aiMsg)
	o.state = StateSubmitting
	o.progress.Start()
	o.state = StateAwaitingInitialData
	o.metrics.Submissions++
	o.metrics.LastSubmission = o.now()
	o.mu.Unlock()

	start := time.Now()
	logrus.Infof("Submitting chat message (%s, %d transcripts, %d files, youtube=%t)",
		activity.Type, len(req.Transcripts), len(req.Files), req.YouTube != nil)

	resp, err := o.backend.SendChatMessage(ctx, req)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress.Stop()
	o.metrics.LastSubmitDuration = time.Since(start).String()

	if err == nil && resp.InitialData == nil {
		err = fmt.Errorf("%w: sendChatMessage returned no initial data", backend.ErrMalformedResponse)
	}
	if err != nil {
		logrus.Errorf("Chat submission failed: %v", err)
		o.updateMessageLocked(aiMsg.ID, func(m *models.ChatMessage) {
			m.Text = sendFailureText(err)
			m.IsThinking = false
			m.ProcessingStep = ""
		})
		o.state = StateIdle
		o.metrics.SubmitErrors++
		return nil, err
	}

	now := o.now()
	session := DeriveSession(resp.InitialData, resp.JobID, req.Message, activity, now)
	if err := o.sessions.Save(session); err != nil {
		logrus.Errorf("Failed to persist session %s: %v", session.ID, err)
	}
	o.metrics.SessionsByType[string(session.Type)]++

	result := &SubmitResult{
		UserMessageID: userMsg.ID,
		AIMessageID:   aiMsg.ID,
		JobID:         resp.JobID,
		Session:       &session,
	}

	if resp.JobID == "" {
		o.updateMessageLocked(aiMsg.ID, func(m *models.ChatMessage) {
			m.Text = textInitialOnly
			m.IsThinking = false
			m.ProcessingStep = ""
			m.InitialData = resp.InitialData
		})
		o.state = StateInitialDataReady
		o.related = RelatedPostsState{Status: RelatedPostsIdle, SessionID: session.ID}
		return result, nil
	}

	o.updateMessageLocked(aiMsg.ID, func(m *models.ChatMessage) {
		m.Text = textInitialReady
		m.IsThinking = true
		m.ProcessingStep = stepFetchingPosts
		m.InitialData = resp.InitialData
		m.JobID = resp.JobID
	})
	o.state = StateAwaitingDetailedData
	o.activeJob = resp.JobID
	o.related = RelatedPostsState{Status: RelatedPostsLoading, JobID: resp.JobID, SessionID: session.ID}

	o.poller.Poll(o.ctx, resp.JobID, o.callbacks(resp.JobID, session, aiMsg.ID))
	return result, nil
}

// compose builds the backend request and the activity label. An empty
// message is replaced by a description of the attachments.
func (o *Orchestrator) compose(text string, staged Attachments) (backend.ChatRequest, Activity) {
	req := backend.ChatRequest{Message: text, YouTube: staged.YouTube}
	activity := Activity{Name: text, Type: models.SessionChat}

	var transcriptNames []string
	if len(staged.Transcripts) > 0 {
		ids := make([]models.ID, 0, len(staged.Transcripts))
		for _, t := range staged.Transcripts {
			ids = append(ids, t.ID)
			transcriptNames = append(transcriptNames, t.Name)
		}
		if o.transcripts != nil {
			found, err := o.transcripts.Find(ids)
			if err != nil {
				logrus.Warnf("Some staged transcripts are no longer available: %v", err)
			}
			for _, t := range found {
				req.Transcripts = append(req.Transcripts, t.Content)
			}
		}
	}

	var fileNames []string
	for _, f := range staged.Files {
		fileNames = append(fileNames, f.Name)
		req.Files = append(req.Files, f.Content)
	}

	if text != "" {
		return req, activity
	}

	switch {
	case len(transcriptNames) > 0:
		req.Message = fmt.Sprintf("Analyze the transcripts: %s.", strings.Join(transcriptNames, ", "))
		activity = Activity{Name: "Transcript: " + transcriptNames[0], Type: models.SessionTranscript}
	case len(fileNames) > 0:
		req.Message = fmt.Sprintf("Generate an SEO analysis based on the following files: %s.", strings.Join(fileNames, ", "))
		activity = Activity{Name: "File Upload: " + fileNames[0], Type: models.SessionFile}
	case staged.YouTube != nil:
		req.Message = fmt.Sprintf("Generate an SEO analysis based on the following YouTube video: %s.", staged.YouTube.Name)
		activity = Activity{Name: "YouTube URL: " + staged.YouTube.Name, Type: models.SessionYouTube}
	}
	return req, activity
}

func (o *Orchestrator) callbacks(jobID string, session models.Session, aiMsgID string) poller.Callbacks {
	return poller.Callbacks{
		OnComplete: func(result *models.DetailedJobResult) {
			posts := result.RelatedPostsByKeyword()
			if _, err := o.sessions.PatchDetailedData(session.ID, posts); err != nil {
				logrus.Errorf("Failed to store related posts for session %s: %v", session.ID, err)
			}

			o.mu.Lock()
			o.updateMessageLocked(aiMsgID, func(m *models.ChatMessage) {
				m.Text = textAllLoaded
				m.IsThinking = false
				m.ProcessingStep = ""
			})
			o.metrics.JobsCompleted++
			if o.activeJob == jobID {
				o.state = StateDetailedDataReady
				o.related = RelatedPostsState{Status: RelatedPostsReady, JobID: jobID, SessionID: session.ID}
				o.activeJob = ""
			}
			o.mu.Unlock()

			o.notify(models.JobNotice{
				JobID:       jobID,
				SessionID:   session.ID,
				SessionName: session.Name,
				Outcome:     models.OutcomeCompleted,
				Keywords:    len(session.AllData.Keywords),
				Posts:       countPosts(posts),
				FinishedAt:  o.now(),
			})
		},
		OnFailure: func(err error) {
			text := pollFailureText(err)

			o.mu.Lock()
			o.updateMessageLocked(aiMsgID, func(m *models.ChatMessage) {
				m.Text = text
				m.IsThinking = false
				m.ProcessingStep = ""
			})
			o.metrics.JobsFailed++
			if o.activeJob == jobID {
				o.state = StateDetailedDataFailed
				msg := text
				if errors.Is(err, poller.ErrTimeout) {
					msg = relatedPostsTimeout
				}
				o.related = RelatedPostsState{Status: RelatedPostsFailed, JobID: jobID, SessionID: session.ID, Message: msg}
				o.activeJob = ""
			}
			o.mu.Unlock()

			o.notify(models.JobNotice{
				JobID:       jobID,
				SessionID:   session.ID,
				SessionName: session.Name,
				Outcome:     models.OutcomeFailed,
				Detail:      err.Error(),
				Keywords:    len(session.AllData.Keywords),
				FinishedAt:  o.now(),
			})
		},
		OnStale: func() {
			o.mu.Lock()
			o.metrics.JobsSuperseded++
			o.mu.Unlock()
			logrus.Debugf("Dropping outcome of superseded job %s", jobID)
		},
	}
}

func (o *Orchestrator) notify(notice models.JobNotice) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.NotifyJob(notice); err != nil {
		logrus.Warnf("Failed to send notice for job %s: %v", notice.JobID, err)
	}
}

func (o *Orchestrator) updateMessageLocked(id string, fn func(*models.ChatMessage)) {
	for i := range o.messages {
		if o.messages[i].ID == id {
			fn(&o.messages[i])
			return
		}
	}
}

// Messages returns the chat log. Thinking messages carry the current
// simulated progress.
func (o *Orchestrator) Messages() []models.ChatMessage {
	o.mu.Lock()
	defer o.mu.Unlock()

	value := o.progress.Value()
	out := make([]models.ChatMessage, len(o.messages))
	copy(out, o.messages)
	for i := range out {
		if out[i].IsThinking {
			out[i].Progress = value
		}
	}
	return out
}

// Metrics returns a snapshot of the counters
func (o *Orchestrator) Metrics() Metrics {
	o.mu.Lock()
	defer o.mu.Unlock()

	m := o.metrics
	m.SessionsByType = make(map[string]int, len(o.metrics.SessionsByType))
	for k, v := range o.metrics.SessionsByType {
		m.SessionsByType[k] = v
	}
	return m
}

// ClearMessages empties the chat log
func (o *Orchestrator) ClearMessages() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = []models.ChatMessage{}
}

// State returns the phase of the most recent submission
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// RelatedPosts returns the loading state of the related posts panel
func (o *Orchestrator) RelatedPosts() RelatedPostsState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.related
}

// Attachments returns a copy of what is staged for the next submission
func (o *Orchestrator) Attachments() Attachments {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.staged.clone()
}

func (a Attachments) clone() Attachments {
	out := Attachments{
		Transcripts: append([]StagedTranscript{}, a.Transcripts...),
		Files:       append([]StagedFile{}, a.Files...),
	}
	if a.YouTube != nil {
		yt := *a.YouTube
		out.YouTube = &yt
	}
	if a.Preview != nil {
		p := *a.Preview
		out.Preview = &p
	}
	return out
}

// StageTranscripts queues stored transcripts for the next submission.
// Already staged ids are ignored.
func (o *Orchestrator) StageTranscripts(ids []models.ID) ([]StagedTranscript, error) {
	if o.transcripts == nil {
		return nil, fmt.Errorf("%w: transcript history is not configured", ErrUnknownTranscript)
	}
	found, err := o.transcripts.Find(ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownTranscript, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	seen := make(map[models.ID]bool, len(o.staged.Transcripts))
	for _, t := range o.staged.Transcripts {
		seen[t.ID] = true
	}
	for _, t := range found {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		o.staged.Transcripts = append(o.staged.Transcripts, StagedTranscript{ID: t.ID, Name: t.Name})
	}
	return append([]StagedTranscript{}, o.staged.Transcripts...), nil
}

// StageFile queues a file for the next submission. Uploading a file starts
// a fresh conversation.
func (o *Orchestrator) StageFile(name, content string) (StagedFile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return StagedFile{}, ErrEmptyFileName
	}
	if content == "" {
		content = fmt.Sprintf(filePlaceholderFmt, name)
	}
	f := StagedFile{ID: uuid.NewString(), Name: name, Content: content}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.staged.Files = append(o.staged.Files, f)
	o.messages = []models.ChatMessage{}
	return f, nil
}

// PreviewYouTube parses a link and holds it for confirmation. Previewing
// starts a fresh conversation.
func (o *Orchestrator) PreviewYouTube(rawURL string) (YouTubePreview, error) {
	if strings.TrimSpace(rawURL) == "" {
		return YouTubePreview{}, ErrEmptyURL
	}
	p := NewYouTubePreview(rawURL)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.staged.Preview = &p
	o.messages = []models.ChatMessage{}
	return p, nil
}

// ConfirmYouTube stages the previewed video, replacing any earlier one
func (o *Orchestrator) ConfirmYouTube() (backend.YouTubeInfo, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.staged.Preview == nil {
		return backend.YouTubeInfo{}, ErrNoYouTubePreview
	}
	p := o.staged.Preview
	info := backend.YouTubeInfo{ID: p.ID, URL: p.URL, Name: p.Title}
	o.staged.YouTube = &info
	o.staged.Preview = nil
	return info, nil
}

// RemoveAttachment drops one staged attachment
func (o *Orchestrator) RemoveAttachment(kind AttachmentKind, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch kind {
	case AttachmentTranscript:
		for i, t := range o.staged.Transcripts {
			if string(t.ID) == id {
				o.staged.Transcripts = append(o.staged.Transcripts[:i], o.staged.Transcripts[i+1:]...)
				return nil
			}
		}
	case AttachmentFile:
		for i, f := range o.staged.Files {
			if f.ID == id {
				o.staged.Files = append(o.staged.Files[:i], o.staged.Files[i+1:]...)
				return nil
			}
		}
	case AttachmentYouTube:
		if o.staged.YouTube != nil && o.staged.YouTube.ID == id {
			o.staged.YouTube = nil
			return nil
		}
		if o.staged.Preview != nil && o.staged.Preview.ID == id {
			o.staged.Preview = nil
			return nil
		}
	}
	return fmt.Errorf("%w: %s %s", ErrAttachmentNotFound, kind, id)
}

func sendFailureText(err error) string {
	var gqlErr *backend.GraphQLError
	if errors.As(err, &gqlErr) {
		return fmt.Sprintf(textSendBackendFmt, gqlErr.Message())
	}
	return textSendNetwork
}

func pollFailureText(err error) string {
	var jobErr *poller.JobError
	var gqlErr *backend.GraphQLError
	switch {
	case errors.As(err, &jobErr):
		return textJobFailed
	case errors.As(err, &gqlErr):
		return textPollGraphQL
	case errors.Is(err, poller.ErrTimeout):
		return textPollTimeout
	default:
		return textPollNetwork
	}
}

func countPosts(posts map[string][]models.Post) int {
	n := 0
	for _, p := range posts {
		n += len(p)
	}
	return n
}
