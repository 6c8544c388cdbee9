package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/contentlab/seo-assistant/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// ErrMalformedResponse marks a response body that could not be understood
var ErrMalformedResponse = errors.New("malformed response")

// GraphQLError is an application error reported in the response's errors[]
type GraphQLError struct {
	Operation string
	Messages  []string
}

func (e *GraphQLError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("%s: backend error", e.Operation)
	}
	return fmt.Sprintf("%s: backend error: %s", e.Operation, e.Messages[0])
}

// Message is the first error message, as shown to users
func (e *GraphQLError) Message() string {
	if len(e.Messages) == 0 {
		return "unknown error"
	}
	return e.Messages[0]
}

// TransportError is a network failure, unexpected HTTP status or an
// undecodable body
type TransportError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transport error (HTTP %d): %v", e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transport error: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client talks to the SEO backend's GraphQL endpoint
type Client struct {
	client  *resty.Client
	baseURL string
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// YouTubeInfo is the confirmed video attached to a chat submission
type YouTubeInfo struct {
	ID   string `json:"-"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// ChatRequest is the input of sendChatMessage
type ChatRequest struct {
	Message     string
	Transcripts []string
	Files       []string
	YouTube     *YouTubeInfo
}

// NewClient creates a client for the backend at baseURL (without /graphql)
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("User-Agent", "SEO-Assistant/1.0"),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

const sendChatMutation = `mutation SendChat($message: String!, $transcripts: [String], $files: [String], $youtube: String) { sendChatMessage( message: $message, uploadedTranscriptsContent: $transcripts, uploadedFilesContent: $files, youtubeUrlInfo: $youtube ) { jobId initialData { keywordsData { id name traffic prevTraffic trend suggestions } platformTrendsMap { platform score } primaryKeywordName } } }`

const detailedJobQuery = `query GetDetailedJobResult($jobId: ID!) { getDetailedDashboardJobResult(jobId: $jobId) { jobId status relatedPostsMap { keywordName posts { title link source image } } } }`

const allDashboardQuery = `query GetAllData {
	getAllDashboardData {
		keywords { id name traffic prevTraffic trend suggestions }
		suggested { keyword suggestions }
		platformTrendsInitial { keywordName trends { platform score } }
		relatedPostsInitial { keywordName posts { title link source image } }
	}
	getUserActivityTrends { name interactions chats uploads }
	getGenerationTypeBreakdown { name value }
}`

// SendChatMessage submits a chat message and returns the job id with the
// fast-path initial data
func (c *Client) SendChatMessage(ctx context.Context, req ChatRequest) (*models.ChatResponse, error) {
	const op = "sendChatMessage"

	vars := map[string]interface{}{
		"message":     req.Message,
		"transcripts": nil,
		"files":       nil,
		"youtube":     nil,
	}
	if len(req.Transcripts) > 0 {
		vars["transcripts"] = req.Transcripts
	}
	if len(req.Files) > 0 {
		vars["files"] = req.Files
	}
	if req.YouTube != nil {
		info, err := json.Marshal(req.YouTube)
		if err != nil {
			return nil, fmt.Errorf("failed to encode youtube info: %w", err)
		}
		vars["youtube"] = string(info)
	}

	var data struct {
		SendChatMessage *models.ChatResponse `json:"sendChatMessage"`
	}
	if err := c.do(ctx, op, sendChatMutation, vars, &data); err != nil {
		return nil, err
	}
	if data.SendChatMessage == nil || data.SendChatMessage.InitialData == nil {
		return nil, &TransportError{Operation: op, Err: fmt.Errorf("%w: missing initialData", ErrMalformedResponse)}
	}

	logrus.Debugf("sendChatMessage returned job %s with %d keywords",
		data.SendChatMessage.JobID, len(data.SendChatMessage.InitialData.KeywordsData))
	return data.SendChatMessage, nil
}

// GetDetailedJobResult fetches the status of a detailed-data job
func (c *Client) GetDetailedJobResult(ctx context.Context, jobID string) (*models.DetailedJobResult, error) {
	const op = "getDetailedDashboardJobResult"

	var data struct {
		Result *models.DetailedJobResult `json:"getDetailedDashboardJobResult"`
	}
	if err := c.do(ctx, op, detailedJobQuery, map[string]interface{}{"jobId": jobID}, &data); err != nil {
		return nil, err
	}
	if data.Result == nil || data.Result.Status == "" {
		return nil, &TransportError{Operation: op, Err: fmt.Errorf("%w: missing job status", ErrMalformedResponse)}
	}
	return data.Result, nil
}

// GetAllDashboardData fetches the data used to seed the initial session
func (c *Client) GetAllDashboardData(ctx context.Context) (*models.DashboardSnapshot, error) {
	const op = "getAllDashboardData"

	var data struct {
		Dashboard           *models.AllDashboardData     `json:"getAllDashboardData"`
		ActivityTrends      []models.ActivityTrend       `json:"getUserActivityTrends"`
		GenerationBreakdown []models.GenerationBreakdown `json:"getGenerationTypeBreakdown"`
	}
	if err := c.do(ctx, op, allDashboardQuery, nil, &data); err != nil {
		return nil, err
	}

	snapshot := &models.DashboardSnapshot{
		ActivityTrends:      data.ActivityTrends,
		GenerationBreakdown: data.GenerationBreakdown,
	}
	if data.Dashboard != nil {
		snapshot.Data = *data.Dashboard
	}
	return snapshot, nil
}

// CheckHealth probes the backend's /health endpoint
func (c *Client) CheckHealth(ctx context.Context) error {
	const op = "health"

	resp, err := c.client.R().
		SetContext(ctx).
		Get(c.baseURL + "/health")
	if err != nil {
		return &TransportError{Operation: op, Err: err}
	}
	if resp.StatusCode() != 200 {
		return &TransportError{Operation: op, StatusCode: resp.StatusCode(), Err: fmt.Errorf("unhealthy")}
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, query string, vars map[string]interface{}, out interface{}) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(graphQLRequest{Query: query, Variables: vars}).
		Post(c.baseURL + "/graphql")
	if err != nil {
		return &TransportError{Operation: op, Err: err}
	}

	var result graphQLResponse
	decodeErr := json.Unmarshal(resp.Body(), &result)

	// GraphQL servers often pair errors[] with a 4xx status; the errors win.
	if decodeErr == nil && len(result.Errors) > 0 {
		gqlErr := &GraphQLError{Operation: op}
		for _, e := range result.Errors {
			gqlErr.Messages = append(gqlErr.Messages, e.Message)
		}
		return gqlErr
	}

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return &TransportError{Operation: op, StatusCode: resp.StatusCode(), Err: fmt.Errorf("unexpected status")}
	}
	if decodeErr != nil {
		return &TransportError{Operation: op, StatusCode: resp.StatusCode(), Err: fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)}
	}
	if out == nil {
		return nil
	}
	if len(result.Data) == 0 || string(result.Data) == "null" {
		return &TransportError{Operation: op, StatusCode: resp.StatusCode(), Err: fmt.Errorf("%w: missing data", ErrMalformedResponse)}
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return &TransportError{Operation: op, StatusCode: resp.StatusCode(), Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	return nil
}
