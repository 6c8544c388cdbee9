package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/contentlab/seo-assistant/internal/config"
	"github.com/contentlab/seo-assistant/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Alerter is told when a backend server changes health
type Alerter interface {
	SendAlert(alert models.Alert) error
}

// ServerStatus is the latest health probe of one backend server
type ServerStatus struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	LatencyMs int64     `json:"latencyMs"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Service handles scheduling of backend health checks
type Service struct {
	config    *config.Config
	endpoints map[string]string
	client    *resty.Client
	alerter   Alerter
	cron      *cron.Cron
	wg        sync.WaitGroup

	mu       sync.RWMutex
	statuses map[string]ServerStatus
}

// NewService creates a new scheduler service. alerter may be nil.
func NewService(cfg *config.Config, alerter Alerter) *Service {
	return &Service{
		config:    cfg,
		endpoints: cfg.HealthEndpoints(),
		client:    resty.New().SetTimeout(cfg.FetchTimeout),
		alerter:   alerter,
		cron:      cron.New(cron.WithSeconds()),
		statuses:  make(map[string]ServerStatus),
	}
}

// Start runs one check immediately and then on the configured schedule
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(s.config.ServerPollSchedule, func() {
		s.CheckServers(context.Background())
	})
	if err != nil {
		return fmt.Errorf("invalid server poll schedule %q: %w", s.config.ServerPollSchedule, err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.CheckServers(context.Background())
	}()

	s.cron.Start()
	logrus.Infof("Scheduler started with %s server health schedule", s.config.ServerPollSchedule)
	return nil
}

// Stop stops the scheduler and waits for a running check to finish
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.wg.Wait()
		logrus.Info("Scheduler stopped")
	}
}

// CheckServers probes every backend concurrently and records the results
func (s *Service) CheckServers(ctx context.Context) []ServerStatus {
	g, ctx := errgroup.WithContext(ctx)
	results := make(chan ServerStatus, len(s.endpoints))

	for name, url := range s.endpoints {
		name, url := name, url
		g.Go(func() error {
			results <- s.check(ctx, name, url)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	for status := range results {
		s.record(status)
	}
	return s.Status()
}

func (s *Service) check(ctx context.Context, name, url string) ServerStatus {
	start := time.Now()
	status := ServerStatus{Name: name, URL: url, CheckedAt: start}

	resp, err := s.client.R().SetContext(ctx).Get(url)
	status.LatencyMs = time.Since(start).Milliseconds()

	switch {
	case err != nil:
		status.Error = err.Error()
	case !resp.IsSuccess():
		status.Error = fmt.Sprintf("health endpoint returned status %d", resp.StatusCode())
	default:
		status.Healthy = true
	}

	if !status.Healthy {
		logrus.Debugf("%s server unhealthy: %s", name, status.Error)
	}
	return status
}

func (s *Service) record(status ServerStatus) {
	s.mu.Lock()
	prev, seen := s.statuses[status.Name]
	s.statuses[status.Name] = status
	s.mu.Unlock()

	switch {
	case !status.Healthy && (!seen || prev.Healthy):
		logrus.Warnf("%s server is down: %s", status.Name, status.Error)
		s.alert(models.Alert{
			Type:    models.AlertServerDown,
			Title:   fmt.Sprintf("%s server is down", status.Name),
			Message: status.Error,
			Server:  status.Name,
			At:      status.CheckedAt,
		})
	case status.Healthy && seen && !prev.Healthy:
		logrus.Infof("%s server recovered", status.Name)
		s.alert(models.Alert{
			Type:    models.AlertServerRecovered,
			Title:   fmt.Sprintf("%s server recovered", status.Name),
			Message: fmt.Sprintf("%s answered its health check in %dms", status.URL, status.LatencyMs),
			Server:  status.Name,
			At:      status.CheckedAt,
		})
	}
}

func (s *Service) alert(a models.Alert) {
	if s.alerter == nil {
		return
	}
	if err := s.alerter.SendAlert(a); err != nil {
		logrus.Errorf("Failed to send alert %q: %v", a.Title, err)
	}
}

// Status returns the latest result per server, sorted by name
func (s *Service) Status() []ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ServerStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
