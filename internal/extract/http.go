package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lucascarsonbrown/Inword/internal/kb"
)

// MaxErrorBodySize limits how much of an error response body we read (1MB).
// This prevents memory exhaustion from malformed error responses.
const MaxErrorBodySize = 1 * 1024 * 1024

// Config configures the HTTP extraction client.
type Config struct {
	// Endpoint is the extraction API base URL.
	Endpoint string

	// APIKey for bearer authentication. Optional for local deployments.
	APIKey string

	// Timeout for each extraction call.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for a local extraction service.
func DefaultConfig() Config {
	return Config{
		Endpoint: "http://127.0.0.1:8087",
		Timeout:  60 * time.Second,
	}
}

// HTTPService implements Service against the extraction API.
type HTTPService struct {
	config Config
	client *http.Client
}

// NewHTTPService creates an extraction client with defaults applied.
func NewHTTPService(cfg Config) *HTTPService {
	defaults := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	return &HTTPService{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// ExtractGeneral proposes updates to the general section.
func (s *HTTPService) ExtractGeneral(ctx context.Context, req *GeneralRequest) (*kb.GeneralSection, error) {
	var out kb.GeneralSection
	if err := s.post(ctx, "/v1/extract/general", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractRecentState proposes a refreshed recent-state snapshot.
func (s *HTTPService) ExtractRecentState(ctx context.Context, req *StateRequest) (*kb.RecentStateUpdate, error) {
	r := *req
	if r.Window == "" {
		r.Window = kb.RecentWindow
	}

	var out kb.RecentStateUpdate
	if err := s.post(ctx, "/v1/extract/state_recent", &r, &out); err != nil {
		return nil, err
	}
	if err := ValidateStateUpdate(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractGoalsProgress proposes progress records for the given goals.
func (s *HTTPService) ExtractGoalsProgress(ctx context.Context, req *GoalsRequest) (*kb.GoalsProgressSection, error) {
	var out kb.GoalsProgressSection
	if err := s.post(ctx, "/v1/extract/goals_progress", req, &out); err != nil {
		return nil, err
	}
	if err := ValidateGoalsProgress(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HTTPService) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.config.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return fmt.Errorf("extraction error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// readLimitedBody reads up to maxBytes from r, returning the bytes read.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}
