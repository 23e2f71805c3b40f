package emotion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"moodtunes/internal/models"
)

// FallbackConfidence is reported with the neutral mood whenever the
// classifier cannot give a real answer
const FallbackConfidence = 50.0

const (
	defaultTimeout  = 20 * time.Second
	maxResponseSize = 1 << 20
)

var (
	// ErrInvalidImage is returned by DecodeImage for payloads that are not base64 images
	ErrInvalidImage = errors.New("invalid image data")

	errNotConfigured = errors.New("emotion classifier not configured")
)

// Result is a classification outcome. Warning is set when the mood is a
// fallback rather than a detection.
type Result struct {
	Mood       models.Mood `json:"mood"`
	Confidence float64     `json:"confidence"`
	Warning    string      `json:"warning,omitempty"`
}

// Fallback reports whether the result came from the neutral fallback
func (r Result) Fallback() bool {
	return r.Warning != ""
}

// Config for the remote classifier. An empty BaseURL means no classifier
// is deployed and every call falls back to neutral.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HealthPath string
}

// Service talks to a DeepFace-style HTTP analyzer
type Service struct {
	httpClient *http.Client
	baseURL    string
	healthPath string

	mu        sync.RWMutex
	available bool
	lastErr   string
}

// NewService creates a classifier client. Availability starts optimistic
// when a URL is configured and is corrected by the first health check or call.
func NewService(cfg Config) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = "/"
	}

	s := &Service{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		healthPath: healthPath,
		available:  cfg.BaseURL != "",
	}
	if s.baseURL == "" {
		s.lastErr = errNotConfigured.Error()
		log.Printf("⚠️  [EMOTION] No classifier URL configured, image moods will fall back to neutral")
	} else {
		log.Printf("✅ [EMOTION] Classifier configured at %s", s.baseURL)
	}
	return s
}

// Available reports whether the last interaction with the classifier succeeded
func (s *Service) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

// LastError returns the most recent classifier failure, or "" when healthy
func (s *Service) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Service) setState(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.available = true
		s.lastErr = ""
		return
	}
	s.available = false
	s.lastErr = err.Error()
}

// Classify never fails: any problem yields the neutral mood with
// FallbackConfidence and a Warning describing what went wrong.
func (s *Service) Classify(ctx context.Context, image []byte) Result {
	if s.baseURL == "" {
		return fallback(errNotConfigured)
	}

	mood, confidence, err := s.analyze(ctx, image)
	if err != nil {
		log.Printf("❌ [EMOTION] Analysis failed: %v", err)
		// A caller abandoning the request says nothing about classifier health
		if ctx.Err() == nil {
			s.setState(err)
		}
		return fallback(err)
	}
	s.setState(nil)

	log.Printf("✅ [EMOTION] Detected %s (%.1f%%)", mood, confidence)
	return Result{Mood: mood, Confidence: confidence}
}

func fallback(err error) Result {
	return Result{
		Mood:       models.MoodNeutral,
		Confidence: FallbackConfidence,
		Warning:    fmt.Sprintf("emotion detection unavailable, using neutral mood: %v", err),
	}
}

func (s *Service) analyze(ctx context.Context, image []byte) (models.Mood, float64, error) {
	if len(image) == 0 {
		return "", 0, ErrInvalidImage
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", http.DetectContentType(image), base64.StdEncoding.EncodeToString(image))
	requestJSON, err := json.Marshal(map[string]interface{}{
		"img":               dataURL,
		"actions":           []string{"emotion"},
		"enforce_detection": false,
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/analyze", bytes.NewReader(requestJSON))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", 0, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", 0, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("classifier error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return parseAnalysis(body)
}

// parseAnalysis accepts {"results":[...]}, a bare list, or a single object
func parseAnalysis(body []byte) (models.Mood, float64, error) {
	if !gjson.ValidBytes(body) {
		return "", 0, errors.New("classifier returned invalid JSON")
	}
	root := gjson.ParseBytes(body)

	face := root
	switch {
	case root.Get("results.0").Exists():
		face = root.Get("results.0")
	case root.IsArray():
		face = root.Get("0")
	}

	dominant := strings.ToLower(face.Get("dominant_emotion").String())
	if dominant == "" {
		return "", 0, errors.New("classifier response has no dominant_emotion")
	}
	confidence := clampConfidence(face.Get("emotion." + dominant).Float())

	mood, err := models.ParseMood(dominant)
	if err != nil {
		log.Printf("⚠️  [EMOTION] Unknown emotion %q, using neutral", dominant)
		return models.MoodNeutral, confidence, nil
	}
	return mood, confidence, nil
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}

// CheckHealth probes the classifier and updates Available/LastError
func (s *Service) CheckHealth(ctx context.Context) error {
	if s.baseURL == "" {
		return errNotConfigured
	}

	err := s.probe(ctx)
	s.setState(err)
	return err
}

func (s *Service) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+s.healthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("classifier unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode >= 500 {
		return fmt.Errorf("classifier unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
}

// DecodeImage decodes a base64 image, with or without a
// "data:image/...;base64," prefix
func DecodeImage(data string) ([]byte, error) {
	payload := strings.TrimSpace(data)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return nil, fmt.Errorf("%w: malformed data URL", ErrInvalidImage)
		}
		payload = payload[comma+1:]
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	return decoded, nil
}
