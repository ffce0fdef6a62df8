package transcribe

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/net/http2"
)

// Handle is one live API client bound to a key, stamped with its creation
// time. Handles are replaced, never mutated.
type Handle struct {
	Client    *openai.Client
	CreatedAt time.Time
}

// Manager owns at most one Handle and replaces it when it grows stale or
// after a connection-class failure. Replacement is serialized under a
// mutex so concurrent transcriptions cannot both refresh and leak a
// handle.
type Manager struct {
	mu      sync.Mutex
	apiKey  string
	maxAge  time.Duration
	timeout time.Duration
	handle  *Handle
	build   func(apiKey string, timeout time.Duration) *openai.Client
	log     zerolog.Logger
}

// NewManager creates a manager bound to apiKey. The key may be empty;
// EnsureFresh then fails with ErrNotConfigured until UpdateKey is called.
func NewManager(apiKey string, maxAge, timeout time.Duration, log zerolog.Logger) *Manager {
	return &Manager{
		apiKey:  apiKey,
		maxAge:  maxAge,
		timeout: timeout,
		build:   newAPIClient,
		log:     log.With().Str("component", "conn").Logger(),
	}
}

// EnsureFresh returns the current handle, creating or replacing it when
// none exists or it has outlived the configured maximum age.
func (m *Manager) EnsureFresh() (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if m.handle == nil || time.Since(m.handle.CreatedAt) > m.maxAge {
		m.replaceLocked("stale")
	}
	return m.handle, nil
}

// ForceRefresh unconditionally replaces the handle. Called after a
// connection-class failure so the next attempt does not reuse a
// connection already known to be bad.
func (m *Manager) ForceRefresh() (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.apiKey == "" {
		return nil, ErrNotConfigured
	}
	m.replaceLocked("forced")
	return m.handle, nil
}

// UpdateKey rebinds the manager to a new key and refreshes the handle.
// An empty key drops the handle and deconfigures the manager.
func (m *Manager) UpdateKey(apiKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiKey = apiKey
	if apiKey == "" {
		m.handle = nil
		return
	}
	m.replaceLocked("key updated")
}

// Ready reports whether a usable handle exists or can be created.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apiKey != ""
}

func (m *Manager) replaceLocked(reason string) {
	m.handle = &Handle{
		Client:    m.build(m.apiKey, m.timeout),
		CreatedAt: time.Now(),
	}
	m.log.Debug().Str("reason", reason).Msg("API client handle replaced")
}

// newAPIClient builds a client with connection pooling disabled: idle
// pooled connections are silently dropped by intermediate infrastructure
// and resurface as opaque resets mid-retry, so every call dials fresh.
func newAPIClient(apiKey string, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	tr := &http.Transport{
		DisableKeepAlives:     true,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	_ = http2.ConfigureTransport(tr)
	cfg.HTTPClient = &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}
	return openai.NewClientWithConfig(cfg)
}
