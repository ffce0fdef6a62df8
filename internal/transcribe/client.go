// Package transcribe submits finished recordings to the remote
// speech-to-text endpoint, managing connection freshness and retrying
// transient failures with exponential backoff.
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sapirgolan/voice-to-text/internal/audio"
	"github.com/sapirgolan/voice-to-text/internal/retry"
)

// MaxUploadBytes is the hard payload limit of the transcription endpoint.
const MaxUploadBytes = 25 << 20

// Client orchestrates transcription calls.
type Client struct {
	conn     *Manager
	strategy retry.Strategy
	model    string
	log      zerolog.Logger

	call  func(ctx context.Context, h *Handle, req openai.AudioRequest) (string, error)
	probe func(ctx context.Context, h *Handle) error
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a client on top of the given connection manager. An empty
// model selects whisper-1.
func New(conn *Manager, strategy retry.Strategy, model string, log zerolog.Logger) *Client {
	if model == "" {
		model = openai.Whisper1
	}
	return &Client{
		conn:     conn,
		strategy: strategy,
		model:    model,
		log:      log.With().Str("component", "transcribe").Logger(),
		call:     transcribeOnce,
		probe:    probeModels,
		sleep:    retry.Sleep,
	}
}

func transcribeOnce(ctx context.Context, h *Handle, req openai.AudioRequest) (string, error) {
	resp, err := h.Client.CreateTranscription(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func probeModels(ctx context.Context, h *Handle) error {
	_, err := h.Client.ListModels(ctx)
	return err
}

// Transcribe submits one finished recording and returns the transcript
// exactly as the endpoint produced it. language may be empty for
// auto-detection.
//
// Failures before any network call: ErrNotConfigured when no key is set,
// InvalidInputError for an unusable or oversized buffer. A transient
// attempt failure is retried per the strategy; connection-class failures
// additionally refresh the handle first. Exhaustion surfaces as a
// FailedError wrapping the last cause.
func (c *Client) Transcribe(ctx context.Context, buf *audio.Buffer, language string) (string, error) {
	handle, err := c.conn.EnsureFresh()
	if err != nil {
		return "", err
	}

	if buf == nil || len(buf.Samples) == 0 {
		return "", &InvalidInputError{Reason: "empty audio buffer"}
	}
	payload, err := audio.EncodeWAV(buf)
	if err != nil {
		return "", &InvalidInputError{Reason: err.Error()}
	}
	if len(payload) > MaxUploadBytes {
		return "", &InvalidInputError{Reason: fmt.Sprintf(
			"payload is %.2f MiB, limit is %d MiB",
			float64(len(payload))/(1<<20), MaxUploadBytes>>20)}
	}

	req := openai.AudioRequest{
		Model:    c.model,
		FilePath: "recording.wav",
		Language: language,
	}

	attempt := 0
	var lastErr error
	for {
		req.Reader = bytes.NewReader(payload)
		text, err := c.call(ctx, handle, req)
		if err == nil {
			c.log.Debug().Int("attempts", attempt+1).Msg("transcription succeeded")
			return text, nil
		}
		lastErr = err

		class := Classify(err)
		c.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Stringer("class", class).
			Msg("transcription attempt failed")

		if !class.Transient() || !c.strategy.ShouldRetry(attempt+1) {
			break
		}
		if class == ClassConnection {
			if handle, err = c.conn.ForceRefresh(); err != nil {
				break
			}
		}
		if err := c.sleep(ctx, c.strategy.Delay(attempt)); err != nil {
			return "", err
		}
		attempt++
	}
	return "", &FailedError{Attempts: attempt + 1, Err: lastErr}
}

// ValidateKey probes the API with a lightweight model listing. A supplied
// key is probed through a temporary client; otherwise the current handle
// is used. Any failure reports false rather than propagating.
func (c *Client) ValidateKey(ctx context.Context, apiKey string) bool {
	var handle *Handle
	if apiKey != "" {
		handle = &Handle{Client: newAPIClient(apiKey, c.conn.timeout), CreatedAt: time.Now()}
	} else {
		h, err := c.conn.EnsureFresh()
		if err != nil {
			return false
		}
		handle = h
	}
	if err := c.probe(ctx, handle); err != nil {
		c.log.Debug().Err(err).Msg("API key validation failed")
		return false
	}
	return true
}

// UpdateKey rebinds the underlying connection to a new key.
func (c *Client) UpdateKey(apiKey string) {
	c.conn.UpdateKey(apiKey)
}
