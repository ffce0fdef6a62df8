package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sapirgolan/voice-to-text/internal/audio"
	"github.com/sapirgolan/voice-to-text/internal/retry"
)

func testBuffer() *audio.Buffer {
	return &audio.Buffer{
		Samples:    make([]int16, 1600),
		SampleRate: 16000,
		Channels:   1,
	}
}

// fakeCalls scripts attempt outcomes and records what each attempt saw.
type fakeCalls struct {
	results []error
	text    string
	calls   int
	handles []*Handle
	slept   []time.Duration
}

func (f *fakeCalls) call(_ context.Context, h *Handle, _ openai.AudioRequest) (string, error) {
	f.handles = append(f.handles, h)
	idx := f.calls
	f.calls++
	if idx < len(f.results) && f.results[idx] != nil {
		return "", f.results[idx]
	}
	return f.text, nil
}

func (f *fakeCalls) sleep(_ context.Context, d time.Duration) error {
	f.slept = append(f.slept, d)
	return nil
}

func newTestClient(t *testing.T, maxAttempts int, fake *fakeCalls) *Client {
	t.Helper()
	mgr := NewManager("sk-test", time.Hour, time.Second, zerolog.Nop())
	c := New(mgr, retry.Strategy{MaxAttempts: maxAttempts, BaseDelay: time.Second}, "", zerolog.Nop())
	c.call = fake.call
	c.sleep = fake.sleep
	return c
}

func TestTranscribePermanentTransientFailure(t *testing.T) {
	serverErr := &openai.APIError{HTTPStatusCode: http.StatusInternalServerError, Message: "boom"}
	fake := &fakeCalls{results: []error{serverErr, serverErr, serverErr, serverErr}}
	c := newTestClient(t, 3, fake)

	_, err := c.Transcribe(context.Background(), testBuffer(), "en")
	var failed *FailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected FailedError, got %v", err)
	}
	if failed.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", failed.Attempts)
	}
	if fake.calls != 3 {
		t.Fatalf("expected exactly 3 calls, got %d", fake.calls)
	}
	wantSleeps := []time.Duration{time.Second, 2 * time.Second}
	if len(fake.slept) != len(wantSleeps) {
		t.Fatalf("expected %d sleeps, got %v", len(wantSleeps), fake.slept)
	}
	for i, want := range wantSleeps {
		if fake.slept[i] != want {
			t.Fatalf("sleep %d: expected %v, got %v", i, want, fake.slept[i])
		}
	}
	if !errors.Is(err, serverErr) {
		t.Fatalf("expected terminal error to wrap the last cause")
	}
}

func TestTranscribeFatalErrorNoRetry(t *testing.T) {
	badReq := &openai.APIError{HTTPStatusCode: http.StatusBadRequest, Message: "bad audio"}
	fake := &fakeCalls{results: []error{badReq}}
	c := newTestClient(t, 4, fake)

	_, err := c.Transcribe(context.Background(), testBuffer(), "")
	var failed *FailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected FailedError, got %v", err)
	}
	if failed.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", failed.Attempts)
	}
	if fake.calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", fake.calls)
	}
	if len(fake.slept) != 0 {
		t.Fatalf("expected no sleeps for a fatal error, got %v", fake.slept)
	}
}

func TestTranscribeConnectionErrorRefreshesHandle(t *testing.T) {
	connErr := &url.Error{Op: "Post", URL: "https://api.example.com", Err: errors.New("connection reset")}
	fake := &fakeCalls{results: []error{connErr}, text: "hello"}
	c := newTestClient(t, 3, fake)

	text, err := c.Transcribe(context.Background(), testBuffer(), "")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "hello" {
		t.Fatalf("expected transcript, got %q", text)
	}
	if fake.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", fake.calls)
	}
	if fake.handles[0] == fake.handles[1] {
		t.Fatalf("expected a fresh handle after connection failure")
	}
	if !fake.handles[1].CreatedAt.After(fake.handles[0].CreatedAt) {
		t.Fatalf("refreshed handle must be strictly newer")
	}
}

func TestTranscribeRateLimitThenSuccess(t *testing.T) {
	rateErr := &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}
	fake := &fakeCalls{results: []error{rateErr, rateErr, nil}, text: "the quick brown fox"}
	c := newTestClient(t, 3, fake)

	text, err := c.Transcribe(context.Background(), testBuffer(), "en")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "the quick brown fox" {
		t.Fatalf("unexpected transcript: %q", text)
	}
	if fake.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", fake.calls)
	}

	var total time.Duration
	for _, d := range fake.slept {
		total += d
	}
	if total != 3*time.Second {
		t.Fatalf("expected 3s total backoff (1s+2s), got %v", total)
	}
}

func TestTranscribeNotConfigured(t *testing.T) {
	mgr := NewManager("", time.Hour, time.Second, zerolog.Nop())
	c := New(mgr, retry.Strategy{MaxAttempts: 3, BaseDelay: time.Second}, "", zerolog.Nop())
	fake := &fakeCalls{}
	c.call = fake.call

	_, err := c.Transcribe(context.Background(), testBuffer(), "")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if fake.calls != 0 {
		t.Fatalf("expected no network calls, got %d", fake.calls)
	}
}

func TestTranscribeEmptyBuffer(t *testing.T) {
	fake := &fakeCalls{}
	c := newTestClient(t, 3, fake)

	_, err := c.Transcribe(context.Background(), nil, "")
	var invalid *InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
	if fake.calls != 0 {
		t.Fatalf("expected no network calls, got %d", fake.calls)
	}
}

func TestTranscribeOversizedBuffer(t *testing.T) {
	fake := &fakeCalls{}
	c := newTestClient(t, 3, fake)

	// 14M samples encode to 28 MB of WAV, past the 25 MiB limit.
	big := &audio.Buffer{
		Samples:    make([]int16, 14<<20),
		SampleRate: 16000,
		Channels:   1,
	}
	_, err := c.Transcribe(context.Background(), big, "")
	var invalid *InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
	if fake.calls != 0 {
		t.Fatalf("expected no network calls for oversized input, got %d", fake.calls)
	}
}

func TestTranscribeCanceledDuringBackoff(t *testing.T) {
	serverErr := &openai.APIError{HTTPStatusCode: http.StatusInternalServerError}
	fake := &fakeCalls{results: []error{serverErr, serverErr}}
	c := newTestClient(t, 3, fake)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	_, err := c.Transcribe(context.Background(), testBuffer(), "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("expected 1 call before canceled backoff, got %d", fake.calls)
	}
}

func TestValidateKey(t *testing.T) {
	fake := &fakeCalls{}
	c := newTestClient(t, 3, fake)

	c.probe = func(ctx context.Context, h *Handle) error { return nil }
	if !c.ValidateKey(context.Background(), "") {
		t.Fatalf("expected valid key")
	}
	if !c.ValidateKey(context.Background(), "sk-other") {
		t.Fatalf("expected supplied key to validate")
	}

	c.probe = func(ctx context.Context, h *Handle) error {
		return &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}
	}
	if c.ValidateKey(context.Background(), "") {
		t.Fatalf("expected invalid key")
	}
}

func TestValidateKeyNotConfigured(t *testing.T) {
	mgr := NewManager("", time.Hour, time.Second, zerolog.Nop())
	c := New(mgr, retry.Strategy{MaxAttempts: 3, BaseDelay: time.Second}, "", zerolog.Nop())
	c.probe = func(ctx context.Context, h *Handle) error { return nil }

	if c.ValidateKey(context.Background(), "") {
		t.Fatalf("expected false without a configured key")
	}
	if !c.ValidateKey(context.Background(), "sk-temp") {
		t.Fatalf("expected supplied key to probe without configured key")
	}
}

func TestUpdateKeyRebindsConnection(t *testing.T) {
	mgr := NewManager("", time.Hour, time.Second, zerolog.Nop())
	c := New(mgr, retry.Strategy{MaxAttempts: 3, BaseDelay: time.Second}, "", zerolog.Nop())

	c.UpdateKey("sk-fresh")
	if !mgr.Ready() {
		t.Fatalf("expected manager ready after UpdateKey")
	}
}
