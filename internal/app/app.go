// Package app is the composition root: it wires capture, transcription
// and the background-task runner together under a single owner loop.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sapirgolan/voice-to-text/internal/audio"
	"github.com/sapirgolan/voice-to-text/internal/clipboard"
	"github.com/sapirgolan/voice-to-text/internal/config"
	"github.com/sapirgolan/voice-to-text/internal/notify"
	"github.com/sapirgolan/voice-to-text/internal/retry"
	"github.com/sapirgolan/voice-to-text/internal/task"
	"github.com/sapirgolan/voice-to-text/internal/transcribe"
)

// Command is a user request delivered to the owner loop.
type Command int

const (
	// CmdToggle starts a recording, or stops it and submits the audio.
	CmdToggle Command = iota
)

// cuer plays the audible start/stop/error cues.
type cuer interface {
	StartCue()
	StopCue()
	ErrorCue()
}

// App owns all mutable application state. Run drains commands and task
// completions on a single goroutine; nothing below is touched from
// anywhere else.
type App struct {
	cfg      config.Config
	capture  *audio.Capture
	feedback cuer
	client   *transcribe.Client
	runner   *task.Runner
	commands chan Command
	log      zerolog.Logger

	transcribe func(ctx context.Context, buf *audio.Buffer, language string) (string, error)

	busy bool // a transcription is in flight
}

// New builds the application from config. The connection manager is
// created here and handed to the client; no globals.
func New(cfg config.Config, log zerolog.Logger) *App {
	mgr := transcribe.NewManager(cfg.APIKey, cfg.ClientMaxAge, cfg.APITimeout, log)
	strategy := retry.Strategy{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.BaseDelay}
	client := transcribe.New(mgr, strategy, cfg.Model, log)
	a := &App{
		cfg: cfg,
		capture: audio.NewCapture(audio.CaptureConfig{
			SampleRate:  cfg.SampleRate,
			Channels:    cfg.Channels,
			MaxDuration: cfg.MaxDuration,
		}, audio.OpenDefaultStream, log),
		feedback:   audio.NewFeedback(44100, log),
		client:     client,
		runner:     task.NewRunner(16, log),
		commands:   make(chan Command, 4),
		log:        log.With().Str("component", "app").Logger(),
		transcribe: client.Transcribe,
	}
	return a
}

// Client exposes the transcription client for key management.
func (a *App) Client() *transcribe.Client { return a.client }

// Toggle requests a start/stop. Safe to call from any goroutine.
func (a *App) Toggle() {
	a.commands <- CmdToggle
}

// Run is the owner loop. It blocks until ctx is done, serializing every
// state mutation — command handling and task continuations alike — on the
// calling goroutine.
func (a *App) Run(ctx context.Context) error {
	a.log.Info().
		Dur("max_duration", a.cfg.MaxDuration).
		Int("sample_rate", a.cfg.SampleRate).
		Msg("ready")

	for {
		select {
		case <-ctx.Done():
			if a.capture.State() != audio.StateIdle {
				if _, err := a.capture.Stop(); err != nil {
					a.log.Warn().Err(err).Msg("stop on shutdown failed")
				}
			}
			return ctx.Err()
		case cmd := <-a.commands:
			a.handle(ctx, cmd)
		case fn := <-a.runner.Completions():
			fn()
		}
	}
}

func (a *App) handle(ctx context.Context, cmd Command) {
	switch cmd {
	case CmdToggle:
		// Anything but idle means a session exists. The duration cap can
		// auto-stop recording before the user toggles; that session still
		// holds audio and must go through Stop, not Start.
		if a.capture.State() == audio.StateIdle {
			a.startRecording()
		} else {
			a.stopAndTranscribe(ctx)
		}
	}
}

func (a *App) startRecording() {
	if a.busy {
		a.log.Warn().Msg("previous transcription still running")
		return
	}
	if err := a.capture.Start(); err != nil {
		a.feedback.ErrorCue()
		var devErr *audio.DeviceError
		if errors.As(err, &devErr) {
			a.log.Error().Err(err).Msg("microphone unavailable")
			a.notifyUser("Microphone unavailable")
			return
		}
		a.log.Error().Err(err).Msg("start recording failed")
		return
	}
	a.feedback.StartCue()
}

func (a *App) stopAndTranscribe(ctx context.Context) {
	buf, err := a.capture.Stop()
	if err != nil {
		a.log.Error().Err(err).Msg("stop recording failed")
		return
	}
	a.feedback.StopCue()
	if buf == nil {
		a.log.Info().Msg("no audio captured")
		return
	}

	a.busy = true
	language := a.cfg.DefaultLanguage
	task.Run(a.runner,
		func() (string, error) {
			return a.transcribe(ctx, buf, language)
		},
		func(text string) {
			a.busy = false
			a.deliver(text)
		},
		func(err error) {
			a.busy = false
			a.feedback.ErrorCue()
			a.log.Error().Err(err).Msg("transcription failed")
			a.notifyUser("Transcription failed")
		},
	)
}

func (a *App) deliver(text string) {
	if text == "" {
		a.log.Info().Msg("empty transcription result")
		a.notifyUser("Nothing transcribed")
		return
	}
	fmt.Println(text)
	if a.cfg.CopyToClipboard {
		if err := clipboard.Copy(text); err != nil {
			a.log.Warn().Err(err).Msg("clipboard copy failed")
		}
	}
	a.notifyUser("Transcription ready")
}

func (a *App) notifyUser(message string) {
	if a.cfg.Notifications {
		notify.Send("Voice to Text", message)
	}
}
