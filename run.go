package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"time"

	"google.golang.org/api/option"

	"github.com/EasterCompany/dex-voice-rating/cache"
	"github.com/EasterCompany/dex-voice-rating/config"
	"github.com/EasterCompany/dex-voice-rating/dialogue"
	"github.com/EasterCompany/dex-voice-rating/engine"
	"github.com/EasterCompany/dex-voice-rating/form"
	logger "github.com/EasterCompany/dex-voice-rating/log"
	"github.com/EasterCompany/dex-voice-rating/session"
	"github.com/EasterCompany/dex-voice-rating/speech"
)

const shutdownTimeout = 5 * time.Second

type adapters struct {
	listener   speech.Listener
	speaker    speech.Synthesizer
	permission speech.Permission
	closers    []io.Closer
	// err is set when recognition cannot run here.
	err error
}

func run(ctx context.Context, opts *rootOptions, stdin io.Reader, stdout io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid %s: %w", config.FileName, err)
	}
	if opts.text {
		cfg.Speech.Provider = "console"
	}

	// 2. Initialize Logger
	if cfg.Discord.Token != "" {
		stopMirror, err := logger.Init(cfg.Discord.Token, cfg.Discord.LogChannelID)
		if err != nil {
			logger.Error("Could not mirror log to Discord", err)
		} else {
			defer stopMirror()
		}
	}

	// 3. Initialize Cache
	db, err := cache.New(ctx, &cfg.Cache)
	if err != nil {
		logger.Error("Failed to initialize cache", err)
	}
	if db != nil {
		defer db.Close()
		logger.SetOutput(io.MultiWriter(os.Stdout, cache.NewLogWriter(db)))
		defer logger.SetOutput(os.Stdout)
	}

	lang, err := resolveLanguage(ctx, db, opts.lang, cfg.Speech.Language)
	if err != nil {
		return err
	}
	logger.Printf("Voice accent: %s", lang)

	// 4. Speech adapters
	voice := newAdapters(ctx, cfg, opts, lang, stdin, stdout)
	for _, c := range voice.closers {
		defer c.Close()
	}

	// 5. Rating form
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	bridge, err := form.New(cfg.Form.Action, &http.Client{Jar: jar, Timeout: cfg.Backend.Timeout()})
	if err != nil {
		return err
	}
	if err := bridge.Prime(ctx); err != nil {
		logger.Error("Could not load the rating form", err)
	}

	// 6. Session manager and engine
	backend, err := session.NewBackend(cfg.Backend.URL, cfg.Backend.Timeout())
	if err != nil {
		return err
	}
	var eng *engine.Engine
	publish := statusPublisher(db)
	manager := session.NewManager(backend, voice.listener, voice.permission, session.Options{
		Language:    lang,
		ResumeDelay: cfg.Session.WakeResumeDelay(),
		OnStatus: func(msg string) {
			state := dialogue.Idle
			if eng != nil {
				state = eng.Snapshot().State
			}
			publish(engine.Status{State: state.String(), Message: msg, Voice: true, At: time.Now()})
		},
	})
	defer manager.Close()
	if db != nil {
		followLanguage(ctx, db, manager)
	}

	eng = engine.New(voice.speaker, bridge, manager, engine.Options{
		Rules:    dialogue.Rules{WakePhrases: cfg.Session.WakePhrases},
		OnStatus: publish,
	})
	if opts.plate != "" {
		eng.SetPlate(ctx, opts.plate)
	}
	if opts.location != "" {
		eng.SetLocation(opts.location)
	}

	if voice.err != nil {
		eng.DisableVoice(voice.err)
		return errVoiceUnsupported
	}

	// 7. Start the session and converse
	id, err := manager.Start(ctx)
	if err != nil {
		eng.Report(err.Error())
		return err
	}
	defer func() {
		endCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := manager.End(endCtx, id); err != nil {
			logger.Error("Could not end voice session", err)
		}
	}()

	logger.Printf("Voice session %s started; say one of %v to begin", id, wakePhrases(cfg))
	err = eng.Run(ctx, transcripts(ctx, manager))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if url := eng.Confirmation(); url != "" {
		fmt.Fprintf(stdout, "Rating submitted: %s\n", url)
	}
	return err
}

func newAdapters(ctx context.Context, cfg *config.Config, opts *rootOptions, lang string, stdin io.Reader, stdout io.Writer) adapters {
	if cfg.Speech.Provider == "console" {
		console := speech.NewConsole(stdin, stdout)
		return adapters{listener: console, speaker: console, permission: console}
	}

	var clientOpts []option.ClientOption
	if cfg.Speech.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.Speech.CredentialsFile))
	}

	var a adapters
	var source speech.AudioSource = speech.Microphone{}
	a.permission = speech.Microphone{}
	if opts.audioFile != "" {
		source = speech.NewOggSource(opts.audioFile)
		a.permission = speech.Granted{}
	}

	listener, err := speech.NewGoogleListener(ctx, source, cfg.Speech.MaxNoSpeechRestarts, clientOpts...)
	if err != nil {
		a.err = err
	} else {
		a.listener = listener
		a.closers = append(a.closers, listener)
	}

	synth, err := speech.NewGoogleSynthesizer(ctx, lang, clientOpts...)
	if err != nil {
		logger.Error("Speech synthesis unavailable, printing prompts instead", err)
		a.speaker = speech.NewConsole(stdin, stdout)
	} else {
		a.speaker = synth
		a.closers = append(a.closers, synth)
	}
	return a
}

// resolveLanguage prefers the flag, then the saved preference, then config.
// A flag value is saved for next time.
func resolveLanguage(ctx context.Context, db *cache.DB, flag, fallback string) (string, error) {
	if flag != "" {
		if !config.IsSupportedLanguage(flag) {
			return "", fmt.Errorf("unsupported accent %q", flag)
		}
		if db != nil {
			if err := db.SetLanguage(ctx, flag); err != nil {
				logger.Error("Could not save accent preference", err)
			}
		}
		return flag, nil
	}
	if db != nil {
		lang, err := db.Language(ctx)
		if err != nil {
			logger.Error("Could not load accent preference", err)
			return fallback, nil
		}
		return lang, nil
	}
	return fallback, nil
}

// statusPublisher logs every status and, with a cache, publishes it.
func statusPublisher(db *cache.DB) func(engine.Status) {
	return func(s engine.Status) {
		if s.Message != "" {
			logger.Printf("[%s] %s", s.State, s.Message)
		}
		if db == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := db.PublishStatus(ctx, s); err != nil {
			logger.Error("Could not publish status", err)
		}
	}
}

// transcripts relays the manager's stream and closes once the listener has
// stopped and every queued transcript was delivered.
func transcripts(ctx context.Context, m *session.Manager) <-chan speech.Transcript {
	out := make(chan speech.Transcript)
	send := func(t speech.Transcript) bool {
		select {
		case out <- t:
			return true
		case <-ctx.Done():
			return false
		}
	}
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-m.Transcripts():
				if !send(t) {
					return
				}
			case <-m.Stopped():
				for {
					select {
					case t := <-m.Transcripts():
						if !send(t) {
							return
						}
					default:
						return
					}
				}
			}
		}
	}()
	return out
}

// followLanguage applies accent changes made with the lang command while
// a session runs.
func followLanguage(ctx context.Context, db *cache.DB, m *session.Manager) {
	changes, err := db.WatchLanguage(ctx)
	if err != nil {
		logger.Error("Could not follow accent changes", err)
		return
	}
	go func() {
		for lang := range changes {
			if err := m.SetLanguage(lang); err != nil {
				logger.Error("Could not switch accent", err)
				continue
			}
			logger.Printf("Voice accent: %s", lang)
		}
	}()
}

func wakePhrases(cfg *config.Config) []string {
	if len(cfg.Session.WakePhrases) == 0 {
		return dialogue.DefaultRules().WakePhrases
	}
	return cfg.Session.WakePhrases
}
