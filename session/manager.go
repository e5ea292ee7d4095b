// Package session coordinates the voice session with the backend and owns
// the local recognition lifecycle: start, pause on wake, resume, end.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logger "github.com/EasterCompany/dex-voice-rating/log"
	"github.com/EasterCompany/dex-voice-rating/speech"
)

var (
	// ErrPermissionDenied aliases the speech error so callers need one import.
	ErrPermissionDenied = speech.ErrPermissionDenied
	// ErrBusy is returned when Start or End is already in flight.
	ErrBusy = errors.New("session operation already in progress")
)

// Status strings reported through Options.OnStatus.
const (
	StatusListening = "Listening for wake word"
	StatusComplete  = "complete"
	StatusClosed    = "closed"
	StatusDenied    = "Microphone permission denied"
	StatusStopped   = "Voice stopped"
)

// Client is the backend surface the manager needs.
type Client interface {
	Start(ctx context.Context) (StartResponse, error)
	Wake(ctx context.Context, id string) (WakeResponse, error)
	Command(ctx context.Context, id, command string) (CommandResponse, error)
	End(ctx context.Context, id string) error
}

// Options configures a Manager.
type Options struct {
	Language    string
	ResumeDelay time.Duration
	OnStatus    func(string)
}

// Info describes the live session.
type Info struct {
	ID        string
	Language  string
	StartedAt time.Time
}

// Manager holds at most one live session per device.
type Manager struct {
	client     Client
	listener   speech.Listener
	permission speech.Permission
	opts       Options

	root    context.Context
	cancel  context.CancelFunc
	out     chan speech.Transcript
	stopped chan struct{}

	mu          sync.Mutex
	busy        bool
	muted       bool
	info        Info
	stopListen  context.CancelFunc
	resumeTimer *time.Timer
}

// NewManager returns an idle manager. Close releases its listener.
func NewManager(client Client, listener speech.Listener, permission speech.Permission, opts Options) *Manager {
	if opts.OnStatus == nil {
		opts.OnStatus = func(string) {}
	}
	root, cancel := context.WithCancel(context.Background())
	return &Manager{
		client:     client,
		listener:   listener,
		permission: permission,
		opts:       opts,
		root:       root,
		cancel:     cancel,
		out:        make(chan speech.Transcript, 16),
		stopped:    make(chan struct{}, 1),
		info:       Info{Language: opts.Language},
	}
}

// Transcripts is the stable stream of recognized text. It survives pauses
// and restarts of the underlying listener.
func (m *Manager) Transcripts() <-chan speech.Transcript {
	return m.out
}

// Stopped signals when the listener ended on its own, after every
// transcript it produced was queued on Transcripts.
func (m *Manager) Stopped() <-chan struct{} {
	return m.stopped
}

// Session returns the live session, if any.
func (m *Manager) Session() (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info, m.info.ID != ""
}

// listening reports whether local recognition is running.
func (m *Manager) listening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopListen != nil
}

// Start opens a session, or returns the live one without a backend call.
func (m *Manager) Start(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.info.ID != "" {
		id := m.info.ID
		m.mu.Unlock()
		return id, nil
	}
	if m.busy {
		m.mu.Unlock()
		return "", ErrBusy
	}
	m.busy = true
	m.mu.Unlock()
	defer m.release()

	if err := m.permission.Request(ctx); err != nil {
		m.opts.OnStatus(StatusDenied)
		if !errors.Is(err, ErrPermissionDenied) {
			err = fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return "", err
	}

	resp, err := m.client.Start(ctx)
	if err != nil {
		m.opts.OnStatus(fmt.Sprintf("Could not start voice session: %v", err))
		return "", fmt.Errorf("could not start session: %w", err)
	}

	m.mu.Lock()
	err = m.listenLocked()
	if err == nil {
		m.info.ID = resp.SessionID
		m.info.StartedAt = time.Now()
	}
	m.mu.Unlock()
	if err != nil {
		if endErr := m.client.End(ctx, resp.SessionID); endErr != nil {
			logger.Error("Could not close session after listen failure", endErr)
		}
		return "", err
	}

	m.opts.OnStatus(StatusListening)
	return resp.SessionID, nil
}

// NotifyWake tells the backend the wake phrase was heard. Recognition is
// paused for the call and resumes after the configured delay while the
// session is still live. Calling it without a matching live session is a
// programming error.
func (m *Manager) NotifyWake(ctx context.Context, id string) error {
	m.mu.Lock()
	if m.info.ID == "" || m.info.ID != id {
		m.mu.Unlock()
		panic(fmt.Sprintf("session: NotifyWake(%q) without a live session", id))
	}
	m.stopLocked()
	m.mu.Unlock()

	resp, err := m.client.Wake(ctx, id)
	switch {
	case err != nil:
		m.opts.OnStatus(fmt.Sprintf("Wake failed: %v", err))
	case !resp.Success:
		err = fmt.Errorf("%w: wake rejected with status %q", ErrNetwork, resp.Status)
		m.opts.OnStatus(fmt.Sprintf("Wake failed: %s", resp.Status))
	default:
		m.opts.OnStatus(StatusComplete)
	}

	m.mu.Lock()
	m.resumeTimer = time.AfterFunc(m.opts.ResumeDelay, func() { m.resume(id) })
	m.mu.Unlock()
	return err
}

func (m *Manager) resume(id string) {
	m.mu.Lock()
	m.resumeTimer = nil
	if m.info.ID != id || m.muted || m.stopListen != nil {
		m.mu.Unlock()
		return
	}
	err := m.listenLocked()
	m.mu.Unlock()
	m.reportResume(err)
}

func (m *Manager) reportResume(err error) {
	if err != nil {
		logger.Error("Could not resume listening", err)
		m.opts.OnStatus(fmt.Sprintf("Could not resume listening: %v", err))
	}
}

// Pause stops recognition while the device itself is talking, so prompts
// are not heard as answers. A pending wake resume is held until Resume.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = true
	if m.stopListen != nil {
		m.stopListen()
		m.stopListen = nil
	}
}

// Resume undoes Pause. Listening restarts at once unless the session ended
// or a wake resume is still pending.
func (m *Manager) Resume() {
	m.mu.Lock()
	m.muted = false
	if m.info.ID == "" || m.stopListen != nil || m.resumeTimer != nil {
		m.mu.Unlock()
		return
	}
	err := m.listenLocked()
	m.mu.Unlock()
	m.reportResume(err)
}

// Command relays a handled transcript to the live session. Without a
// session it does nothing.
func (m *Manager) Command(ctx context.Context, text string) error {
	m.mu.Lock()
	id := m.info.ID
	m.mu.Unlock()
	if id == "" {
		return nil
	}
	if _, err := m.client.Command(ctx, id, text); err != nil {
		return fmt.Errorf("could not relay command: %w", err)
	}
	return nil
}

// End stops recognition before telling the backend, and forgets the session
// even when the backend cannot be reached.
func (m *Manager) End(ctx context.Context, id string) error {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.info.ID == "" || m.info.ID != id {
		m.mu.Unlock()
		return nil
	}
	m.busy = true
	m.stopLocked()
	m.muted = false
	m.info.ID = ""
	m.info.StartedAt = time.Time{}
	m.mu.Unlock()
	defer m.release()

	if err := m.client.End(ctx, id); err != nil {
		m.opts.OnStatus(fmt.Sprintf("Could not close voice session: %v", err))
		return fmt.Errorf("could not end session %s: %w", id, err)
	}
	m.opts.OnStatus(StatusClosed)
	return nil
}

// SetLanguage switches the recognition language, restarting a running
// listener so the change applies at once.
func (m *Manager) SetLanguage(lang string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lang == m.info.Language {
		return nil
	}
	m.info.Language = lang
	if m.stopListen == nil {
		return nil
	}
	m.stopListen()
	m.stopListen = nil
	return m.listenLocked()
}

// Close stops everything without contacting the backend.
func (m *Manager) Close() {
	m.mu.Lock()
	m.stopLocked()
	m.mu.Unlock()
	m.cancel()
}

func (m *Manager) release() {
	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()
}

func (m *Manager) stopLocked() {
	if m.resumeTimer != nil {
		m.resumeTimer.Stop()
		m.resumeTimer = nil
	}
	if m.stopListen != nil {
		m.stopListen()
		m.stopListen = nil
	}
}

func (m *Manager) listenLocked() error {
	ctx, cancel := context.WithCancel(m.root)
	ch, err := m.listener.Listen(ctx, m.info.Language)
	if err != nil {
		cancel()
		return fmt.Errorf("could not start listening: %w", err)
	}
	m.stopListen = cancel
	go m.forward(ctx, ch)
	return nil
}

func (m *Manager) forward(ctx context.Context, ch <-chan speech.Transcript) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-ch:
			if !ok {
				if ctx.Err() == nil {
					m.opts.OnStatus(StatusStopped)
					select {
					case m.stopped <- struct{}{}:
					default:
					}
				}
				return
			}
			// A transcript already received is delivered even if listening
			// was paused meanwhile.
			select {
			case m.out <- t:
				continue
			default:
			}
			select {
			case m.out <- t:
			case <-ctx.Done():
				return
			}
		}
	}
}
