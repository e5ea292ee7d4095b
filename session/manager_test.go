package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EasterCompany/dex-voice-rating/speech"
)

type fakeListener struct {
	mu      sync.Mutex
	langs   []string
	streams []fakeStream
	err     error
}

type fakeStream struct {
	ctx context.Context
	ch  chan speech.Transcript
}

func (f *fakeListener) Listen(ctx context.Context, lang string) (<-chan speech.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan speech.Transcript, 4)
	f.langs = append(f.langs, lang)
	f.streams = append(f.streams, fakeStream{ctx: ctx, ch: ch})
	return ch, nil
}

func (f *fakeListener) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.langs)
}

func (f *fakeListener) latest() fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[len(f.streams)-1]
}

type fakePermission struct{ err error }

func (p fakePermission) Request(context.Context) error { return p.err }

type fakeServer struct {
	*httptest.Server
	mu     sync.Mutex
	hits   map[string]int
	status map[string]int
	gate   chan struct{}
}

func newFakeServer(t *testing.T) *fakeServer {
	fs := &fakeServer{hits: map[string]int{}, status: map[string]int{}}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.hits[r.URL.Path]++
		code := fs.status[r.URL.Path]
		gate := fs.gate
		fs.mu.Unlock()
		if gate != nil && r.URL.Path == startPath {
			<-gate
		}
		if code != 0 {
			http.Error(w, "boom", code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case startPath:
			_ = json.NewEncoder(w).Encode(StartResponse{SessionID: "abc", Status: "listening"})
		case wakePath:
			_ = json.NewEncoder(w).Encode(WakeResponse{Success: true, Status: "awake"})
		case commandPath:
			_ = json.NewEncoder(w).Encode(CommandResponse{Status: "received"})
		case endPath:
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "closed"})
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) count(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits[path]
}

func (fs *fakeServer) fail(path string, code int) {
	fs.mu.Lock()
	fs.status[path] = code
	fs.mu.Unlock()
}

type statusLog struct {
	mu  sync.Mutex
	all []string
}

func (s *statusLog) add(v string) {
	s.mu.Lock()
	s.all = append(s.all, v)
	s.mu.Unlock()
}

func (s *statusLog) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.all) == 0 {
		return ""
	}
	return s.all[len(s.all)-1]
}

func newTestManager(t *testing.T, perm speech.Permission) (*Manager, *fakeServer, *fakeListener, *statusLog) {
	t.Helper()
	fs := newFakeServer(t)
	backend, err := NewBackend(fs.URL, time.Second)
	require.NoError(t, err)
	listener := &fakeListener{}
	statuses := &statusLog{}
	m := NewManager(backend, listener, perm, Options{
		Language:    "en-GB",
		ResumeDelay: 10 * time.Millisecond,
		OnStatus:    statuses.add,
	})
	t.Cleanup(m.Close)
	return m, fs, listener, statuses
}

func TestStartIsIdempotent(t *testing.T) {
	m, fs, listener, statuses := newTestManager(t, fakePermission{})

	id, err := m.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
	assert.Equal(t, StatusListening, statuses.last())

	again, err := m.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, fs.count(startPath))
	assert.Equal(t, 1, listener.calls())
	assert.Equal(t, []string{"en-GB"}, listener.langs)

	info, ok := m.Session()
	assert.True(t, ok)
	assert.Equal(t, "abc", info.ID)
	assert.False(t, info.StartedAt.IsZero())
}

func TestStartPermissionDenied(t *testing.T) {
	m, fs, listener, statuses := newTestManager(t, fakePermission{err: errors.New("no device")})

	_, err := m.Start(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, StatusDenied, statuses.last())
	assert.Zero(t, fs.count(startPath))
	assert.Zero(t, listener.calls())

	_, ok := m.Session()
	assert.False(t, ok)
}

func TestStartNetworkError(t *testing.T) {
	m, fs, _, _ := newTestManager(t, fakePermission{})
	fs.fail(startPath, http.StatusInternalServerError)

	_, err := m.Start(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)

	_, ok := m.Session()
	assert.False(t, ok)
}

func TestStartUnreachable(t *testing.T) {
	backend, err := NewBackend("http://127.0.0.1:1", 200*time.Millisecond)
	require.NoError(t, err)
	m := NewManager(backend, &fakeListener{}, fakePermission{}, Options{})
	defer m.Close()

	_, err = m.Start(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestStartListenFailureClosesSession(t *testing.T) {
	m, fs, listener, _ := newTestManager(t, fakePermission{})
	listener.err = speech.ErrCapabilityUnavailable

	_, err := m.Start(context.Background())
	assert.ErrorIs(t, err, speech.ErrCapabilityUnavailable)
	assert.Equal(t, 1, fs.count(endPath))
	_, ok := m.Session()
	assert.False(t, ok)
}

func TestConcurrentStartIsBusy(t *testing.T) {
	m, fs, _, _ := newTestManager(t, fakePermission{})
	gate := make(chan struct{})
	fs.mu.Lock()
	fs.gate = gate
	fs.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := m.Start(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return fs.count(startPath) == 1 }, time.Second, 5*time.Millisecond)

	_, err := m.Start(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, m.End(context.Background(), "abc"), ErrBusy)

	close(gate)
	assert.NoError(t, <-done)
}

func TestNotifyWakePausesAndResumes(t *testing.T) {
	m, fs, listener, statuses := newTestManager(t, fakePermission{})
	id, err := m.Start(context.Background())
	require.NoError(t, err)
	first := listener.latest()

	require.NoError(t, m.NotifyWake(context.Background(), id))
	assert.Error(t, first.ctx.Err(), "recognition stops during wake")
	assert.Equal(t, 1, fs.count(wakePath))
	assert.Equal(t, StatusComplete, statuses.last())

	require.Eventually(t, func() bool { return listener.calls() == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, m.listening())

	listener.latest().ch <- speech.Transcript{Text: "saloon"}
	select {
	case tr := <-m.Transcripts():
		assert.Equal(t, "saloon", tr.Text)
	case <-time.After(time.Second):
		t.Fatal("transcript not forwarded after resume")
	}
}

func TestNotifyWakeFailureStillResumes(t *testing.T) {
	m, fs, listener, statuses := newTestManager(t, fakePermission{})
	id, err := m.Start(context.Background())
	require.NoError(t, err)
	fs.fail(wakePath, http.StatusBadGateway)

	err = m.NotifyWake(context.Background(), id)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Contains(t, statuses.last(), "Wake failed")

	_, ok := m.Session()
	assert.True(t, ok, "session stays open")
	require.Eventually(t, func() bool { return listener.calls() == 2 }, time.Second, 5*time.Millisecond)
}

func TestNotifyWakeWithoutSessionPanics(t *testing.T) {
	m, _, _, _ := newTestManager(t, fakePermission{})
	assert.Panics(t, func() { _ = m.NotifyWake(context.Background(), "abc") })
}

func TestEndStopsListeningFirst(t *testing.T) {
	m, fs, listener, statuses := newTestManager(t, fakePermission{})
	id, err := m.Start(context.Background())
	require.NoError(t, err)
	stream := listener.latest()

	require.NoError(t, m.End(context.Background(), id))
	assert.Error(t, stream.ctx.Err())
	assert.Equal(t, 1, fs.count(endPath))
	assert.Equal(t, StatusClosed, statuses.last())
	assert.False(t, m.listening())

	_, ok := m.Session()
	assert.False(t, ok)
}

func TestEndClearsSessionOnNetworkFailure(t *testing.T) {
	m, fs, _, _ := newTestManager(t, fakePermission{})
	id, err := m.Start(context.Background())
	require.NoError(t, err)
	fs.fail(endPath, http.StatusServiceUnavailable)

	err = m.End(context.Background(), id)
	assert.ErrorIs(t, err, ErrNetwork)
	_, ok := m.Session()
	assert.False(t, ok)

	again, err := m.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", again)
	assert.Equal(t, 2, fs.count(startPath))
}

func TestEndCancelsPendingResume(t *testing.T) {
	m, _, listener, _ := newTestManager(t, fakePermission{})
	m.opts.ResumeDelay = 50 * time.Millisecond
	id, err := m.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.NotifyWake(context.Background(), id))
	require.NoError(t, m.End(context.Background(), id))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, listener.calls())
}

func TestSetLanguageRestartsListener(t *testing.T) {
	m, _, listener, _ := newTestManager(t, fakePermission{})
	_, err := m.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.SetLanguage("en-KE"))
	assert.Equal(t, []string{"en-GB", "en-KE"}, listener.langs)

	info, _ := m.Session()
	assert.Equal(t, "en-KE", info.Language)
}

func TestPauseStopsRecognitionUntilResume(t *testing.T) {
	m, _, listener, _ := newTestManager(t, fakePermission{})
	_, err := m.Start(context.Background())
	require.NoError(t, err)
	first := listener.latest()

	m.Pause()
	assert.Error(t, first.ctx.Err())
	assert.False(t, m.listening())

	m.Resume()
	assert.True(t, m.listening())
	assert.Equal(t, 2, listener.calls())
}

func TestPauseHoldsPendingWakeResume(t *testing.T) {
	m, _, listener, _ := newTestManager(t, fakePermission{})
	m.opts.ResumeDelay = 20 * time.Millisecond
	id, err := m.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.NotifyWake(context.Background(), id))

	m.Pause()
	m.Resume()
	assert.False(t, m.listening(), "the wake delay still applies")

	m.Pause()
	time.Sleep(60 * time.Millisecond)
	assert.False(t, m.listening(), "no resume while paused")
	assert.Equal(t, 1, listener.calls())

	m.Resume()
	assert.True(t, m.listening())
	assert.Equal(t, 2, listener.calls())
}

func TestResumeWithoutSessionDoesNothing(t *testing.T) {
	m, _, listener, _ := newTestManager(t, fakePermission{})
	m.Pause()
	m.Resume()
	assert.Zero(t, listener.calls())
}

func TestCommandRelaysToLiveSession(t *testing.T) {
	m, fs, _, _ := newTestManager(t, fakePermission{})
	require.NoError(t, m.Command(context.Background(), "saloon"))
	assert.Zero(t, fs.count(commandPath), "no session, nothing to relay")

	_, err := m.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.Command(context.Background(), "saloon"))
	assert.Equal(t, 1, fs.count(commandPath))

	fs.fail(commandPath, http.StatusInternalServerError)
	assert.ErrorIs(t, m.Command(context.Background(), "five"), ErrNetwork)
}

func TestBackendCommand(t *testing.T) {
	var got sessionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, commandPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(CommandResponse{Status: "received"})
	}))
	defer srv.Close()

	b, err := NewBackend(srv.URL+"/", time.Second)
	require.NoError(t, err)
	resp, err := b.Command(context.Background(), "abc", "submit")
	require.NoError(t, err)
	assert.Equal(t, "received", resp.Status)
	assert.Equal(t, sessionRequest{SessionID: "abc", Command: "submit"}, got)
}

func TestNewBackendRejectsRelativeURL(t *testing.T) {
	_, err := NewBackend("localhost", time.Second)
	assert.Error(t, err)
}

func TestStoppedWhenListenerEnds(t *testing.T) {
	m, _, listener, statuses := newTestManager(t, fakePermission{})
	_, err := m.Start(context.Background())
	require.NoError(t, err)

	stream := listener.latest()
	stream.ch <- speech.Transcript{Text: "rating"}
	close(stream.ch)

	select {
	case <-m.Stopped():
	case <-time.After(time.Second):
		t.Fatal("stop not signalled")
	}
	assert.Equal(t, "rating", (<-m.Transcripts()).Text)
	assert.Equal(t, StatusStopped, statuses.last())
}
