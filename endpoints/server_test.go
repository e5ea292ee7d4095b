package endpoints

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EasterCompany/dex-voice-rating/cache"
	"github.com/EasterCompany/dex-voice-rating/dialogue"
	"github.com/EasterCompany/dex-voice-rating/form"
	"github.com/EasterCompany/dex-voice-rating/health"
	"github.com/EasterCompany/dex-voice-rating/options"
	"github.com/EasterCompany/dex-voice-rating/session"
)

func setupServer(t *testing.T) (*httptest.Server, *cache.DB, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	db := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = db.Close() })

	checker := health.NewChecker(db, db)
	srv := NewServer(db, time.Minute, checker.Check)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, db, mr
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", strings.NewReader(string(data)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestSessionLifecycleThroughBackendClient(t *testing.T) {
	ts, db, _ := setupServer(t)
	ctx := context.Background()

	backend, err := session.NewBackend(ts.URL, time.Second)
	require.NoError(t, err)

	start, err := backend.Start(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, start.SessionID)
	assert.Equal(t, "listening", start.Status)

	wake, err := backend.Wake(ctx, start.SessionID)
	require.NoError(t, err)
	assert.True(t, wake.Success)
	assert.Equal(t, "awake", wake.Status)

	cmd, err := backend.Command(ctx, start.SessionID, "submit")
	require.NoError(t, err)
	assert.Equal(t, "received", cmd.Status)

	stored, err := db.LoadSession(ctx, start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "awake", stored.Status)
	assert.Equal(t, "submit", stored.LastCommand)
	assert.False(t, stored.WokenAt.IsZero())

	require.NoError(t, backend.End(ctx, start.SessionID))
	_, err = db.LoadSession(ctx, start.SessionID)
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestWakeUnknownSession(t *testing.T) {
	ts, _, _ := setupServer(t)

	resp := postJSON(t, ts.URL+wakePath, SessionRequest{SessionID: "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, ts.URL+wakePath, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionExpires(t *testing.T) {
	ts, _, mr := setupServer(t)
	backend, err := session.NewBackend(ts.URL, time.Second)
	require.NoError(t, err)

	start, err := backend.Start(context.Background())
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	_, err = backend.Wake(context.Background(), start.SessionID)
	var httpErr *session.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestStartRejectsGet(t *testing.T) {
	ts, _, _ := setupServer(t)
	resp, err := http.Get(ts.URL + startPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func newFormBridge(t *testing.T, ts *httptest.Server) *form.Bridge {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	b, err := form.New(ts.URL+ratePath, &http.Client{Jar: jar, Timeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, b.Prime(context.Background()))
	return b
}

func TestVoiceSubmissionRedirectsToConfirmation(t *testing.T) {
	ts, db, _ := setupServer(t)
	b := newFormBridge(t, ts)

	d := dialogue.Draft{VehicleType: "matatu", PlateNumber: "KBC456D"}
	d.SetScore(4.5)
	d.Select("Polite and professional driver")
	d.FreeTextComment = "Great music"
	b.Apply(d)
	b.SetLocation("-1.2921,36.8219")

	final, err := b.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ts.URL+"/rate/confirmation/1/", final)

	r, err := db.LoadRating(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "matatu", r.MotorType)
	assert.Equal(t, 4.5, r.Score)
	assert.Equal(t, "Polite and professional driver", r.SystemComments)
	assert.Equal(t, "Great music", r.Comment)
	assert.Equal(t, "KBC456D", r.PlateNumber)
	assert.Equal(t, "-1.2921,36.8219", r.Location)
	assert.True(t, r.VoiceMode)

	resp, err := http.Get(final)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Rating #1 received")
	assert.Contains(t, string(body), "KBC456D")
}

func TestSubmissionWithoutCSRFIsForbidden(t *testing.T) {
	ts, _, _ := setupServer(t)
	values := url.Values{"motor_type": {"bus"}, "score": {"3"}, "comment": {"ok"}, "motor_car_number": {"KAA1"}}

	resp, err := http.PostForm(ts.URL+ratePath, values)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestParseRatingValidation(t *testing.T) {
	cases := map[string]url.Values{
		"motor_type is required":           {"score": {"3"}, "comment": {"x"}, "motor_car_number": {"K"}},
		"score must be between 1 and 5":    {"motor_type": {"bus"}, "score": {"7"}, "comment": {"x"}, "motor_car_number": {"K"}},
		"at least one comment is required": {"motor_type": {"bus"}, "score": {"3"}, "motor_car_number": {"K"}},
		"motor_car_number is required":     {"motor_type": {"bus"}, "score": {"3"}, "comment": {"x"}},
	}
	for want, values := range cases {
		t.Run(want, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, ratePath, strings.NewReader(values.Encode()))
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			require.NoError(t, r.ParseForm())
			_, err := parseRating(r)
			require.Error(t, err)
			assert.Equal(t, want, err.Error())
		})
	}
}

func getBody(t *testing.T, target string) string {
	t.Helper()
	resp, err := http.Get(target)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestFormPageRendersChipsForScore(t *testing.T) {
	ts, _, _ := setupServer(t)

	blank := getBody(t, ts.URL+ratePath)
	assert.NotContains(t, blank, `class="chip`)
	assert.Contains(t, blank, `<button type="submit" disabled>`)

	q := url.Values{
		form.FieldMotorType:      {"taxi"},
		form.FieldScore:          {"2"},
		form.FieldSystemComments: {"Ignored traffic rules, Polite and professional driver"},
	}
	partial := getBody(t, ts.URL+ratePath+"?"+q.Encode())
	for _, label := range options.Chips(2) {
		assert.Contains(t, partial, `data-comment="`+label+`"`)
	}
	assert.Contains(t, partial, `class="chip selected" data-comment="Ignored traffic rules"`)
	assert.NotContains(t, partial, "Polite and professional driver", "comments outside the band are dropped")
	assert.Contains(t, partial, `<button type="submit" disabled>`, "plate still missing")

	q.Set(form.FieldPlate, "KAA123A")
	complete := getBody(t, ts.URL+ratePath+"?"+q.Encode())
	assert.Contains(t, complete, `<button type="submit">`)
}

func TestConfirmationNotFound(t *testing.T) {
	ts, _, _ := setupServer(t)
	for _, path := range []string{"/rate/confirmation/42/", "/rate/confirmation/abc/"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestStatusAndMetrics(t *testing.T) {
	ts, _, _ := setupServer(t)
	postJSON(t, ts.URL+startPath, struct{}{})

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var report health.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, "OK", report.Cache)
	assert.Equal(t, 1, report.Sessions)

	mresp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	body, _ := io.ReadAll(mresp.Body)
	assert.Contains(t, string(body), "voice_rating_session_events_total")
}
