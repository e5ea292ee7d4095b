// Package form projects the rating draft onto the hidden fields of the
// server-rendered rating form and performs the native form submission.
package form

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/EasterCompany/dex-voice-rating/dialogue"
)

// Field names of the rating form.
const (
	FieldMotorType      = "motor_type"
	FieldScore          = "score"
	FieldSystemComments = "system_comments"
	FieldComment        = "comment"
	FieldPlate          = "motor_car_number"
	FieldLocation       = "location"
	FieldVoiceMode      = "voice_mode"
	FieldCSRF           = "csrfmiddlewaretoken"
)

const csrfCookie = "csrftoken"

// ErrRejected is returned when the server answers a submission with an
// error status.
var ErrRejected = errors.New("form submission rejected")

// Bridge mirrors a draft into form fields. It never reads fields back into
// the draft.
type Bridge struct {
	mu     sync.Mutex
	action *url.URL
	client *http.Client
	fields url.Values
}

// New creates a bridge posting to action. A nil client uses
// http.DefaultClient.
func New(action string, client *http.Client) (*Bridge, error) {
	u, err := url.Parse(action)
	if err != nil {
		return nil, fmt.Errorf("invalid form action %q: %w", action, err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Bridge{action: u, client: client, fields: url.Values{}}, nil
}

// Apply overwrites every draft-backed field.
func (b *Bridge) Apply(d dialogue.Draft) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fields.Set(FieldMotorType, d.VehicleType)
	if d.HasScore() {
		b.fields.Set(FieldScore, strconv.FormatFloat(d.Score, 'f', 1, 64))
	} else {
		b.fields.Set(FieldScore, "")
	}
	b.fields.Set(FieldSystemComments, d.SystemComments())
	b.fields.Set(FieldComment, strings.TrimSpace(d.FreeTextComment))
	b.fields.Set(FieldPlate, d.PlateNumber)
}

// SetLocation stores the "lat,lng" geolocation string.
func (b *Bridge) SetLocation(location string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fields.Set(FieldLocation, location)
}

// Field returns the current value of a field.
func (b *Bridge) Field(name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fields.Get(name)
}

// Enabled reports whether the submit control would be enabled for d.
func Enabled(d dialogue.Draft) bool {
	return d.Complete()
}

// Prime loads the form page so the client's cookie jar picks up the CSRF
// token the server expects back as a hidden field.
func (b *Bridge) Prime(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.action.String(), nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not load rating form: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if b.client.Jar == nil {
		return nil
	}
	for _, c := range b.client.Jar.Cookies(b.action) {
		if c.Name == csrfCookie {
			b.mu.Lock()
			b.fields.Set(FieldCSRF, c.Value)
			b.mu.Unlock()
		}
	}
	return nil
}

// Submit posts the form the way a browser does: url-encoded, following the
// redirect to the confirmation page. It returns the final page URL.
func (b *Bridge) Submit(ctx context.Context) (string, error) {
	b.mu.Lock()
	b.fields.Set(FieldVoiceMode, "1")
	body := b.fields.Encode()
	b.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.action.String(), strings.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token := b.Field(FieldCSRF); token != "" {
		req.Header.Set("Referer", b.action.String())
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not submit rating form: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: %s", ErrRejected, resp.Status)
	}
	return resp.Request.URL.String(), nil
}
