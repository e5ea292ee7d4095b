// Package speech wraps platform speech recognition and synthesis behind a
// transcript stream and a blocking Speak call.
package speech

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrCapabilityUnavailable means recognition cannot run on this device.
	ErrCapabilityUnavailable = errors.New("speech recognition is not available on this device")
	// ErrPermissionDenied means the microphone could not be opened.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrNoSpeech is reported when recognition ended without hearing anything.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrSourceDone is returned by one-shot audio sources that were consumed.
	ErrSourceDone = errors.New("audio source exhausted")
)

// Transcript is the text of one recognized utterance.
type Transcript struct {
	Text      string
	Timestamp time.Time
}

// Listener produces final transcripts until ctx is cancelled. The channel is
// closed when listening stops for any reason.
type Listener interface {
	Listen(ctx context.Context, lang string) (<-chan Transcript, error)
}

// Synthesizer speaks text and returns once playback has finished. It does
// not queue: callers wait for one Speak before issuing the next.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// Permission asks for access to the microphone.
type Permission interface {
	Request(ctx context.Context) error
}

// Format describes the audio an AudioSource produces.
type Format struct {
	Encoding   Encoding
	SampleRate int32
}

// Encoding of raw audio bytes.
type Encoding int

const (
	EncodingLinear16 Encoding = iota
	EncodingOggOpus
)

// AudioSource yields raw audio for recognition. Each Open starts a fresh read.
type AudioSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	Format() Format
}

// Granted is a Permission that always succeeds, for sources that need no
// microphone.
type Granted struct{}

func (Granted) Request(context.Context) error { return nil }
