package speech

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsNoSpeech(t *testing.T) {
	assert.True(t, isNoSpeech(status.Error(codes.OutOfRange, "Audio Timeout Error")))
	assert.True(t, isNoSpeech(status.Error(codes.DeadlineExceeded, "stream too long")))
	assert.False(t, isNoSpeech(status.Error(codes.Unauthenticated, "bad key")))
	assert.False(t, isNoSpeech(errors.New("plain")))
}

func TestDecodePCM(t *testing.T) {
	raw := []byte{0x01, 0x00, 0xff, 0xff}
	assert.Equal(t, []int16{1, -1}, decodePCM(raw))

	wav := append([]byte("RIFF"), make([]byte, wavHeaderSize-4)...)
	wav = append(wav, 0x02, 0x00)
	assert.Equal(t, []int16{2}, decodePCM(wav))
}

func TestGoogleListenerWithoutClient(t *testing.T) {
	var g GoogleListener
	_, err := g.Listen(context.Background(), "en-GB")
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)
}

// recognition is one scripted recognition stream.
type recognition struct {
	text string
	err  error
}

func TestGoogleListenerRestarts(t *testing.T) {
	silent := recognition{err: ErrNoSpeech}
	heard := recognition{text: "saloon", err: ErrNoSpeech}

	tests := []struct {
		name        string
		maxRestarts int
		script      []recognition
		repeat      recognition // used once the script runs out
		wantCalls   int
		wantText    []string
	}{
		{
			name:        "no speech keeps listening",
			maxRestarts: 5,
			script:      []recognition{silent, silent, heard},
			repeat:      recognition{err: ErrSourceDone},
			wantCalls:   4,
			wantText:    []string{"saloon"},
		},
		{
			name:        "cap closes the stream",
			maxRestarts: 2,
			repeat:      silent,
			wantCalls:   3,
		},
		{
			name:        "speech resets the count",
			maxRestarts: 2,
			script:      []recognition{silent, silent, heard, silent},
			repeat:      recognition{err: ErrSourceDone},
			wantCalls:   5,
			wantText:    []string{"saloon"},
		},
		{
			name:        "zero is unbounded",
			maxRestarts: 0,
			repeat:      silent,
			wantCalls:   50,
		},
		{
			name:        "other errors stop",
			maxRestarts: 5,
			repeat:      recognition{err: errors.New("unauthenticated")},
			wantCalls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			g := &GoogleListener{maxRestarts: tt.maxRestarts}
			g.recognize = func(ctx context.Context, lang string, out chan<- Transcript) (bool, error) {
				calls++
				step := tt.repeat
				if calls <= len(tt.script) {
					step = tt.script[calls-1]
				}
				// An unbounded listener is stopped by the source instead.
				if tt.maxRestarts == 0 && calls >= tt.wantCalls {
					step = recognition{err: ErrSourceDone}
				}
				if step.text == "" {
					return false, step.err
				}
				out <- Transcript{Text: step.text}
				return true, step.err
			}

			out := make(chan Transcript, 8)
			g.run(context.Background(), "en-GB", out)

			var got []string
			for tr := range out {
				got = append(got, tr.Text)
			}
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantText, got)
		})
	}
}

func TestGoogleListenerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	g := &GoogleListener{maxRestarts: 1}
	g.recognize = func(context.Context, string, chan<- Transcript) (bool, error) {
		calls++
		cancel()
		return false, ErrNoSpeech
	}

	out := make(chan Transcript)
	g.run(ctx, "en-GB", out)

	_, open := <-out
	assert.False(t, open)
	assert.Equal(t, 1, calls)
}
