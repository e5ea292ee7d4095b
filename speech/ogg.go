package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media/oggreader"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"

	logger "github.com/EasterCompany/dex-voice-rating/log"
)

const (
	opusSampleRate  = 48000
	opusFrameTicks  = 960 // 20ms at 48kHz
	opusPayloadType = 0x78
)

// OggSource replays an Ogg/Opus recording in real time, as if it were a
// live microphone. It can be opened once.
type OggSource struct {
	path string
	// Pace is the delay per 20ms frame. Zero replays as fast as possible.
	Pace time.Duration

	mu     sync.Mutex
	opened bool
}

// NewOggSource returns a source for the Ogg/Opus file at path.
func NewOggSource(path string) *OggSource {
	return &OggSource{path: path, Pace: 20 * time.Millisecond}
}

// Format reports 48 kHz OGG_OPUS.
func (o *OggSource) Format() Format {
	return Format{Encoding: EncodingOggOpus, SampleRate: opusSampleRate}
}

// Open starts the replay. Subsequent calls return ErrSourceDone.
func (o *OggSource) Open(ctx context.Context) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.opened {
		return nil, ErrSourceDone
	}
	f, err := os.Open(o.path)
	if err != nil {
		return nil, fmt.Errorf("could not open audio file %s: %w", o.path, err)
	}
	o.opened = true

	pr, pw := io.Pipe()
	go func() {
		defer f.Close()
		err := Remux(ctx, f, pw, o.Pace)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(fmt.Sprintf("Replay of %s failed", o.path), err)
		}
		pw.CloseWithError(err)
	}()
	return pr, nil
}

// Remux reads Ogg/Opus pages from in and rewrites them through an RTP
// packetizing Ogg writer into out, sleeping pace between frames.
func Remux(ctx context.Context, in io.Reader, out io.Writer, pace time.Duration) error {
	reader, header, err := oggreader.NewWith(in)
	if err != nil {
		return fmt.Errorf("could not read ogg header: %w", err)
	}
	channels := uint16(header.Channels)
	if channels == 0 {
		channels = 1
	}
	writer, err := oggwriter.NewWith(nopCloser{out}, opusSampleRate, channels)
	if err != nil {
		return fmt.Errorf("could not create ogg writer: %w", err)
	}
	defer writer.Close()

	var (
		seq       uint16
		timestamp uint32
		lastGran  uint64
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, page, err := reader.ParseNextPage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not parse ogg page: %w", err)
		}
		if len(payload) == 0 || bytes.HasPrefix(payload, []byte("OpusTags")) {
			continue
		}

		ticks := uint32(opusFrameTicks)
		if page.GranulePosition > lastGran && lastGran > 0 {
			ticks = uint32(page.GranulePosition - lastGran)
		}
		lastGran = page.GranulePosition
		timestamp += ticks
		seq++

		packet := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    opusPayloadType,
				SequenceNumber: seq,
				Timestamp:      timestamp,
			},
			Payload: payload,
		}
		if err := writer.WriteRTP(packet); err != nil {
			return fmt.Errorf("could not write rtp packet: %w", err)
		}
		if pace > 0 {
			select {
			case <-time.After(pace * time.Duration(ticks) / opusFrameTicks):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// nopCloser keeps the ogg writer from closing the pipe; the caller closes it
// with the replay error.
type nopCloser struct{ io.Writer }
