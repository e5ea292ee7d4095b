package speech

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const (
	micSampleRate      = 16000
	micFramesPerBuffer = 1600
)

// Microphone captures mono LINEAR16 audio from the default input device.
type Microphone struct{}

// Request checks that the default input device can be opened.
func (Microphone) Request(ctx context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	defer portaudio.Terminate()

	if _, err := portaudio.DefaultInputDevice(); err != nil {
		return fmt.Errorf("%w: no input device: %v", ErrPermissionDenied, err)
	}
	buf := make([]int16, micFramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, micSampleRate, len(buf), buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return stream.Close()
}

// Format reports 16 kHz LINEAR16.
func (Microphone) Format() Format {
	return Format{Encoding: EncodingLinear16, SampleRate: micSampleRate}
}

// Open starts capturing. Closing the reader stops the stream.
func (Microphone) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
	}
	r := &micReader{buf: make([]int16, micFramesPerBuffer)}
	stream, err := portaudio.OpenDefaultStream(1, 0, micSampleRate, len(r.buf), r.buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("could not start microphone: %w", err)
	}
	r.stream = stream
	go func() {
		<-ctx.Done()
		_ = r.Close()
	}()
	return r, nil
}

type micReader struct {
	mu      sync.Mutex
	stream  *portaudio.Stream
	buf     []int16
	pending []byte
	closed  bool
	once    sync.Once
}

func (r *micReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, io.EOF
	}
	if len(r.pending) == 0 {
		if err := r.stream.Read(); err != nil {
			return 0, fmt.Errorf("microphone read: %w", err)
		}
		r.pending = make([]byte, len(r.buf)*2)
		for i, sample := range r.buf {
			binary.LittleEndian.PutUint16(r.pending[i*2:], uint16(sample))
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// Close may be called from the ctx watcher while a Read is blocked, so the
// stream is aborted before the lock is taken.
func (r *micReader) Close() error {
	var err error
	r.once.Do(func() {
		_ = r.stream.Abort()
		r.mu.Lock()
		defer r.mu.Unlock()
		r.closed = true
		err = r.stream.Close()
		portaudio.Terminate()
	})
	return err
}
