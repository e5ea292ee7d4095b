package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	speechapi "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	logger "github.com/EasterCompany/dex-voice-rating/log"
)

const audioChunkSize = 1024

// GoogleListener streams audio from a source to Google Cloud Speech and
// restarts recognition whenever a stream ends without speech.
type GoogleListener struct {
	client      *speechapi.Client
	source      AudioSource
	maxRestarts int

	// recognize runs one recognition stream and reports whether anything
	// was heard.
	recognize func(ctx context.Context, lang string, out chan<- Transcript) (bool, error)
}

// NewGoogleListener creates a Google Cloud Speech client. It relies on
// Application Default Credentials unless options say otherwise. maxRestarts
// bounds consecutive no-speech restarts; zero means unbounded.
func NewGoogleListener(ctx context.Context, source AudioSource, maxRestarts int, opts ...option.ClientOption) (*GoogleListener, error) {
	client, err := speechapi.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: could not create speech client: %v", ErrCapabilityUnavailable, err)
	}
	g := &GoogleListener{client: client, source: source, maxRestarts: maxRestarts}
	g.recognize = g.stream
	return g, nil
}

// Close cleans up the speech client connection.
func (g *GoogleListener) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Listen starts continuous recognition in the given language.
func (g *GoogleListener) Listen(ctx context.Context, lang string) (<-chan Transcript, error) {
	if g.client == nil || g.source == nil {
		return nil, ErrCapabilityUnavailable
	}
	out := make(chan Transcript, 8)
	go g.run(ctx, lang, out)
	return out, nil
}

func (g *GoogleListener) run(ctx context.Context, lang string, out chan<- Transcript) {
	defer close(out)
	restarts := 0
	for {
		heard, err := g.recognize(ctx, lang, out)
		if ctx.Err() != nil {
			return
		}
		if heard {
			restarts = 0
		}
		switch {
		case errors.Is(err, ErrNoSpeech):
			restarts++
			if g.maxRestarts > 0 && restarts > g.maxRestarts {
				logger.Error(fmt.Sprintf("Giving up after %d silent recognition restarts", g.maxRestarts), err)
				return
			}
		case errors.Is(err, ErrSourceDone):
			return
		case err != nil:
			logger.Error("Speech recognition stopped", err)
			return
		}
	}
}

// stream runs one streaming request. Stream ends and audio timeouts come
// back as ErrNoSpeech so the caller restarts.
func (g *GoogleListener) stream(ctx context.Context, lang string, out chan<- Transcript) (bool, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	audio, err := g.source.Open(streamCtx)
	if err != nil {
		return false, err
	}
	defer func() { _ = audio.Close() }()

	stream, err := g.client.StreamingRecognize(streamCtx)
	if err != nil {
		return false, fmt.Errorf("could not start streaming recognize: %w", err)
	}

	format := g.source.Format()
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   encodingOf(format.Encoding),
					SampleRateHertz:            format.SampleRate,
					LanguageCode:               lang,
					EnableAutomaticPunctuation: false,
				},
				InterimResults: false,
			},
		},
	}); err != nil {
		return false, fmt.Errorf("could not send streaming config: %w", err)
	}

	go pumpAudio(streamCtx, audio, stream)

	heard := false
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return heard, ErrNoSpeech
		}
		if err != nil {
			if isNoSpeech(err) {
				return heard, ErrNoSpeech
			}
			return heard, fmt.Errorf("cannot stream results: %w", err)
		}
		if resp.Error != nil && codes.Code(resp.Error.Code) == codes.OutOfRange {
			return heard, ErrNoSpeech
		}
		for _, result := range resp.Results {
			if !result.IsFinal || len(result.Alternatives) == 0 {
				continue
			}
			text := strings.TrimSpace(result.Alternatives[0].Transcript)
			if text == "" {
				continue
			}
			heard = true
			select {
			case out <- Transcript{Text: text, Timestamp: time.Now()}:
			case <-ctx.Done():
				return heard, ctx.Err()
			}
		}
	}
}

func pumpAudio(ctx context.Context, audio io.Reader, stream speechpb.Speech_StreamingRecognizeClient) {
	buf := make([]byte, audioChunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			if sendErr := stream.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
					AudioContent: append([]byte(nil), buf[:n]...),
				},
			}); sendErr != nil {
				return
			}
		}
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				logger.Error("Error reading audio source", err)
			}
			_ = stream.CloseSend()
			return
		}
	}
}

func isNoSpeech(err error) bool {
	switch status.Code(err) {
	case codes.OutOfRange, codes.DeadlineExceeded:
		return true
	}
	return false
}

func encodingOf(e Encoding) speechpb.RecognitionConfig_AudioEncoding {
	if e == EncodingOggOpus {
		return speechpb.RecognitionConfig_OGG_OPUS
	}
	return speechpb.RecognitionConfig_LINEAR16
}
