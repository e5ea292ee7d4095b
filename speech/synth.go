package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/gordonklaus/portaudio"
	"google.golang.org/api/option"
)

const (
	synthSampleRate   = 24000
	playbackFrameSize = 2400
	wavHeaderSize     = 44
)

// GoogleSynthesizer speaks through Google Text-to-Speech and plays the audio
// on the default output device.
type GoogleSynthesizer struct {
	client *texttospeech.Client
	lang   string
}

// NewGoogleSynthesizer creates a Text-to-Speech client speaking lang.
func NewGoogleSynthesizer(ctx context.Context, lang string, opts ...option.ClientOption) (*GoogleSynthesizer, error) {
	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create text-to-speech client: %w", err)
	}
	return &GoogleSynthesizer{client: client, lang: lang}, nil
}

func (g *GoogleSynthesizer) Close() error {
	return g.client.Close()
}

// Speak synthesizes text and blocks until playback ends or ctx is done.
func (g *GoogleSynthesizer) Speak(ctx context.Context, text string) error {
	resp, err := g.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: g.lang,
			SsmlGender:   texttospeechpb.SsmlVoiceGender_NEUTRAL,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: synthSampleRate,
		},
	})
	if err != nil {
		return fmt.Errorf("could not synthesize speech: %w", err)
	}
	return play(ctx, decodePCM(resp.AudioContent))
}

// decodePCM turns little-endian LINEAR16 bytes into samples, skipping a WAV
// header when present.
func decodePCM(audio []byte) []int16 {
	if len(audio) >= wavHeaderSize && bytes.HasPrefix(audio, []byte("RIFF")) {
		audio = audio[wavHeaderSize:]
	}
	samples := make([]int16, len(audio)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(audio[i*2:]))
	}
	return samples
}

func play(ctx context.Context, samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("could not initialize audio output: %w", err)
	}
	defer portaudio.Terminate()

	frame := make([]int16, playbackFrameSize)
	stream, err := portaudio.OpenDefaultStream(0, 1, synthSampleRate, len(frame), frame)
	if err != nil {
		return fmt.Errorf("could not open audio output: %w", err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return fmt.Errorf("could not start audio output: %w", err)
	}
	defer stream.Stop()

	for off := 0; off < len(samples); off += len(frame) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(frame, samples[off:])
		for i := n; i < len(frame); i++ {
			frame[i] = 0
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("audio output write: %w", err)
		}
	}
	return nil
}
