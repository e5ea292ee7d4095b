package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	text      bool
	lang      string
	plate     string
	location  string
	audioFile string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "dex-voice-rating",
		Short: "Hands-free service rating by voice",
		Long: `dex-voice-rating listens for the wake phrase, walks the user through
rating a ride (vehicle type, stars, comments), reads back a summary and
submits the rating form on confirmation.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.text, "text", false, "Read transcripts from stdin and print prompts instead of using audio")
	cmd.Flags().StringVar(&opts.lang, "lang", "", "Recognition accent (en-GB, en-KE, en-NG, en-ZA, en-US); saved as the preference")
	cmd.Flags().StringVar(&opts.plate, "plate", "", "Plate number typed into the form")
	cmd.Flags().StringVar(&opts.location, "location", "", "Location to attach to the rating, e.g. \"-1.29,36.82\"")
	cmd.Flags().StringVar(&opts.audioFile, "audio-file", "", "Replay an Ogg/Opus recording instead of the microphone")

	cmd.AddCommand(newLangCommand())
	return cmd
}

func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCommand().ExecuteContext(ctx)
}
