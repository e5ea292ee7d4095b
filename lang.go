package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/EasterCompany/dex-voice-rating/cache"
	"github.com/EasterCompany/dex-voice-rating/config"
)

func newLangCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lang [accent]",
		Short: "Show or set the saved recognition accent",
		Long:  "Supported accents: " + strings.Join(config.SupportedLanguages, ", "),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			db, err := cache.New(ctx, &cfg.Cache)
			if err != nil {
				return err
			}
			if db == nil {
				return fmt.Errorf("no cache configured in %s; preferences cannot be saved", config.FileName)
			}
			defer db.Close()

			if len(args) == 1 {
				if err := db.SetLanguage(ctx, args[0]); err != nil {
					return err
				}
			}
			lang, err := db.Language(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), lang)
			return nil
		},
	}
}
