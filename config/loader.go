package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// FileName is the main config file inside ~/Dexter/config.
	FileName = "voice.json"
	// DefaultLanguage is the accent used when no preference is stored.
	DefaultLanguage = "en-GB"
)

// SupportedLanguages are the accents offered to the user.
var SupportedLanguages = []string{"en-GB", "en-KE", "en-NG", "en-ZA", "en-US"}

var osUserHomeDir = os.UserHomeDir

// Default returns the configuration written on first run.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{URL: "http://localhost:8000", TimeoutSeconds: 10},
		Speech: SpeechConfig{
			Provider:            "google",
			Language:            DefaultLanguage,
			MaxNoSpeechRestarts: 20,
		},
		Session: SessionConfig{
			WakeResumeDelayMs: 3000,
			WakePhrases:       []string{"rating", "rating app", "hey rating", "my app"},
		},
		Cache:  ConnectionConfig{Addr: "localhost:6379"},
		Server: ServerConfig{Addr: ":8000", SessionTTLMinutes: 30},
		Form:   FormConfig{Action: "http://localhost:8000/rate/"},
	}
}

// expandPath resolves paths like "~/" to the user's home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := osUserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not get user home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// Path constructs the full path to a config file in ~/Dexter/config.
func Path(filename string) (string, error) {
	return expandPath(filepath.Join("~/Dexter/config", filename))
}

// loadAndUnmarshal reads a JSON file from the config directory and unmarshals it into the provided interface.
func loadAndUnmarshal(filename string, v interface{}) error {
	path, err := Path(filename)
	if err != nil {
		return fmt.Errorf("could not get config path for %s: %w", filename, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file %s: %w", filename, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("could not decode config file %s: %w", filename, err)
	}

	return nil
}

func writeDefault(filename string, v interface{}) error {
	path, err := Path(filename)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("could not write default config %s: %w", filename, err)
	}
	return nil
}

// Load reads voice.json, creating it with defaults when it does not exist.
// Fields missing from the file keep their default values.
func Load() (*Config, error) {
	cfg := Default()
	err := loadAndUnmarshal(FileName, cfg)
	if errors.Is(err, os.ErrNotExist) {
		if err := writeDefault(FileName, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem with cfg.
func (c *Config) Validate() error {
	var errs []error
	if c.Backend.URL == "" {
		errs = append(errs, errors.New("backend.url is required"))
	}
	if c.Backend.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("backend.timeout_seconds must be positive"))
	}
	switch c.Speech.Provider {
	case "google", "console":
	default:
		errs = append(errs, fmt.Errorf("speech.provider %q must be google or console", c.Speech.Provider))
	}
	if !IsSupportedLanguage(c.Speech.Language) {
		errs = append(errs, fmt.Errorf("speech.language %q is not one of %s", c.Speech.Language, strings.Join(SupportedLanguages, ", ")))
	}
	if c.Speech.MaxNoSpeechRestarts < 0 {
		errs = append(errs, errors.New("speech.max_no_speech_restarts cannot be negative"))
	}
	if c.Session.WakeResumeDelayMs < 0 {
		errs = append(errs, errors.New("session.wake_resume_delay_ms cannot be negative"))
	}
	if c.Form.Action == "" {
		errs = append(errs, errors.New("form.action is required"))
	}
	if (c.Discord.Token == "") != (c.Discord.LogChannelID == "") {
		errs = append(errs, errors.New("discord.token and discord.log_channel_id must be set together"))
	}
	return errors.Join(errs...)
}

// IsSupportedLanguage reports whether lang is an offered accent.
func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
