package config

import "time"

// Config reflects the structure of voice.json.
type Config struct {
	Backend BackendConfig    `json:"backend"`
	Speech  SpeechConfig     `json:"speech"`
	Session SessionConfig    `json:"session"`
	Cache   ConnectionConfig `json:"cache"`
	Discord DiscordConfig    `json:"discord"`
	Server  ServerConfig     `json:"server"`
	Form    FormConfig       `json:"form"`
}

// BackendConfig points the client at the voice session server.
type BackendConfig struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SpeechConfig selects and tunes the speech adapter.
type SpeechConfig struct {
	// Provider is "google" or "console".
	Provider            string `json:"provider"`
	Language            string `json:"language"`
	MaxNoSpeechRestarts int    `json:"max_no_speech_restarts"`
	CredentialsFile     string `json:"credentials_file"`
}

// SessionConfig holds wake handling settings.
type SessionConfig struct {
	WakeResumeDelayMs int      `json:"wake_resume_delay_ms"`
	WakePhrases       []string `json:"wake_phrases"`
}

// ConnectionConfig holds Redis connection details.
type ConnectionConfig struct {
	Addr     string `json:"addr"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// DiscordConfig enables mirroring the log to a Discord channel.
type DiscordConfig struct {
	Token        string `json:"token"`
	LogChannelID string `json:"log_channel_id"`
}

// ServerConfig configures cmd/voice-server.
type ServerConfig struct {
	Addr              string `json:"addr"`
	SessionTTLMinutes int    `json:"session_ttl_minutes"`
}

// FormConfig locates the rating form.
type FormConfig struct {
	Action string `json:"action"`
}

// Timeout bounds every backend call.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// WakeResumeDelay is how long recognition stays paused after a wake.
func (s SessionConfig) WakeResumeDelay() time.Duration {
	return time.Duration(s.WakeResumeDelayMs) * time.Millisecond
}

// SessionTTL is how long an idle server session is kept.
func (s ServerConfig) SessionTTL() time.Duration {
	return time.Duration(s.SessionTTLMinutes) * time.Minute
}
