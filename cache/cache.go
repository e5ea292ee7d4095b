// Package cache keeps preferences, server sessions, submitted ratings and
// status updates in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/EasterCompany/dex-voice-rating/config"
)

const (
	keyPrefix = "dex-voice-rating:"

	languageKey   = "prefs:voice_lang"
	statusKey     = "status"
	logsKey       = "logs"
	ratingSeqKey  = "rating:seq"
	sessionFormat = "session:%s"
	ratingFormat  = "rating:%d"

	// StatusChannel carries every engine status update.
	StatusChannel = keyPrefix + "status"
	// LanguageChannel carries accent preference changes.
	LanguageChannel = keyPrefix + "prefs:voice_lang"

	maxLogs = 100
)

// ErrNotFound is returned when a session or rating does not exist.
var ErrNotFound = errors.New("not found")

// Session is a server-side voice session.
type Session struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	WokenAt     time.Time `json:"woken_at,omitempty"`
	LastCommand string    `json:"last_command,omitempty"`
}

// Rating is a submitted rating form.
type Rating struct {
	ID             int64     `json:"id"`
	MotorType      string    `json:"motor_type"`
	Score          float64   `json:"score"`
	SystemComments string    `json:"system_comments"`
	Comment        string    `json:"comment"`
	PlateNumber    string    `json:"motor_car_number"`
	Location       string    `json:"location"`
	VoiceMode      bool      `json:"voice_mode"`
	CreatedAt      time.Time `json:"created_at"`
}

type DB struct {
	rdb *redis.Client
}

// New connects to Redis. It returns nil, nil when no address is configured.
func New(ctx context.Context, cfg *config.ConnectionConfig) (*DB, error) {
	if cfg == nil || cfg.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("could not connect to cache at %s: %w", cfg.Addr, err)
	}
	return &DB{rdb: rdb}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client) *DB {
	return &DB{rdb: rdb}
}

func (db *DB) Ping(ctx context.Context) error {
	return db.rdb.Ping(ctx).Err()
}

func (db *DB) Close() error {
	return db.rdb.Close()
}

// Client exposes the underlying connection for subscribers.
func (db *DB) Client() *redis.Client {
	return db.rdb
}

// Language returns the stored accent, or the default when none is stored or
// the stored value is no longer offered.
func (db *DB) Language(ctx context.Context) (string, error) {
	lang, err := db.rdb.Get(ctx, keyPrefix+languageKey).Result()
	if err == redis.Nil {
		return config.DefaultLanguage, nil
	}
	if err != nil {
		return config.DefaultLanguage, fmt.Errorf("could not load language preference: %w", err)
	}
	if !config.IsSupportedLanguage(lang) {
		return config.DefaultLanguage, nil
	}
	return lang, nil
}

// SetLanguage stores the accent and announces the change to running
// clients.
func (db *DB) SetLanguage(ctx context.Context, lang string) error {
	if !config.IsSupportedLanguage(lang) {
		return fmt.Errorf("unsupported language %q", lang)
	}
	pipe := db.rdb.Pipeline()
	pipe.Set(ctx, keyPrefix+languageKey, lang, 0)
	pipe.Publish(ctx, LanguageChannel, lang)
	_, err := pipe.Exec(ctx)
	return err
}

// WatchLanguage delivers accent changes until ctx is done. The subscription
// is live when it returns.
func (db *DB) WatchLanguage(ctx context.Context) (<-chan string, error) {
	sub := db.rdb.Subscribe(ctx, LanguageChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("could not subscribe to %s: %w", LanguageChannel, err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				if !config.IsSupportedLanguage(msg.Payload) {
					continue
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// PublishStatus stores status as the latest one and publishes it.
func (db *DB) PublishStatus(ctx context.Context, status interface{}) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("could not marshal status: %w", err)
	}
	pipe := db.rdb.Pipeline()
	pipe.Set(ctx, keyPrefix+statusKey, data, 0)
	pipe.Publish(ctx, StatusChannel, data)
	_, err = pipe.Exec(ctx)
	return err
}

// LastStatus returns the most recent published status as raw JSON.
func (db *DB) LastStatus(ctx context.Context) (string, error) {
	s, err := db.rdb.Get(ctx, keyPrefix+statusKey).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return s, err
}

func (db *DB) SaveSession(ctx context.Context, s *Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("could not marshal session: %w", err)
	}
	return db.rdb.Set(ctx, keyPrefix+fmt.Sprintf(sessionFormat, s.ID), data, ttl).Err()
}

func (db *DB) LoadSession(ctx context.Context, id string) (*Session, error) {
	data, err := db.rdb.Get(ctx, keyPrefix+fmt.Sprintf(sessionFormat, id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not load session %s: %w", id, err)
	}
	var s Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("could not unmarshal session %s: %w", id, err)
	}
	return &s, nil
}

func (db *DB) DeleteSession(ctx context.Context, id string) error {
	return db.rdb.Del(ctx, keyPrefix+fmt.Sprintf(sessionFormat, id)).Err()
}

// SessionIDs lists live session ids.
func (db *DB) SessionIDs(ctx context.Context) ([]string, error) {
	var ids []string
	iter := db.rdb.Scan(ctx, 0, keyPrefix+fmt.Sprintf(sessionFormat, "*"), 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix+"session:"))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (db *DB) CountSessions(ctx context.Context) (int, error) {
	ids, err := db.SessionIDs(ctx)
	return len(ids), err
}

// SaveRating assigns the next rating id and stores r under it.
func (db *DB) SaveRating(ctx context.Context, r *Rating) (int64, error) {
	id, err := db.rdb.Incr(ctx, keyPrefix+ratingSeqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("could not allocate rating id: %w", err)
	}
	r.ID = id
	data, err := json.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("could not marshal rating: %w", err)
	}
	if err := db.rdb.Set(ctx, keyPrefix+fmt.Sprintf(ratingFormat, id), data, 0).Err(); err != nil {
		return 0, fmt.Errorf("could not save rating %d: %w", id, err)
	}
	return id, nil
}

func (db *DB) LoadRating(ctx context.Context, id int64) (*Rating, error) {
	data, err := db.rdb.Get(ctx, keyPrefix+fmt.Sprintf(ratingFormat, id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not load rating %d: %w", id, err)
	}
	var r Rating
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("could not unmarshal rating %d: %w", id, err)
	}
	return &r, nil
}

// RatingCount is the number of ratings ever stored.
func (db *DB) RatingCount(ctx context.Context) (int64, error) {
	v, err := db.rdb.Get(ctx, keyPrefix+ratingSeqKey).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

// AddLog pushes a log line, keeping only the newest entries.
func (db *DB) AddLog(ctx context.Context, line string) error {
	pipe := db.rdb.Pipeline()
	pipe.LPush(ctx, keyPrefix+logsKey, line)
	pipe.LTrim(ctx, keyPrefix+logsKey, 0, maxLogs-1)
	_, err := pipe.Exec(ctx)
	return err
}

// Logs returns up to n of the newest log lines, newest first.
func (db *DB) Logs(ctx context.Context, n int64) ([]string, error) {
	return db.rdb.LRange(ctx, keyPrefix+logsKey, 0, n-1).Result()
}

// Clear deletes every key this service owns.
func (db *DB) Clear(ctx context.Context) (int64, error) {
	var keys []string
	iter := db.rdb.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	return db.rdb.Del(ctx, keys...).Result()
}
