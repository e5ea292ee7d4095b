package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

const discordMessageLimit = 1900

var (
	mu           sync.RWMutex
	session      *discordgo.Session
	logChannelID string
	console      io.Writer = os.Stdout
)

func init() {
	log.SetOutput(&mirrorWriter{})
	log.SetFlags(log.LstdFlags)
}

// Init mirrors every log line to a Discord channel. It returns a function
// that stops mirroring and closes the session.
func Init(token, channelID string) (func(), error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("could not create discord session: %w", err)
	}
	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("could not open discord session: %w", err)
	}
	attach(s, channelID)
	return func() {
		attach(nil, "")
		s.Close()
	}, nil
}

func attach(s *discordgo.Session, channelID string) {
	mu.Lock()
	session = s
	logChannelID = channelID
	mu.Unlock()
}

// SetOutput changes where console output goes.
func SetOutput(w io.Writer) {
	mu.Lock()
	console = w
	mu.Unlock()
}

// Post sends a message to the log channel
func Post(msg string) {
	mu.RLock()
	s, channel := session, logChannelID
	mu.RUnlock()
	if s != nil && channel != "" {
		if _, err := s.ChannelMessageSend(channel, msg); err != nil {
			fmt.Fprintf(os.Stderr, "could not mirror log to discord: %v\n", err)
		}
	}
}

// Printf logs an informational line.
func Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// Error logs an error with the caller's file and line.
func Error(context string, err error) {
	_, file, line, ok := runtime.Caller(1)
	var callerInfo string
	if ok {
		parts := strings.Split(file, "/")
		if len(parts) > 2 {
			file = strings.Join(parts[len(parts)-2:], "/")
		}
		callerInfo = fmt.Sprintf("%s:%d", file, line)
	}

	log.Printf("[ERROR] in %s: %s\n%v\n", callerInfo, context, err)
}

// Fatal logs an error and then exits the program.
func Fatal(context string, err error) {
	Error(context, err)
	os.Exit(1)
}

// mirrorWriter writes to the console and, when attached, to Discord.
type mirrorWriter struct{}

func (w *mirrorWriter) Write(p []byte) (n int, err error) {
	mu.RLock()
	out := console
	mirrored := session != nil && logChannelID != ""
	mu.RUnlock()

	msg := string(p)
	fmt.Fprint(out, msg)
	if mirrored {
		// Discord rejects messages over 2000 characters.
		if len(msg) > discordMessageLimit {
			msg = msg[:discordMessageLimit] + "..."
		}
		Post("```\n" + msg + "```")
	}
	return len(p), nil
}
