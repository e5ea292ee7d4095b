package speech

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Console reads transcripts from lines of text and speaks by printing. It
// stands in for the microphone and speaker in text mode.
type Console struct {
	in  io.Reader
	out io.Writer

	start sync.Once

	mu   sync.Mutex
	cond *sync.Cond
	slot *slot
	eof  bool

	// sendMu is held while a line is offered to a slot, so a slot is never
	// closed mid-send.
	sendMu sync.Mutex
	outMu  sync.Mutex
}

type slot struct {
	ctx  context.Context
	ch   chan Transcript
	once sync.Once
}

func (s *slot) close() { s.once.Do(func() { close(s.ch) }) }

// NewConsole returns a console adapter over in and out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{in: in, out: out}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Listen delivers input lines as transcripts until ctx is done or the input
// ends. Input is read by one goroutine shared by every call, so a line that
// arrives while nobody listens waits for the next Listen.
func (c *Console) Listen(ctx context.Context, lang string) (<-chan Transcript, error) {
	s := &slot{ctx: ctx, ch: make(chan Transcript)}

	c.mu.Lock()
	if c.eof {
		c.mu.Unlock()
		s.close()
		return s.ch, nil
	}
	c.slot = s
	c.cond.Broadcast()
	c.mu.Unlock()

	c.start.Do(func() { go c.pump() })

	go func() {
		<-ctx.Done()
		c.release(s)
		c.sendMu.Lock()
		s.close()
		c.sendMu.Unlock()
	}()
	return s.ch, nil
}

func (c *Console) release(s *slot) {
	c.mu.Lock()
	if c.slot == s {
		c.slot = nil
	}
	c.mu.Unlock()
}

func (c *Console) pump() {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			c.deliver(Transcript{Text: line, Timestamp: time.Now()})
		}
	}

	c.mu.Lock()
	c.eof = true
	s := c.slot
	c.slot = nil
	c.mu.Unlock()
	if s != nil {
		c.sendMu.Lock()
		s.close()
		c.sendMu.Unlock()
	}
}

func (c *Console) deliver(t Transcript) {
	for {
		c.mu.Lock()
		for c.slot == nil {
			c.cond.Wait()
		}
		s := c.slot
		c.mu.Unlock()

		sent := false
		c.sendMu.Lock()
		if s.ctx.Err() != nil {
			c.sendMu.Unlock()
			c.release(s)
			continue
		}
		select {
		case s.ch <- t:
			sent = true
		case <-s.ctx.Done():
		}
		c.sendMu.Unlock()
		if sent {
			return
		}
		c.release(s)
	}
}

// Speak prints "[voice] <text>".
func (c *Console) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, err := fmt.Fprintf(c.out, "[voice] %s\n", text)
	return err
}

// Request always succeeds.
func (c *Console) Request(context.Context) error { return nil }
