// Package health summarizes the state of the host and the services the
// voice rating server depends on.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/EasterCompany/dex-voice-rating/system"
)

const (
	statusOK           = "ok"
	statusDegraded     = "degraded"
	cacheNotConfigured = "Not Configured"
	cacheOK            = "OK"
)

// Pinger is a cache connection that can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Counter reports the number of live sessions.
type Counter interface {
	CountSessions(ctx context.Context) (int, error)
}

// Report is the body of GET /status.
type Report struct {
	Status   string       `json:"status"`
	Cache    string       `json:"cache"`
	Sessions int          `json:"sessions"`
	System   system.Usage `json:"system"`
	Errors   []string     `json:"errors,omitempty"`
	Uptime   string       `json:"uptime"`
}

// Checker builds reports.
type Checker struct {
	cache   Pinger
	counter Counter
	started time.Time
	usage   func(ctx context.Context) (system.Usage, error)
}

// NewChecker returns a checker. cache and counter may be nil when Redis is
// not configured.
func NewChecker(cache Pinger, counter Counter) *Checker {
	return &Checker{cache: cache, counter: counter, started: time.Now(), usage: system.Read}
}

// GetCacheStatus checks and returns the status of the cache connection.
func GetCacheStatus(ctx context.Context, c Pinger) string {
	if c == nil {
		return cacheNotConfigured
	}
	if err := c.Ping(ctx); err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	return cacheOK
}

// Check gathers a report. A failing cache degrades the report; host
// readings that cannot be taken are listed but do not.
func (c *Checker) Check(ctx context.Context) Report {
	r := Report{
		Status: statusOK,
		Cache:  GetCacheStatus(ctx, c.cache),
		Uptime: time.Since(c.started).Round(time.Second).String(),
	}
	if r.Cache != cacheOK && r.Cache != cacheNotConfigured {
		r.Status = statusDegraded
	}
	if c.counter != nil && r.Cache == cacheOK {
		n, err := c.counter.CountSessions(ctx)
		if err != nil {
			r.Errors = append(r.Errors, fmt.Sprintf("sessions: %v", err))
		}
		r.Sessions = n
	}
	usage, err := c.usage(ctx)
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
	r.System = usage
	return r
}
