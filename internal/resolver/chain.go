// Package resolver turns free text into an Intent or a list of troubleshooting
// steps by asking an ordered list of chat backends, falling back to fixed
// keyword rules when none of them produce a usable answer.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/suPer8Hu/helpdesk-triage/internal/ai"
)

var (
	ErrBackendTimeout       = errors.New("backend timed out")
	ErrAllBackendsExhausted = errors.New("all backends exhausted")
)

const (
	opIntent = "intent"
	opSteps  = "steps"
)

// Backend is one entry in the priority list. Local backends get the longer
// timeout.
type Backend struct {
	Name     string
	Local    bool
	Provider ai.Provider
}

type Options struct {
	RemoteTimeout time.Duration
	LocalTimeout  time.Duration
}

type Chain struct {
	backends []Backend
	opts     Options
	log      *slog.Logger
}

func NewChain(backends []Backend, opts Options, log *slog.Logger) *Chain {
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = 10 * time.Second
	}
	if opts.LocalTimeout <= 0 {
		opts.LocalTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Chain{backends: backends, opts: opts, log: log}
}

// NewChainFromRegistry builds backends in priority order. Names whose
// credentials are missing are skipped.
func NewChainFromRegistry(ctx context.Context, reg *ai.Registry, priority []string, opts Options, log *slog.Logger) *Chain {
	if log == nil {
		log = slog.Default()
	}
	backends := make([]Backend, 0, len(priority))
	for _, name := range priority {
		p, kind, err := reg.Get(ctx, name, "")
		if err != nil {
			if errors.Is(err, ai.ErrNotConfigured) {
				log.Info("backend not configured, skipping", "backend", name)
			} else {
				log.Warn("backend unavailable, skipping", "backend", name, "error", err)
			}
			continue
		}
		backends = append(backends, Backend{Name: name, Local: kind == ai.KindLocal, Provider: p})
	}
	return NewChain(backends, opts, log)
}

func (c *Chain) Backends() []string {
	names := make([]string, 0, len(c.backends))
	for _, b := range c.backends {
		names = append(names, b.Name)
	}
	return names
}

// ResolveIntent always returns a fully populated Intent.
func (c *Chain) ResolveIntent(ctx context.Context, text string) Intent {
	if in, ok := fastPathIntent(text); ok {
		return in
	}

	msgs := intentMessages(text)
	for _, b := range c.backends {
		in, err := c.tryIntent(ctx, b, msgs)
		if err != nil {
			c.log.Warn("intent attempt failed", "backend", b.Name, "error", err)
			continue
		}
		return in
	}

	fallbackTotal.WithLabelValues(opIntent).Inc()
	c.log.Info("using fallback intent", "reason", ErrAllBackendsExhausted, "backends", len(c.backends))
	return FallbackIntent(text)
}

func (c *Chain) tryIntent(ctx context.Context, b Backend, msgs []ai.Message) (Intent, error) {
	text, err := c.attempt(ctx, opIntent, b, msgs, ai.WithJSON())
	if err != nil {
		return Intent{}, err
	}
	m, err := parseObject(text)
	if err != nil {
		attemptsTotal.WithLabelValues(opIntent, b.Name, "parse_error").Inc()
		return Intent{}, fmt.Errorf("%s: %w", b.Name, err)
	}
	attemptsTotal.WithLabelValues(opIntent, b.Name, "ok").Inc()
	in := intentFromMap(m)
	in.Source = b.Name
	return in, nil
}

// ResolveSteps always returns exactly five formatted instructions.
// forceFallback skips the backends entirely.
func (c *Chain) ResolveSteps(ctx context.Context, description string, forceFallback bool) []string {
	if !forceFallback {
		msgs := stepsMessages(description)
		for _, b := range c.backends {
			steps, err := c.trySteps(ctx, b, msgs)
			if err != nil {
				c.log.Warn("steps attempt failed", "backend", b.Name, "error", err)
				continue
			}
			return formatSteps(steps)
		}
	}

	fallbackTotal.WithLabelValues(opSteps).Inc()
	return FallbackSteps(description)
}

func (c *Chain) trySteps(ctx context.Context, b Backend, msgs []ai.Message) ([]Step, error) {
	text, err := c.attempt(ctx, opSteps, b, msgs)
	if err != nil {
		return nil, err
	}
	arr, err := parseArray(text)
	if err == nil {
		var steps []Step
		if steps, err = stepsFromArray(arr); err == nil {
			attemptsTotal.WithLabelValues(opSteps, b.Name, "ok").Inc()
			return steps, nil
		}
	}
	attemptsTotal.WithLabelValues(opSteps, b.Name, "parse_error").Inc()
	return nil, fmt.Errorf("%s: %w", b.Name, err)
}

type attemptResult struct {
	text string
	err  error
}

// attempt races one backend call against its timeout. A result that arrives
// after the deadline lands in the buffered channel and is dropped.
func (c *Chain) attempt(ctx context.Context, op string, b Backend, msgs []ai.Message, opts ...ai.ChatOption) (string, error) {
	timeout := c.opts.RemoteTimeout
	if b.Local {
		timeout = c.opts.LocalTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() { attemptSeconds.WithLabelValues(op, b.Name).Observe(time.Since(start).Seconds()) }()

	done := make(chan attemptResult, 1)
	go func() {
		text, err := b.Provider.Chat(actx, msgs, opts...)
		done <- attemptResult{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			attemptsTotal.WithLabelValues(op, b.Name, "error").Inc()
			return "", fmt.Errorf("%s: %w", b.Name, r.err)
		}
		return r.text, nil
	case <-actx.Done():
		attemptsTotal.WithLabelValues(op, b.Name, "timeout").Inc()
		return "", fmt.Errorf("%s after %s: %w", b.Name, timeout, ErrBackendTimeout)
	}
}
