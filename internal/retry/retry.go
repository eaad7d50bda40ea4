// Package retry classifies package-installation failures and drives the
// bounded linear-backoff retry loop around transient ones.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Kind classifies an installation failure for retry decisions.
type Kind int

const (
	Transient Kind = iota // network-shaped; worth retrying
	Terminal              // permanent; fail immediately
	Unknown               // unclassified; treated as transient
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "TRANSIENT"
	case Terminal:
		return "TERMINAL"
	default:
		return "UNKNOWN"
	}
}

// terminalKeywords in backend output indicate failures a retry cannot fix.
var terminalKeywords = []string{
	"no matching distribution",
	"could not find a version",
	"not found",
	"invalid requirement",
	"permission denied",
	"no space left on device",
}

// transientKeywords indicate network-shaped failures.
var transientKeywords = []string{
	"connection reset",
	"connection refused",
	"connection aborted",
	"read timed out",
	"timed out",
	"temporary failure",
	"temporarily unavailable",
	"proxy error",
	"network is unreachable",
}

// Classify determines whether an installation attempt is worth retrying
// based on the process error, its exit code, whether the per-attempt
// timeout elapsed, and the combined output.
func Classify(err error, exitCode int, output string, timedOut bool) Kind {
	if timedOut || errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	if errors.Is(err, context.Canceled) {
		return Terminal
	}

	lower := strings.ToLower(output)

	// Terminal keywords win: "read timed out ... no matching distribution"
	// means the resolver gave up on the package, not the network.
	for _, kw := range terminalKeywords {
		if strings.Contains(lower, kw) {
			return Terminal
		}
	}
	for _, kw := range transientKeywords {
		if strings.Contains(lower, kw) {
			return Transient
		}
	}
	return Unknown
}

// Policy bounds the retry loop. Backoff is linear: the n-th wait is
// Delay + n*Step.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Step        time.Duration
}

// DefaultPolicy matches the documented installer defaults: three
// attempts with 2s, 4s waits between them.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 2 * time.Second, Step: 2 * time.Second}
}

func (p Policy) wait(attempt int) time.Duration {
	return p.Delay + time.Duration(attempt)*p.Step
}

// Do invokes attempt up to MaxAttempts times, at least once even when
// the policy's bound is zero or negative. The attempt func reports
// the failure kind alongside its error; Terminal stops the loop
// immediately, Transient and Unknown retry after the linear backoff.
// The last error is returned when every attempt fails. Context
// cancellation between attempts ends the loop with ctx.Err().
func (p Policy) Do(ctx context.Context, attempt func(n int) (Kind, error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for n := 0; n < attempts; n++ {
		kind, err := attempt(n)
		if err == nil {
			return nil
		}
		lastErr = err
		if kind == Terminal {
			return err
		}
		if n == attempts-1 {
			break
		}
		select {
		case <-time.After(p.wait(n)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
