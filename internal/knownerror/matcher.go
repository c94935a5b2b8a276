// Package knownerror implements a regex-driven fault classifier: given a
// failure message, find the highest-priority KnownError whose pattern
// matches, used to populate Incident metadata and decide whether an
// auto-retry is warranted.
package knownerror

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/deptops/batchops/internal/domain"
	"github.com/deptops/batchops/internal/repository"
)

// linearBackoffBase, linearBackoffCeiling bound the auto-retry backoff
// formula: attempt * 30s, floored at 30s, ceilinged at 10 minutes.
const (
	linearBackoffBase    = 30 * time.Second
	linearBackoffCeiling = 10 * time.Minute
)

// compiled pairs one KnownError with its compiled pattern, ordered by
// priority (lowest id / earliest created first).
type compiled struct {
	rule *domain.KnownError
	re   *regexp.Regexp
}

// Matcher holds the compiled rule set. It is rebuilt (via Load) whenever
// the caller wants to pick up new/changed rules; the core never writes
// KnownError rows itself (they're authored through the out-of-scope
// admin surface).
type Matcher struct {
	repo  repository.KnownErrorRepository
	rules []compiled
}

func NewMatcher(repo repository.KnownErrorRepository) *Matcher {
	return &Matcher{repo: repo}
}

// Load (re)compiles the rule set from the repository's priority order.
// Invalid regex patterns are skipped rather than failing the whole load —
// a single bad rule authored through the admin surface should not take
// down fault classification for every other rule.
func (m *Matcher) Load(ctx context.Context) error {
	rules, err := m.repo.ListOrdered(ctx)
	if err != nil {
		return fmt.Errorf("load known errors: %w", err)
	}

	compiledRules := make([]compiled, 0, len(rules))
	for _, rule := range rules {
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			continue
		}
		compiledRules = append(compiledRules, compiled{rule: rule, re: re})
	}

	m.rules = compiledRules
	return nil
}

// Match returns the highest-priority KnownError whose pattern matches
// errMsg, or nil if none match. Patterns match case-insensitively and
// anywhere in errMsg.
func (m *Matcher) Match(errMsg string) *domain.KnownError {
	for _, c := range m.rules {
		if c.re.MatchString(errMsg) {
			return c.rule
		}
	}
	return nil
}

// RetryDelay computes the linear backoff delay for the given 1-indexed
// attempt number.
func RetryDelay(attempt int) time.Duration {
	delay := linearBackoffBase * time.Duration(attempt)
	if delay < linearBackoffBase {
		delay = linearBackoffBase
	}
	if delay > linearBackoffCeiling {
		delay = linearBackoffCeiling
	}
	return delay
}
