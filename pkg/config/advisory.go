package config

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrAdvisory marks promoted advisories so callers can test for them
// with errors.Is.
var ErrAdvisory = errors.New("advisory")

// Advisory reasons used across the repository.
const (
	AdvisoryUnknownExtension = "unknown_extension"
	AdvisoryOverwrite        = "overwrite"
	AdvisoryReregistration   = "reregistration"
)

// Advisory is a non-fatal warning. Depending on the endpoint's
// ErrorStrategy it is logged, raised, or dropped.
type Advisory struct {
	Reason string
	Detail string
}

func (a *Advisory) Error() string {
	return fmt.Sprintf("%s: %s", a.Reason, a.Detail)
}

// Unwrap supports errors.Is(err, ErrAdvisory).
func (a *Advisory) Unwrap() error { return ErrAdvisory }

// Advisef builds an Advisory with a formatted detail message.
func Advisef(reason, format string, args ...any) *Advisory {
	return &Advisory{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Advise routes an advisory through the given strategy. StrategyRaise
// returns the advisory as an error, StrategyLog emits a warning and
// returns nil, StrategyIgnore returns nil silently. Unknown strategies
// fall back to logging.
func Advise(logger zerolog.Logger, s ErrorStrategy, a *Advisory) error {
	switch s {
	case StrategyRaise:
		return a
	case StrategyIgnore:
		return nil
	default:
		logger.Warn().Str("reason", a.Reason).Msg(a.Detail)
		return nil
	}
}
