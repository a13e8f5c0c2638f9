package calculation

import (
	"fmt"

	"github.com/rgehrsitz/lrcm/internal/domain"
)

// Logger receives engine progress and diagnostics
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Warnf(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}

// recorder collects the diagnostics of one run and mirrors them to the logger
type recorder struct {
	logger Logger
	key    string
	diags  domain.Diagnostics
}

func newRecorder(logger Logger, key string) *recorder {
	if logger == nil {
		logger = NopLogger{}
	}
	return &recorder{logger: logger, key: key}
}

func (r *recorder) note(kind domain.ErrorKind, month, format string, args ...any) {
	d := domain.Diagnostic{
		Kind:    kind,
		Month:   month,
		Key:     r.key,
		Message: fmt.Sprintf(format, args...),
	}
	r.diags = append(r.diags, d)
	r.logger.Warnf("%s", d.String())
}

func (r *recorder) diagnostics() domain.Diagnostics {
	out := make(domain.Diagnostics, len(r.diags))
	copy(out, r.diags)
	return out
}
