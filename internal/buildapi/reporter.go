package buildapi

import (
	"sync"

	"go.uber.org/zap"

	"github.com/please-build/js-build-core/internal/diag"
)

// compositeReporter fans every tracker event out to the session's zap
// logger (so `--log-level debug` surfaces scheduling/progress events the
// way the teacher's CLI prints progress to stderr) while also collecting
// diagnostics so Build can return them to its caller, per §4.G's
// "composite of every configured reporter plugin".
type compositeReporter struct {
	logger *zap.Logger

	mu          sync.Mutex
	diagnostics []diag.Diagnostic
}

func newCompositeReporter(logger *zap.Logger) *compositeReporter {
	return &compositeReporter{logger: logger}
}

func (r *compositeReporter) ReportDiagnostic(d diag.Diagnostic) {
	r.mu.Lock()
	r.diagnostics = append(r.diagnostics, d)
	r.mu.Unlock()

	switch d.Severity {
	case diag.Warning:
		r.logger.Warn(d.Message, zap.String("origin", d.Origin))
	case diag.Info:
		r.logger.Info(d.Message, zap.String("origin", d.Origin))
	default:
		r.logger.Error(d.Message, zap.String("origin", d.Origin))
	}
}

func (r *compositeReporter) ReportProgress(message string) {
	r.logger.Debug(message)
}

// drain returns and clears the diagnostics collected since the last drain,
// so each Build call reports only its own run's diagnostics.
func (r *compositeReporter) drain() []diag.Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.diagnostics
	r.diagnostics = nil
	return out
}
