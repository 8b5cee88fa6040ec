package requests

import (
	"testing"

	"github.com/please-build/js-build-core/internal/config"
	"github.com/please-build/js-build-core/internal/diag"
	"github.com/please-build/js-build-core/internal/plugins"
)

type noopReporter struct{}

func (noopReporter) ReportDiagnostic(diag.Diagnostic) {}
func (noopReporter) ReportProgress(string)            {}

func newTestRegistry(t *testing.T) *plugins.Registry {
	t.Helper()
	reg, err := plugins.New(&config.RC{Bundler: "default", Namers: []string{"namer"}, Resolvers: []string{"resolver"}})
	if err != nil {
		t.Fatalf("plugins.New() error: %v", err)
	}
	return reg
}
