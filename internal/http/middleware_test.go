package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestParamsMiddleware_VerboseIsScopedToRequest(t *testing.T) {
	original := log.GetLevel()
	log.SetLevel(log.InfoLevel)
	defer log.SetLevel(original)

	var requestLevel, globalLevel log.Level
	var dryRun bool
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestLevel = loggerFromContext(r).GetLevel()
		globalLevel = log.GetLevel()
		dryRun = isDryRunFromContext(r)
	}), paramsMiddleware)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/rankings?group=C1&verbose=true&dry_run=true", nil))
	assert.Equal(t, log.DebugLevel, requestLevel)
	assert.Equal(t, log.InfoLevel, globalLevel, "verbose must not touch the global logger")
	assert.True(t, dryRun)
	assert.Equal(t, log.InfoLevel, log.GetLevel())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/rankings?group=C1", nil))
	assert.Equal(t, log.InfoLevel, requestLevel)
	assert.False(t, dryRun)
}

func TestLoggerFromContext_DefaultsOutsideMiddleware(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	assert.Same(t, log.Default(), loggerFromContext(r))
}
