package logsvc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/user"
)

func newObservedLogger(t *testing.T) (*RollbarLogger, *observer.ObservedLogs) {
	t.Helper()
	obsCore, logs := observer.New(zapcore.DebugLevel)
	return NewRollbarLogger(zap.New(obsCore), newTestConf()), logs
}

func newTestConf() *core.Config {
	conf := core.NewTestConfig()
	conf.RollbarToken = ""
	return conf
}

func TestRollbarLogger_Error(t *testing.T) {
	l, logs := newObservedLogger(t)
	usr := user.User{ID: "u1", Name: "Amina", Email: "amina@test.com"}
	err := errors.New("boom")

	l.Error("request failed", err, usr, map[string]interface{}{"path": "/api/bookings"})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		entry := entries[0]
		assert.Equal(t, "request failed", entry.Message)
		assert.Equal(t, zapcore.ErrorLevel, entry.Level)

		ctx := entry.ContextMap()
		assert.Equal(t, "u1", ctx["user_id"])
		assert.Equal(t, "boom", ctx["error"])
		assert.Equal(t, "/api/bookings", ctx["path"])
	}
}

func TestRollbarLogger_levels(t *testing.T) {
	l, logs := newObservedLogger(t)

	l.Debug("d")
	l.Info("i")
	l.Warn("w")

	levels := make([]zapcore.Level, 0)
	for _, e := range logs.All() {
		levels = append(levels, e.Level)
	}
	assert.Equal(t, []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel}, levels)
}

func TestNewZap(t *testing.T) {
	conf := newTestConf()
	zl, err := NewZap(conf)
	assert.NoError(t, err)
	assert.NotNil(t, zl)

	conf.TestMode = false
	conf.Debug = false
	zl, err = NewZap(conf)
	assert.NoError(t, err)
	assert.NotNil(t, zl)
}
