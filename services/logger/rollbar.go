package logsvc

import (
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/cohortly/lms/core"
)

// RollbarLogger reports to Rollbar and writes every entry locally through zap.
type RollbarLogger struct {
	local *zap.SugaredLogger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(local *zap.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{local: local.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// NewLocalLogger builds the zap logger backing RollbarLogger: human readable in debug, JSON otherwise.
func NewLocalLogger(conf *core.Config) (*zap.Logger, error) {
	if conf.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Sync flushes the local sink and waits for Rollbar to drain its queue.
func (l RollbarLogger) Sync() {
	rollbar.Wait()
	_ = l.local.Sync()
}

// expected fmt: msg | error, map[string]interface{}, core.Identity
func (l RollbarLogger) prepare(msg string, args []interface{}) (rbArgs []interface{}, fields []interface{}) {
	var idSet bool
	rbArgs = make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case core.Identity:
			if !idSet { // only set one identity
				rollbar.SetPerson(a.ID, a.Email, a.Email)
				fields = append(fields, "user_id", a.ID, "role", a.Role)
				idSet = true
			}
		case error:
			rbArgs = append(rbArgs, a)
			fields = append(fields, zap.Error(a))
		case map[string]interface{}:
			rbArgs = append(rbArgs, a)
			for k, v := range a {
				fields = append(fields, k, v)
			}
		default:
			rbArgs = append(rbArgs, a)
			fields = append(fields, zap.Any("extra", a))
		}
	}
	if !idSet {
		rollbar.ClearPerson()
	}
	return rbArgs, fields
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Debug(rbArgs...)
	l.local.Debugw(msg, fields...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Info(rbArgs...)
	l.local.Infow(msg, fields...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Warning(rbArgs...)
	l.local.Warnw(msg, fields...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Error(rbArgs...)
	l.local.Errorw(msg, fields...)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Critical(rbArgs...)
	rollbar.Wait()
	l.local.Fatalw(msg, fields...)
}
