package core

// Logger is implemented by every log sink of the app.
// args may contain errors, maps of extra data and the acting Identity.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Identity is the authenticated caller, as far as logs are concerned.
type Identity struct {
	ID    string
	Email string
	Role  string
}

type nopLogger struct{}

// NopLogger discards everything. Handy in tests.
func NopLogger() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
