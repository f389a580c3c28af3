package logging

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

//ServiceName is attached to every log entry
const ServiceName = "dispenser-registry"

//Logger interface that allows abstracting away the concrete logger implementation we are using
type Logger interface {
	Debugf(format string, args ...interface{})
	//Fatal causes the application to terminate with the given error message
	Fatal(args ...interface{})
	//Fatalf causes the application to terminate with the given error message
	Fatalf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

//NewLogger instantiates a new JSON logger at INFO level that writes to stderr
func NewLogger() Logger {
	return newLogger(os.Stderr, log.InfoLevel)
}

//NewLoggerWithLevel instantiates a new logger that drops messages below the named level.
//An unknown level is reported and INFO is used instead.
func NewLoggerWithLevel(level string) Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		l := NewLogger()
		l.Warnf("Unknown log level %q, using info", level)
		return l
	}

	return newLogger(os.Stderr, lvl)
}

func newLogger(out io.Writer, level log.Level) *logger {
	impl := log.New()
	impl.SetOutput(out)
	impl.SetFormatter(&log.JSONFormatter{})
	impl.SetLevel(level)

	return &logger{entry: impl.WithField("service", ServiceName)}
}

type logger struct {
	entry *log.Entry
}

func (l *logger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *logger) Error(args ...interface{}) {
	l.entry.Error(args...)
}

func (l *logger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

func (l *logger) Fatal(args ...interface{}) {
	l.entry.Fatal(args...)
}

func (l *logger) Fatalf(format string, args ...interface{}) {
	l.entry.Fatalf(format, args...)
}

func (l *logger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *logger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}
