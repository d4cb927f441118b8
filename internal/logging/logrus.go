package logging

import (
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Setter mutates the shared root logger.
type Setter func(*logrus.Logger) error

var root = struct {
	logger *logrus.Logger
	mutex  *sync.Mutex
}{
	logger: func() *logrus.Logger {
		l := logrus.New()
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		return l
	}(),
	mutex: &sync.Mutex{},
}

// Logger is the leveled, field-carrying logger handed to every component.
type Logger interface {
	logrus.FieldLogger
}

// New returns a logger tagged with the component name.
func New(component string, setters ...Setter) Logger {
	for _, setter := range setters {
		_ = Set(setter)
	}
	return root.logger.WithField("component", component)
}

// Set applies setter to the root logger.
func Set(setter Setter) error {
	root.mutex.Lock()
	err := setter(root.logger)
	root.mutex.Unlock()
	return err
}

// Level parses lvl and returns a Setter for it. Surrounding whitespace is
// ignored like for every other variable. An empty level keeps info. An
// unknown level is reported and info is used instead.
func Level(lvl string) Setter {
	lvl = strings.TrimSpace(lvl)
	if lvl == "" {
		return func(r *logrus.Logger) error {
			r.SetLevel(logrus.InfoLevel)
			return nil
		}
	}
	l, err := logrus.ParseLevel(lvl)
	if err != nil {
		root.logger.WithError(err).Warnf("unable to parse log level %q, using info", lvl)
		l = logrus.InfoLevel
	}
	return func(r *logrus.Logger) error {
		r.SetLevel(l)
		return nil
	}
}

// Output redirects the root logger, mostly for tests.
func Output(w io.Writer) Setter {
	return func(r *logrus.Logger) error {
		r.SetOutput(w)
		return nil
	}
}
