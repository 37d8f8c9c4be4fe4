package core

import (
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var once sync.Once

type logger struct {
	*log.Logger

	mu   sync.Mutex
	subs map[string]*log.Logger
}

var singleton *logger

func getLogger() *logger {
	once.Do(
		func() {
			l := log.NewWithOptions(os.Stderr, log.Options{
				ReportCaller:    true,
				ReportTimestamp: true,
				TimeFormat:      time.RFC3339,
				Prefix:          "Exec ⚙️ ",
			})
			l.SetLevel(log.InfoLevel)
			singleton = &logger{Logger: l, subs: make(map[string]*log.Logger)}
		})
	return singleton
}

// SetLogLevel changes the level of the engine logger. Unknown names fall back to info.
func SetLogLevel(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		getLogger().Warnf("unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	l := getLogger()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.SetLevel(lvl)
	for _, sub := range l.subs {
		sub.SetLevel(lvl)
	}
}

// LogWith returns the sub-logger for prefix. It shares the engine logger's
// output and follows its level.
func LogWith(prefix string) *log.Logger {
	l := getLogger()
	l.mu.Lock()
	defer l.mu.Unlock()
	sub, ok := l.subs[prefix]
	if !ok {
		sub = l.WithPrefix(prefix)
		l.subs[prefix] = sub
	}
	return sub
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	getLogger().Fatalf(msg, args...)
}
