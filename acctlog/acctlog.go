// Package acctlog is the engine's logging sink — design note §9 names it
// as the one process-global singleton the handle pattern still permits —
// and the audit-sink external collaborator of §6. Both are adapted from
// ingest/log's Logger: RFC5424-framed structured output via
// crewjam/rfc5424, one or more io.WriteCloser destinations, and a level
// filter, trimmed to what an administrative verb actually emits.
package acctlog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
	"github.com/google/uuid"
)

type Level int

const (
	OFF Level = iota
	DEBUG
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case OFF:
		return "OFF"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) priority() rfc5424.Priority {
	switch l {
	case DEBUG:
		return rfc5424.User | rfc5424.Debug
	case INFO:
		return rfc5424.User | rfc5424.Info
	case WARN:
		return rfc5424.User | rfc5424.Warning
	case ERROR:
		return rfc5424.User | rfc5424.Error
	default:
		return rfc5424.User | rfc5424.Debug
	}
}

var ErrNotOpen = errors.New("acctlog: logger is not open")

// Logger is the engine's one process-global logging sink. The CLI
// drivers construct a single Logger at startup and thread it through the
// Handle's callers; it is safe for concurrent use only insofar as the
// engine itself is single-threaded per process (§5) — the mutex guards
// against a driver's own incidental goroutines (e.g. the editor's signal
// handling), not cross-process access.
type Logger struct {
	mtx        sync.Mutex
	wtrs       []io.WriteCloser
	lvl        Level
	hostname   string
	appname    string
	instanceID string
	open       bool
}

// New wires a Logger to wtr at level INFO, tagged with appname for the
// RFC5424 APP-NAME field (conventionally the CLI verb's own name, e.g.
// "useradd"). Every Logger is stamped with a fresh instance UUID, so log
// lines from concurrent invocations of the same verb can be correlated
// back to a single process run downstream — the same per-run UUID the
// teacher stamps into an ingester's config on first use, generated here
// instead of persisted since the engine has no config file of its own
// to write it back into.
func New(wtr io.WriteCloser, appname string) *Logger {
	host, _ := os.Hostname()
	return &Logger{wtrs: []io.WriteCloser{wtr}, lvl: INFO, hostname: host, appname: appname, instanceID: uuid.New().String(), open: true}
}

// NewFile opens (creating if absent, appending otherwise) a log file at
// path, matching ingest/log's NewFile convention.
func NewFile(path, appname string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	return New(f, appname), nil
}

// Discard returns a Logger that drops every entry (used by tests).
func Discard(appname string) *Logger {
	return New(discardCloser{}, appname)
}

func (l *Logger) SetLevel(lvl Level) { l.mtx.Lock(); l.lvl = lvl; l.mtx.Unlock() }

func (l *Logger) Close() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if !l.open {
		return ErrNotOpen
	}
	l.open = false
	var err error
	for _, w := range l.wtrs {
		if cerr := w.Close(); cerr != nil {
			err = cerr
		}
	}
	return err
}

func (l *Logger) Debugf(f string, args ...interface{}) { l.output(DEBUG, fmt.Sprintf(f, args...)) }
func (l *Logger) Infof(f string, args ...interface{})  { l.output(INFO, fmt.Sprintf(f, args...)) }
func (l *Logger) Warnf(f string, args ...interface{})  { l.output(WARN, fmt.Sprintf(f, args...)) }
func (l *Logger) Errorf(f string, args ...interface{}) { l.output(ERROR, fmt.Sprintf(f, args...)) }

// Audit implements the §6 external collaborator interface
// log(event, subject_name, subject_id, outcome, free_text), recorded as
// RFC5424 structured data so a syslog relay downstream can filter on the
// individual fields rather than scraping free text.
func (l *Logger) Audit(event, subjectName string, subjectID int64, outcome, freeText string) {
	msg := fmt.Sprintf("%s %s outcome=%s", event, subjectName, outcome)
	if freeText != "" {
		msg += ": " + freeText
	}
	l.outputSD(INFO, "acct", msg,
		rfc5424.SDParam{Name: "event", Value: event},
		rfc5424.SDParam{Name: "subject", Value: subjectName},
		rfc5424.SDParam{Name: "subject_id", Value: fmt.Sprintf("%d", subjectID)},
		rfc5424.SDParam{Name: "outcome", Value: outcome},
	)
}

func (l *Logger) output(lvl Level, msg string) { l.outputSD(lvl, "", msg) }

func (l *Logger) outputSD(lvl Level, msgid, msg string, sds ...rfc5424.SDParam) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if !l.open || lvl < l.lvl || l.lvl == OFF {
		return
	}
	m := rfc5424.Message{
		Priority:  lvl.priority(),
		Timestamp: time.Now(),
		Hostname:  trim(255, l.hostname),
		AppName:   trim(48, l.appname),
		MessageID: trim(32, msgid),
		Message:   []byte(msg),
	}
	sds = append(sds, rfc5424.SDParam{Name: "instance", Value: l.instanceID})
	m.StructuredData = []rfc5424.StructuredData{{ID: "acctdb@1", Parameters: sds}}
	b, err := m.MarshalBinary()
	if err != nil {
		return
	}
	line := strings.TrimRight(string(b), "\n\r") + "\n"
	for _, w := range l.wtrs {
		io.WriteString(w, line)
	}
}

func trim(n int, s string) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

type discardCloser struct{}

func (discardCloser) Write(b []byte) (int, error) { return len(b), nil }
func (discardCloser) Close() error                { return nil }
