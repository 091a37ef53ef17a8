package acctlog

import (
	"os"

	"github.com/shadow-maint/shadow-sub001/config"
)

// DefaultConfigPath is the conventional absolute path for the
// engine-operations file, rooted the same way accountdb.DefaultPasswdPath
// and friends are.
const DefaultConfigPath = "/etc/acctdb.conf"

// EngineConfig is the engine-operations file (distinct from the
// login.defs-style policy file handled by package logindefs): where the
// audit sink writes and at what level. It is section-structured, so it
// is parsed with the teacher's gcfg-backed loader rather than
// logindefs's flat grammar.
//
//	[global]
//	LogLevel = INFO
//	AuditFile = /var/log/acctdb/audit.log
type EngineConfig struct {
	Global struct {
		LogLevel  string
		AuditFile string
	}
}

// LoadConfig reads path via config.LoadConfigFile (gcfg under the hood)
// and returns the typed sections. Errors: the os error if the file cannot
// be opened, ErrConfigFileTooLarge if it is oversized, ErrFailedFileRead
// on a short read, and gcfg's parse error if it is malformed.
func LoadConfig(path string) (*EngineConfig, error) {
	var c EngineConfig
	if err := config.LoadConfigFile(&c, path); err != nil {
		return nil, err
	}
	return &c, nil
}

// Open builds a Logger from a parsed EngineConfig, defaulting to stderr
// at INFO when AuditFile/LogLevel are unset.
func Open(c *EngineConfig, appname string) (*Logger, error) {
	path := c.Global.AuditFile
	if path == "" {
		l := New(nopCloser{os.Stderr}, appname)
		applyLevel(l, c.Global.LogLevel)
		return l, nil
	}
	l, err := NewFile(path, appname)
	if err != nil {
		return nil, err
	}
	applyLevel(l, c.Global.LogLevel)
	return l, nil
}

func applyLevel(l *Logger, s string) {
	switch s {
	case "DEBUG":
		l.SetLevel(DEBUG)
	case "WARN":
		l.SetLevel(WARN)
	case "ERROR":
		l.SetLevel(ERROR)
	case "OFF":
		l.SetLevel(OFF)
	default:
		l.SetLevel(INFO)
	}
}

// nopCloser adapts os.Stderr (which must not be closed) to io.WriteCloser.
type nopCloser struct{ *os.File }

func (nopCloser) Close() error { return nil }
