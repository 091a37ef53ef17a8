// Package cli holds the exit-code taxonomy (§6) and the small amount of
// bootstrap every cmd/ driver repeats: building a Handle rooted at
// --root, loading login.defs, and opening the audit logger. Kept as an
// internal package because its shape is a driver convenience, not part
// of the engine's public surface.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shadow-maint/shadow-sub001/accountdb"
	"github.com/shadow-maint/shadow-sub001/acctlog"
	"github.com/shadow-maint/shadow-sub001/logindefs"
)

// Exit codes per §6.
const (
	Success         = 0
	NoPerm          = 1
	Usage           = 2
	BadArg          = 3
	UIDInUse        = 4
	PasswdNotFound  = 14
	ShadowNotFound  = 15
	GroupNotFound   = 16
	GShadowNotFound = 17
	LockBusyExit    = 10
)

// ExitCodeFor maps an engine error to its §6 exit code. A nil error maps
// to Success; an error this package doesn't recognize maps to a generic
// failure code (1).
func ExitCodeFor(err error) int {
	if err == nil {
		return Success
	}
	var e *accountdb.Error
	if !errors.As(err, &e) {
		return NoPerm
	}
	switch e.Kind {
	case accountdb.KindLockBusy:
		return LockBusyExit
	case accountdb.KindLockPerm:
		return NoPerm
	case accountdb.KindNotFound:
		switch {
		case strings.HasSuffix(e.Table, accountdb.DefaultPasswdPath):
			return PasswdNotFound
		case strings.HasSuffix(e.Table, accountdb.DefaultShadowPath):
			return ShadowNotFound
		case strings.HasSuffix(e.Table, accountdb.DefaultGroupPath):
			return GroupNotFound
		case strings.HasSuffix(e.Table, accountdb.DefaultGShadowPath):
			return GShadowNotFound
		default:
			return BadArg
		}
	case accountdb.KindConstraint:
		return BadArg
	default:
		return NoPerm
	}
}

// Die prints err to stderr, prefixed by prog, and exits with the code
// ExitCodeFor derives from err.
func Die(prog string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", prog, err)
	os.Exit(ExitCodeFor(err))
}

// Env bundles the bootstrap every driver needs: a Handle rooted at
// --root, the parsed login.defs policy, and the audit logger.
type Env struct {
	Handle *accountdb.Handle
	Defs   *logindefs.Config
	Log    *acctlog.Logger
}

// Bootstrap wires up an Env for prog, rooted at root ("" for the real
// /etc files). login.defs is read from root+"/etc/login.defs"; a missing
// file is not an error (logindefs applies its compiled-in defaults).
func Bootstrap(prog, root string) (*Env, error) {
	defs, err := logindefs.Load(root + "/etc/login.defs")
	if err != nil {
		return nil, fmt.Errorf("%s: loading login.defs: %w", prog, err)
	}
	defs.LoadEnvOverride(os.Getenv)
	h := accountdb.NewHandle()
	if root != "" {
		h.SetRoot(root)
	}

	logCfg, err := acctlog.LoadConfig(root + acctlog.DefaultConfigPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: loading %s: %w", prog, acctlog.DefaultConfigPath, err)
		}
		logCfg = &acctlog.EngineConfig{}
	}
	log, err := acctlog.Open(logCfg, prog)
	if err != nil {
		return nil, fmt.Errorf("%s: opening audit log: %w", prog, err)
	}
	return &Env{Handle: h, Defs: defs, Log: log}, nil
}
