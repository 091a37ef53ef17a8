// Package batch implements the §4.K batch-ingest verb used by the
// newusers driver: read U-format lines from a
// reader, resolve or create the primary group and the user, hash the
// supplied cleartext, and update GECOS/home/shell — one Handle
// transaction per call, governed by a strict-vs-lenient abort Policy.
package batch

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shadow-maint/shadow-sub001/accountdb"
	"github.com/shadow-maint/shadow-sub001/accountdb/idalloc"
	"github.com/shadow-maint/shadow-sub001/accountdb/password"
)

// Policy controls what happens when a line fails to apply.
type Policy int

const (
	// Strict aborts the whole batch on the first error: no table
	// mutation made by this Run call is committed (the caller must not
	// call Handle.CloseAll after a Strict failure).
	Strict Policy = iota
	// Lenient commits every line that applied cleanly and reports the
	// rest in Result.Skipped.
	Lenient
)

// Options bundles the policy knobs and login.defs-derived defaults §4.K
// needs: allocation ranges, the configured hash method, the day-number
// clock, and the aging defaults stamped onto a freshly-created shadow
// record.
type Options struct {
	Policy Policy

	UIDRange idalloc.Range
	GIDRange idalloc.Range

	HashMethod password.Method
	HashParams password.Params
	// AlreadyHashed treats field 2 as an opaque stored hash instead of
	// cleartext to run through the hash facade.
	AlreadyHashed bool

	Today          int64
	Min, Max, Warn int64

	HomeMode os.FileMode
	// MakeHomeDir is the step-6 external collaborator: create the home
	// directory and chown it. A nil hook skips step 6 entirely (the
	// engine never manipulates the filesystem on its own account).
	MakeHomeDir func(path string, mode os.FileMode, uid, gid int64) error
}

// LineError records why one input line did not apply.
type LineError struct {
	Line int
	Raw  string
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Result reports how many lines applied and which were skipped.
type Result struct {
	Applied int
	Skipped []LineError
}

// Run consumes r line by line, applying each to h. Under Strict policy
// the first error stops processing and Run returns that error; the
// caller's Handle still has whatever partial in-memory edits were made
// before the failing line, so a Strict caller MUST NOT call CloseAll
// after an error — only UnlockAll, discarding the transaction. Under
// Lenient policy, Run always returns a nil error and reports failures
// in Result.Skipped; the caller commits the successful lines normally.
func Run(h *accountdb.Handle, r io.Reader, opt Options) (Result, error) {
	var res Result
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		if raw == "" {
			continue
		}
		if err := applyLine(h, raw, opt); err != nil {
			le := LineError{Line: lineNo, Raw: raw, Err: err}
			if opt.Policy == Strict {
				res.Skipped = append(res.Skipped, le)
				return res, le
			}
			res.Skipped = append(res.Skipped, le)
			continue
		}
		res.Applied++
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("batch: read: %w", err)
	}
	return res, nil
}

const lineFieldCount = 7

func applyLine(h *accountdb.Handle, raw string, opt Options) error {
	fields := strings.Split(raw, ":")
	if len(fields) != lineFieldCount {
		return fmt.Errorf("expected %d fields, got %d", lineFieldCount, len(fields))
	}
	name, pwField, uidField, gidField, gecos, home, shell := fields[0], fields[1], fields[2], fields[3], fields[4], fields[5], fields[6]
	if name == "" {
		return fmt.Errorf("empty name field")
	}
	if err := accountdb.ValidateName(name, false); err != nil {
		return err
	}

	var hintUID int64
	var haveHintUID bool
	if uidField != "" {
		v, err := strconv.ParseInt(uidField, 10, 64)
		if err != nil {
			return fmt.Errorf("uid field %q is not an integer", uidField)
		}
		hintUID, haveHintUID = v, true
	}

	gid, err := resolveGroup(h, gidField, hintUID, haveHintUID, opt)
	if err != nil {
		return fmt.Errorf("resolving group: %w", err)
	}

	u, uerr := h.Passwd.Locate(name)
	created := false
	if uerr != nil {
		uid, err := idalloc.Find(idalloc.Request{
			Range:       opt.UIDRange,
			HintID:      hintUID,
			HintGiven:   haveHintUID,
			DisallowDup: haveHintUID,
			Used:        h.Passwd.UsedUIDs(),
		})
		if err != nil {
			return fmt.Errorf("allocating uid: %w", err)
		}
		u = &accountdb.User{Name: name, UID: uid, GID: gid, Password: "x", Shell: "/bin/sh"}
		created = true
	}

	hash, err := resolveHash(pwField, opt)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	u.GID = gid
	if gecos != "" {
		u.Gecos = gecos
	}
	if home != "" {
		u.Home = home
	}
	if shell != "" {
		u.Shell = shell
	}
	u.Password = "x"
	if err := h.Passwd.Update(u); err != nil {
		return fmt.Errorf("updating passwd: %w", err)
	}

	s, serr := h.Shadow.Locate(name)
	if serr != nil {
		s = &accountdb.ShadowUser{Name: name, Min: opt.Min, Max: opt.Max, Warn: opt.Warn, Inact: -1, Expire: -1}
	}
	s.Hash = hash
	s.LastChg = opt.Today
	if err := h.Shadow.Update(s); err != nil {
		return fmt.Errorf("updating shadow: %w", err)
	}

	if created && opt.MakeHomeDir != nil && u.Home != "" {
		if _, statErr := os.Stat(u.Home); os.IsNotExist(statErr) {
			if err := opt.MakeHomeDir(u.Home, opt.HomeMode, u.UID, u.GID); err != nil {
				return fmt.Errorf("creating home directory: %w", err)
			}
		}
	}
	return nil
}

// resolveGroup implements §4.K step 2. The field is strictly a decimal
// GID or a group name: a
// partially-numeric field like "1abc" is treated as a name, not
// truncated the way a bare atoi would (bug-for-bug truncation is not
// preserved).
func resolveGroup(h *accountdb.Handle, field string, hintUID int64, haveHintUID bool, opt Options) (int64, error) {
	if field == "" {
		return 0, fmt.Errorf("empty group field")
	}
	if gid, err := strconv.ParseInt(field, 10, 64); err == nil {
		return gid, nil
	}
	if g, err := h.Group.Locate(field); err == nil {
		return g.GID, nil
	}
	gid, err := idalloc.Find(idalloc.Request{
		Range:       opt.GIDRange,
		HintID:      hintUID,
		HintGiven:   haveHintUID,
		DisallowDup: false,
		Used:        h.Group.UsedGIDs(),
	})
	if err != nil {
		return 0, fmt.Errorf("allocating gid: %w", err)
	}
	if err := h.Group.Update(&accountdb.Group{Name: field, Password: "x", GID: gid}); err != nil {
		return 0, err
	}
	return gid, nil
}

func resolveHash(pwField string, opt Options) (string, error) {
	if opt.AlreadyHashed || pwField == "" {
		return pwField, nil
	}
	return password.Hash(opt.HashMethod, pwField, opt.HashParams)
}
