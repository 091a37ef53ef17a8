// Command pwconv implements the §6 pwconv/pwunconv verb pair: Expand a
// passwd-only database into shadow form, or Collapse a shadowed one back
// down. Invoked as pwconv it expands; pass -u (or invoke it as
// pwunconv, via a symlink) to collapse instead.
package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shadow-maint/shadow-sub001/accountdb"
	"github.com/shadow-maint/shadow-sub001/accountdb/convert"
	"github.com/shadow-maint/shadow-sub001/internal/cli"
)

var (
	root      = flag.String("root", "", "operate on an alternate root directory")
	unconvert = flag.Bool("u", false, "collapse the shadow database back into passwd (pwunconv)")
)

func main() {
	flag.Parse()

	prog := "pwconv"
	collapse := *unconvert
	if strings.HasSuffix(filepath.Base(os.Args[0]), "unconv") {
		prog = "pwunconv"
		collapse = true
	}

	env, err := cli.Bootstrap(prog, *root)
	if err != nil {
		cli.Die(prog, err)
	}
	h := env.Handle

	if err := h.LockAll(h.Passwd, h.Shadow); err != nil {
		cli.Die(prog, err)
	}
	die := func(err error) {
		h.UnlockAll(h.Passwd, h.Shadow)
		cli.Die(prog, err)
	}
	if err := h.Passwd.Open(accountdb.ReadWrite); err != nil {
		die(err)
	}
	if err := h.Shadow.Open(accountdb.ReadWrite); err != nil {
		die(err)
	}

	if collapse {
		if err := convert.Collapse(h); err != nil {
			die(err)
		}
	} else {
		min, _ := env.Defs.Int64("PASS_MIN_DAYS")
		max, _ := env.Defs.Int64("PASS_MAX_DAYS")
		warn, _ := env.Defs.Int64("PASS_WARN_AGE")
		d := convert.Defaults{
			Today: time.Now().Unix() / 86400,
			Min:   min, Max: max, Warn: warn,
		}
		if err := convert.Expand(h, d); err != nil {
			die(err)
		}
	}

	if err := h.Passwd.Close(); err != nil {
		die(err)
	}
	if err := h.Shadow.Close(); err != nil {
		die(err)
	}
	h.UnlockAll(h.Passwd, h.Shadow)

	env.Log.Audit(prog, "*", 0, "ok", "")
	os.Exit(cli.Success)
}
