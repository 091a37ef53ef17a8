// Command newusers implements the §6/§4.K newusers verb: bulk-create or
// update accounts from colon-separated U-format lines on stdin (or a
// file), one accountdb/batch.Run transaction for the whole input.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shadow-maint/shadow-sub001/accountdb/batch"
	"github.com/shadow-maint/shadow-sub001/accountdb/idalloc"
	"github.com/shadow-maint/shadow-sub001/accountdb/password"
	"github.com/shadow-maint/shadow-sub001/internal/cli"
)

var (
	root   = flag.String("root", "", "operate on an alternate root directory")
	file   = flag.String("f", "", "read input from file instead of stdin")
	strict = flag.Bool("strict", true, "abort the whole batch on the first malformed line")
)

func main() {
	flag.Parse()

	env, err := cli.Bootstrap("newusers", *root)
	if err != nil {
		cli.Die("newusers", err)
	}
	h := env.Handle

	in := os.Stdin
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			cli.Die("newusers", err)
		}
		defer f.Close()
		in = f
	}

	if err := h.LockAll(h.Passwd, h.Shadow, h.Group, h.GShadow); err != nil {
		cli.Die("newusers", err)
	}
	die := func(err error) {
		h.UnlockAll(h.Passwd, h.Shadow, h.Group, h.GShadow)
		cli.Die("newusers", err)
	}
	if err := h.OpenAll(); err != nil {
		die(err)
	}

	method, err := password.ParseMethod(env.Defs.String("ENCRYPT_METHOD"))
	if err != nil {
		die(err)
	}
	uidLo, uidHi := env.Defs.UIDRange()
	gidLo, gidHi := env.Defs.GIDRange()
	minD, _ := env.Defs.Int64("PASS_MIN_DAYS")
	maxD, _ := env.Defs.Int64("PASS_MAX_DAYS")
	warnD, _ := env.Defs.Int64("PASS_WARN_AGE")

	policy := batch.Lenient
	if *strict {
		policy = batch.Strict
	}

	opt := batch.Options{
		Policy:    policy,
		UIDRange:  idalloc.Range{Min: uidLo, Max: uidHi},
		GIDRange:  idalloc.Range{Min: gidLo, Max: gidHi},
		HashMethod: method,
		Today:     time.Now().Unix() / 86400,
		Min:       minD, Max: maxD, Warn: warnD,
		HomeMode: env.Defs.FileMode("HOME_MODE", 0700),
		MakeHomeDir: func(path string, mode os.FileMode, uid, gid int64) error {
			if err := os.MkdirAll(path, mode); err != nil {
				return err
			}
			return os.Chown(path, int(uid), int(gid))
		},
	}

	res, err := batch.Run(h, in, opt)
	if err != nil {
		// Strict abort: discard the transaction, nothing committed.
		die(err)
	}

	if err := h.CloseAll(); err != nil {
		die(err)
	}
	h.UnlockAll(h.Passwd, h.Shadow, h.Group, h.GShadow)

	for _, le := range res.Skipped {
		fmt.Fprintf(os.Stderr, "newusers: %v\n", le)
	}
	env.Log.Audit("newusers", "*", 0, "ok", fmt.Sprintf("applied=%d skipped=%d", res.Applied, len(res.Skipped)))

	if len(res.Skipped) > 0 {
		os.Exit(cli.BadArg)
	}
	os.Exit(cli.Success)
}
