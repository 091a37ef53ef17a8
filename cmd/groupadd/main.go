// Command groupadd implements the §6 groupadd verb: allocate a GID and
// create the G and SG entries for a new group.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/shadow-maint/shadow-sub001/accountdb"
	"github.com/shadow-maint/shadow-sub001/accountdb/idalloc"
	"github.com/shadow-maint/shadow-sub001/internal/cli"
)

var (
	root    = flag.String("root", "", "operate on an alternate root directory")
	gidFlag = flag.Int64("g", 0, "numeric GID (default: next free in GID_MIN..GID_MAX)")
	sys     = flag.Bool("r", false, "create a system group (allocate from SYS_GID_MIN..SYS_GID_MAX)")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: groupadd [options] name")
		os.Exit(cli.Usage)
	}
	name := flag.Arg(0)

	env, err := cli.Bootstrap("groupadd", *root)
	if err != nil {
		cli.Die("groupadd", err)
	}
	h := env.Handle

	if err := h.LockAll(h.Group, h.GShadow); err != nil {
		cli.Die("groupadd", err)
	}
	die := func(err error) {
		h.UnlockAll(h.Group, h.GShadow)
		cli.Die("groupadd", err)
	}
	if err := h.Group.Open(accountdb.ReadWrite); err != nil {
		die(err)
	}
	if err := h.GShadow.Open(accountdb.ReadWrite); err != nil {
		die(err)
	}

	if _, err := h.Group.Locate(name); err == nil {
		die(fmt.Errorf("group %q already exists", name))
	}

	var lo, hi int64
	if *sys {
		lo, hi = env.Defs.SysGIDRange()
	} else {
		lo, hi = env.Defs.GIDRange()
	}
	gid, err := idalloc.Find(idalloc.Request{
		Sys:         *sys,
		Range:       idalloc.Range{Min: lo, Max: hi},
		HintID:      *gidFlag,
		HintGiven:   *gidFlag != 0,
		DisallowDup: *gidFlag != 0,
		Used:        h.Group.UsedGIDs(),
	})
	if err != nil {
		die(err)
	}

	if err := h.Group.Update(&accountdb.Group{Name: name, Password: "x", GID: gid}); err != nil {
		die(err)
	}
	if err := h.GShadow.Update(&accountdb.ShadowGroup{Name: name, Hash: "!"}); err != nil {
		die(err)
	}

	var closeErr error
	if err := h.Group.Close(); err != nil {
		closeErr = err
	}
	if err := h.GShadow.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	if closeErr != nil {
		die(closeErr)
	}
	h.UnlockAll(h.Group, h.GShadow)

	env.Log.Audit("groupadd", name, gid, "ok", "")
	os.Exit(cli.Success)
}
