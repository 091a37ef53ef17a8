// Command groupdel implements the §6 groupdel verb: remove a group's G
// and SG entries, refusing if the group is still any user's primary GID.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/shadow-maint/shadow-sub001/accountdb"
	"github.com/shadow-maint/shadow-sub001/internal/cli"
)

var root = flag.String("root", "", "operate on an alternate root directory")

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: groupdel name")
		os.Exit(cli.Usage)
	}
	name := flag.Arg(0)

	env, err := cli.Bootstrap("groupdel", *root)
	if err != nil {
		cli.Die("groupdel", err)
	}
	h := env.Handle

	if err := h.LockAll(h.Passwd, h.Group, h.GShadow); err != nil {
		cli.Die("groupdel", err)
	}
	die := func(err error) {
		h.UnlockAll(h.Passwd, h.Group, h.GShadow)
		cli.Die("groupdel", err)
	}
	if err := h.Passwd.Open(accountdb.ReadOnly); err != nil {
		die(err)
	}
	if err := h.Group.Open(accountdb.ReadWrite); err != nil {
		die(err)
	}
	if err := h.GShadow.Open(accountdb.ReadWrite); err != nil {
		die(err)
	}

	g, err := h.Group.Locate(name)
	if err != nil {
		die(err)
	}
	for _, u := range h.Passwd.All() {
		if u.GID == g.GID {
			die(fmt.Errorf("group %q is user %q's primary group", name, u.Name))
		}
	}

	if err := h.Group.Remove(name); err != nil {
		die(err)
	}
	if err := h.GShadow.Remove(name); err != nil && !notFound(err) {
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
	h.UnlockAll(h.Passwd, h.Group, h.GShadow)

	env.Log.Audit("groupdel", name, g.GID, "ok", "")
	os.Exit(cli.Success)
}

func notFound(err error) bool {
	var e *accountdb.Error
	return errors.As(err, &e) && e.Kind == accountdb.KindNotFound
}
