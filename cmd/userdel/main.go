// Command userdel implements the §6 userdel verb: remove a user's U and
// S entries, strip their name from every group's member list, and
// optionally remove their private group and home directory.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/shadow-maint/shadow-sub001/accountdb"
	"github.com/shadow-maint/shadow-sub001/internal/cli"
)

var (
	root   = flag.String("root", "", "operate on an alternate root directory")
	rmhome = flag.Bool("r", false, "remove the home directory and its contents")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: userdel [options] name")
		os.Exit(cli.Usage)
	}
	name := flag.Arg(0)

	env, err := cli.Bootstrap("userdel", *root)
	if err != nil {
		cli.Die("userdel", err)
	}
	h := env.Handle

	if err := h.LockAll(h.Passwd, h.Shadow, h.Group, h.GShadow); err != nil {
		cli.Die("userdel", err)
	}
	die := func(err error) {
		h.UnlockAll(h.Passwd, h.Shadow, h.Group, h.GShadow)
		cli.Die("userdel", err)
	}
	if err := h.OpenAll(); err != nil {
		die(err)
	}

	u, err := h.Passwd.Locate(name)
	if err != nil {
		die(err)
	}
	home := u.Home

	if err := h.Passwd.Remove(name); err != nil {
		die(err)
	}
	if err := h.Shadow.Remove(name); err != nil && !notFound(err) {
		die(err)
	}

	for _, g := range h.Group.All() {
		if g.RemoveMember(name) {
			if err := h.Group.Update(g); err != nil {
				die(err)
			}
		}
	}
	for _, sg := range h.GShadow.All() {
		changed := sg.RemoveAdmin(name)
		if sg.RemoveMember(name) {
			changed = true
		}
		if changed {
			if err := h.GShadow.Update(sg); err != nil {
				die(err)
			}
		}
	}

	if g, ok := h.Group.LocateByGID(u.GID); ok && g.Name == name && len(g.Members) == 0 {
		if err := h.Group.Remove(g.Name); err != nil {
			die(err)
		}
		if sg, err := h.GShadow.Locate(g.Name); err == nil {
			h.GShadow.Remove(sg.Name)
		}
	}

	if err := h.CloseAll(); err != nil {
		die(err)
	}
	h.UnlockAll(h.Passwd, h.Shadow, h.Group, h.GShadow)

	if *rmhome && home != "" {
		if err := os.RemoveAll(home); err != nil {
			env.Log.Warnf("userdel: removing home directory %s: %v", home, err)
		}
	}

	env.Log.Audit("userdel", name, u.UID, "ok", "")
	os.Exit(cli.Success)
}

func notFound(err error) bool {
	var e *accountdb.Error
	return errors.As(err, &e) && e.Kind == accountdb.KindNotFound
}
