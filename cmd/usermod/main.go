// Command usermod implements a subset of the §6 usermod verb: change an
// existing user's GECOS, home, shell, primary group or login name.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/shadow-maint/shadow-sub001/accountdb"
	"github.com/shadow-maint/shadow-sub001/accountdb/password"
	"github.com/shadow-maint/shadow-sub001/internal/cli"
)

var (
	root    = flag.String("root", "", "operate on an alternate root directory")
	comment = flag.String("c", "", "new GECOS comment field")
	home    = flag.String("d", "", "new home directory")
	shell   = flag.String("s", "", "new login shell")
	gidFlag = flag.String("g", "", "new primary group (name or numeric GID)")
	login   = flag.String("l", "", "new login name")
	lock    = flag.Bool("L", false, "lock the account's password")
	unlock  = flag.Bool("U", false, "unlock the account's password")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: usermod [options] name")
		os.Exit(cli.Usage)
	}
	name := flag.Arg(0)

	env, err := cli.Bootstrap("usermod", *root)
	if err != nil {
		cli.Die("usermod", err)
	}
	h := env.Handle

	if err := h.LockAll(h.Passwd, h.Shadow, h.Group); err != nil {
		cli.Die("usermod", err)
	}
	die := func(err error) {
		h.UnlockAll(h.Passwd, h.Shadow, h.Group)
		cli.Die("usermod", err)
	}
	if err := h.Passwd.Open(accountdb.ReadWrite); err != nil {
		die(err)
	}
	if err := h.Shadow.Open(accountdb.ReadWrite); err != nil {
		die(err)
	}
	if err := h.Group.Open(accountdb.ReadOnly); err != nil {
		die(err)
	}

	u, err := h.Passwd.Locate(name)
	if err != nil {
		die(err)
	}

	if *comment != "" {
		u.SetGecos(*comment)
	}
	if *home != "" {
		u.Home = *home
	}
	if *shell != "" {
		u.SetShell(*shell)
	}
	if *gidFlag != "" {
		gid, err := resolveGID(h, *gidFlag)
		if err != nil {
			die(err)
		}
		u.GID = gid
	}
	if *login != "" && *login != name {
		if _, err := h.Passwd.Locate(*login); err == nil {
			die(fmt.Errorf("login %q already exists", *login))
		}
		u.Name = *login
		if err := h.Passwd.Remove(name); err != nil {
			die(err)
		}
	}
	if err := h.Passwd.Update(u); err != nil {
		die(err)
	}

	shadowName := name
	if s, err := h.Shadow.Locate(name); err == nil {
		if *lock {
			s.Hash = password.Lock(s.Hash)
		}
		if *unlock {
			s.Hash = password.Unlock(s.Hash)
		}
		if *login != "" && *login != shadowName {
			s.Name = *login
			if err := h.Shadow.Remove(shadowName); err != nil {
				die(err)
			}
		}
		if err := h.Shadow.Update(s); err != nil {
			die(err)
		}
	}

	if err := h.Passwd.Close(); err != nil {
		die(err)
	}
	if err := h.Shadow.Close(); err != nil {
		die(err)
	}
	if err := h.Group.Close(); err != nil {
		die(err)
	}
	h.UnlockAll(h.Passwd, h.Shadow, h.Group)

	env.Log.Audit("usermod", name, u.UID, "ok", "")
	os.Exit(cli.Success)
}

func resolveGID(h *accountdb.Handle, field string) (int64, error) {
	if g, err := h.Group.Locate(field); err == nil {
		return g.GID, nil
	}
	if gid, err := strconv.ParseInt(field, 10, 64); err == nil {
		if g, ok := h.Group.LocateByGID(gid); ok {
			return g.GID, nil
		}
	}
	return 0, fmt.Errorf("usermod: group %q does not exist", field)
}

