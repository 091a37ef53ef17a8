// Command useradd implements the §6 useradd verb: allocate a UID (and,
// per USERGROUPS_ENAB, a matching private GID/group), then create the U,
// S, G and SG entries for a new account in one locked transaction.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shadow-maint/shadow-sub001/accountdb"
	"github.com/shadow-maint/shadow-sub001/accountdb/idalloc"
	"github.com/shadow-maint/shadow-sub001/accountdb/password"
	"github.com/shadow-maint/shadow-sub001/internal/cli"
)

var (
	root    = flag.String("root", "", "operate on an alternate root directory")
	uidFlag = flag.Int64("u", 0, "numeric UID (default: next free in UID_MIN..UID_MAX)")
	gidFlag = flag.String("g", "", "primary group: name, numeric GID, or empty for USERGROUPS_ENAB")
	comment = flag.String("c", "", "GECOS comment field")
	home    = flag.String("d", "", "home directory (default: /home/<name>)")
	shell   = flag.String("s", "/bin/sh", "login shell")
	sys     = flag.Bool("r", false, "create a system account (allocate from SYS_UID_MIN..SYS_UID_MAX)")
	mkhome  = flag.Bool("m", false, "create the home directory")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: useradd [options] name")
		os.Exit(cli.Usage)
	}
	name := flag.Arg(0)

	env, err := cli.Bootstrap("useradd", *root)
	if err != nil {
		cli.Die("useradd", err)
	}
	h := env.Handle

	if err := h.LockAll(h.Passwd, h.Shadow, h.Group, h.GShadow); err != nil {
		cli.Die("useradd", err)
	}
	die := func(err error) {
		h.UnlockAll(h.Passwd, h.Shadow, h.Group, h.GShadow)
		cli.Die("useradd", err)
	}
	if err := h.OpenAll(); err != nil {
		die(err)
	}

	if _, err := h.Passwd.Locate(name); err == nil {
		die(fmt.Errorf("user %q already exists", name))
	}

	uidRange := idalloc.Range{}
	if *sys {
		lo, hi := env.Defs.SysUIDRange()
		uidRange = idalloc.Range{Min: lo, Max: hi}
	} else {
		lo, hi := env.Defs.UIDRange()
		uidRange = idalloc.Range{Min: lo, Max: hi}
	}
	uid, err := idalloc.Find(idalloc.Request{
		Sys:         *sys,
		Range:       uidRange,
		HintID:      *uidFlag,
		HintGiven:   *uidFlag != 0,
		DisallowDup: *uidFlag != 0,
		Used:        h.Passwd.UsedUIDs(),
	})
	if err != nil {
		die(err)
	}

	gid, err := resolveGroup(h, name, uid, env)
	if err != nil {
		die(err)
	}

	homeDir := *home
	if homeDir == "" {
		homeDir = "/home/" + name
	}

	u := &accountdb.User{
		Name: name, Password: "x", UID: uid, GID: gid,
		Gecos: *comment, Home: homeDir, Shell: *shell,
	}
	if err := h.Passwd.Update(u); err != nil {
		die(err)
	}

	s := &accountdb.ShadowUser{
		Name: name, Hash: "!",
		LastChg: today(), Min: 0, Max: 99999, Warn: 7, Inact: -1, Expire: -1,
	}
	if err := h.Shadow.Update(s); err != nil {
		die(err)
	}

	if err := h.CloseAll(); err != nil {
		die(err)
	}
	h.UnlockAll(h.Passwd, h.Shadow, h.Group, h.GShadow)

	if *mkhome {
		if err := os.MkdirAll(homeDir, env.Defs.FileMode("HOME_MODE", 0700)); err != nil {
			env.Log.Warnf("useradd: creating home directory %s: %v", homeDir, err)
		} else {
			os.Chown(homeDir, int(uid), int(gid))
		}
	}

	env.Log.Audit("useradd", name, uid, "ok", "")
	os.Exit(cli.Success)
}

// resolveGroup implements the USERGROUPS_ENAB branch of §6: with no -g,
// a private group named after the user is created (or reused) and its
// GID becomes the account's primary GID; with -g, the named or numeric
// group must already exist.
func resolveGroup(h *accountdb.Handle, name string, uid int64, env *cli.Env) (int64, error) {
	if *gidFlag == "" {
		if !env.Defs.Bool("USERGROUPS_ENAB") {
			return 0, fmt.Errorf("useradd: -g is required (USERGROUPS_ENAB=no)")
		}
		if g, err := h.Group.Locate(name); err == nil {
			return g.GID, nil
		}
		lo, hi := env.Defs.GIDRange()
		gid, err := idalloc.Find(idalloc.Request{
			Range:     idalloc.Range{Min: lo, Max: hi},
			HintID:    uid,
			HintGiven: true,
			Used:      h.Group.UsedGIDs(),
		})
		if err != nil {
			return 0, err
		}
		if err := h.Group.Update(&accountdb.Group{Name: name, Password: "x", GID: gid}); err != nil {
			return 0, err
		}
		// Mirror groupadd: every new group gets a matching gshadow entry.
		if err := h.GShadow.Update(&accountdb.ShadowGroup{Name: name, Hash: "!"}); err != nil {
			return 0, err
		}
		return gid, nil
	}
	if g, err := h.Group.Locate(*gidFlag); err == nil {
		return g.GID, nil
	}
	if gid, err := strconv.ParseInt(*gidFlag, 10, 64); err == nil {
		if g, ok := h.Group.LocateByGID(gid); ok {
			return g.GID, nil
		}
	}
	return 0, fmt.Errorf("useradd: group %q does not exist", *gidFlag)
}

func today() int64 {
	return time.Now().Unix() / 86400
}

func parseMethod(env *cli.Env) (password.Method, error) {
	return password.ParseMethod(env.Defs.String("ENCRYPT_METHOD"))
}
