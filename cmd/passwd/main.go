// Command passwd implements the §6 passwd verb: interactively verify
// the caller's current password (unless -f/--force, the administrator
// override), then hash and store a new one, resetting the aging clock.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/shadow-maint/shadow-sub001/accountdb"
	"github.com/shadow-maint/shadow-sub001/accountdb/authn"
	"github.com/shadow-maint/shadow-sub001/accountdb/password"
	"github.com/shadow-maint/shadow-sub001/internal/cli"
)

var (
	root   = flag.String("root", "", "operate on an alternate root directory")
	force  = flag.Bool("f", false, "administrator override: skip current-password verification")
	lock   = flag.Bool("l", false, "lock the account's password instead of changing it")
	unlock = flag.Bool("u", false, "unlock the account's password")
)

const maxTries = 3

func main() {
	flag.Parse()
	var name string
	switch flag.NArg() {
	case 0:
		u, err := os.Hostname()
		if err != nil {
			cli.Die("passwd", err)
		}
		name = u
	case 1:
		name = flag.Arg(0)
	default:
		fmt.Fprintln(os.Stderr, "usage: passwd [options] [name]")
		os.Exit(cli.Usage)
	}

	env, err := cli.Bootstrap("passwd", *root)
	if err != nil {
		cli.Die("passwd", err)
	}
	h := env.Handle

	if err := h.LockAll(h.Passwd, h.Shadow); err != nil {
		cli.Die("passwd", err)
	}
	die := func(err error) {
		h.UnlockAll(h.Passwd, h.Shadow)
		cli.Die("passwd", err)
	}
	if err := h.Passwd.Open(accountdb.ReadWrite); err != nil {
		die(err)
	}
	if err := h.Shadow.Open(accountdb.ReadWrite); err != nil {
		die(err)
	}

	u, err := h.Passwd.Locate(name)
	if err != nil {
		die(err)
	}
	s, serr := h.Shadow.Locate(name)
	if serr != nil {
		s = &accountdb.ShadowUser{Name: name, Min: 0, Max: 99999, Warn: 7, Inact: -1, Expire: -1}
	}

	if *lock {
		s.Hash = password.Lock(s.Hash)
		commit(env, h, s, u.UID, "lock", die)
		return
	}
	if *unlock {
		s.Hash = password.Unlock(s.Hash)
		commit(env, h, s, u.UID, "unlock", die)
		return
	}

	if !*force {
		verifier := authn.New(authn.TableLookup{Passwd: h.Passwd, Shadow: h.Shadow})
		ok, err := authn.RetryLoop(maxTries, func(int) (bool, error) {
			candidate := readSecret("Current password: ")
			res, err := verifier.Verify(name, candidate)
			return res == authn.OK, err
		})
		if err != nil {
			die(err)
		}
		if !ok {
			h.UnlockAll(h.Passwd, h.Shadow)
			fmt.Fprintln(os.Stderr, "passwd: authentication failure")
			os.Exit(cli.NoPerm)
		}
	}

	p1 := readSecret("New password: ")
	p2 := readSecret("Retype new password: ")
	if p1 != p2 {
		h.UnlockAll(h.Passwd, h.Shadow)
		fmt.Fprintln(os.Stderr, "passwd: passwords do not match")
		os.Exit(cli.BadArg)
	}

	method, err := password.ParseMethod(env.Defs.String("ENCRYPT_METHOD"))
	if err != nil {
		die(err)
	}
	hash, err := password.Hash(method, p1, password.Params{})
	if err != nil {
		die(err)
	}
	s.Hash = hash
	s.LastChg = time.Now().Unix() / 86400
	commit(env, h, s, u.UID, "change", die)
}

func commit(env *cli.Env, h *accountdb.Handle, s *accountdb.ShadowUser, uid int64, outcome string, die func(error)) {
	if err := h.Shadow.Update(s); err != nil {
		die(err)
	}
	if err := h.Passwd.Close(); err != nil {
		die(err)
	}
	if err := h.Shadow.Close(); err != nil {
		die(err)
	}
	h.UnlockAll(h.Passwd, h.Shadow)
	env.Log.Audit("passwd", s.Name, uid, "ok", outcome)
	os.Exit(cli.Success)
}

func readSecret(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return ""
		}
		return string(b)
	}
	sc := bufio.NewScanner(os.Stdin)
	sc.Scan()
	return sc.Text()
}
