// Command chpasswd implements the §6 chpasswd verb: bulk-update
// passwords from "name:password" lines on stdin (or a file), hashing
// each cleartext with the configured ENCRYPT_METHOD unless -e marks the
// input as already-hashed.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shadow-maint/shadow-sub001/accountdb"
	"github.com/shadow-maint/shadow-sub001/accountdb/password"
	"github.com/shadow-maint/shadow-sub001/internal/cli"
)

var (
	root    = flag.String("root", "", "operate on an alternate root directory")
	file    = flag.String("f", "", "read input from file instead of stdin")
	encrypt = flag.Bool("e", false, "the supplied passwords are already hashed")
)

func main() {
	flag.Parse()

	env, err := cli.Bootstrap("chpasswd", *root)
	if err != nil {
		cli.Die("chpasswd", err)
	}
	h := env.Handle

	in := io.Reader(os.Stdin)
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			cli.Die("chpasswd", err)
		}
		defer f.Close()
		in = f
	}

	if err := h.LockAll(h.Passwd, h.Shadow); err != nil {
		cli.Die("chpasswd", err)
	}
	die := func(err error) {
		h.UnlockAll(h.Passwd, h.Shadow)
		cli.Die("chpasswd", err)
	}
	if err := h.Passwd.Open(accountdb.ReadWrite); err != nil {
		die(err)
	}
	if err := h.Shadow.Open(accountdb.ReadWrite); err != nil {
		die(err)
	}

	method, err := password.ParseMethod(env.Defs.String("ENCRYPT_METHOD"))
	if err != nil {
		die(err)
	}
	today := time.Now().Unix() / 86400

	applied, skipped := 0, 0
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		if raw == "" {
			continue
		}
		name, hash, err := applyLine(h, raw, method, today, *encrypt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "chpasswd: line %d (%s): %v\n", lineNo, name, err)
			skipped++
			continue
		}
		applied++
		_ = hash
	}
	if err := sc.Err(); err != nil {
		die(fmt.Errorf("reading input: %w", err))
	}

	if err := h.Passwd.Close(); err != nil {
		die(err)
	}
	if err := h.Shadow.Close(); err != nil {
		die(err)
	}
	h.UnlockAll(h.Passwd, h.Shadow)

	env.Log.Audit("chpasswd", "*", 0, "ok", fmt.Sprintf("applied=%d skipped=%d", applied, skipped))
	if skipped > 0 {
		os.Exit(cli.BadArg)
	}
	os.Exit(cli.Success)
}

func applyLine(h *accountdb.Handle, raw string, method password.Method, today int64, alreadyHashed bool) (name, hash string, err error) {
	fields := strings.SplitN(raw, ":", 2)
	if len(fields) != 2 {
		return raw, "", fmt.Errorf("expected \"name:password\"")
	}
	name = fields[0]
	clear := fields[1]

	if _, err := h.Passwd.Locate(name); err != nil {
		return name, "", err
	}

	if alreadyHashed {
		hash = clear
	} else {
		hash, err = password.Hash(method, clear, password.Params{})
		if err != nil {
			return name, "", err
		}
	}

	s, serr := h.Shadow.Locate(name)
	if serr != nil {
		s = &accountdb.ShadowUser{Name: name, Min: 0, Max: 99999, Warn: 7, Inact: -1, Expire: -1}
	}
	s.Hash = hash
	s.LastChg = today
	if err := h.Shadow.Update(s); err != nil {
		return name, "", err
	}
	return name, hash, nil
}
