// Command vipw implements the §6 vipw/vigr verb family: lock, snapshot,
// spawn $VISUAL/$EDITOR over the backing file, validate, and commit —
// each a thin driver over accountdb/editor.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/shadow-maint/shadow-sub001/accountdb"
	"github.com/shadow-maint/shadow-sub001/accountdb/editor"
	"github.com/shadow-maint/shadow-sub001/internal/cli"
)

const defaultEditor = "vi"

var (
	root  = flag.String("root", "", "operate on an alternate root directory")
	shad  = flag.Bool("s", false, "edit the shadow (or gshadow) file instead of the primary table")
	group = flag.Bool("g", false, "edit the group/gshadow pair instead of passwd/shadow")
)

func main() {
	flag.Parse()

	path, validate := resolveTarget(*root)

	tx := editor.New(path, editor.ResolveEditor(defaultEditor))
	tx.Validate = validate

	outcome, err := tx.Run()
	if err != nil {
		cli.Die("vipw", err)
	}
	switch outcome {
	case editor.EditCommitted:
		fmt.Println("vipw: edit committed")
	case editor.Unchanged:
		fmt.Println("vipw: no changes made")
	}
	os.Exit(cli.Success)
}

func resolveTarget(root string) (string, editor.Validator) {
	switch {
	case *group && *shad:
		return root + accountdb.DefaultGShadowPath, validateWith(accountdb.NewGShadow())
	case *group:
		return root + accountdb.DefaultGroupPath, validateWith(accountdb.NewGroupTable())
	case *shad:
		return root + accountdb.DefaultShadowPath, validateWith(accountdb.NewShadow())
	default:
		return root + accountdb.DefaultPasswdPath, validateWith(accountdb.NewPasswd())
	}
}

// validateWith adapts any of the four table facades into an
// editor.Validator: point it at the scratch file and attempt a
// read-only open. Open keeps unparseable lines as opaque entries rather
// than failing on them, so only an error reading the file rejects the
// edit.
func validateWith(t interface {
	SetName(string)
	Open(accountdb.OpenMode) error
}) editor.Validator {
	return func(path string) error {
		t.SetName(path)
		if err := t.Open(accountdb.ReadOnly); err != nil {
			return err
		}
		return nil
	}
}
