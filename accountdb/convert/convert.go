// Package convert implements the §4.J shadow<->non-shadow conversion
// engine: Expand (pwconv) and Collapse (pwunconv), each a single
// transaction over a Handle.
package convert

import (
	"github.com/shadow-maint/shadow-sub001/accountdb"
)

// Defaults bundles the login.defs-derived fields Expand fills into a
// freshly-created shadow record.
type Defaults struct {
	Today int64
	Min   int64
	Max   int64
	Warn  int64
}

// Expand moves every non-sentinel, non-empty U.password into a shadow
// record, setting U.password to "x" and removing any orphaned S entries
// whose name is no longer present in U.
func Expand(h *accountdb.Handle, d Defaults) error {
	names := make(map[string]struct{})
	for _, u := range h.Passwd.All() {
		names[u.Name] = struct{}{}
		if u.Password == "x" || u.Password == "" {
			continue
		}
		s, err := h.Shadow.Locate(u.Name)
		if err != nil {
			s = &accountdb.ShadowUser{
				Name: u.Name, Min: d.Min, Max: d.Max, Warn: d.Warn,
				Inact: -1, Expire: -1,
			}
		}
		s.Hash = u.Password
		s.LastChg = d.Today
		u.Password = "x"
		if err := h.Passwd.Update(u); err != nil {
			return err
		}
		if err := h.Shadow.Update(s); err != nil {
			return err
		}
	}
	for _, s := range h.Shadow.All() {
		if _, ok := names[s.Name]; !ok {
			if err := h.Shadow.Remove(s.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// Collapse copies every shadow hash back into U.password for users whose
// password field is the "x" sentinel. No S entry is removed one by one:
// after every record is processed the whole shadow table is marked for
// deletion on Close — the caller's subsequent h.CloseAll() unlinks the file
// instead of rewriting it.
func Collapse(h *accountdb.Handle) error {
	for _, u := range h.Passwd.All() {
		if u.Password != "x" {
			continue
		}
		s, err := h.Shadow.Locate(u.Name)
		if err != nil {
			continue
		}
		u.Password = s.Hash
		if err := h.Passwd.Update(u); err != nil {
			return err
		}
	}
	h.Shadow.MarkDeleteOnClose()
	return nil
}
