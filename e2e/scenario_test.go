// Package e2e drives the account engine the way a CLI driver does —
// Handle, LockAll, OpenAll, CloseAll — against the fresh-repository
// fixture under testdata/fresh, covering the create/set-password/delete
// and expand/collapse round-trip scenarios end to end.
package e2e

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shadow-maint/shadow-sub001/accountdb"
	"github.com/shadow-maint/shadow-sub001/accountdb/authn"
	"github.com/shadow-maint/shadow-sub001/accountdb/convert"
	"github.com/shadow-maint/shadow-sub001/accountdb/idalloc"
	"github.com/shadow-maint/shadow-sub001/accountdb/password"
	"github.com/shadow-maint/shadow-sub001/internal/sysfile"
)

func TestMain(m *testing.M) {
	sysfile.SuitePath = filepath.Join(os.TempDir(), "shadow-sub001-e2e-test.suite.lock")
	os.Exit(m.Run())
}

// freshRepo copies testdata/fresh into a new temp directory and returns
// a locked, opened Handle rooted there.
func freshRepo(t *testing.T) *accountdb.Handle {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "etc"), 0755))
	for _, name := range []string{"passwd", "shadow", "group", "gshadow"} {
		copyFile(t, filepath.Join("..", "testdata", "fresh", name), filepath.Join(dir, "etc", name))
	}

	h := accountdb.NewHandle()
	h.SetRoot(dir)
	require.NoError(t, h.LockAll(h.Passwd, h.Shadow, h.Group, h.GShadow))
	t.Cleanup(func() { h.UnlockAll(h.Passwd, h.Shadow, h.Group, h.GShadow) })
	require.NoError(t, h.OpenAll())
	return h
}

func copyFile(t *testing.T, src, dst string) {
	t.Helper()
	in, err := os.Open(src)
	require.NoError(t, err)
	defer in.Close()
	out, err := os.Create(dst)
	require.NoError(t, err)
	defer out.Close()
	_, err = io.Copy(out, in)
	require.NoError(t, err)
}

// TestScenarioACreateUser mirrors cmd/useradd's transaction for a new
// account with USERGROUPS_ENAB on and no explicit UID.
func TestScenarioACreateUser(t *testing.T) {
	h := freshRepo(t)

	uid, err := idalloc.Find(idalloc.Request{
		Range: idalloc.Range{Min: 1000, Max: 60000},
		Used:  h.Passwd.UsedUIDs(),
	})
	require.NoError(t, err)
	require.Equal(t, int64(1000), uid)

	gid, err := idalloc.Find(idalloc.Request{
		Range:     idalloc.Range{Min: 1000, Max: 60000},
		HintID:    uid,
		HintGiven: true,
		Used:      h.Group.UsedGIDs(),
	})
	require.NoError(t, err)
	require.Equal(t, uid, gid)

	require.NoError(t, h.Group.Update(&accountdb.Group{Name: "alice", Password: "x", GID: gid}))
	require.NoError(t, h.GShadow.Update(&accountdb.ShadowGroup{Name: "alice", Hash: "!"}))

	u := &accountdb.User{Name: "alice", Password: "x", UID: uid, GID: gid, Home: "/home/alice", Shell: "/bin/sh"}
	require.NoError(t, h.Passwd.Update(u))

	today := time.Now().Unix() / 86400
	s := &accountdb.ShadowUser{Name: "alice", Hash: "!", LastChg: today, Min: 0, Max: 99999, Warn: 7, Inact: -1, Expire: -1}
	require.NoError(t, h.Shadow.Update(s))

	require.NoError(t, h.CloseAll())

	h2 := freshRepoNoCopy(t, h)
	au, err := h2.Passwd.Locate("alice")
	require.NoError(t, err)
	require.Equal(t, int64(1000), au.UID)
	require.Equal(t, int64(1000), au.GID)
	require.Equal(t, "/home/alice", au.Home)

	as, err := h2.Shadow.Locate("alice")
	require.NoError(t, err)
	require.Equal(t, "!", as.Hash)
	require.Equal(t, today, as.LastChg)

	ag, err := h2.Group.Locate("alice")
	require.NoError(t, err)
	require.Equal(t, int64(1000), ag.GID)

	asg, err := h2.GShadow.Locate("alice")
	require.NoError(t, err)
	require.Equal(t, "!", asg.Hash)
}

// TestScenarioBSetPassword feeds a password through the hash facade and
// confirms authn.Verify's correct/wrong/delay behavior.
func TestScenarioBSetPassword(t *testing.T) {
	h := freshRepo(t)
	require.NoError(t, h.Passwd.Update(&accountdb.User{Name: "alice", Password: "x", UID: 1000, GID: 1000, Home: "/home/alice", Shell: "/bin/sh"}))

	hash, err := password.Hash(password.SHA512, "secret", password.Params{})
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	today := time.Now().Unix() / 86400
	s := &accountdb.ShadowUser{Name: "alice", Hash: hash, LastChg: today, Min: 0, Max: 99999, Warn: 7, Inact: -1, Expire: -1}
	require.NoError(t, h.Shadow.Update(s))
	require.NoError(t, h.CloseAll())

	h2 := freshRepoNoCopy(t, h)
	v := authn.New(authn.TableLookup{Passwd: h2.Passwd, Shadow: h2.Shadow})
	v.FailDelay = 5 * time.Millisecond

	res, err := v.Verify("alice", "secret")
	require.NoError(t, err)
	require.Equal(t, authn.OK, res)

	start := time.Now()
	res, err = v.Verify("alice", "nope")
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.Equal(t, authn.Wrong, res)
	require.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
}

// TestScenarioCDeleteUser creates the same alice entries scenario A
// produces, then removes alice and her private group/gshadow entries,
// leaving root untouched.
func TestScenarioCDeleteUser(t *testing.T) {
	h := freshRepo(t)
	require.NoError(t, h.Passwd.Update(&accountdb.User{Name: "alice", Password: "x", UID: 1000, GID: 1000, Home: "/home/alice", Shell: "/bin/sh"}))
	require.NoError(t, h.Shadow.Update(&accountdb.ShadowUser{Name: "alice", Hash: "!", Min: 0, Max: 99999, Warn: 7, Inact: -1, Expire: -1}))
	require.NoError(t, h.Group.Update(&accountdb.Group{Name: "alice", Password: "x", GID: 1000}))
	require.NoError(t, h.GShadow.Update(&accountdb.ShadowGroup{Name: "alice", Hash: "!"}))
	require.NoError(t, h.CloseAll())

	h2 := freshRepoNoCopy(t, h)
	u, err := h2.Passwd.Locate("alice")
	require.NoError(t, err)

	require.NoError(t, h2.Passwd.Remove("alice"))
	require.NoError(t, h2.Shadow.Remove("alice"))
	if g, ok := h2.Group.LocateByGID(u.GID); ok && g.Name == "alice" && len(g.Members) == 0 {
		require.NoError(t, h2.Group.Remove(g.Name))
		if sg, serr := h2.GShadow.Locate(g.Name); serr == nil {
			require.NoError(t, h2.GShadow.Remove(sg.Name))
		}
	}
	require.NoError(t, h2.CloseAll())

	h3 := freshRepoNoCopy(t, h)
	_, err = h3.Passwd.Locate("alice")
	require.Error(t, err)
	_, err = h3.Group.Locate("alice")
	require.Error(t, err)
	_, err = h3.GShadow.Locate("alice")
	require.Error(t, err)

	root, err := h3.Passwd.Locate("root")
	require.NoError(t, err)
	require.Equal(t, int64(0), root.UID)
}

// TestScenarioFExpandThenCollapseRoundTrips checks that Expand then
// Collapse restores bob's original U password and removes the shadow
// file. root, shadowed in the fixture, ends with its shadow hash "*" in
// place of "x".
func TestScenarioFExpandThenCollapseRoundTrips(t *testing.T) {
	h := freshRepo(t)
	require.NoError(t, h.Passwd.Update(&accountdb.User{Name: "bob", Password: "$6$clear$hash", UID: 1001, GID: 1001, Home: "/home/bob", Shell: "/bin/sh"}))
	require.NoError(t, h.CloseAll())

	h2 := freshRepoNoCopy(t, h)
	require.NoError(t, convert.Expand(h2, convert.Defaults{Today: 19000, Min: 0, Max: 99999, Warn: 7}))
	require.NoError(t, h2.CloseAll())

	h3 := freshRepoNoCopy(t, h)
	bob, err := h3.Passwd.Locate("bob")
	require.NoError(t, err)
	require.Equal(t, "x", bob.Password)

	require.NoError(t, convert.Collapse(h3))
	require.NoError(t, h3.CloseAll())

	_, err = os.Stat(h3.Shadow.Path())
	require.True(t, os.IsNotExist(err))

	h4 := freshRepoNoCopyReadOnly(t, h)
	bob2, err := h4.Passwd.Locate("bob")
	require.NoError(t, err)
	require.Equal(t, "$6$clear$hash", bob2.Password)
}

// freshRepoNoCopy reopens a Handle against the same on-disk paths as h
// (read-write), used to assert on state committed by a prior Handle in
// the same test.
func freshRepoNoCopy(t *testing.T, h *accountdb.Handle) *accountdb.Handle {
	t.Helper()
	h2 := accountdb.NewHandle()
	h2.Passwd.SetName(h.Passwd.Path())
	h2.Shadow.SetName(h.Shadow.Path())
	h2.Group.SetName(h.Group.Path())
	h2.GShadow.SetName(h.GShadow.Path())
	require.NoError(t, h2.LockAll(h2.Passwd, h2.Shadow, h2.Group, h2.GShadow))
	t.Cleanup(func() { h2.UnlockAll(h2.Passwd, h2.Shadow, h2.Group, h2.GShadow) })
	require.NoError(t, h2.OpenAll())
	return h2
}

func freshRepoNoCopyReadOnly(t *testing.T, h *accountdb.Handle) *accountdb.Handle {
	t.Helper()
	h2 := accountdb.NewHandle()
	h2.Passwd.SetName(h.Passwd.Path())
	h2.Shadow.SetName(h.Shadow.Path())
	h2.Group.SetName(h.Group.Path())
	h2.GShadow.SetName(h.GShadow.Path())
	require.NoError(t, h2.LockAll(h2.Passwd, h2.Group, h2.GShadow))
	t.Cleanup(func() { h2.UnlockAll(h2.Passwd, h2.Group, h2.GShadow) })
	require.NoError(t, h2.Passwd.Open(accountdb.ReadOnly))
	require.NoError(t, h2.Group.Open(accountdb.ReadOnly))
	require.NoError(t, h2.GShadow.Open(accountdb.ReadOnly))
	return h2
}
