// Package logindefs parses the login.defs-style key=value configuration
// named in §6: one recognized key per line, shell-style whitespace
// separation, '#' comments, blank lines ignored. The loader's
// size-capped read-then-parse shape is grounded on config/loader.go's
// LoadConfigFile; the flat key-value grammar itself has no section
// structure for gcfg to parse, so it is hand-rolled (see DESIGN.md).
package logindefs

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// maxConfigSize mirrors config/loader.go's defensive cap against a
// pathological or symlink-swapped configuration file.
const maxConfigSize int64 = 4 * 1024 * 1024

var ErrConfigFileTooLarge = errors.New("logindefs: config file is too large")

// Defaults mirror shadow-utils' compiled-in fallbacks for every key this
// package recognizes, used whenever a key is absent from the file.
var Defaults = map[string]string{
	"UID_MIN":         "1000",
	"UID_MAX":         "60000",
	"SYS_UID_MIN":     "101",
	"SYS_UID_MAX":     "999",
	"GID_MIN":         "1000",
	"GID_MAX":         "60000",
	"SYS_GID_MIN":     "101",
	"SYS_GID_MAX":     "999",
	"PASS_MIN_DAYS":   "0",
	"PASS_MAX_DAYS":   "99999",
	"PASS_WARN_AGE":   "7",
	"ENCRYPT_METHOD":  "SHA512",
	"UMASK":           "022",
	"HOME_MODE":       "0700",
	"CREATE_HOME":     "yes",
	"USERGROUPS_ENAB": "yes",
	"MAIL_DIR":        "/var/mail",
	"LASTLOG_UID_MAX": "",
	"SUB_UID_COUNT":   "65536",
	"SUB_GID_COUNT":   "65536",
}

// Config is the parsed, typed view over the recognized keys. Raw holds
// every key present in the file (recognized or not) so a caller that
// needs an exotic key can still reach it.
type Config struct {
	Raw map[string]string
}

// Load reads and parses path, applying Defaults for any key absent from
// the file. A missing file is not an error — it is treated as wholly
// defaulted, matching shadow-utils' tolerance of an absent login.defs.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fromDefaults(), nil
		}
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxConfigSize {
		return nil, ErrConfigFileTooLarge
	}

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, f); err != nil {
		return nil, err
	}
	return Parse(buf.Bytes())
}

func fromDefaults() *Config {
	raw := make(map[string]string, len(Defaults))
	for k, v := range Defaults {
		raw[k] = v
	}
	return &Config{Raw: raw}
}

// Parse reads the key=value (or key-whitespace-value) grammar from b.
func Parse(b []byte) (*Config, error) {
	c := fromDefaults()
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := splitKV(line)
		if !ok {
			continue
		}
		c.Raw[key] = val
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

func splitKV(line string) (key, val string, ok bool) {
	i := strings.IndexAny(line, " \t=")
	if i < 0 {
		return line, "", line != ""
	}
	key = line[:i]
	if key == "" {
		return "", "", false
	}
	rest := strings.TrimPrefix(strings.TrimSpace(line[i:]), "=")
	return key, strings.Join(strings.Fields(rest), " "), true
}

// LoadEnvOverride overlays OS environment variables onto c, one per
// recognized key, checking "LOGINDEFS_"+key before falling back to the
// value already in c.Raw. This mirrors the teacher's env-var-overlay
// convention of letting a deployment override a config file value
// without editing it on disk.
func (c *Config) LoadEnvOverride(getenv func(string) string) {
	for key := range Defaults {
		if v := getenv("LOGINDEFS_" + key); v != "" {
			c.Raw[key] = v
		}
	}
}

func (c *Config) String(key string) string { return c.Raw[key] }

func (c *Config) Int64(key string) (int64, error) {
	v, ok := c.Raw[key]
	if !ok || v == "" {
		return 0, fmt.Errorf("logindefs: %s not set", key)
	}
	return strconv.ParseInt(v, 10, 64)
}

func (c *Config) Bool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(c.Raw[key]))
	return v == "yes" || v == "true" || v == "1"
}

// FileMode parses an octal mode string such as HOME_MODE's "0700".
func (c *Config) FileMode(key string, def os.FileMode) os.FileMode {
	v := c.Raw[key]
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 8, 32)
	if err != nil {
		return def
	}
	return os.FileMode(n)
}

// rangeOf builds an inclusive range from a min/max key pair, falling
// back silently to zero on a malformed value — callers that need strict
// validation should call Int64 directly.
func (c *Config) rangeOf(minKey, maxKey string) (lo, hi int64) {
	lo, _ = c.Int64(minKey)
	hi, _ = c.Int64(maxKey)
	return
}

// UIDRange and GIDRange return the (lo, hi) pair for the normal-account
// or system-account id ranges, consumed directly by idalloc.Range.
func (c *Config) UIDRange() (lo, hi int64)    { return c.rangeOf("UID_MIN", "UID_MAX") }
func (c *Config) SysUIDRange() (lo, hi int64) { return c.rangeOf("SYS_UID_MIN", "SYS_UID_MAX") }
func (c *Config) GIDRange() (lo, hi int64)    { return c.rangeOf("GID_MIN", "GID_MAX") }
func (c *Config) SysGIDRange() (lo, hi int64) { return c.rangeOf("SYS_GID_MIN", "SYS_GID_MAX") }
