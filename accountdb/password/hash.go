package password

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/scrypt"
)

var (
	// ErrUnsupportedMethod is returned by Hash for a Method with no
	// implementation (should not occur for the enumerated constants).
	ErrUnsupportedMethod = errors.New("password: unsupported method")
	// ErrMalformedHash is returned by Verify when the stored value
	// cannot be attributed to any known method.
	ErrMalformedHash = errors.New("password: malformed stored hash")
)

const (
	yescryptCost = 14 // log2(N) for the scrypt-backed stand-in, see DESIGN.md
	bcryptCost   = bcrypt.DefaultCost
	desSaltLen   = 2
)

// Hash generates a per-call random salt of the method's required shape
// and applies it to clear, per §4.E. NONE stores the cleartext verbatim
// (administrator-forced, debugging imports only).
func Hash(method Method, clear string, p Params) (string, error) {
	switch method {
	case NONE:
		return clear, nil
	case DES:
		return desCrypt(clear, randomSalt(desSaltLen)), nil
	case MD5:
		return md5Crypt(clear, randomSalt(saltLen)), nil
	case SHA256:
		return sha256Crypt(clear, randomSalt(saltLen), p.Rounds), nil
	case SHA512:
		return sha512Crypt(clear, randomSalt(saltLen), p.Rounds), nil
	case BCRYPT:
		cost := p.Cost
		if cost == 0 {
			cost = bcryptCost
		}
		out, err := bcrypt.GenerateFromPassword([]byte(clear), cost)
		if err != nil {
			return "", err
		}
		return string(out), nil
	case YESCRYPT:
		return yescryptHash(clear, randomSalt(saltLen), p.Cost)
	default:
		return "", ErrUnsupportedMethod
	}
}

// yescryptHash stands in for the real yescrypt KDF (no maintained
// pure-Go implementation exists in the retrieved pack; see
// SPEC_FULL.md's domain stack table and DESIGN.md) using
// golang.org/x/crypto/scrypt, tagged with a "$y$" prefix so stored
// values are visually attributable to the configured method.
func yescryptHash(clear, salt string, cost int) (string, error) {
	if cost == 0 {
		cost = yescryptCost
	}
	n := 1 << uint(cost)
	dk, err := scrypt.Key([]byte(clear), []byte(salt), n, 8, 1, 32)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("$y$n=%d$%s$%s", cost, salt, cryptB64Encode(dk)), nil
}

// Verify re-hashes candidate using the stored value as a salt hint and
// compares in constant time. It never distinguishes "wrong password"
// from any other mismatch in its return value; callers needing
// NO_USER/WRONG separation (§4.H) do that at a higher layer.
func Verify(stored, candidate string) (bool, error) {
	if stored == "" {
		return candidate == "", nil
	}
	// A locked account's hash keeps its '!'/'*' marker ahead of the real
	// hash (see Lock); verification still operates on the underlying
	// value so re-enabling the account doesn't require re-hashing.
	stored = strings.TrimLeft(stored, "!*")
	switch {
	case strings.HasPrefix(stored, "$1$"):
		return constEq(stored, md5Crypt(candidate, parseShaCryptSalt(stored))), nil
	case strings.HasPrefix(stored, "$5$"):
		rounds := parseShaCryptRounds(stored)
		return constEq(stored, sha256Crypt(candidate, parseShaCryptSalt(stored), rounds)), nil
	case strings.HasPrefix(stored, "$6$"):
		rounds := parseShaCryptRounds(stored)
		return constEq(stored, sha512Crypt(candidate, parseShaCryptSalt(stored), rounds)), nil
	case strings.HasPrefix(stored, "$y$"):
		return verifyYescrypt(stored, candidate)
	case strings.HasPrefix(stored, "$2a$"), strings.HasPrefix(stored, "$2b$"), strings.HasPrefix(stored, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate))
		if err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	case len(stored) == 13: // traditional 2-char-salt DES crypt
		return constEq(stored, desCrypt(candidate, stored[:2])), nil
	default:
		return false, ErrMalformedHash
	}
}

func verifyYescrypt(stored, candidate string) (bool, error) {
	parts := strings.Split(stored, "$")
	if len(parts) != 5 {
		return false, ErrMalformedHash
	}
	var cost int
	if _, err := fmt.Sscanf(parts[2], "n=%d", &cost); err != nil {
		return false, ErrMalformedHash
	}
	salt := parts[3]
	recomputed, err := yescryptHash(candidate, salt, cost)
	if err != nil {
		return false, err
	}
	return constEq(stored, recomputed), nil
}

func constEq(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Locked reports whether a stored hash's '!'/'*' prefix marks the
// account as administratively locked (§4.E contract, §4.F rule 1).
func Locked(stored string) bool {
	return strings.HasPrefix(stored, "!") || strings.HasPrefix(stored, "*")
}

// Lock prefixes a stored hash with '!' to lock it without destroying the
// underlying hash, the same convention `passwd -l` relies on.
func Lock(stored string) string {
	if Locked(stored) {
		return stored
	}
	return "!" + stored
}

// Unlock strips a single leading '!' lock marker, if present.
func Unlock(stored string) string {
	return strings.TrimPrefix(stored, "!")
}
