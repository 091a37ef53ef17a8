// Package password implements the §4.E password-hash facade: one
// operation (Hash) that salts and hashes a cleartext candidate according
// to a configured Method, plus Verify which re-hashes the candidate
// using the stored value as its own salt hint and compares in constant
// time. Nothing outside this package inspects hash internals except the
// aging evaluator's "starts with '!' or '*'" locked check.
package password

import "errors"

// Method enumerates the hashing schemes configurable via ENCRYPT_METHOD.
type Method int

const (
	NONE Method = iota
	DES
	MD5
	SHA256
	SHA512
	BCRYPT
	YESCRYPT
)

func (m Method) String() string {
	switch m {
	case NONE:
		return "NONE"
	case DES:
		return "DES"
	case MD5:
		return "MD5"
	case SHA256:
		return "SHA256"
	case SHA512:
		return "SHA512"
	case BCRYPT:
		return "BCRYPT"
	case YESCRYPT:
		return "YESCRYPT"
	default:
		return "UNKNOWN"
	}
}

// ParseMethod maps a login.defs ENCRYPT_METHOD value to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "NONE":
		return NONE, nil
	case "DES":
		return DES, nil
	case "MD5":
		return MD5, nil
	case "SHA256":
		return SHA256, nil
	case "SHA512":
		return SHA512, nil
	case "BCRYPT":
		return BCRYPT, nil
	case "YESCRYPT":
		return YESCRYPT, nil
	default:
		return NONE, errors.New("password: unknown ENCRYPT_METHOD " + s)
	}
}

// Params carries the optional per-method tuning knobs named in spec.md
// 4.E: SHA* rounds, BCRYPT/YESCRYPT cost.
type Params struct {
	Rounds int // SHA256/SHA512: 1000-999999999, 0 = method default
	Cost   int // BCRYPT: 4-31, 0 = method default; YESCRYPT: log2(N), 0 = default
}
