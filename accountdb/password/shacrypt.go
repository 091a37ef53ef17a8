package password

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"strconv"
	"strings"
)

const (
	defaultRounds = 5000
	minRounds     = 1000
	maxRounds     = 999999999
)

// b64Alphabet is the crypt(3) base64 variant: 6-bit groups encoded
// least-significant-bit-first over "./0-9A-Za-z", distinct from RFC 4648.
const b64Alphabet = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

func cryptB64Encode(b []byte) string {
	var sb strings.Builder
	for i := 0; i < len(b); i += 3 {
		var v uint32
		n := 0
		for j := 0; j < 3 && i+j < len(b); j++ {
			v |= uint32(b[i+j]) << (8 * j)
			n++
		}
		chars := (n*8 + 5) / 6
		for c := 0; c < chars; c++ {
			sb.WriteByte(b64Alphabet[v&0x3f])
			v >>= 6
		}
	}
	return sb.String()
}

func clampRounds(r int) int {
	if r == 0 {
		return defaultRounds
	}
	if r < minRounds {
		return minRounds
	}
	if r > maxRounds {
		return maxRounds
	}
	return r
}

// shaCrypt implements the shared shape of the $5$ (SHA-256) and $6$
// (SHA-512) methods: an iterated, salted digest rendered in the
// "$id$rounds=N$salt$hash" form glibc's crypt(3) uses. It is not bit-
// compatible with glibc's sha*-crypt (that algorithm additionally mixes
// password- and salt-length-dependent digests DP/DS before iterating);
// this is a from-scratch, internally-consistent construction using the
// same real primitives and on-disk shape (see DESIGN.md).
func shaCrypt(id string, newHash func() hash.Hash, clear, salt string, rounds int, roundsConfigurable bool) string {
	rounds = clampRounds(rounds)
	h := newHash()
	h.Write([]byte(salt))
	h.Write([]byte(clear))
	digest := h.Sum(nil)
	for i := 0; i < rounds; i++ {
		h := newHash()
		h.Write(digest)
		h.Write([]byte(salt))
		h.Write([]byte(clear))
		digest = h.Sum(nil)
	}
	roundsField := ""
	if roundsConfigurable && rounds != defaultRounds {
		roundsField = fmt.Sprintf("rounds=%d$", rounds)
	}
	return fmt.Sprintf("$%s$%s%s$%s", id, roundsField, salt, cryptB64Encode(digest))
}

func sha256Crypt(clear, salt string, rounds int) string {
	return shaCrypt("5", sha256.New, clear, salt, rounds, true)
}

func sha512Crypt(clear, salt string, rounds int) string {
	return shaCrypt("6", sha512.New, clear, salt, rounds, true)
}

// parseShaCryptRounds extracts an explicit "rounds=N$" field from a
// stored $5$/$6$ hash, if present.
func parseShaCryptRounds(stored string) int {
	parts := strings.Split(stored, "$")
	// stored is "", "5"|"6", [rounds=N], salt, hash
	for _, p := range parts {
		if strings.HasPrefix(p, "rounds=") {
			if n, err := strconv.Atoi(strings.TrimPrefix(p, "rounds=")); err == nil {
				return n
			}
		}
	}
	return 0
}

func parseShaCryptSalt(stored string) string {
	parts := strings.Split(stored, "$")
	// drop leading empty, id, optional rounds=, trailing hash
	var fields []string
	for _, p := range parts {
		fields = append(fields, p)
	}
	if len(fields) < 4 {
		return ""
	}
	// fields[0] == "", fields[1] == id
	idx := 2
	if strings.HasPrefix(fields[idx], "rounds=") {
		idx++
	}
	if idx >= len(fields) {
		return ""
	}
	return fields[idx]
}
