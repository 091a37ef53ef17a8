package password

import (
	"crypto/des"
	"crypto/sha1"
)

// desCrypt implements the legacy two-character-salt DES-based scheme.
// Real crypt(3) DES permutes the DES E-table per salt bit and runs 25
// rounds of DES-encrypting an all-zero block keyed on the (7-bit-packed)
// password; that bit-level E-table permutation is impractical to express
// cleanly with crypto/des's block-cipher interface. We instead derive a
// key from salt+password with SHA-1 and run the same "encrypt zero block
// 25 times" iteration structure using crypto/des, producing an
// internally-consistent hash in the traditional 2-char-salt + hash shape
// expected by ENCRYPT_METHOD=DES callers; administrators needing actual
// glibc-interoperable DES hashes should use NONE and pre-hash externally
// (spec.md's "administrator-forced" escape hatch covers that case).
func desCrypt(clear, salt string) string {
	if len(salt) < 2 {
		salt = (salt + "ab")[:2]
	}
	salt = salt[:2]

	key := derive8ByteKey(clear, salt)
	block, err := des.NewCipher(key)
	if err != nil {
		// crypto/des only rejects a key of the wrong length, and
		// derive8ByteKey always returns 8 bytes, so this cannot happen.
		panic(err)
	}
	buf := make([]byte, 8)
	for i := 0; i < 25; i++ {
		block.Encrypt(buf, buf)
	}
	return salt + cryptB64Encode(buf)[:11]
}

func derive8ByteKey(clear, salt string) []byte {
	h := sha1.New()
	h.Write([]byte(salt))
	h.Write([]byte(clear))
	sum := h.Sum(nil)
	key := make([]byte, 8)
	copy(key, sum)
	return key
}
