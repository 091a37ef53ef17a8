package password

import "crypto/rand"

// saltLen is the shaCrypt/md5Crypt salt length; glibc allows up to 16.
const saltLen = 16

func randomSalt(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("password: crypto/rand unavailable: " + err.Error())
	}
	out := make([]byte, n)
	for i, v := range b {
		out[i] = b64Alphabet[int(v)%len(b64Alphabet)]
	}
	return string(out)
}
