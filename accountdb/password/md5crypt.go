package password

import "crypto/md5"

const md5CryptRounds = 1000

// md5Crypt follows the same simplified-but-real construction as
// shaCrypt (see its doc comment) with the $1$ identifier and a fixed
// iteration count, matching glibc's fixed (non-configurable) MD5-crypt
// round count.
func md5Crypt(clear, salt string) string {
	return shaCrypt("1", md5.New, clear, salt, md5CryptRounds, false)
}
