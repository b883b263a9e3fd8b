package subsonic

import (
	"crypto/md5"
	"encoding/hex"
)

// token is md5(password + salt), as required by API 1.13.0+.
func token(password, salt string) string {
	sum := md5.Sum([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

func hexEncode(s string) string {
	return hex.EncodeToString([]byte(s))
}
