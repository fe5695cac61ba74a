package common

import (
	"crypto/rand"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

func HexStrToByteSlice(hexStr string) []byte {
	return ethcommon.Hex2Bytes(Trim0xPrefix(hexStr))
}

// Trim 0x or 0X prefix off the string.
func Trim0xPrefix(str string) string {
	s := strings.TrimPrefix(str, "0x")
	return strings.TrimPrefix(s, "0X")
}

// RandBytes32 generates [32]byte with random values
func RandBytes32() [32]byte {
	var b [32]byte
	n, err := rand.Read(b[:])

	if err != nil {
		return [32]byte{}
	}
	if n != 32 {
		return [32]byte{}
	}

	return b
}

// Shorten shortens a hex string so that both sides have n characters and
// the rest is replaced with "..."
func Shorten(hexStr string, n int) string {
	str := Trim0xPrefix(hexStr)

	if len(str) <= n*2 {
		return str
	}
	return str[:n] + "..." + str[len(str)-n:]
}

// IsHexString reports whether s (0x prefix allowed) is non-empty, even-length hex.
func IsHexString(s string) bool {
	s = Trim0xPrefix(s)
	if len(s) == 0 || len(s)%2 != 0 {
		return false
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
