package classifier

import (
	"crypto/rand"
	"strings"
	"time"
)

const (
	primaryLanguage = "en"

	sessionHashLength   = 15
	sessionHashAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// ModelURLForLanguage picks the classification endpoint for a
// two-letter language code: the primary endpoint for the primary
// supported language, the shared endpoint for everything else.
func ModelURLForLanguage(primaryURL, sharedURL, language string) string {
	if strings.EqualFold(language, primaryLanguage) {
		return primaryURL
	}

	return sharedURL
}

// newSessionHash generates the random token scoping one queued job on
// the shared remote service.
func newSessionHash() string {
	buf := make([]byte, sessionHashLength)

	if _, err := rand.Read(buf); err != nil {
		// a session hash only needs to avoid collisions
		now := time.Now().UnixNano()
		for i := range buf {
			buf[i] = byte(now >> (uint(i%8) * 8))
		}
	}

	out := make([]byte, sessionHashLength)
	for i, b := range buf {
		out[i] = sessionHashAlphabet[int(b)%len(sessionHashAlphabet)]
	}

	return string(out)
}
