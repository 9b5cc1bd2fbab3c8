package alerting

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Fingerprint derives the deterministic dedup key for an alert candidate
// from (check_id, status, normalized message). Fingerprints live only in the
// in-memory suppression map; they are never persisted as keys.
func Fingerprint(checkID, status, message string) string {
	h := sha256.New()
	h.Write([]byte(checkID))
	h.Write([]byte{0})
	h.Write([]byte(status))
	h.Write([]byte{0})
	h.Write([]byte(normalizeMessage(message)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// normalizeMessage lowercases, collapses whitespace, and replaces runs of
// three or more digits with a placeholder so embedded latencies, counts, and
// identifiers do not defeat deduplication.
func normalizeMessage(msg string) string {
	var b strings.Builder
	b.Grow(len(msg))

	lastSpace := false
	digitRun := 0
	flushDigits := func() {
		if digitRun == 0 {
			return
		}
		if digitRun >= 3 {
			b.WriteByte('#')
		} else {
			for i := 0; i < digitRun; i++ {
				b.WriteByte('0')
			}
		}
		digitRun = 0
	}

	for _, r := range strings.ToLower(msg) {
		switch {
		case unicode.IsDigit(r):
			digitRun++
			lastSpace = false
		case unicode.IsSpace(r):
			flushDigits()
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		default:
			flushDigits()
			b.WriteRune(r)
			lastSpace = false
		}
	}
	flushDigits()
	return strings.TrimSpace(b.String())
}
