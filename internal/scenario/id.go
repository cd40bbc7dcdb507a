package scenario

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync/atomic"
	"time"
)

var idSeq atomic.Uint64

// newID derives a readable, unique-enough id for content arriving without one.
// Shape: "<slug>-<hash>", where the hash covers the full content plus a
// timestamp and sequence number so two normalizations of identical text still
// get distinct ids (the dedup key is Hash, not ID).
func newID(question, perspective string) string {
	slug := slugifyASCII(question)
	if slug == "" {
		slug = "scenario"
	}
	if len(slug) > 24 {
		slug = strings.Trim(slug[:24], "-")
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(question))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(perspective))
	_, _ = fmt.Fprintf(h, "|%d|%d", time.Now().UnixNano(), idSeq.Add(1))
	return fmt.Sprintf("%s-%08x", slug, uint32(h.Sum64()&0xffffffff))
}

// slugifyASCII keeps only ASCII letters and digits, so byte truncation of the
// result never lands mid-rune. Text without any falls back to "scenario".
func slugifyASCII(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
