package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
)

// Fingerprint computes a stable identifier for an inbound event: a sha256
// over the customer id, the normalized message body (or the image checksum
// when the reply carries an image), and a coarse time bucket. Replays of the
// same event inside the same bucket produce the same fingerprint.
func Fingerprint(ev domain.InboundEvent, bucket time.Duration) string {
	body := normalizeBody(ev.MessageText)
	if ev.ImageRef != "" {
		body = ev.ImageRef
	}

	slot := int64(0)
	if bucket > 0 {
		slot = time.Unix(ev.ReceivedAt, 0).UTC().Unix() / int64(bucket.Seconds())
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d", domain.NormalizePhone(ev.CustomerID), body, slot)
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeBody lowercases and collapses whitespace so trivially re-encoded
// redeliveries of the same message hash identically.
func normalizeBody(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
