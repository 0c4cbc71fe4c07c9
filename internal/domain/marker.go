package domain

import (
	"strings"
	"unicode"
)

// PaymentMarkerPrefix tags the note line that older exports used to record
// which transaction paid a planned payment.
const PaymentMarkerPrefix = "__PAYMENT_TX_ID__:"

// EncodeMarker appends the legacy payment marker line to note.
func EncodeMarker(note, transactionID string) string {
	if note == "" {
		return PaymentMarkerPrefix + transactionID
	}
	return note + "\n" + PaymentMarkerPrefix + transactionID
}

// DecodeMarker extracts a legacy payment marker from note. It returns the
// note without the marker line, the transaction id and whether a well-formed
// marker was found. The id is any non-empty token without whitespace, so ids
// from a custom generator survive an export and import. Marker lines that do
// not carry such a token are left in place.
func DecodeMarker(note string) (clean string, transactionID string, ok bool) {
	idx := strings.LastIndex(note, PaymentMarkerPrefix)
	if idx < 0 {
		return note, "", false
	}
	if idx > 0 && note[idx-1] != '\n' {
		return note, "", false
	}
	rest := note[idx+len(PaymentMarkerPrefix):]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	id := strings.TrimSpace(rest)
	if id == "" || strings.ContainsFunc(id, unicode.IsSpace) {
		return note, "", false
	}

	before := note[:idx]
	after := note[idx+len(PaymentMarkerPrefix)+len(rest):]
	before = strings.TrimSuffix(before, "\n")
	if before != "" && after != "" {
		return before + after, id, true
	}
	return before + strings.TrimPrefix(after, "\n"), id, true
}
