// Package bucket implements the append-only, newline-delimited record
// format used by index buckets: one record per line, "<entry-hash>\t<json>",
// where entry-hash guards against torn writes from non-atomic appends.
package bucket

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Entry is the parsed payload of a valid bucket record.
type Entry struct {
	Key       string          `json:"key"`
	Integrity string          `json:"integrity"`
	Time      int64           `json:"time"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Size      *int64          `json:"size,omitempty"`
}

// Record is one line of a bucket file: the claimed hash and the raw
// payload bytes it was computed over.
type Record struct {
	Hash    string
	Payload []byte
}

// HashPayload computes the checksum a bucket record prefixes its payload
// with, used both to produce new records and to detect torn ones.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// ParseLine splits a single bucket line into its claimed hash and payload
// and reports whether the recomputed hash matches. A torn or corrupted
// line (truncated append, garbage suffix) fails this check and must be
// silently dropped, not treated as an entry.
func ParseLine(line []byte) (Record, bool) {
	for i, b := range line {
		if b == '\t' {
			hash := string(line[:i])
			payload := line[i+1:]
			if hash == "" || len(payload) == 0 {
				return Record{}, false
			}
			if HashPayload(payload) != hash {
				return Record{}, false
			}
			return Record{Hash: hash, Payload: append([]byte(nil), payload...)}, true
		}
	}
	return Record{}, false
}

// DecodeEntry parses a record's payload as an Entry. A payload that does
// not parse as a JSON object is not an entry and must be dropped.
func DecodeEntry(payload []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(payload, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// EncodePayload serializes an Entry back to its canonical JSON payload.
func EncodePayload(e Entry) ([]byte, error) {
	return json.Marshal(e)
}

// NewRecord builds a Record for a freshly-encoded payload, computing its
// hash the same way ParseLine verifies one.
func NewRecord(payload []byte) Record {
	return Record{Hash: HashPayload(payload), Payload: payload}
}

// FormatRecord renders a record in on-disk form: a leading newline
// followed by "<hash>\t<payload>". The leading newline means a bucket
// file holding N records is the concatenation of N such strings, and an
// empty bucket is zero bytes.
func FormatRecord(r Record) []byte {
	out := make([]byte, 0, 1+len(r.Hash)+1+len(r.Payload))
	out = append(out, '\n')
	out = append(out, r.Hash...)
	out = append(out, '\t')
	out = append(out, r.Payload...)
	return out
}
