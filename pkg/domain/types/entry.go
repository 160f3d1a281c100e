package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/oklog/ulid/v2"
)

// EntryID identifies one log entry for its whole lifetime.
type EntryID string

const (
	EmptyEntryID EntryID = ""

	// derivedPrefix marks IDs computed from the content of entries that were
	// written without an ID.
	derivedPrefix = "d-"
)

func (x EntryID) String() string {
	return string(x)
}

// NewEntryID returns a ULID stamped with t, so IDs sort by creation time.
func NewEntryID(t time.Time) EntryID {
	return EntryID(ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String())
}

// DeriveEntryID returns a deterministic ID for an entry that carries none.
// Equal field values always yield the same ID.
func DeriveEntryID(fields ...string) EntryID {
	h := sha256.New()
	for _, f := range fields {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	return EntryID(derivedPrefix + hex.EncodeToString(h.Sum(nil))[:26])
}

// IsDerived reports whether x was computed by DeriveEntryID.
func (x EntryID) IsDerived() bool {
	return strings.HasPrefix(string(x), derivedPrefix)
}

func (x EntryID) Validate() error {
	if x == EmptyEntryID {
		return goerr.New("empty entry ID")
	}
	if x.IsDerived() {
		if len(x) != len(derivedPrefix)+26 {
			return goerr.New("invalid derived entry ID", goerr.V("id", x))
		}
		return nil
	}
	if _, err := ulid.ParseStrict(string(x)); err != nil {
		return goerr.Wrap(err, "invalid entry ID format", goerr.V("id", x))
	}
	return nil
}

// EntryIDs converts a slice of IDs to their string form.
func EntryIDs(ids []EntryID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
