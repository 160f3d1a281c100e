package logentry

import (
	"encoding/json"

	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/kazanshin/website/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// wireEntry mirrors Entry with a pointer content so a missing or non-string
// content can be told apart from an empty one.
type wireEntry struct {
	ID      types.EntryID   `json:"id,omitempty"`
	Role    Role            `json:"role"`
	Kind    Kind            `json:"kind,omitempty"`
	Content *string         `json:"content"`
	TS      string          `json:"ts"`
	Sources []types.EntryID `json:"sources,omitempty"`
}

// Marshal serializes e to the text form stored in the log.
func Marshal(e Entry) (string, error) {
	if !e.Role.Valid() {
		return "", goerr.New("invalid role", goerr.V("role", e.Role), goerr.T(errs.TagValidation))
	}
	if !e.Kind.Valid() {
		return "", goerr.New("invalid kind", goerr.V("kind", e.Kind), goerr.T(errs.TagValidation))
	}
	e.ID = e.Identity()

	raw, err := json.Marshal(e)
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal log entry", goerr.V("id", e.ID))
	}
	return string(raw), nil
}

// Parse decodes one stored record. Every failure carries errs.TagCorruptEntry
// so readers can skip the record and keep going.
func Parse(raw string) (Entry, error) {
	var w wireEntry
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return Entry{}, goerr.Wrap(err, "failed to parse log entry",
			goerr.V("raw", truncate(raw)), goerr.T(errs.TagCorruptEntry))
	}
	if w.Content == nil {
		return Entry{}, goerr.New("log entry has no content",
			goerr.V("raw", truncate(raw)), goerr.T(errs.TagCorruptEntry))
	}
	if !w.Role.Valid() {
		return Entry{}, goerr.New("log entry has unknown role",
			goerr.V("role", w.Role), goerr.T(errs.TagCorruptEntry))
	}
	if !w.Kind.Valid() {
		return Entry{}, goerr.New("log entry has unknown kind",
			goerr.V("kind", w.Kind), goerr.T(errs.TagCorruptEntry))
	}

	e := Entry{
		ID:      w.ID,
		Role:    w.Role,
		Kind:    w.Kind,
		Content: *w.Content,
		TS:      w.TS,
		Sources: w.Sources,
	}
	e.ID = e.Identity()
	return e, nil
}

// Identity returns the ID of e, deriving one from its fields when it was
// written without an ID.
func (e Entry) Identity() types.EntryID {
	if e.ID != types.EmptyEntryID {
		return e.ID
	}
	return types.DeriveEntryID(string(e.Role), string(e.Kind), e.Content, e.TS)
}

func truncate(s string) string {
	const max = 256
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
