package logentry

import (
	"context"
	"time"

	"github.com/kazanshin/website/pkg/domain/types"
	"github.com/kazanshin/website/pkg/utils/clock"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RolePulse     Role = "pulse"
	RoleMemory    Role = "memory"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RolePulse, RoleMemory:
		return true
	}
	return false
}

type Kind string

const (
	KindNone         Kind = ""
	KindMemory       Kind = "memory"
	KindMetaMemory   Kind = "meta-memory"
	KindFoundational Kind = "foundational"
)

func (k Kind) Valid() bool {
	switch k {
	case KindNone, KindMemory, KindMetaMemory, KindFoundational:
		return true
	}
	return false
}

// TimeFormat is the ISO-8601 layout of Entry.TS, UTC with milliseconds.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// Entry is one immutable record of the conversation log.
type Entry struct {
	ID      types.EntryID   `json:"id,omitempty"`
	Role    Role            `json:"role"`
	Kind    Kind            `json:"kind,omitempty"`
	Content string          `json:"content"`
	TS      string          `json:"ts"`
	Sources []types.EntryID `json:"sources,omitempty"`
}

// New creates a raw entry stamped with the clock in ctx.
func New(ctx context.Context, role Role, content string) Entry {
	now := clock.Now(ctx).UTC()
	return Entry{
		ID:      types.NewEntryID(now),
		Role:    role,
		Content: content,
		TS:      now.Format(TimeFormat),
	}
}

// NewMemory creates a first-tier summary of the entries in sources.
func NewMemory(ctx context.Context, content string, sources []types.EntryID) Entry {
	e := New(ctx, RoleMemory, content)
	e.Kind = KindMemory
	e.Sources = sources
	return e
}

// NewMetaMemory creates a second-tier summary merging the memory entries in sources.
func NewMetaMemory(ctx context.Context, content string, sources []types.EntryID) Entry {
	e := New(ctx, RoleMemory, content)
	e.Kind = KindMetaMemory
	e.Sources = sources
	return e
}

// NewFoundational creates a marker entry that maintenance never removes.
// ts is kept verbatim when set so that seeding is reproducible.
func NewFoundational(ctx context.Context, content, ts string) Entry {
	e := New(ctx, RoleMemory, content)
	e.Kind = KindFoundational
	if ts != "" {
		e.TS = ts
		e.ID = types.EmptyEntryID
		e.ID = e.Identity()
	}
	return e
}

// IsConversational reports whether e is a raw turn eligible for compaction.
func (e Entry) IsConversational() bool {
	switch e.Role {
	case RoleUser, RoleAssistant, RolePulse:
		return e.Kind == KindNone
	}
	return false
}

func (e Entry) IsMemory() bool       { return e.Kind == KindMemory }
func (e Entry) IsMetaMemory() bool   { return e.Kind == KindMetaMemory }
func (e Entry) IsFoundational() bool { return e.Kind == KindFoundational }

// Time parses TS. Entries from older writers may use any RFC 3339 form.
func (e Entry) Time() (time.Time, error) {
	if t, err := time.Parse(TimeFormat, e.TS); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, e.TS)
}

// Render maps a conversational entry to the role and text the generation
// service sees. A pulse turn becomes an assistant turn prefixed with
// pulseMarker; an empty marker folds it in without a trace. ok is false for
// non-conversational entries.
func (e Entry) Render(pulseMarker string) (role Role, content string, ok bool) {
	if !e.IsConversational() {
		return "", "", false
	}
	switch e.Role {
	case RolePulse:
		return RoleAssistant, pulseMarker + e.Content, true
	default:
		return e.Role, e.Content, true
	}
}

// IDs returns the IDs of entries in order.
func IDs(entries []Entry) []types.EntryID {
	ids := make([]types.EntryID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

// Filter returns the entries for which keep is true.
func Filter(entries []Entry, keep func(Entry) bool) []Entry {
	var out []Entry
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// Clip shortens s to at most max characters, marking the cut. A non-positive
// max disables clipping.
func Clip(s string, max int) string {
	const marker = "\n\n[...clipped...]\n"
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	keep := max - len([]rune(marker))
	if keep < 0 {
		keep = 0
	}
	return string(r[:keep]) + marker
}
