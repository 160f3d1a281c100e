package contextwindow

import (
	"strings"

	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/domain/model/window"
)

const (
	DefaultRecentTurns    = 20
	DefaultMaxMemories    = 10
	DefaultMaxMemoryChars = 20000
)

// Assembler turns the stored log into the message window of one generation
// call.
type Assembler struct {
	recentTurns     int
	maxMemories     int
	maxMetaMemories int
	maxMemoryChars  int
	pulseMarker     string
}

type Option func(*Assembler)

// WithRecentTurns sets how many conversational entries follow the memory
// block.
func WithRecentTurns(n int) Option {
	return func(a *Assembler) {
		a.recentTurns = n
	}
}

// WithMaxMemories caps the memory entries shown, newest first.
func WithMaxMemories(n int) Option {
	return func(a *Assembler) {
		a.maxMemories = n
	}
}

// WithMaxMetaMemories caps the meta-memory entries shown. Zero shows all.
func WithMaxMetaMemories(n int) Option {
	return func(a *Assembler) {
		a.maxMetaMemories = n
	}
}

// WithMaxMemoryChars bounds the meta-memory and memory blocks together.
func WithMaxMemoryChars(n int) Option {
	return func(a *Assembler) {
		a.maxMemoryChars = n
	}
}

func WithPulseMarker(marker string) Option {
	return func(a *Assembler) {
		a.pulseMarker = marker
	}
}

func New(opts ...Option) *Assembler {
	a := &Assembler{
		recentTurns:    DefaultRecentTurns,
		maxMemories:    DefaultMaxMemories,
		maxMemoryChars: DefaultMaxMemoryChars,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Build returns the window for userMessage. It always starts with
// systemPrompt and ends with the trimmed user message, whatever log holds.
func (a *Assembler) Build(systemPrompt string, log []logentry.Entry, userMessage string) window.Window {
	w := window.Window{{Role: window.RoleSystem, Content: systemPrompt}}

	var foundational, metas, memories, turns []logentry.Entry
	for _, e := range log {
		switch {
		case e.IsFoundational():
			foundational = append(foundational, e)
		case e.IsMetaMemory():
			metas = append(metas, e)
		case e.IsMemory():
			memories = append(memories, e)
		case e.IsConversational():
			turns = append(turns, e)
		}
	}

	for _, e := range foundational {
		w = append(w, window.Message{Role: window.RoleSystem, Content: e.Content})
	}

	budget := newCharBudget(a.maxMemoryChars)
	if block := memoryBlock("Consolidated memory", newest(metas, a.maxMetaMemories), budget); block != "" {
		w = append(w, window.Message{Role: window.RoleSystem, Content: block})
	}
	if block := memoryBlock("Recent memory", newest(memories, a.maxMemories), budget); block != "" {
		w = append(w, window.Message{Role: window.RoleSystem, Content: block})
	}

	for _, e := range newest(turns, a.recentTurns) {
		role, content, ok := e.Render(a.pulseMarker)
		if !ok {
			continue
		}
		switch role {
		case logentry.RoleUser:
			w = append(w, window.Message{Role: window.RoleUser, Content: content})
		case logentry.RoleAssistant:
			w = append(w, window.Message{Role: window.RoleAssistant, Content: content})
		}
	}

	return append(w, window.Message{Role: window.RoleUser, Content: strings.TrimSpace(userMessage)})
}

// newest returns the last n entries in their original order. A non-positive
// n keeps them all.
func newest(entries []logentry.Entry, n int) []logentry.Entry {
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

// charBudget is the remaining room shared by the memory blocks.
type charBudget struct {
	left      int
	unbounded bool
}

func newCharBudget(limit int) *charBudget {
	return &charBudget{left: limit, unbounded: limit <= 0}
}

func (b *charBudget) take(s string) string {
	if b.unbounded {
		return s
	}
	if b.left <= 0 {
		return ""
	}
	s = logentry.Clip(s, b.left)
	b.left -= len([]rune(s))
	return s
}

// memoryBlock joins entries under title, within budget.
func memoryBlock(title string, entries []logentry.Entry, budget *charBudget) string {
	if len(entries) == 0 {
		return ""
	}

	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.Content
	}
	return budget.take(title + ":\n" + strings.Join(parts, "\n---\n"))
}
