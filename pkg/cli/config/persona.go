package config

import (
	"log/slog"

	"github.com/kazanshin/website/pkg/domain/model/persona"
	"github.com/kazanshin/website/pkg/service/contextwindow"
	"github.com/urfave/cli/v3"
)

// Persona selects the prompts around every generation call and the shape
// of the context window.
type Persona struct {
	path           string
	pulseMarker    string
	recentTurns    int64
	maxMemories    int64
	maxMetaMemory  int64
	maxMemoryChars int64
}

func (x *Persona) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "persona-file",
			Usage:       "YAML file overriding the built-in persona",
			Category:    "Persona",
			Sources:     cli.EnvVars("ECHO_PERSONA_FILE"),
			Destination: &x.path,
		},
		&cli.StringFlag{
			Name:        "pulse-marker",
			Usage:       "Prefix of pulse turns shown to the model, 'none' disables it (default from persona)",
			Category:    "Persona",
			Sources:     cli.EnvVars("ECHO_PULSE_MARKER"),
			Destination: &x.pulseMarker,
		},
		&cli.Int64Flag{
			Name:        "context-recent-turns",
			Usage:       "Conversational turns included in each window",
			Category:    "Persona",
			Value:       contextwindow.DefaultRecentTurns,
			Sources:     cli.EnvVars("ECHO_CONTEXT_RECENT_TURNS"),
			Destination: &x.recentTurns,
		},
		&cli.Int64Flag{
			Name:        "context-max-memories",
			Usage:       "Memory entries included in each window",
			Category:    "Persona",
			Value:       contextwindow.DefaultMaxMemories,
			Sources:     cli.EnvVars("ECHO_CONTEXT_MAX_MEMORIES"),
			Destination: &x.maxMemories,
		},
		&cli.Int64Flag{
			Name:        "context-max-meta-memories",
			Usage:       "Meta-memory entries included in each window (0 includes all)",
			Category:    "Persona",
			Sources:     cli.EnvVars("ECHO_CONTEXT_MAX_META_MEMORIES"),
			Destination: &x.maxMetaMemory,
		},
		&cli.Int64Flag{
			Name:        "context-max-memory-chars",
			Usage:       "Characters of memory text included in each window",
			Category:    "Persona",
			Value:       contextwindow.DefaultMaxMemoryChars,
			Sources:     cli.EnvVars("ECHO_CONTEXT_MAX_MEMORY_CHARS"),
			Destination: &x.maxMemoryChars,
		},
	}
}

func (x Persona) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", x.path),
		slog.String("pulse_marker", x.pulseMarker),
		slog.Int64("recent_turns", x.recentTurns),
		slog.Int64("max_memories", x.maxMemories),
		slog.Int64("max_meta_memories", x.maxMetaMemory),
		slog.Int64("max_memory_chars", x.maxMemoryChars),
	)
}

// Configure loads the persona file, or the built-in persona when none is
// given, and applies the marker override.
func (x *Persona) Configure() (*persona.Persona, error) {
	p := persona.Default()
	if x.path != "" {
		loaded, err := persona.Load(x.path)
		if err != nil {
			return nil, err
		}
		p = loaded
	}

	switch x.pulseMarker {
	case "":
	case "none":
		p = p.WithPulseMarker("")
	default:
		p = p.WithPulseMarker(x.pulseMarker)
	}

	return p, nil
}

// Assembler builds the context assembler for p.
func (x *Persona) Assembler(p *persona.Persona) *contextwindow.Assembler {
	return contextwindow.New(
		contextwindow.WithRecentTurns(int(x.recentTurns)),
		contextwindow.WithMaxMemories(int(x.maxMemories)),
		contextwindow.WithMaxMetaMemories(int(x.maxMetaMemory)),
		contextwindow.WithMaxMemoryChars(int(x.maxMemoryChars)),
		contextwindow.WithPulseMarker(p.Marker()),
	)
}
