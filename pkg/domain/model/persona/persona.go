package persona

import (
	"bytes"
	_ "embed"
	"os"
	"strings"
	"text/template"

	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

//go:embed prompt/system.md
var defaultSystemPrompt string

//go:embed prompt/default.yaml
var defaultPersonaYAML []byte

//go:embed prompt/compaction.md
var compactionTemplateText string

//go:embed prompt/consolidation.md
var consolidationTemplateText string

var (
	compactionTemplate    = template.Must(template.New("compaction").Parse(compactionTemplateText))
	consolidationTemplate = template.Must(template.New("consolidation").Parse(consolidationTemplateText))
)

// Marker is a foundational entry seeded into an empty or new log.
type Marker struct {
	Content string `yaml:"content"`
	TS      string `yaml:"ts"`
}

// Persona is the fixed text surrounding every generation call.
type Persona struct {
	SystemPrompt string   `yaml:"system_prompt"`
	PulseMessage string   `yaml:"pulse_message"`
	Foundational []Marker `yaml:"foundational"`

	// PulseMarker prefixes pulse turns when they are shown to the model. A
	// nil value keeps the default; an empty string disables the marker.
	PulseMarker *string `yaml:"pulse_marker"`
}

// Default returns the built-in persona.
func Default() *Persona {
	var p Persona
	if err := yaml.Unmarshal(defaultPersonaYAML, &p); err != nil {
		panic("embedded persona is broken: " + err.Error())
	}
	p.SystemPrompt = strings.TrimSpace(defaultSystemPrompt)
	return &p
}

// Load reads a YAML persona file. Fields absent from the file keep their
// built-in values.
func Load(path string) (*Persona, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read persona file", goerr.V("path", path))
	}

	p := Default()
	var override Persona
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, goerr.Wrap(err, "failed to parse persona file",
			goerr.V("path", path), goerr.T(errs.TagValidation))
	}

	if override.SystemPrompt != "" {
		p.SystemPrompt = strings.TrimSpace(override.SystemPrompt)
	}
	if override.PulseMessage != "" {
		p.PulseMessage = override.PulseMessage
	}
	if override.PulseMarker != nil {
		p.PulseMarker = override.PulseMarker
	}
	if override.Foundational != nil {
		p.Foundational = override.Foundational
	}

	if err := p.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid persona file", goerr.V("path", path))
	}
	return p, nil
}

func (p *Persona) Validate() error {
	if strings.TrimSpace(p.SystemPrompt) == "" {
		return goerr.New("system prompt is empty", goerr.T(errs.TagValidation))
	}
	if strings.TrimSpace(p.PulseMessage) == "" {
		return goerr.New("pulse message is empty", goerr.T(errs.TagValidation))
	}
	for i, m := range p.Foundational {
		if strings.TrimSpace(m.Content) == "" {
			return goerr.New("foundational marker has no content",
				goerr.V("index", i), goerr.T(errs.TagValidation))
		}
	}
	return nil
}

// Marker returns the pulse marker in effect.
func (p *Persona) Marker() string {
	if p.PulseMarker == nil {
		return ""
	}
	return *p.PulseMarker
}

// WithPulseMarker returns a copy of p using marker.
func (p *Persona) WithPulseMarker(marker string) *Persona {
	cp := *p
	cp.PulseMarker = &marker
	return &cp
}

// CompactionPrompt renders the instruction that turns a transcript into a
// memory note.
func CompactionPrompt(transcript string) (string, error) {
	var buf bytes.Buffer
	if err := compactionTemplate.Execute(&buf, struct{ Transcript string }{transcript}); err != nil {
		return "", goerr.Wrap(err, "failed to render compaction prompt", goerr.T(errs.TagInternal))
	}
	return buf.String(), nil
}

// ConsolidationPrompt renders the instruction that merges memory notes.
func ConsolidationPrompt(memories string) (string, error) {
	var buf bytes.Buffer
	if err := consolidationTemplate.Execute(&buf, struct{ Memories string }{memories}); err != nil {
		return "", goerr.Wrap(err, "failed to render consolidation prompt", goerr.T(errs.TagInternal))
	}
	return buf.String(), nil
}

// MaintenanceSystemPrompt frames the compaction and consolidation calls.
const MaintenanceSystemPrompt = "You maintain the long-term memory of one ongoing conversation. Reply with the memory note only, without preamble."
