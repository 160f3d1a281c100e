package usecase

import (
	"context"

	"github.com/kazanshin/website/pkg/domain/interfaces"
	"github.com/kazanshin/website/pkg/domain/model/persona"
	"github.com/kazanshin/website/pkg/repository/memory"
	"github.com/kazanshin/website/pkg/service/contextwindow"
	"github.com/kazanshin/website/pkg/service/maintenance"
	"github.com/kazanshin/website/pkg/utils/async"
)

const DefaultLogKey = "echo:log"

// Maintainer runs one maintenance pass over the log.
type Maintainer interface {
	Run(ctx context.Context) (*maintenance.Report, error)
}

type UseCases struct {
	// services and adapters
	store      interfaces.Store
	generator  interfaces.Generator
	assembler  *contextwindow.Assembler
	maintainer Maintainer
	runner     *async.Runner

	// configs
	persona *persona.Persona
	logKey  string
}

var _ interfaces.ChatUsecases = &UseCases{}
var _ interfaces.OperatorUsecases = &UseCases{}

type Option func(*UseCases)

func WithStore(store interfaces.Store) Option {
	return func(u *UseCases) {
		u.store = store
	}
}

func WithGenerator(generator interfaces.Generator) Option {
	return func(u *UseCases) {
		u.generator = generator
	}
}

func WithAssembler(assembler *contextwindow.Assembler) Option {
	return func(u *UseCases) {
		u.assembler = assembler
	}
}

func WithPersona(p *persona.Persona) Option {
	return func(u *UseCases) {
		u.persona = p
	}
}

// WithMaintainer enables log maintenance after every recorded turn.
func WithMaintainer(maintainer Maintainer) Option {
	return func(u *UseCases) {
		u.maintainer = maintainer
	}
}

func WithRunner(runner *async.Runner) Option {
	return func(u *UseCases) {
		u.runner = runner
	}
}

func WithLogKey(key string) Option {
	return func(u *UseCases) {
		u.logKey = key
	}
}

func New(opts ...Option) *UseCases {
	u := &UseCases{
		store:   memory.New(),
		runner:  async.NewRunner(async.ModeSync, 1),
		persona: persona.Default(),
		logKey:  DefaultLogKey,
	}

	for _, opt := range opts {
		opt(u)
	}

	if u.assembler == nil {
		u.assembler = contextwindow.New(contextwindow.WithPulseMarker(u.persona.Marker()))
	}

	return u
}
