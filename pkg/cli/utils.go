package cli

import (
	"context"
	"log/slog"

	"github.com/kazanshin/website/pkg/cli/config"
	"github.com/kazanshin/website/pkg/service/maintenance"
	"github.com/kazanshin/website/pkg/usecase"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/kazanshin/website/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func joinFlags(flags ...[]cli.Flag) []cli.Flag {
	var result []cli.Flag
	for _, flag := range flags {
		result = append(result, flag...)
	}
	return result
}

// logConfig is the configuration every command touching the log shares.
type logConfig struct {
	store   config.Store
	persona config.Persona
}

func (x *logConfig) Flags() []cli.Flag {
	return joinFlags(x.store.Flags(), x.persona.Flags())
}

func (x logConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("store", x.store),
		slog.Any("persona", x.persona),
	)
}

// configure builds use cases that read and write the log without a model.
// The returned closer must be called even when an error is returned.
func (x *logConfig) configure(ctx context.Context) (*usecase.UseCases, func(), error) {
	closer := func() {}

	p, err := x.persona.Configure()
	if err != nil {
		return nil, closer, err
	}

	store, err := x.store.Configure(ctx)
	if err != nil {
		return nil, closer, err
	}
	closer = func() { safe.Close(ctx, store) }

	uc := usecase.New(
		usecase.WithStore(store),
		usecase.WithPersona(p),
		usecase.WithLogKey(x.store.LogKey()),
	)
	return uc, closer, nil
}

// turnConfig adds the generation and maintenance stack to logConfig.
type turnConfig struct {
	logConfig
	llm         config.LLM
	maintenance config.Maintenance
	storage     config.Storage
}

func (x *turnConfig) Flags() []cli.Flag {
	return joinFlags(
		x.logConfig.Flags(),
		x.llm.Flags(),
		x.maintenance.Flags(),
		x.storage.Flags(),
	)
}

func (x turnConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("store", x.store),
		slog.Any("persona", x.persona),
		slog.Any("llm", x.llm),
		slog.Any("maintenance", x.maintenance),
		slog.Any("storage", &x.storage),
	)
}

// configure builds the full use case set. Its closer waits for background
// maintenance before releasing the archive and store clients, and must be
// called even when an error is returned.
func (x *turnConfig) configure(ctx context.Context) (*usecase.UseCases, func(), error) {
	var closers []func()
	closer := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	p, err := x.persona.Configure()
	if err != nil {
		return nil, closer, err
	}

	runner, err := x.maintenance.Runner()
	if err != nil {
		return nil, closer, err
	}

	cfg, err := x.maintenance.Config(x.store.LogKey(), x.store.LockKey(), p.Marker(), x.llm.Budget())
	if err != nil {
		return nil, closer, err
	}

	generator, err := x.llm.NewGenerator(ctx)
	if err != nil {
		return nil, closer, err
	}

	store, err := x.store.Configure(ctx)
	if err != nil {
		return nil, closer, err
	}
	closers = append(closers, func() { safe.Close(ctx, store) })

	archiver, closeArchive, err := x.storage.Configure(ctx)
	if err != nil {
		return nil, closer, err
	}
	closers = append(closers, closeArchive)

	var opts []maintenance.CompactorOption
	if archiver != nil {
		opts = append(opts, maintenance.WithArchiver(archiver))
	} else {
		logging.From(ctx).Debug("archive bucket is not set, compacted entries are discarded")
	}

	uc := usecase.New(
		usecase.WithStore(store),
		usecase.WithGenerator(generator),
		usecase.WithPersona(p),
		usecase.WithAssembler(x.persona.Assembler(p)),
		usecase.WithMaintainer(maintenance.New(store, generator, cfg, opts...)),
		usecase.WithRunner(runner),
		usecase.WithLogKey(x.store.LogKey()),
	)
	closers = append(closers, uc.Wait)

	return uc, closer, nil
}
