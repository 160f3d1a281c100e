package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Chat reads the log, answers message and records both turns. Maintenance
// is handed to the runner once the reply is stored.
func (u *UseCases) Chat(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", goerr.New("message is empty", goerr.T(errs.TagValidation))
	}

	request := logentry.New(ctx, logentry.RoleUser, message)
	reply, err := u.turn(ctx, message, &request, logentry.RoleAssistant)
	if err != nil {
		return "", goerr.Wrap(err, "failed to answer message")
	}
	return reply, nil
}

// Pulse asks for a reflective turn. The pulse instruction is not stored;
// the reply is recorded with the pulse role.
func (u *UseCases) Pulse(ctx context.Context) (string, error) {
	reply, err := u.turn(ctx, u.persona.PulseMessage, nil, logentry.RolePulse)
	if err != nil {
		return "", goerr.Wrap(err, "failed to produce pulse")
	}
	return reply, nil
}

func (u *UseCases) turn(ctx context.Context, prompt string, request *logentry.Entry, replyRole logentry.Role) (string, error) {
	if u.generator == nil {
		return "", goerr.New("generation service is not configured", goerr.T(errs.TagInternal))
	}
	logger := logging.From(ctx)

	log, err := u.store.Range(ctx, u.logKey, 0, -1)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read log")
	}
	w := u.assembler.Build(u.persona.SystemPrompt, log, prompt)

	if request != nil {
		if err := u.store.Append(ctx, u.logKey, *request); err != nil {
			return "", goerr.Wrap(err, "failed to append request", goerr.V("id", request.ID))
		}
	}

	reply, err := u.generator.Generate(ctx, w)
	if err != nil {
		return "", err
	}

	entry := logentry.New(ctx, replyRole, reply)
	if err := u.store.Append(ctx, u.logKey, entry); err != nil {
		return "", goerr.Wrap(err, "failed to append reply", goerr.V("id", entry.ID))
	}

	logger.Info("turn recorded",
		"role", replyRole,
		"log_len", len(log),
		"window_size", w.Size(),
		"reply_id", entry.ID,
	)

	u.scheduleMaintenance(ctx)
	return reply, nil
}

func (u *UseCases) scheduleMaintenance(ctx context.Context) {
	if u.maintainer == nil {
		return
	}

	err := u.runner.Submit(ctx, "maintenance", func(ctx context.Context) error {
		report, err := u.maintainer.Run(ctx)
		if err != nil {
			return err
		}
		logReport(ctx, report)
		return nil
	})
	if err != nil && !errors.Is(err, errs.ErrMaintenanceBusy) {
		errs.Handle(ctx, err)
	}
}
