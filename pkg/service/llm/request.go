package llm

import (
	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/kazanshin/website/pkg/domain/model/window"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// request is a window split the way a gollem session consumes it: the
// leading system block becomes the system prompt, the turns in between
// become history and the final user message is the input.
type request struct {
	systemPrompt string
	history      *gollem.History
	input        string
}

func toRequest(w window.Window) (*request, error) {
	last, ok := w.Last()
	if !ok {
		return nil, goerr.New("empty message window", goerr.T(errs.TagValidation))
	}
	if last.Role != window.RoleUser {
		return nil, goerr.New("message window must end with a user message",
			goerr.V("role", last.Role), goerr.T(errs.TagValidation))
	}

	req := &request{
		systemPrompt: w.SystemPrompt(),
		input:        last.Content,
	}

	var messages []gollem.Message
	for _, m := range w.Turns() {
		var msg gollem.Message
		switch m.Role {
		case window.RoleUser:
			msg.Role = gollem.RoleUser
		case window.RoleAssistant:
			msg.Role = gollem.RoleAssistant
		default:
			continue
		}

		content, err := gollem.NewTextContent(m.Content)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to build history content", goerr.T(errs.TagInternal))
		}
		msg.Contents = []gollem.MessageContent{content}
		messages = append(messages, msg)
	}
	if len(messages) > 0 {
		req.history = &gollem.History{Messages: messages}
	}

	return req, nil
}
