package llm

import (
	"github.com/kazanshin/website/pkg/domain/model/window"
	"github.com/m-mizutani/gollem"
)

var IsRateLimited = isRateLimited

func ToRequest(w window.Window) (systemPrompt string, history *gollem.History, input string, err error) {
	req, err := toRequest(w)
	if err != nil {
		return "", nil, "", err
	}
	return req.systemPrompt, req.history, req.input, nil
}
