package window_test

import (
	"testing"

	"github.com/kazanshin/website/pkg/domain/model/window"
	"github.com/m-mizutani/gt"
)

func TestWindow(t *testing.T) {
	w := window.Window{
		{Role: window.RoleSystem, Content: "persona"},
		{Role: window.RoleSystem, Content: "memory"},
		{Role: window.RoleUser, Content: "q1"},
		{Role: window.RoleAssistant, Content: "a1"},
		{Role: window.RoleUser, Content: "q2"},
	}

	gt.Equal(t, w.SystemPrompt(), "persona\n\nmemory")
	gt.A(t, w.Turns()).Length(2)
	gt.Equal(t, w.Turns()[0].Content, "q1")

	last, ok := w.Last()
	gt.True(t, ok)
	gt.Equal(t, last.Content, "q2")
	gt.Equal(t, w.Size(), len("persona")+len("memory")+6)
}

func TestWindowMinimal(t *testing.T) {
	w := window.Window{
		{Role: window.RoleSystem, Content: "persona"},
		{Role: window.RoleUser, Content: "hi"},
	}
	gt.A(t, w.Turns()).Length(0)

	var empty window.Window
	_, ok := empty.Last()
	gt.False(t, ok)
	gt.Equal(t, empty.SystemPrompt(), "")
}
