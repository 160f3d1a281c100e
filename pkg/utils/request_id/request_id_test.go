package request_id_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/kazanshin/website/pkg/utils/request_id"
	"github.com/m-mizutani/gt"
)

func TestGenerate(t *testing.T) {
	ctx, id := request_id.Generate(context.Background())
	gt.Equal(t, request_id.FromContext(ctx), id)

	parsed, err := uuid.Parse(id)
	gt.NoError(t, err)
	gt.Equal(t, parsed.Version(), uuid.Version(7))

	gt.Equal(t, request_id.FromContext(context.Background()), "")
}

func TestAccept(t *testing.T) {
	given := "0190b5a4-6f3e-7c1a-9b2d-3e4f5a6b7c8d"

	testCases := map[string]struct {
		candidate string
		reused    bool
	}{
		"valid uuid": {candidate: given, reused: true},
		"empty":      {candidate: "", reused: false},
		"not a uuid": {candidate: "abc\nforged log line", reused: false},
		"uppercase":  {candidate: "0190B5A4-6F3E-7C1A-9B2D-3E4F5A6B7C8D", reused: true},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			ctx, id := request_id.Accept(context.Background(), tc.candidate)
			gt.Equal(t, request_id.FromContext(ctx), id)
			if tc.reused {
				gt.Equal(t, id, given)
			} else {
				gt.NotEqual(t, id, given)
				_, err := uuid.Parse(id)
				gt.NoError(t, err)
			}
		})
	}
}
