package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	server "github.com/kazanshin/website/pkg/controller/http"
	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/domain/model/window"
	"github.com/kazanshin/website/pkg/repository/memory"
	"github.com/kazanshin/website/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

const (
	testSecret     = "ui-secret"
	testCronSecret = "cron-secret"
	testLockKey    = "echo:lock:maintenance"
)

type fakeGenerator struct {
	reply string
	err   error
	calls int
}

func (g *fakeGenerator) Generate(ctx context.Context, w window.Window) (string, error) {
	g.calls++
	return g.reply, g.err
}

type fixture struct {
	store *memory.Memory
	gen   *fakeGenerator
	srv   *server.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	gen := &fakeGenerator{reply: "echoed"}
	uc := usecase.New(usecase.WithStore(store), usecase.WithGenerator(gen))
	return &fixture{
		store: store,
		gen:   gen,
		srv:   server.New(uc, server.WithSecret(testSecret), server.WithCronSecret(testCronSecret)),
	}
}

func (f *fixture) do(method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func ui() map[string]string   { return map[string]string{server.SecretHeader: testSecret} }
func cron() map[string]string { return map[string]string{server.CronSecretHeader: testCronSecret} }

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v)).Required()
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/health", "", nil)
	gt.V(t, rec.Code).Equal(http.StatusOK)
	gt.V(t, rec.Body.String()).Equal("ok")
}

func TestEchoPost(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/echo", `{"message":"hello"}`, ui())
	gt.V(t, rec.Code).Equal(http.StatusOK)
	resp := decode[map[string]string](t, rec)
	gt.V(t, resp["reply"]).Equal("echoed")

	n, err := f.store.Len(context.Background(), usecase.DefaultLogKey)
	gt.NoError(t, err)
	gt.V(t, n).Equal(int64(2))
}

func TestEchoPostBadRequest(t *testing.T) {
	testCases := map[string]struct {
		body string
		want string
	}{
		"broken json":   {body: `{"message":`, want: "invalid_json"},
		"empty message": {body: `{"message":"   "}`, want: "missing_message"},
		"no message":    {body: `{}`, want: "missing_message"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(http.MethodPost, "/api/echo", tc.body, ui())
			gt.V(t, rec.Code).Equal(http.StatusBadRequest)
			gt.V(t, decode[map[string]string](t, rec)["error"]).Equal(tc.want)
			gt.V(t, f.gen.calls).Equal(0)
		})
	}
}

func TestUnauthorizedLeavesStateUntouched(t *testing.T) {
	testCases := map[string]struct {
		method string
		target string
		body   string
		header map[string]string
	}{
		"echo without secret":      {method: http.MethodPost, target: "/api/echo", body: `{"message":"hi"}`},
		"echo with wrong secret":   {method: http.MethodPost, target: "/api/echo", body: `{"message":"hi"}`, header: map[string]string{server.SecretHeader: "nope"}},
		"echo with cron secret":    {method: http.MethodPost, target: "/api/echo", body: `{"message":"hi"}`, header: cron()},
		"logs without secret":      {method: http.MethodGet, target: "/api/echo?logs=1"},
		"pulse with ui secret":     {method: http.MethodGet, target: "/api/pulse", header: ui()},
		"reset without secret":     {method: http.MethodPost, target: "/api/reset"},
		"export with wrong secret": {method: http.MethodGet, target: "/api/export", header: map[string]string{server.CronSecretHeader: "nope"}},
		"seed with ui secret":      {method: http.MethodPost, target: "/api/seed", header: ui()},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			gt.NoError(t, f.store.Append(ctx, usecase.DefaultLogKey,
				logentry.New(ctx, logentry.RoleUser, "existing"))).Required()
			before := f.store.CallCount("Range")

			rec := f.do(tc.method, tc.target, tc.body, tc.header)
			gt.V(t, rec.Code).Equal(http.StatusUnauthorized)
			gt.V(t, decode[map[string]string](t, rec)["error"]).Equal("unauthorized")

			gt.V(t, f.store.CallCount("Range")).Equal(before)
			gt.V(t, f.store.CallCount("TryAcquire")).Equal(0)
			gt.False(t, f.store.IsLocked(ctx, testLockKey))
			n, err := f.store.Len(ctx, usecase.DefaultLogKey)
			gt.NoError(t, err)
			gt.V(t, n).Equal(int64(1))
			gt.V(t, f.gen.calls).Equal(0)
		})
	}
}

func TestEchoLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for range 5 {
		gt.NoError(t, f.store.Append(ctx, usecase.DefaultLogKey,
			logentry.New(ctx, logentry.RoleUser, "m"))).Required()
	}

	t.Run("with limit", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/echo?logs=1&limit=2", "", ui())
		gt.V(t, rec.Code).Equal(http.StatusOK)
		resp := decode[struct {
			Logs []logentry.Entry `json:"logs"`
		}](t, rec)
		gt.A(t, resp.Logs).Length(2)
	})


	t.Run("without logs flag", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/echo", "", ui())
		gt.V(t, rec.Code).Equal(http.StatusMethodNotAllowed)
		gt.V(t, decode[map[string]string](t, rec)["error"]).Equal("method_not_allowed")
	})
}

func TestEchoLogsLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for range 60 {
		gt.NoError(t, f.store.Append(ctx, usecase.DefaultLogKey,
			logentry.New(ctx, logentry.RoleUser, "m"))).Required()
	}

	testCases := map[string]struct {
		query string
		want  int
	}{
		"missing":      {query: "", want: 30},
		"empty":        {query: "&limit=", want: 30},
		"zero":         {query: "&limit=0", want: 20},
		"unparsable":   {query: "&limit=abc", want: 20},
		"negative":     {query: "&limit=-3", want: 1},
		"fraction":     {query: "&limit=2.9", want: 2},
		"above max":    {query: "&limit=99", want: 50},
		"within range": {query: "&limit=7", want: 7},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			rec := f.do(http.MethodGet, "/api/echo?logs=1"+tc.query, "", ui())
			gt.V(t, rec.Code).Equal(http.StatusOK)
			resp := decode[struct {
				Logs []logentry.Entry `json:"logs"`
			}](t, rec)
			gt.A(t, resp.Logs).Length(tc.want)
		})
	}
}

func TestEchoLogsEmpty(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/echo?logs=1", "", ui())
	gt.V(t, rec.Code).Equal(http.StatusOK)
	gt.S(t, rec.Body.String()).Contains(`"logs": []`)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodDelete, "/api/echo", "", ui())
	gt.V(t, rec.Code).Equal(http.StatusMethodNotAllowed)
}

func TestPulseEndpoint(t *testing.T) {
	f := newFixture(t)
	f.gen.reply = "thinking"

	rec := f.do(http.MethodGet, "/api/pulse", "", cron())
	gt.V(t, rec.Code).Equal(http.StatusOK)
	gt.V(t, decode[map[string]string](t, rec)["pulse"]).Equal("thinking")

	entries, err := f.store.Range(context.Background(), usecase.DefaultLogKey, 0, -1)
	gt.NoError(t, err)
	gt.A(t, entries).Length(1).Required()
	gt.V(t, entries[0].Role).Equal(logentry.RolePulse)
}

func TestSeedExportReset(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/seed", "", cron())
	gt.V(t, rec.Code).Equal(http.StatusOK)
	seeded := decode[map[string]int](t, rec)["seeded"]
	gt.True(t, seeded > 0)

	rec = f.do(http.MethodGet, "/api/export", "", cron())
	gt.V(t, rec.Code).Equal(http.StatusOK)
	entries := decode[[]logentry.Entry](t, rec)
	gt.A(t, entries).Length(seeded)
	gt.True(t, entries[0].IsFoundational())

	rec = f.do(http.MethodPost, "/api/reset", "", cron())
	gt.V(t, rec.Code).Equal(http.StatusOK)
	gt.V(t, decode[map[string]string](t, rec)["status"]).Equal("log cleared")

	rec = f.do(http.MethodGet, "/api/export", "", cron())
	gt.V(t, rec.Code).Equal(http.StatusOK)
	gt.A(t, decode[[]logentry.Entry](t, rec)).Length(0)
}

func TestErrorMapping(t *testing.T) {
	testCases := map[string]struct {
		genErr   error
		storeErr bool
		status   int
		code     string
	}{
		"generation unavailable": {
			genErr: goerr.New("down", goerr.T(errs.TagGenerationUnavailable)),
			status: http.StatusBadGateway,
			code:   "generation_unavailable",
		},
		"generation malformed": {
			genErr: goerr.New("empty", goerr.T(errs.TagGenerationMalformed)),
			status: http.StatusBadGateway,
			code:   "generation_malformed",
		},
		"untagged": {
			genErr: goerr.New("weird"),
			status: http.StatusInternalServerError,
			code:   "server_error",
		},
		"store unavailable": {
			storeErr: true,
			status:   http.StatusServiceUnavailable,
			code:     "store_unavailable",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.gen.err = tc.genErr
			if tc.storeErr {
				f.store.SetFailure(goerr.New("connection refused"))
			}

			rec := f.do(http.MethodPost, "/api/echo", `{"message":"hi"}`, ui())
			gt.V(t, rec.Code).Equal(tc.status)
			resp := decode[map[string]string](t, rec)
			gt.V(t, resp["error"]).Equal(tc.code)
			gt.S(t, resp["detail"]).NotEqual("")
		})
	}
}

func TestBodyLimit(t *testing.T) {
	store := memory.New()
	uc := usecase.New(usecase.WithStore(store), usecase.WithGenerator(&fakeGenerator{reply: "x"}))
	srv := server.New(uc, server.WithSecret(testSecret), server.WithBodyLimit(16))

	req := httptest.NewRequest(http.MethodPost, "/api/echo",
		strings.NewReader(`{"message":"`+strings.Repeat("a", 64)+`"}`))
	req.Header.Set(server.SecretHeader, testSecret)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	gt.V(t, rec.Code).Equal(http.StatusBadRequest)
	gt.V(t, store.CallCount("Append")).Equal(0)
}

func TestSecretMatches(t *testing.T) {
	gt.True(t, server.SecretMatches("abc", "abc"))
	gt.False(t, server.SecretMatches("abd", "abc"))
	gt.False(t, server.SecretMatches("", "abc"))
	gt.False(t, server.SecretMatches("abc", ""))
	gt.False(t, server.SecretMatches("", ""))
}

func TestUnsetSecretRejects(t *testing.T) {
	uc := usecase.New(usecase.WithStore(memory.New()))
	srv := server.New(uc)

	req := httptest.NewRequest(http.MethodGet, "/api/export", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	gt.V(t, rec.Code).Equal(http.StatusUnauthorized)
}
