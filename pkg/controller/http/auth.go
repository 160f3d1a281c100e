package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/m-mizutani/goerr/v2"
)

// requireSecret rejects a request unless header carries secret. It runs
// before any handler so a rejected request never touches the store. An
// unset secret rejects everything.
func requireSecret(header, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !secretMatches(r.Header.Get(header), secret) {
				handleError(w, r, goerr.New("secret mismatch",
					goerr.V("header", header), goerr.T(errs.TagUnauthorized)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func secretMatches(given, secret string) bool {
	if secret == "" || given == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(secret)) == 1
}
