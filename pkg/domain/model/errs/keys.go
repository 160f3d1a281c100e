package errs

import "github.com/m-mizutani/goerr/v2"

var (
	RepositoryKey = goerr.NewTypedKey[string]("repository")
	LogKeyKey     = goerr.NewTypedKey[string]("log_key")
	ProviderKey   = goerr.NewTypedKey[string]("provider")
)
