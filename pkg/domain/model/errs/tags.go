package errs

import "github.com/m-mizutani/goerr/v2"

var (
	// Client errors (4xx)
	TagValidation   = goerr.NewTag("validation")   // 400
	TagUnauthorized = goerr.NewTag("unauthorized") // 401

	// Log store
	TagStoreUnavailable = goerr.NewTag("store_unavailable") // 503
	TagCorruptEntry     = goerr.NewTag("corrupt_entry")     // skipped on read, never surfaced

	// Generation service
	TagGenerationUnavailable = goerr.NewTag("generation_unavailable") // 502
	TagGenerationMalformed   = goerr.NewTag("generation_malformed")   // 502
	TagRateLimit             = goerr.NewTag("rate_limit")             // attached next to generation_unavailable

	// Compaction archive, logged only and never fails maintenance
	TagArchiveUnavailable = goerr.NewTag("archive_unavailable")

	TagInternal = goerr.NewTag("internal") // 500
)
