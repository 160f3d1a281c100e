package http

var (
	PanicRecoveryMiddleware = panicRecoveryMiddleware
	BodyLimitMiddleware     = bodyLimitMiddleware
	SecretMatches           = secretMatches
)

var LoggingMiddleware = loggingMiddleware
