/*
Package middleware provides the HTTP middleware shuttle installs around its
routes.

# Order

The server installs them outermost first:

	router.Use(middleware.Recovery(logger))
	router.Use(requestid.Middleware(...))
	router.Use(middleware.Tracing(tracer))
	router.Use(middleware.Logging(logger))
	router.Use(middleware.Metrics(collector))

Request identifiers are assigned before tracing and logging so spans and
access logs carry them. The response recorder forwards Flush and Unwrap,
so streamed responses still reach the client chunk by chunk.
*/
package middleware
