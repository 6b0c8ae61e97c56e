// Package httpapi exposes the lending operations as a JSON REST API.
//
// The package maps the lending error taxonomy onto HTTP status codes
// (409 conflict, 403 forbidden, 404 not found, 503 transient storage
// trouble) and never leaks raw storage errors into response bodies. It also
// carries the operational endpoints: request logging, prometheus metrics,
// and the liveness/readiness probes.
package httpapi
