// Package http implements the REST transport of the auth service.
//
// It wires chi routes for signup, login, token refresh and account settings,
// and the middleware around them: trace ids, access logging, Prometheus
// metrics, request timeouts and bearer-token authentication. Service errors
// are mapped to statuses in one table so clients see stable messages.
package http
