// Package api contains the HTTP layer: request decoding and validation,
// handlers delegating to services, and the mapping from internal errors to
// sanitized client responses.
package api
