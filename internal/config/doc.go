// Package config loads and validates the application configuration from
// environment variables and optional config files. Settings are grouped into
// logical sections (server, database, broker, worker, provider) and validated after
// loading so the rest of the application can rely on them.
package config
