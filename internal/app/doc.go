// Package app contains the core application logic. It resolves the entry
// classes through a fresh engine, reports the definition order, serves the
// health, readiness and metrics endpoints, and in watch mode rebuilds the
// engine whenever a class resource changes. It is decoupled from any
// specific entrypoint like a CLI.
package app
