// Package app is the application composition root: it owns the logger, the
// loaded configuration model, and the run lifecycle (environment selection,
// execution, reporting, optional healthcheck endpoint).
package app
