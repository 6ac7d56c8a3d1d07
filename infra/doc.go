// Package infra contains technical adapters such as the SQLite store
// and the metrics endpoint. These packages should depend only on the
// interfaces defined in the core packages.
package infra
