// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (credentials.go, sentiment.go, kv.go, task.go, etc.)
// with shared types and cross-cutting interfaces. Apart from small value helpers there is no
// implementation code here. Interfaces live on the consumer side to prevent circular imports.
package domain
