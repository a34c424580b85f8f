//go:build tools

// Package tools pins lint/dev tooling so `go mod tidy` doesn't drop it; none
// of this is imported by the module's runtime code.
package tools

import (
	_ "github.com/bool64/dev"
)
