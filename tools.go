//go:build tools

// Package tools pins development tools in go.mod.
package tools

import (
	_ "gotest.tools/gotestsum"
)
