// Package builtin holds the card templates compiled into the binary.
package builtin

import "embed"

// FS contains the builtin templates.
//
//go:embed *.svg *.html *.dot *.js
var FS embed.FS
