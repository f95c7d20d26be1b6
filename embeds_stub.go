//go:build !embed
// +build !embed

package main

import "embed"

const embeddedAssets = false

// Empty unless built with -tags embed after a production build
var distFiles embed.FS
