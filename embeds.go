//go:build embed
// +build embed

package main

import "embed"

const embeddedAssets = true

//go:embed dist
var distFiles embed.FS
