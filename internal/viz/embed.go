package viz

import "embed"

// assets contains the embedded viewer page.
//
//go:embed assets/*
var assets embed.FS
