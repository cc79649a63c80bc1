// Package utils holds small shared helpers.
package utils

// Version is the loom build version, overridden at link time via
// -ldflags "-X github.com/loomworks/loom/pkg/utils.Version=...".
var Version = "dev"
