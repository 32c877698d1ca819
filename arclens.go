// ABOUTME: Main arclens package providing version information and package documentation
// ABOUTME: This is the root package for the reference counting runtime and its tools

// Package arclens provides a deterministic reference-counting object runtime
// with strong, weak and unowned handles, plus diagnostics for the cycles
// reference counting cannot free.
//
// The runtime lives in package store, the cycle auditor in package audit,
// graph algorithms in package graph and snapshot dumps in package dump.
package arclens

// Version is the semantic version of arclens
const Version = "0.1.0-dev"
