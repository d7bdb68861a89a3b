//go:build !race

package version

// RaceEnabled is true if the binary is built with the race detector.
const RaceEnabled = false
