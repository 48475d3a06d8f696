// Package procgroup runs external tools as process groups so a timeout or a
// disconnected client takes down the whole tree, and provides the bounded
// stderr capture used for their diagnostics.
package procgroup
