// Package probe inspects uploaded source files with the external mediainfo
// tool and normalizes its JSON output into the single structured description
// every downstream pipeline component consumes. No other component parses
// raw prober output.
package probe
