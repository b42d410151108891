// Package discovery enumerates the audiobooks a run will split.
package discovery
