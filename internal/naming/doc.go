// Package naming derives filesystem-safe names for chapter output: the
// sanitizer, the per-book folder name, and the Chapter_NN[_title] file name.
package naming
