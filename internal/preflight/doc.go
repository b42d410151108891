// Package preflight provides readiness checks for the external tools and
// filesystem paths a split depends on.
//
// The CLI "m4bsplit check" command runs RunAll and renders each Result; the
// split command runs CheckTools before touching any file so a missing ffmpeg
// fails fast instead of failing every chapter.
package preflight
