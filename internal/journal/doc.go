// Package journal keeps a SQLite history of split outcomes, one row per
// processed audiobook, tagged with the run ID that produced it.
//
// The journal is optional ([journal] enabled in the config). The splitter
// writes through the Recorder interface; the history command reads it back.
package journal
