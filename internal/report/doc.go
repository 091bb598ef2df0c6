// Package report renders torkeeper diagnostics.
//
// A Diagnostics value is a snapshot of the supervisor (mode, endpoint,
// connectivity, process state, Tor version) plus the recent event journal.
// Writers render it as terminal text, GitHub-flavored Markdown for bug
// reports, or JSON for scripts.
package report
