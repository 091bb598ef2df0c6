// Package journal keeps a persistent history of supervisor events.
//
// Every state transition, connectivity change and recorded error of the Tor
// supervisor is appended to a small SQLite database in the data directory,
// so "why was the wallet offline last night" can be answered after the fact.
// Log output is not journaled; it lives in the in-memory log buffer.
//
// We use modernc.org/sqlite so the journal needs no CGO and no external
// service.
package journal
