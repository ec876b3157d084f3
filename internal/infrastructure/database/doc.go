// Package database manages the SQLite connection for Marswave Home.
//
// It owns connection setup (WAL mode, busy timeout, foreign keys), file
// permissions, health checks, and the embedded schema migrations that the
// device store depends on.
//
// SQLite is a deliberate fit here: the fulfillment webhook is a single
// process with one writer, and the store's json_patch support gives us
// field-level state merges without a document database.
package database
