// Package index is the boundary to the external code-indexing engine.
//
// The index is built out-of-process by the codescope indexer; this package
// only reads it. Provider is the narrow query interface the server's tool
// handlers call, and SQLiteProvider is the production implementation over
// the SQLite index database at <project>/.codescope/index.db.
//
// # Build Tags
//
// Two build configurations select the SQLite driver:
//
// CGO build (sqlite_vec tag), github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec,sqlite_fts5" ./...
//
// Pure Go build (default or purego tag), modernc.org/sqlite:
//
//	CGO_ENABLED=0 go build ./...
package index
