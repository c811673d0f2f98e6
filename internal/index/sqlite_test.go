package index

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codescope-mcp/pkg/types"
)

// newTestIndex seeds a real index database under a temp project root:
// three files, four symbols, a small call graph, and FTS rows.
func newTestIndex(t *testing.T) *SQLiteProvider {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, IndexDirName), 0o755))

	db, err := sql.Open(DriverName, IndexPath(root))
	require.NoError(t, err)
	defer func() { require.NoError(t, db.Close()) }()

	stmts := []string{
		`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE files (
			id INTEGER PRIMARY KEY,
			path TEXT NOT NULL UNIQUE,
			language TEXT,
			size_bytes INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE symbols (
			id INTEGER PRIMARY KEY,
			file_id INTEGER NOT NULL REFERENCES files(id),
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			package TEXT,
			signature TEXT,
			start_line INTEGER NOT NULL,
			end_line INTEGER NOT NULL,
			doc_comment TEXT,
			snippet TEXT
		)`,
		`CREATE TABLE refs (
			caller_id INTEGER NOT NULL REFERENCES symbols(id),
			callee_id INTEGER NOT NULL REFERENCES symbols(id),
			PRIMARY KEY (caller_id, callee_id)
		)`,
		`CREATE VIRTUAL TABLE symbols_fts USING fts5(name, doc_comment, snippet)`,

		`INSERT INTO meta VALUES ('schema_version', '1'), ('last_indexed_at', '2026-08-01T12:00:00Z')`,

		`INSERT INTO files (id, path, language, size_bytes) VALUES
			(1, 'cmd/main.go', 'go', 120),
			(2, 'internal/auth/login.go', 'go', 300),
			(3, 'internal/auth/token.go', 'go', 200)`,

		`INSERT INTO symbols (id, file_id, name, kind, package, signature, start_line, end_line, doc_comment, snippet) VALUES
			(1, 1, 'main', 'function', 'main', 'func main()', 3, 20, NULL, 'func main() {'),
			(2, 2, 'Login', 'function', 'auth', 'func Login(ctx context.Context, user string) error', 10, 42, 'Login authenticates a user against the auth backend.', 'func Login(ctx context.Context, user string) error {'),
			(3, 3, 'Token', 'struct', 'auth', 'type Token struct', 5, 12, 'Token is an auth credential.', 'type Token struct {'),
			(4, 2, 'validate', 'function', 'auth', 'func validate(t Token) bool', 50, 60, NULL, 'func validate(t Token) bool {')`,

		`INSERT INTO refs (caller_id, callee_id) VALUES (1, 2), (2, 3), (2, 4)`,

		`INSERT INTO symbols_fts (rowid, name, doc_comment, snippet) VALUES
			(1, 'main', '', 'func main() {'),
			(2, 'Login', 'Login authenticates a user against the auth backend.', 'func Login(ctx context.Context, user string) error {'),
			(3, 'Token', 'Token is an auth credential.', 'type Token struct {'),
			(4, 'validate', '', 'func validate(t Token) bool {')`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	p, err := NewSQLiteProvider(root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestSQLiteProvider_MissingIndex(t *testing.T) {
	p, err := NewSQLiteProvider(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.Search(ctx, SearchQuery{Query: "anything", Limit: 10})
	assert.ErrorIs(t, err, ErrNotIndexed)

	_, err = p.Symbols(ctx, SymbolFilter{})
	assert.ErrorIs(t, err, ErrNotIndexed)

	_, err = p.Show(ctx, ShowQuery{ID: 1})
	assert.ErrorIs(t, err, ErrNotIndexed)

	// Status reports the absence instead of failing.
	status, err := p.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Indexed)
}

func TestBM25ToRelevance(t *testing.T) {
	t.Run("stronger match maps to higher relevance", func(t *testing.T) {
		strong := bm25ToRelevance(-5.0)
		weak := bm25ToRelevance(-0.2)
		assert.Greater(t, strong, weak)
		assert.InDelta(t, 0.833, strong, 0.001)
		assert.InDelta(t, 0.167, weak, 0.001)
	})

	t.Run("monotone over descending scores", func(t *testing.T) {
		scores := []float64{-0.1, -1, -2.5, -10, -100}
		prev := bm25ToRelevance(0)
		for _, score := range scores {
			cur := bm25ToRelevance(score)
			assert.Greater(t, cur, prev, "score %v", score)
			prev = cur
		}
	})

	t.Run("stays within the unit interval", func(t *testing.T) {
		assert.Zero(t, bm25ToRelevance(0))
		assert.Zero(t, bm25ToRelevance(3.7))
		assert.Less(t, bm25ToRelevance(-1e9), 1.0)
	})
}

func TestSQLiteProvider_IndexPathOverride(t *testing.T) {
	seeded := newTestIndex(t)
	t.Setenv("CODESCOPE_INDEX_PATH", seeded.dbPath)

	// A provider rooted elsewhere still queries the overridden database.
	p, err := NewSQLiteProvider(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	files, err := p.Files(context.Background(), FileFilter{})
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestSQLiteProvider_Search(t *testing.T) {
	p := newTestIndex(t)
	ctx := context.Background()

	t.Run("matches name and documentation", func(t *testing.T) {
		results, err := p.Search(ctx, SearchQuery{Query: "auth", Limit: 10})
		require.NoError(t, err)
		require.Len(t, results, 2)

		names := []string{results[0].Symbol.Name, results[1].Symbol.Name}
		assert.ElementsMatch(t, []string{"Login", "Token"}, names)

		for i, r := range results {
			assert.Equal(t, i+1, r.Rank)
			assert.Greater(t, r.RelevanceScore, 0.0)
			assert.LessOrEqual(t, r.RelevanceScore, 1.0)
			assert.NotEmpty(t, r.Snippet)
		}
		// Best match first.
		assert.GreaterOrEqual(t, results[0].RelevanceScore, results[1].RelevanceScore)
	})

	t.Run("limit caps the result set", func(t *testing.T) {
		results, err := p.Search(ctx, SearchQuery{Query: "auth", Limit: 1})
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("kind filter", func(t *testing.T) {
		results, err := p.Search(ctx, SearchQuery{Query: "auth", Limit: 10, Kinds: []types.SymbolKind{types.KindStruct}})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Token", results[0].Symbol.Name)
	})

	t.Run("path glob filter", func(t *testing.T) {
		results, err := p.Search(ctx, SearchQuery{Query: "main", Limit: 10, PathGlob: "cmd/*"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "cmd/main.go", results[0].Symbol.FilePath)

		results, err = p.Search(ctx, SearchQuery{Query: "main", Limit: 10, PathGlob: "internal/*"})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("blank query is empty, not an error", func(t *testing.T) {
		results, err := p.Search(ctx, SearchQuery{Query: "   ", Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("fts metacharacters are treated literally", func(t *testing.T) {
		_, err := p.Search(ctx, SearchQuery{Query: `login" OR "token`, Limit: 10})
		assert.NoError(t, err)

		_, err = p.Search(ctx, SearchQuery{Query: `NEAR(a b)`, Limit: 10})
		assert.NoError(t, err)
	})

	t.Run("repeated query is served from cache", func(t *testing.T) {
		q := SearchQuery{Query: "Login", Limit: 10}
		first, err := p.Search(ctx, q)
		require.NoError(t, err)

		key, ok := p.cacheKey(q)
		require.True(t, ok)
		_, hit := p.cache.Get(key)
		assert.True(t, hit)

		second, err := p.Search(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestSQLiteProvider_Symbols(t *testing.T) {
	p := newTestIndex(t)
	ctx := context.Background()

	t.Run("unfiltered listing is ordered by file then line", func(t *testing.T) {
		symbols, err := p.Symbols(ctx, SymbolFilter{})
		require.NoError(t, err)
		require.Len(t, symbols, 4)
		assert.Equal(t, "main", symbols[0].Name)
		assert.Equal(t, "Login", symbols[1].Name)
		assert.Equal(t, "validate", symbols[2].Name)
		assert.Equal(t, "Token", symbols[3].Name)
	})

	t.Run("name substring filter", func(t *testing.T) {
		symbols, err := p.Symbols(ctx, SymbolFilter{Name: "ogi"})
		require.NoError(t, err)
		require.Len(t, symbols, 1)
		assert.Equal(t, "Login", symbols[0].Name)
		assert.Equal(t, "auth", symbols[0].Package)
	})

	t.Run("kind filter", func(t *testing.T) {
		symbols, err := p.Symbols(ctx, SymbolFilter{Kind: types.KindStruct})
		require.NoError(t, err)
		require.Len(t, symbols, 1)
		assert.Equal(t, "Token", symbols[0].Name)
	})

	t.Run("file scope filter", func(t *testing.T) {
		symbols, err := p.Symbols(ctx, SymbolFilter{File: "internal/auth/login.go"})
		require.NoError(t, err)
		require.Len(t, symbols, 2)
		assert.Equal(t, "Login", symbols[0].Name)
		assert.Equal(t, "validate", symbols[1].Name)
	})

	t.Run("like wildcards in the filter are literal", func(t *testing.T) {
		symbols, err := p.Symbols(ctx, SymbolFilter{Name: "%"})
		require.NoError(t, err)
		assert.Empty(t, symbols)

		symbols, err = p.Symbols(ctx, SymbolFilter{Name: "_____"})
		require.NoError(t, err)
		assert.Empty(t, symbols)
	})
}

func TestSQLiteProvider_Files(t *testing.T) {
	p := newTestIndex(t)
	ctx := context.Background()

	t.Run("unfiltered listing with symbol counts", func(t *testing.T) {
		files, err := p.Files(ctx, FileFilter{})
		require.NoError(t, err)
		require.Len(t, files, 3)
		assert.Equal(t, "cmd/main.go", files[0].Path)
		assert.Equal(t, 1, files[0].SymbolCount)
		assert.Equal(t, "internal/auth/login.go", files[1].Path)
		assert.Equal(t, 2, files[1].SymbolCount)
		assert.Equal(t, int64(300), files[1].SizeBytes)
		assert.Equal(t, "go", files[1].Language)
	})

	t.Run("prefix filter", func(t *testing.T) {
		files, err := p.Files(ctx, FileFilter{Prefix: "internal/"})
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})

	t.Run("glob filter", func(t *testing.T) {
		files, err := p.Files(ctx, FileFilter{Glob: "*/main.go"})
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "cmd/main.go", files[0].Path)
	})
}

func TestSQLiteProvider_Show(t *testing.T) {
	p := newTestIndex(t)
	ctx := context.Background()

	t.Run("by id", func(t *testing.T) {
		detail, err := p.Show(ctx, ShowQuery{ID: 2})
		require.NoError(t, err)
		assert.Equal(t, "Login", detail.Name)
		assert.Equal(t, types.KindFunction, detail.Kind)
		assert.Equal(t, "internal/auth/login.go", detail.FilePath)
		assert.Equal(t, 10, detail.StartLine)
		assert.Equal(t, 42, detail.EndLine)
		assert.Contains(t, detail.DocComment, "authenticates")
		assert.Contains(t, detail.Snippet, "func Login")
	})

	t.Run("by file and name", func(t *testing.T) {
		detail, err := p.Show(ctx, ShowQuery{File: "internal/auth/token.go", Name: "Token"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), detail.ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := p.Show(ctx, ShowQuery{ID: 999})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown file and name pair", func(t *testing.T) {
		_, err := p.Show(ctx, ShowQuery{File: "no/such.go", Name: "Nope"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSQLiteProvider_Tree(t *testing.T) {
	p := newTestIndex(t)
	ctx := context.Background()

	t.Run("full tree with directories first", func(t *testing.T) {
		tree, err := p.Tree(ctx, ".", 0)
		require.NoError(t, err)
		assert.Equal(t, ".", tree.Path)
		assert.Equal(t, "dir", tree.Kind)
		require.Len(t, tree.Children, 2)
		assert.Equal(t, "cmd", tree.Children[0].Name)
		assert.Equal(t, "internal", tree.Children[1].Name)

		auth := tree.Children[1].Children[0]
		assert.Equal(t, "auth", auth.Name)
		assert.Equal(t, "internal/auth", auth.Path)
		require.Len(t, auth.Children, 2)
		assert.Equal(t, "login.go", auth.Children[0].Name)
		assert.Equal(t, "file", auth.Children[0].Kind)
		assert.Equal(t, "internal/auth/login.go", auth.Children[0].Path)
	})

	t.Run("scoped to a subdirectory", func(t *testing.T) {
		tree, err := p.Tree(ctx, "internal/auth", 0)
		require.NoError(t, err)
		assert.Equal(t, "auth", tree.Name)
		assert.Equal(t, "internal/auth", tree.Path)
		require.Len(t, tree.Children, 2)
	})

	t.Run("depth pruning", func(t *testing.T) {
		tree, err := p.Tree(ctx, ".", 1)
		require.NoError(t, err)
		assert.Empty(t, tree.Children)

		tree, err = p.Tree(ctx, ".", 2)
		require.NoError(t, err)
		require.Len(t, tree.Children, 2)
		assert.Empty(t, tree.Children[1].Children)
	})

	t.Run("unknown path", func(t *testing.T) {
		_, err := p.Tree(ctx, "no/such/dir", 0)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSQLiteProvider_References(t *testing.T) {
	p := newTestIndex(t)
	ctx := context.Background()

	t.Run("callers", func(t *testing.T) {
		callers, err := p.Callers(ctx, 2)
		require.NoError(t, err)
		require.Len(t, callers, 1)
		assert.Equal(t, "main", callers[0].Name)
	})

	t.Run("callees are ordered by file then line", func(t *testing.T) {
		callees, err := p.Callees(ctx, 2)
		require.NoError(t, err)
		require.Len(t, callees, 2)
		assert.Equal(t, "validate", callees[0].Name)
		assert.Equal(t, "Token", callees[1].Name)
	})

	t.Run("leaf symbol has no callees", func(t *testing.T) {
		callees, err := p.Callees(ctx, 4)
		require.NoError(t, err)
		assert.Empty(t, callees)
	})

	t.Run("unknown symbol is not found, not empty", func(t *testing.T) {
		_, err := p.Callers(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = p.Callees(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSQLiteProvider_Usage(t *testing.T) {
	p := newTestIndex(t)
	ctx := context.Background()

	t.Run("aggregates callers and callees", func(t *testing.T) {
		usage, err := p.Usage(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "Login", usage.Symbol.Name)
		assert.Equal(t, 1, usage.ReferenceCount)
		require.Len(t, usage.Callers, 1)
		require.Len(t, usage.Callees, 2)
	})

	t.Run("unreferenced symbol has empty slices, not nil", func(t *testing.T) {
		usage, err := p.Usage(ctx, 1)
		require.NoError(t, err)
		assert.Zero(t, usage.ReferenceCount)
		assert.NotNil(t, usage.Callers)
		assert.Empty(t, usage.Callers)
	})

	t.Run("unknown symbol", func(t *testing.T) {
		_, err := p.Usage(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSQLiteProvider_Status(t *testing.T) {
	p := newTestIndex(t)

	status, err := p.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Indexed)
	assert.Equal(t, 3, status.FilesCount)
	assert.Equal(t, 4, status.SymbolsCount)
	assert.Greater(t, status.IndexSizeMB, 0.0)

	want, err := time.Parse(time.RFC3339, "2026-08-01T12:00:00Z")
	require.NoError(t, err)
	assert.True(t, status.LastIndexedAt.Equal(want))
}

func TestSQLiteProvider_Close(t *testing.T) {
	p := newTestIndex(t)
	_, err := p.Status(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.Close())
	// Close before any open, and double close, are both no-ops.
	require.NoError(t, p.Close())

	// Queries after close reopen the database.
	symbols, err := p.Symbols(context.Background(), SymbolFilter{})
	require.NoError(t, err)
	assert.Len(t, symbols, 4)
}