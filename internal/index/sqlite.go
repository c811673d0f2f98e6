package index

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/codescope-mcp/pkg/types"
)

const (
	// IndexDirName is the directory under the project root holding the index
	IndexDirName = ".codescope"
	// IndexFileName is the index database file name
	IndexFileName = "index.db"

	searchCacheSize = 1000
)

// IndexPath returns the expected index database location for a project root.
func IndexPath(projectRoot string) string {
	return filepath.Join(projectRoot, IndexDirName, IndexFileName)
}

// SQLiteProvider implements Provider over the SQLite index database built by
// the external indexer. The database is opened lazily and read-only, so a
// missing index surfaces as ErrNotIndexed on first query rather than at
// startup.
type SQLiteProvider struct {
	projectRoot string
	dbPath      string

	mu sync.Mutex
	db *sql.DB

	cache *lru.Cache[[32]byte, []types.SearchResult]
}

// NewSQLiteProvider creates a provider for the given project root. The index
// database is not touched until the first query. CODESCOPE_INDEX_PATH
// overrides the database location for non-standard index placements.
func NewSQLiteProvider(projectRoot string) (*SQLiteProvider, error) {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	cache, err := lru.New[[32]byte, []types.SearchResult](searchCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create search cache: %w", err)
	}
	dbPath := IndexPath(abs)
	if env := os.Getenv("CODESCOPE_INDEX_PATH"); env != "" {
		dbPath = env
	}
	return &SQLiteProvider{
		projectRoot: abs,
		dbPath:      dbPath,
		cache:       cache,
	}, nil
}

// conn returns the open database handle, opening it on first use.
func (p *SQLiteProvider) conn(ctx context.Context) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		return p.db, nil
	}

	if _, err := os.Stat(p.dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotIndexed
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	db, err := sql.Open(DriverName, "file:"+p.dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// Single reader keeps the two drivers behaving identically
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	p.db = db
	return db, nil
}

// Close closes the database connection if it was opened.
func (p *SQLiteProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

const symbolColumns = `s.id, s.name, s.kind, f.path, s.package, s.signature, s.start_line, s.end_line`

func scanSymbol(row interface{ Scan(...interface{}) error }) (types.Symbol, error) {
	var sym types.Symbol
	var pkg, sig sql.NullString
	err := row.Scan(&sym.ID, &sym.Name, &sym.Kind, &sym.FilePath, &pkg, &sig, &sym.StartLine, &sym.EndLine)
	sym.Package = pkg.String
	sym.Signature = sig.String
	return sym, err
}

// Search performs an FTS5 BM25-ranked search over indexed symbols.
func (p *SQLiteProvider) Search(ctx context.Context, q SearchQuery) ([]types.SearchResult, error) {
	if key, ok := p.cacheKey(q); ok {
		if cached, hit := p.cache.Get(key); hit {
			return cached, nil
		}
	}

	db, err := p.conn(ctx)
	if err != nil {
		return nil, err
	}

	match := ftsQuery(q.Query)
	if match == "" {
		return []types.SearchResult{}, nil
	}

	query := `
		SELECT ` + symbolColumns + `, s.snippet, bm25(symbols_fts) AS score
		FROM symbols_fts
		JOIN symbols s ON s.id = symbols_fts.rowid
		JOIN files f ON f.id = s.file_id
		WHERE symbols_fts MATCH ?
	`
	args := []interface{}{match}

	if len(q.Kinds) > 0 {
		query += ` AND s.kind IN (?` + strings.Repeat(",?", len(q.Kinds)-1) + `)`
		for _, k := range q.Kinds {
			args = append(args, string(k))
		}
	}
	if q.PathGlob != "" {
		query += ` AND f.path GLOB ?`
		args = append(args, q.PathGlob)
	}
	query += ` ORDER BY score LIMIT ?`
	args = append(args, q.Limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.SearchResult, 0, q.Limit)
	for rows.Next() {
		var sym types.Symbol
		var pkg, sig, snippet sql.NullString
		var score float64
		if err := rows.Scan(&sym.ID, &sym.Name, &sym.Kind, &sym.FilePath, &pkg, &sig,
			&sym.StartLine, &sym.EndLine, &snippet, &score); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		sym.Package = pkg.String
		sym.Signature = sig.String
		results = append(results, types.SearchResult{
			Rank:           len(results) + 1,
			RelevanceScore: bm25ToRelevance(score),
			Symbol:         sym,
			Snippet:        snippet.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search iteration failed: %w", err)
	}

	if key, ok := p.cacheKey(q); ok {
		p.cache.Add(key, results)
	}
	return results, nil
}

// cacheKey hashes the search parameters into a cache key.
func (p *SQLiteProvider) cacheKey(q SearchQuery) ([32]byte, bool) {
	data, err := json.Marshal(q)
	if err != nil {
		return [32]byte{}, false
	}
	return sha256.Sum256(data), true
}

// bm25ToRelevance maps an FTS5 bm25 score (lower is better, negative for
// strong matches) into a 0..1 relevance value. The map is monotone: a more
// negative score yields a higher relevance.
func bm25ToRelevance(score float64) float64 {
	if score > 0 {
		score = 0
	}
	return -score / (1.0 - score)
}

// ftsQuery quotes each whitespace-separated term so user input cannot be
// interpreted as FTS5 syntax.
func ftsQuery(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// Symbols lists symbols matching the filter.
func (p *SQLiteProvider) Symbols(ctx context.Context, f SymbolFilter) ([]types.Symbol, error) {
	db, err := p.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + symbolColumns + `
		FROM symbols s
		JOIN files f ON f.id = s.file_id
		WHERE 1=1
	`
	var args []interface{}
	if f.Name != "" {
		query += ` AND s.name LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(f.Name)+"%")
	}
	if f.Kind != "" {
		query += ` AND s.kind = ?`
		args = append(args, string(f.Kind))
	}
	if f.File != "" {
		query += ` AND f.path = ?`
		args = append(args, f.File)
	}
	query += ` ORDER BY f.path, s.start_line`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("symbol query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var symbols []types.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// Files lists indexed files matching the filter.
func (p *SQLiteProvider) Files(ctx context.Context, f FileFilter) ([]types.FileRecord, error) {
	db, err := p.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT f.path, f.language, f.size_bytes,
		       (SELECT COUNT(*) FROM symbols s WHERE s.file_id = f.id)
		FROM files f
		WHERE 1=1
	`
	var args []interface{}
	if f.Prefix != "" {
		query += ` AND f.path LIKE ? ESCAPE '\'`
		args = append(args, escapeLike(f.Prefix)+"%")
	}
	if f.Glob != "" {
		query += ` AND f.path GLOB ?`
		args = append(args, f.Glob)
	}
	query += ` ORDER BY f.path`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("file query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []types.FileRecord
	for rows.Next() {
		var rec types.FileRecord
		var lang sql.NullString
		if err := rows.Scan(&rec.Path, &lang, &rec.SizeBytes, &rec.SymbolCount); err != nil {
			return nil, fmt.Errorf("failed to scan file record: %w", err)
		}
		rec.Language = lang.String
		files = append(files, rec)
	}
	return files, rows.Err()
}

// Show returns the detail record for one symbol.
func (p *SQLiteProvider) Show(ctx context.Context, q ShowQuery) (*types.SymbolDetail, error) {
	db, err := p.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + symbolColumns + `, s.doc_comment, s.snippet
		FROM symbols s
		JOIN files f ON f.id = s.file_id
	`
	var args []interface{}
	if q.ByID() {
		query += ` WHERE s.id = ?`
		args = append(args, q.ID)
	} else {
		query += ` WHERE f.path = ? AND s.name = ? ORDER BY s.start_line LIMIT 1`
		args = append(args, q.File, q.Name)
	}

	var detail types.SymbolDetail
	var pkg, sig, doc, snippet sql.NullString
	err = db.QueryRowContext(ctx, query, args...).Scan(
		&detail.ID, &detail.Name, &detail.Kind, &detail.FilePath, &pkg, &sig,
		&detail.StartLine, &detail.EndLine, &doc, &snippet,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("symbol lookup failed: %w", err)
	}
	detail.Package = pkg.String
	detail.Signature = sig.String
	detail.DocComment = doc.String
	detail.Snippet = snippet.String
	return &detail, nil
}

// Tree builds the project structure tree rooted at path.
func (p *SQLiteProvider) Tree(ctx context.Context, path string, depth int) (*types.TreeNode, error) {
	files, err := p.Files(ctx, FileFilter{})
	if err != nil {
		return nil, err
	}

	root := normalizeTreePath(path)
	node := &types.TreeNode{Name: treeRootName(root), Path: root, Kind: "dir"}
	matched := false
	for _, f := range files {
		rel := f.Path
		if root != "." {
			if !strings.HasPrefix(f.Path, root+"/") && f.Path != root {
				continue
			}
			rel = strings.TrimPrefix(strings.TrimPrefix(f.Path, root), "/")
		}
		matched = true
		insertTreePath(node, root, rel)
	}
	if root != "." && !matched {
		return nil, ErrNotFound
	}

	sortTree(node)
	if depth > 0 {
		pruneTree(node, depth)
	}
	return node, nil
}

func normalizeTreePath(path string) string {
	cleaned := filepath.ToSlash(filepath.Clean(path))
	if cleaned == "" || cleaned == "/" {
		return "."
	}
	return strings.Trim(cleaned, "/")
}

func treeRootName(root string) string {
	if root == "." {
		return "."
	}
	return root[strings.LastIndex(root, "/")+1:]
}

// insertTreePath threads one relative file path into the tree.
func insertTreePath(root *types.TreeNode, base, rel string) {
	if rel == "" {
		root.Kind = "file"
		return
	}
	parts := strings.Split(rel, "/")
	cur := root
	prefix := base
	if prefix == "." {
		prefix = ""
	}
	for i, part := range parts {
		if prefix == "" {
			prefix = part
		} else {
			prefix = prefix + "/" + part
		}
		var child *types.TreeNode
		for _, c := range cur.Children {
			if c.Name == part {
				child = c
				break
			}
		}
		if child == nil {
			kind := "dir"
			if i == len(parts)-1 {
				kind = "file"
			}
			child = &types.TreeNode{Name: part, Path: prefix, Kind: kind}
			cur.Children = append(cur.Children, child)
		}
		cur = child
	}
}

func sortTree(node *types.TreeNode) {
	sort.Slice(node.Children, func(i, j int) bool {
		a, b := node.Children[i], node.Children[j]
		if a.Kind != b.Kind {
			return a.Kind == "dir" // directories first
		}
		return a.Name < b.Name
	})
	for _, c := range node.Children {
		sortTree(c)
	}
}

func pruneTree(node *types.TreeNode, depth int) {
	if depth <= 1 {
		node.Children = nil
		return
	}
	for _, c := range node.Children {
		pruneTree(c, depth-1)
	}
}

// symbolExists verifies an id before reference queries so a missing symbol
// yields ErrNotFound instead of an empty result set.
func (p *SQLiteProvider) symbolExists(ctx context.Context, db *sql.DB, id int64) error {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM symbols WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("symbol lookup failed: %w", err)
	}
	return nil
}

func (p *SQLiteProvider) references(ctx context.Context, id int64, callers bool) ([]types.Symbol, error) {
	db, err := p.conn(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.symbolExists(ctx, db, id); err != nil {
		return nil, err
	}

	join, where := "r.caller_id", "r.callee_id"
	if !callers {
		join, where = "r.callee_id", "r.caller_id"
	}
	query := `
		SELECT ` + symbolColumns + `
		FROM refs r
		JOIN symbols s ON s.id = ` + join + `
		JOIN files f ON f.id = s.file_id
		WHERE ` + where + ` = ?
		ORDER BY f.path, s.start_line
	`
	rows, err := db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("reference query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var symbols []types.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reference: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// Callers returns symbols that reference the given symbol.
func (p *SQLiteProvider) Callers(ctx context.Context, id int64) ([]types.Symbol, error) {
	return p.references(ctx, id, true)
}

// Callees returns symbols the given symbol references.
func (p *SQLiteProvider) Callees(ctx context.Context, id int64) ([]types.Symbol, error) {
	return p.references(ctx, id, false)
}

// Usage returns reference statistics for the given symbol.
func (p *SQLiteProvider) Usage(ctx context.Context, id int64) (*types.UsageStats, error) {
	detail, err := p.Show(ctx, ShowQuery{ID: id})
	if err != nil {
		return nil, err
	}
	callers, err := p.Callers(ctx, id)
	if err != nil {
		return nil, err
	}
	callees, err := p.Callees(ctx, id)
	if err != nil {
		return nil, err
	}
	if callers == nil {
		callers = []types.Symbol{}
	}
	if callees == nil {
		callees = []types.Symbol{}
	}
	return &types.UsageStats{
		Symbol:         detail.Symbol,
		ReferenceCount: len(callers),
		Callers:        callers,
		Callees:        callees,
	}, nil
}

// Status returns index statistics.
func (p *SQLiteProvider) Status(ctx context.Context) (*types.IndexStatus, error) {
	db, err := p.conn(ctx)
	if err != nil {
		if errors.Is(err, ErrNotIndexed) {
			return &types.IndexStatus{Indexed: false, ProjectPath: p.projectRoot}, nil
		}
		return nil, err
	}

	status := &types.IndexStatus{Indexed: true, ProjectPath: p.projectRoot}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&status.FilesCount); err != nil {
		return nil, fmt.Errorf("status query failed: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbols`).Scan(&status.SymbolsCount); err != nil {
		return nil, fmt.Errorf("status query failed: %w", err)
	}

	if info, err := os.Stat(p.dbPath); err == nil {
		status.IndexSizeMB = float64(info.Size()) / (1024 * 1024)
	}

	var lastIndexed sql.NullString
	err = db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'last_indexed_at'`).Scan(&lastIndexed)
	if err == nil && lastIndexed.Valid {
		if ts, perr := time.Parse(time.RFC3339, lastIndexed.String); perr == nil {
			status.LastIndexedAt = ts
		}
	}
	return status, nil
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
