package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"meshscope/internal/domain"
	"meshscope/internal/repository"

	_ "modernc.org/sqlite"
)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db *sql.DB
}

var _ repository.Repository = (*Repository)(nil)

// New opens (or creates) the database at dbPath and migrates the schema
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshot (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL,
		coordinator TEXT NOT NULL,
		stats JSON,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshot_nodes (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		address TEXT NOT NULL,
		identifier TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshot_links (
		position INTEGER NOT NULL,
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		PRIMARY KEY (source_id, target_id),
		FOREIGN KEY (source_id) REFERENCES snapshot_nodes(id) ON DELETE CASCADE,
		FOREIGN KEY (target_id) REFERENCES snapshot_nodes(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_snapshot_links_target ON snapshot_links(target_id);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SaveSnapshot replaces the stored snapshot in a single transaction
func (r *Repository) SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot) error {
	if snapshot == nil || snapshot.Graph == nil {
		return fmt.Errorf("snapshot has no graph")
	}

	stats, err := marshalToNull(snapshot.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	createdAt := snapshot.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := clearTx(ctx, tx); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshot (id, version, coordinator, stats, created_at)
		VALUES (1, ?, ?, ?, ?)
	`, snapshot.Graph.Version, string(snapshot.Coordinator), stats, createdAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	nodeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_nodes (id, position, address, identifier, type)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer nodeStmt.Close()

	for i, node := range snapshot.Graph.Nodes {
		if _, err := nodeStmt.ExecContext(ctx, node.ID, i, string(node.Address), string(node.Identifier), string(node.Type)); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", node.ID, err)
		}
	}

	linkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_links (position, source_id, target_id)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare link insert: %w", err)
	}
	defer linkStmt.Close()

	for i, link := range snapshot.Graph.Links {
		if _, err := linkStmt.ExecContext(ctx, i, link.Source, link.Target); err != nil {
			return fmt.Errorf("failed to insert link %s->%s: %w", link.Source, link.Target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot loads the stored snapshot
func (r *Repository) LatestSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	var (
		version     int64
		coordinator string
		stats       sql.NullString
		createdAt   int64
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT version, coordinator, stats, created_at FROM snapshot WHERE id = 1
	`).Scan(&version, &coordinator, &stats, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	snapshot := &domain.Snapshot{
		Coordinator: domain.Address(coordinator),
		Graph:       domain.NewGraph(),
		CreatedAt:   time.UnixMilli(createdAt),
	}
	snapshot.Graph.Version = version
	if err := unmarshalJSONField(stats, &snapshot.Stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
	}

	if err := r.loadNodes(ctx, snapshot.Graph); err != nil {
		return nil, err
	}
	if err := r.loadLinks(ctx, snapshot.Graph); err != nil {
		return nil, err
	}

	return snapshot, nil
}

func (r *Repository) loadNodes(ctx context.Context, graph *domain.Graph) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, address, identifier, type FROM snapshot_nodes ORDER BY position
	`)
	if err != nil {
		return fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, address, identifier string
		var nodeType sql.NullString
		if err := rows.Scan(&id, &address, &identifier, &nodeType); err != nil {
			return fmt.Errorf("failed to scan node: %w", err)
		}
		graph.AddNode(domain.Node{
			ID:         id,
			Address:    domain.Address(address),
			Identifier: domain.NodeIdentifier(identifier),
			Type:       domain.NodeType(nullToString(nodeType)),
		})
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating nodes: %w", err)
	}
	return nil
}

func (r *Repository) loadLinks(ctx context.Context, graph *domain.Graph) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT source_id, target_id FROM snapshot_links ORDER BY position
	`)
	if err != nil {
		return fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var link domain.Link
		if err := rows.Scan(&link.Source, &link.Target); err != nil {
			return fmt.Errorf("failed to scan link: %w", err)
		}
		graph.AddLink(link)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating links: %w", err)
	}
	return nil
}

// ClearSnapshot removes the stored snapshot
func (r *Repository) ClearSnapshot(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := clearTx(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

func clearTx(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"snapshot_links", "snapshot_nodes", "snapshot"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
