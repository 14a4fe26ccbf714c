package manifest

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"jitmanifest/internal/descriptor"
)

var ErrRunNotFound = errors.New("manifest run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	method_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS methods (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	ordinal INTEGER NOT NULL,
	name TEXT NOT NULL,
	declaring_type TEXT NOT NULL,
	node_json TEXT NOT NULL,
	PRIMARY KEY (run_id, ordinal)
);
CREATE INDEX IF NOT EXISTS idx_methods_name ON methods(name);
`

// Run summarizes one write into a SQLite manifest.
type Run struct {
	ID          string
	CreatedAt   time.Time
	MethodCount int
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize manifest database %s: %w", path, err)
	}
	return db, nil
}

// openExistingSQLite opens a manifest database for reading. Opening a missing path
// would create an empty database, so it fails with fs.ErrNotExist instead.
func openExistingSQLite(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open manifest database: %w", err)
	}
	return openSQLite(path)
}

func writeSQLite(path, runID string, nodes []descriptor.MethodNode) (err error) {
	if runID == "" {
		return fmt.Errorf("a run ID is required to write %s", path)
	}

	db, err := openSQLite(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	created := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err = tx.Exec(`INSERT INTO runs (run_id, created_at, method_count) VALUES (?, ?, ?)`, runID, created, len(nodes)); err != nil {
		return fmt.Errorf("failed to record run %s: %w", runID, err)
	}

	insert, err := tx.Prepare(`INSERT INTO methods (run_id, ordinal, name, declaring_type, node_json) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer insert.Close()

	for i, node := range nodes {
		data, marshalErr := json.Marshal(node)
		if marshalErr != nil {
			return fmt.Errorf("method %d: %w", i, marshalErr)
		}
		declaring := ""
		if node.DeclaringType != nil {
			declaring = node.DeclaringType.String()
		}
		if _, err = insert.Exec(runID, i, node.Name, declaring, string(data)); err != nil {
			return fmt.Errorf("failed to store method %d of run %s: %w", i, runID, err)
		}
	}

	return tx.Commit()
}

func readLatestRun(path string) ([]descriptor.MethodNode, error) {
	runs, err := Runs(path)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %s holds no runs", ErrRunNotFound, path)
	}
	return ReadRun(path, runs[len(runs)-1].ID)
}

// Runs lists the runs stored in a SQLite manifest, oldest first.
func Runs(path string) ([]Run, error) {
	db, err := openExistingSQLite(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT run_id, created_at, method_count FROM runs ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs in %s: %w", path, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var created string
		if err := rows.Scan(&run.ID, &created, &run.MethodCount); err != nil {
			return nil, err
		}
		if run.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("run %s has an invalid timestamp: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ReadRun loads the nodes of one run in their original order.
func ReadRun(path, runID string) ([]descriptor.MethodNode, error) {
	db, err := openExistingSQLite(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT method_count FROM runs WHERE run_id = ?`, runID).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s in %s", ErrRunNotFound, runID, path)
		}
		return nil, err
	}

	rows, err := db.Query(`SELECT node_json FROM methods WHERE run_id = ? ORDER BY ordinal`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", runID, err)
	}
	defer rows.Close()

	nodes := make([]descriptor.MethodNode, 0, count)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var node descriptor.MethodNode
		if err := json.Unmarshal([]byte(data), &node); err != nil {
			return nil, fmt.Errorf("%w: run %s method %d: %w", descriptor.ErrMalformed, runID, len(nodes), err)
		}
		normalize(&node)
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}
