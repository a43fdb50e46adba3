package graphdb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/SethBurkart123/covalt/pkg/executor"
)

// SaveRunResult records a completed run and upserts each node's outputs
// into the graph's cache. Skipped and excluded nodes never produced
// outputs and are left untouched, so stale entries for them keep serving
// until a later run overwrites or invalidates them.
func (d *DB) SaveRunResult(graphName, chatID string, res *executor.RunResult) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	if _, err := tx.Exec(`
		INSERT INTO runs (id, graph_name, chat_id, created_at) VALUES (?, ?, ?, ?)
	`, res.RunID, graphName, chatID, now); err != nil {
		return fmt.Errorf("recording run %q: %w", res.RunID, err)
	}

	for nodeID, outputs := range res.Outputs {
		blob, err := json.Marshal(outputs)
		if err != nil {
			return fmt.Errorf("encoding outputs for node %q: %w", nodeID, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO node_cache (graph_name, node_id, run_id, outputs, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(graph_name, node_id) DO UPDATE SET
				run_id = excluded.run_id,
				outputs = excluded.outputs,
				updated_at = excluded.updated_at
		`, graphName, nodeID, res.RunID, string(blob), now); err != nil {
			return fmt.Errorf("caching outputs for node %q: %w", nodeID, err)
		}
	}
	return tx.Commit()
}

// CachedOutputs loads every cached node output for a graph, keyed by node
// id. The result feeds plan building and Engine.Run's Cached option.
func (d *DB) CachedOutputs(graphName string) (map[string]executor.Outputs, error) {
	rows, err := d.conn.Query(`
		SELECT node_id, outputs FROM node_cache WHERE graph_name = ?
	`, graphName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cached := make(map[string]executor.Outputs)
	for rows.Next() {
		var nodeID, blob string
		if err := rows.Scan(&nodeID, &blob); err != nil {
			return nil, err
		}
		var outputs executor.Outputs
		if err := json.Unmarshal([]byte(blob), &outputs); err != nil {
			return nil, fmt.Errorf("decoding cache for node %q: %w", nodeID, err)
		}
		cached[nodeID] = outputs
	}
	return cached, rows.Err()
}

// InvalidateNodes drops cached outputs for the given nodes, typically the
// downstream closure of an edit.
func (d *DB) InvalidateNodes(graphName string, nodeIDs []string) error {
	if len(nodeIDs) == 0 {
		return nil
	}
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range nodeIDs {
		if _, err := tx.Exec(`
			DELETE FROM node_cache WHERE graph_name = ? AND node_id = ?
		`, graphName, id); err != nil {
			return fmt.Errorf("invalidating node %q: %w", id, err)
		}
	}
	return tx.Commit()
}

// ClearCache drops every cached output for a graph.
func (d *DB) ClearCache(graphName string) error {
	_, err := d.conn.Exec(`DELETE FROM node_cache WHERE graph_name = ?`, graphName)
	return err
}
