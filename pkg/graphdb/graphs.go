package graphdb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/SethBurkart123/covalt/pkg/flow"
)

// GraphInfo is one row of the graph listing.
type GraphInfo struct {
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SaveGraph stores a graph under name, replacing any previous version.
func (d *DB) SaveGraph(name string, g flow.Graph) error {
	data, err := flow.EncodeGraph(g)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`
		INSERT INTO graphs (name, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, name, string(data), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("saving graph %q: %w", name, err)
	}
	return nil
}

// LoadGraph returns the graph stored under name, or ErrNotFound.
func (d *DB) LoadGraph(name string) (flow.Graph, error) {
	var data string
	err := d.conn.QueryRow(`SELECT data FROM graphs WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return flow.Graph{}, fmt.Errorf("graph %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return flow.Graph{}, fmt.Errorf("loading graph %q: %w", name, err)
	}
	return flow.ParseGraph([]byte(data))
}

// ListGraphs returns all saved graphs, most recently updated first.
func (d *DB) ListGraphs() ([]GraphInfo, error) {
	rows, err := d.conn.Query(`SELECT name, updated_at FROM graphs ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GraphInfo
	for rows.Next() {
		var info GraphInfo
		var ts int64
		if err := rows.Scan(&info.Name, &ts); err != nil {
			return nil, err
		}
		info.UpdatedAt = time.Unix(ts, 0)
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteGraph removes a graph and its run cache. Deleting a graph that
// does not exist is not an error.
func (d *DB) DeleteGraph(name string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM graphs WHERE name = ?`, name); err != nil {
		return fmt.Errorf("deleting graph %q: %w", name, err)
	}
	if _, err := tx.Exec(`DELETE FROM node_cache WHERE graph_name = ?`, name); err != nil {
		return fmt.Errorf("deleting cache for %q: %w", name, err)
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE graph_name = ?`, name); err != nil {
		return fmt.Errorf("deleting runs for %q: %w", name, err)
	}
	return tx.Commit()
}
