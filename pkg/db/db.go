// Package db implements the durable stores behind cyclescan: the canister
// registry, the project registry and the snapshot history. All three live in
// one bbolt database so that admin operations and tracker cycles mutate
// state through single-writer transactions.
package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/AlexandriaDAO/cyclescan/pkg/utils"
)

var (
	bucketCanisters = []byte("canisters")
	bucketProjects  = []byte("projects")
	bucketSnapshots = []byte("snapshots")
)

// ErrNotFound reports a registry lookup for an unknown canister or project.
var ErrNotFound = errors.New("db: not found")

// Client owns the bbolt database and exposes the three stores.
type Client struct {
	db     *bbolt.DB
	logger *zap.Logger
}

// Open opens (or creates) the database at path and ensures all buckets
// exist.
func Open(path string, logger *zap.Logger) (*Client, error) {
	if path == "" {
		path = utils.Env("DB_PATH", "cyclescan.db")
	}
	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	c := &Client{db: db, logger: logger}
	if err := c.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the underlying database.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Client) ensureBuckets() error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketCanisters, bucketProjects, bucketSnapshots} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// Stats is the aggregate store counters surfaced by the stats endpoint.
type Stats struct {
	CanisterCount   uint64 `json:"canister_count"`
	SnapshotCount   uint64 `json:"snapshot_count"`
	TrackedProjects uint64 `json:"tracked_projects"`
}

// GetStats counts canisters, snapshots and distinct project labels in use.
func (c *Client) GetStats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	var st Stats
	err := c.db.View(func(tx *bbolt.Tx) error {
		st.CanisterCount = uint64(tx.Bucket(bucketCanisters).Stats().KeyN)
		st.SnapshotCount = uint64(tx.Bucket(bucketSnapshots).Stats().KeyN)

		seen := map[string]bool{}
		cur := tx.Bucket(bucketCanisters).Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			meta := decodeCanister(v)
			if meta.Project != "" && !seen[meta.Project] {
				seen[meta.Project] = true
				st.TrackedProjects++
			}
		}
		return nil
	})
	return st, err
}

// ClearAll drops every canister, project and snapshot.
func (c *Client) ClearAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketCanisters, bucketProjects, bucketSnapshots} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func truncate(s string, maxBytes int) string {
	return utils.TruncateUTF8(s, maxBytes)
}
