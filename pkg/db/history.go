package db

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"

	"go.etcd.io/bbolt"
)

// Snapshot keys are canister id, a zero separator, then the big-endian
// timestamp, so one canister's history is a contiguous ascending key range.
func snapshotKey(id string, ts int64) []byte {
	key := make([]byte, 0, len(id)+9)
	key = append(key, id...)
	key = append(key, 0)
	return binary.BigEndian.AppendUint64(key, uint64(ts))
}

func snapshotPrefix(id string) []byte {
	return append([]byte(id), 0)
}

// AppendSnapshot records one observation. Writing the same (canister,
// timestamp) twice overwrites, so a rerun cycle upserts instead of
// duplicating.
func (c *Client) AppendSnapshot(ctx context.Context, id string, ts int64, cycles uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return putSnapshot(tx.Bucket(bucketSnapshots), id, ts, cycles)
	})
}

func putSnapshot(bucket *bbolt.Bucket, id string, ts int64, cycles uint64) error {
	var val [8]byte
	binary.BigEndian.PutUint64(val[:], cycles)
	return bucket.Put(snapshotKey(id, ts), val[:])
}

// Snapshots returns a canister's full retained history, ascending.
func (c *Client) Snapshots(ctx context.Context, id string) ([]Snapshot, error) {
	return c.SnapshotRange(ctx, id, 0, math.MaxInt64)
}

// SnapshotRange returns the ascending history slice with from <= ts <= to.
func (c *Client) SnapshotRange(ctx context.Context, id string, from, to int64) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []Snapshot{}
	err := c.EachSnapshot(ctx, id, from, to, func(s Snapshot) error {
		out = append(out, s)
		return nil
	})
	return out, err
}

// EachSnapshot walks one canister's history in ascending timestamp order
// without materializing it. Returning an error from fn stops the walk.
func (c *Client) EachSnapshot(ctx context.Context, id string, from, to int64, fn func(Snapshot) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prefix := snapshotPrefix(id)
	return c.db.View(func(tx *bbolt.Tx) error {
		cur := tx.Bucket(bucketSnapshots).Cursor()
		for k, v := cur.Seek(snapshotKey(id, from)); k != nil && bytes.HasPrefix(k, prefix); k, v = cur.Next() {
			ts := int64(binary.BigEndian.Uint64(k[len(prefix):]))
			if ts > to {
				break
			}
			if err := fn(Snapshot{Timestamp: ts, Cycles: binary.BigEndian.Uint64(v)}); err != nil {
				return err
			}
		}
		return nil
	})
}

// LatestBalance returns the most recent balance, or false when the canister
// has no retained history.
func (c *Client) LatestBalance(ctx context.Context, id string) (uint64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	var (
		cycles uint64
		found  bool
	)
	prefix := snapshotPrefix(id)
	err := c.db.View(func(tx *bbolt.Tx) error {
		cur := tx.Bucket(bucketSnapshots).Cursor()
		// Seek just past the canister's range, then step back one key.
		k, v := cur.Seek(snapshotKey(id, math.MaxInt64))
		if k == nil || !bytes.HasPrefix(k, prefix) {
			k, v = cur.Prev()
		}
		if k != nil && bytes.HasPrefix(k, prefix) {
			cycles = binary.BigEndian.Uint64(v)
			found = true
		}
		return nil
	})
	return cycles, found, err
}

// PruneSnapshots removes every snapshot strictly older than cutoff across
// all canisters and reports how many went. Keys are grouped by canister
// first, not by time, so the scan filters the whole bucket instead of
// assuming a global timestamp order.
func (c *Client) PruneSnapshots(ctx context.Context, cutoff int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count := 0
	err := c.db.Update(func(tx *bbolt.Tx) error {
		cur := tx.Bucket(bucketSnapshots).Cursor()
		for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
			sep := bytes.IndexByte(k, 0)
			if sep < 0 || len(k) < sep+9 {
				continue
			}
			ts := int64(binary.BigEndian.Uint64(k[sep+1:]))
			if ts >= cutoff {
				continue
			}
			if err := cur.Delete(); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

func deleteSnapshotRange(bucket *bbolt.Bucket, id string) error {
	prefix := snapshotPrefix(id)
	cur := bucket.Cursor()
	for k, _ := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cur.Next() {
		if err := cur.Delete(); err != nil {
			return err
		}
	}
	return nil
}

// AppendSnapshots writes a batch of same-timestamp observations in one
// transaction.
func (c *Client) AppendSnapshots(ctx context.Context, ts int64, balances map[string]uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSnapshots)
		for id, cycles := range balances {
			if err := putSnapshot(bucket, id, ts, cycles); err != nil {
				return err
			}
		}
		return nil
	})
}
