package db

import (
	"context"

	"go.etcd.io/bbolt"
)

// ImportCanisters bulk-upserts registry records. Supplied fields overwrite,
// omitted fields keep the stored value (or take defaults on first creation:
// valid=true, no project, no website). Returns the number of items written.
func (c *Client) ImportCanisters(ctx context.Context, items []CanisterImport) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count := 0
	err := c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCanisters)
		for _, item := range items {
			if item.CanisterID == "" {
				continue
			}
			key := []byte(item.CanisterID)

			meta := CanisterMeta{Valid: true}
			if prev := bucket.Get(key); prev != nil {
				meta = decodeCanister(prev)
			}
			if item.ProxyID != "" {
				meta.ProxyID = item.ProxyID
			}
			if item.ProxyType != nil {
				meta.ProxyType = *item.ProxyType
			}
			if item.Project != nil {
				meta.Project = truncate(*item.Project, MaxProjectBytes)
			}
			if item.Website != nil {
				meta.Website = truncate(*item.Website, MaxWebsiteBytes)
			}
			if item.Valid != nil {
				meta.Valid = *item.Valid
			}

			if err := bucket.Put(key, encodeCanister(meta)); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// GetCanister fetches one registry record, or ErrNotFound.
func (c *Client) GetCanister(ctx context.Context, id string) (CanisterMeta, error) {
	if err := ctx.Err(); err != nil {
		return CanisterMeta{}, err
	}
	var meta CanisterMeta
	err := c.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketCanisters).Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}
		meta = decodeCanister(raw)
		return nil
	})
	return meta, err
}

// UpdateCanister applies a partial update. Returns false when the canister
// is unknown; nothing is created in that case.
func (c *Client) UpdateCanister(ctx context.Context, id string, upd CanisterUpdate) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	err := c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCanisters)
		key := []byte(id)
		raw := bucket.Get(key)
		if raw == nil {
			return nil
		}
		found = true
		meta := decodeCanister(raw)
		meta.Project = upd.Project.Apply(meta.Project, MaxProjectBytes)
		meta.Website = upd.Website.Apply(meta.Website, MaxWebsiteBytes)
		if upd.ProxyID.Set && upd.ProxyID.Value != "" {
			meta.ProxyID = upd.ProxyID.Value
		}
		return bucket.Put(key, encodeCanister(meta))
	})
	return found, err
}

// SetValid toggles the public-leaderboard flag. Returns false for an
// unknown canister.
func (c *Client) SetValid(ctx context.Context, id string, valid bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	err := c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCanisters)
		key := []byte(id)
		raw := bucket.Get(key)
		if raw == nil {
			return nil
		}
		found = true
		meta := decodeCanister(raw)
		meta.Valid = valid
		return bucket.Put(key, encodeCanister(meta))
	})
	return found, err
}

// PutCanisterStats rewrites the cached summary fields. Only the snapshot
// tracker calls this; every other path reads them.
func (c *Client) PutCanisterStats(ctx context.Context, id string, stats CanisterStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCanisters)
		key := []byte(id)
		raw := bucket.Get(key)
		if raw == nil {
			return nil
		}
		meta := decodeCanister(raw)
		meta.Stats = stats
		return bucket.Put(key, encodeCanister(meta))
	})
}

// RemoveCanisters deletes registry rows and cascades to every retained
// snapshot of each canister. Returns the number of rows actually removed.
func (c *Client) RemoveCanisters(ctx context.Context, ids []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count := 0
	err := c.db.Update(func(tx *bbolt.Tx) error {
		canisters := tx.Bucket(bucketCanisters)
		snapshots := tx.Bucket(bucketSnapshots)
		for _, id := range ids {
			key := []byte(id)
			if canisters.Get(key) == nil {
				continue
			}
			if err := canisters.Delete(key); err != nil {
				return err
			}
			if err := deleteSnapshotRange(snapshots, id); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// EachCanister iterates the registry in key order. Returning an error from
// fn stops the walk.
func (c *Client) EachCanister(ctx context.Context, fn func(id string, meta CanisterMeta) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.View(func(tx *bbolt.Tx) error {
		cur := tx.Bucket(bucketCanisters).Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			if err := fn(string(k), decodeCanister(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ExportCanisters dumps the registry in a form ImportCanisters accepts
// unchanged.
func (c *Client) ExportCanisters(ctx context.Context) ([]CanisterImport, error) {
	out := []CanisterImport{}
	err := c.EachCanister(ctx, func(id string, meta CanisterMeta) error {
		item := CanisterImport{
			CanisterID: id,
			ProxyID:    meta.ProxyID,
			ProxyType:  ptr(meta.ProxyType),
			Valid:      ptr(meta.Valid),
		}
		if meta.Project != "" {
			item.Project = ptr(meta.Project)
		}
		if meta.Website != "" {
			item.Website = ptr(meta.Website)
		}
		out = append(out, item)
		return nil
	})
	return out, err
}

func ptr[T any](v T) *T { return &v }
