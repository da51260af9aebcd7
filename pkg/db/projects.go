package db

import (
	"context"

	"go.etcd.io/bbolt"
)

// UpsertProjects bulk-upserts administered project rows. A row may exist
// before any canister carries its label. Returns the number written.
func (c *Client) UpsertProjects(ctx context.Context, items []ProjectImport) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count := 0
	err := c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketProjects)
		for _, item := range items {
			name := truncate(item.Project, MaxProjectBytes)
			if name == "" {
				continue
			}
			key := []byte(name)
			meta := ProjectMeta{}
			if prev := bucket.Get(key); prev != nil {
				meta = decodeProject(prev)
			}
			if item.Website != nil {
				meta.Website = truncate(*item.Website, MaxWebsiteBytes)
			}
			if err := bucket.Put(key, encodeProject(meta)); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// UpdateProjectWebsite applies a tri-state website patch. Returns false for
// an unknown project.
func (c *Client) UpdateProjectWebsite(ctx context.Context, name string, patch StringPatch) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	err := c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketProjects)
		key := []byte(name)
		raw := bucket.Get(key)
		if raw == nil {
			return nil
		}
		found = true
		meta := decodeProject(raw)
		meta.Website = patch.Apply(meta.Website, MaxWebsiteBytes)
		return bucket.Put(key, encodeProject(meta))
	})
	return found, err
}

// GetProject fetches one project row, or ErrNotFound.
func (c *Client) GetProject(ctx context.Context, name string) (ProjectMeta, error) {
	if err := ctx.Err(); err != nil {
		return ProjectMeta{}, err
	}
	var meta ProjectMeta
	err := c.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketProjects).Get([]byte(name))
		if raw == nil {
			return ErrNotFound
		}
		meta = decodeProject(raw)
		return nil
	})
	return meta, err
}

// EachProject iterates project rows in label order.
func (c *Client) EachProject(ctx context.Context, fn func(name string, meta ProjectMeta) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.View(func(tx *bbolt.Tx) error {
		cur := tx.Bucket(bucketProjects).Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			if err := fn(string(k), decodeProject(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ExportProjects dumps administered rows in a form UpsertProjects accepts.
func (c *Client) ExportProjects(ctx context.Context) ([]ProjectImport, error) {
	out := []ProjectImport{}
	err := c.EachProject(ctx, func(name string, meta ProjectMeta) error {
		item := ProjectImport{Project: name}
		if meta.Website != "" {
			item.Website = ptr(meta.Website)
		}
		out = append(out, item)
		return nil
	})
	return out, err
}

// ProjectAggregate carries one cycle's recomputed rollup for a label, plus
// the first non-empty member website seen during the sweep.
type ProjectAggregate struct {
	Stats         ProjectStats
	MemberWebsite string
}

// ApplyProjectAggregates rewrites every project's cached aggregates
// wholesale. Labels absent from agg keep their row but drop to zero stats;
// labels without a row yet get one. A row whose website was never
// administered inherits the first member website.
func (c *Client) ApplyProjectAggregates(ctx context.Context, agg map[string]ProjectAggregate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketProjects)

		// Zero out rows for labels no canister carries anymore.
		cur := bucket.Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			if _, ok := agg[string(k)]; ok {
				continue
			}
			meta := decodeProject(v)
			meta.Stats = ProjectStats{}
			if err := bucket.Put(k, encodeProject(meta)); err != nil {
				return err
			}
		}

		for name, a := range agg {
			key := []byte(name)
			meta := ProjectMeta{}
			if prev := bucket.Get(key); prev != nil {
				meta = decodeProject(prev)
			}
			if meta.Website == "" {
				meta.Website = truncate(a.MemberWebsite, MaxWebsiteBytes)
			}
			meta.Stats = a.Stats
			if err := bucket.Put(key, encodeProject(meta)); err != nil {
				return err
			}
		}
		return nil
	})
}
