package db

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestImportCreatesWithDefaults(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	n, err := c.ImportCanisters(ctx, []CanisterImport{
		{CanisterID: "aaaaa-aa", ProxyID: "bh-proxy"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	meta, err := c.GetCanister(ctx, "aaaaa-aa")
	require.NoError(t, err)
	assert.Equal(t, "bh-proxy", meta.ProxyID)
	assert.Equal(t, ProxyBlackhole, meta.ProxyType)
	assert.True(t, meta.Valid)
	assert.Empty(t, meta.Project)
	assert.Empty(t, meta.Website)
}

func TestImportPreservesOmittedFields(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	pt := ProxySNSRoot
	invalid := false
	_, err := c.ImportCanisters(ctx, []CanisterImport{
		{CanisterID: "c1", ProxyID: "root-1", ProxyType: &pt, Valid: &invalid},
	})
	require.NoError(t, err)

	// A later import supplying only the project must not touch proxy or
	// validity.
	project := "alexandria"
	_, err = c.ImportCanisters(ctx, []CanisterImport{
		{CanisterID: "c1", Project: &project},
	})
	require.NoError(t, err)

	meta, err := c.GetCanister(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "root-1", meta.ProxyID)
	assert.Equal(t, ProxySNSRoot, meta.ProxyType)
	assert.False(t, meta.Valid)
	assert.Equal(t, "alexandria", meta.Project)
}

func TestImportTruncatesOversizedStrings(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	long := strings.Repeat("é", 80) // 160 bytes
	_, err := c.ImportCanisters(ctx, []CanisterImport{
		{CanisterID: "c1", ProxyID: "p", Project: &long},
	})
	require.NoError(t, err)

	meta, err := c.GetCanister(ctx, "c1")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(meta.Project), MaxProjectBytes)
	// Never a torn rune: the byte budget is odd for 2-byte runes, so the
	// cut backs off to 50 whole runes.
	assert.Equal(t, strings.Repeat("é", 50), meta.Project)
}

func TestUpdateCanisterTriState(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	project := "alexandria"
	website := "https://alexandria.example"
	_, err := c.ImportCanisters(ctx, []CanisterImport{
		{CanisterID: "c1", ProxyID: "p", Project: &project, Website: &website},
	})
	require.NoError(t, err)

	// Absent fields stay untouched.
	found, err := c.UpdateCanister(ctx, "c1", CanisterUpdate{})
	require.NoError(t, err)
	assert.True(t, found)
	meta, err := c.GetCanister(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "alexandria", meta.Project)
	assert.Equal(t, website, meta.Website)

	// Set one, clear the other.
	found, err = c.UpdateCanister(ctx, "c1", CanisterUpdate{
		Project: PatchSet("libmodule"),
		Website: PatchClear(),
	})
	require.NoError(t, err)
	assert.True(t, found)
	meta, err = c.GetCanister(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "libmodule", meta.Project)
	assert.Empty(t, meta.Website)

	// Unknown canister: no-op, nothing created.
	found, err = c.UpdateCanister(ctx, "ghost", CanisterUpdate{Project: PatchSet("x")})
	require.NoError(t, err)
	assert.False(t, found)
	_, err = c.GetCanister(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStringPatchJSON(t *testing.T) {
	var upd CanisterUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"project":"x","website":null}`), &upd))
	assert.True(t, upd.Project.Set)
	assert.Equal(t, "x", upd.Project.Value)
	assert.True(t, upd.Website.Set)
	assert.Empty(t, upd.Website.Value)
	assert.False(t, upd.ProxyID.Set)
}

func TestSetValid(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	_, err := c.ImportCanisters(ctx, []CanisterImport{{CanisterID: "c1", ProxyID: "p"}})
	require.NoError(t, err)

	found, err := c.SetValid(ctx, "c1", false)
	require.NoError(t, err)
	assert.True(t, found)
	meta, err := c.GetCanister(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, meta.Valid)

	found, err = c.SetValid(ctx, "ghost", true)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRemoveCanistersCascades(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	_, err := c.ImportCanisters(ctx, []CanisterImport{
		{CanisterID: "c1", ProxyID: "p"},
		{CanisterID: "c2", ProxyID: "p"},
	})
	require.NoError(t, err)
	require.NoError(t, c.AppendSnapshot(ctx, "c1", 100, 10))
	require.NoError(t, c.AppendSnapshot(ctx, "c1", 200, 9))
	require.NoError(t, c.AppendSnapshot(ctx, "c2", 100, 50))

	n, err := c.RemoveCanisters(ctx, []string{"c1", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = c.GetCanister(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
	snaps, err := c.Snapshots(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, snaps)

	// The neighbour's history is untouched.
	snaps, err = c.Snapshots(ctx, "c2")
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestExportRoundTrips(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	pt := ProxySNSRoot
	project := "alexandria"
	invalid := false
	_, err := c.ImportCanisters(ctx, []CanisterImport{
		{CanisterID: "c1", ProxyID: "root-1", ProxyType: &pt, Project: &project, Valid: &invalid},
		{CanisterID: "c2", ProxyID: "bh-1"},
	})
	require.NoError(t, err)

	dump, err := c.ExportCanisters(ctx)
	require.NoError(t, err)
	require.Len(t, dump, 2)

	other := testClient(t)
	_, err = other.ImportCanisters(ctx, dump)
	require.NoError(t, err)

	meta, err := other.GetCanister(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "root-1", meta.ProxyID)
	assert.Equal(t, ProxySNSRoot, meta.ProxyType)
	assert.Equal(t, "alexandria", meta.Project)
	assert.False(t, meta.Valid)
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	_, err := c.ImportCanisters(ctx, []CanisterImport{{CanisterID: "c1", ProxyID: "p"}})
	require.NoError(t, err)
	require.NoError(t, c.AppendSnapshot(ctx, "c1", 100, 10))

	require.NoError(t, c.ClearAll(ctx))

	st, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.CanisterCount)
	assert.Zero(t, st.SnapshotCount)
}
