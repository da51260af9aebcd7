package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanisterCodecRoundTrip(t *testing.T) {
	burn := uint64(42)
	in := CanisterMeta{
		ProxyID:   "bh-proxy",
		ProxyType: ProxySNSRoot,
		Project:   "alexandria",
		Website:   "https://alexandria.example",
		Valid:     false,
		Stats: CanisterStats{
			Balance: 1_000_000,
			Burn24h: &burn,
		},
	}

	out := decodeCanister(encodeCanister(in))
	assert.Equal(t, in, out)
}

func TestCanisterCodecLegacyV1Defaults(t *testing.T) {
	// A v1 record predates the website, validity and cached-stats fields.
	buf := []byte{canisterSchemaV1}
	buf = appendLPString(buf, "bh-proxy")
	buf = append(buf, byte(ProxyBlackhole))
	buf = appendLPString(buf, "alexandria")

	meta := decodeCanister(buf)
	assert.Equal(t, "bh-proxy", meta.ProxyID)
	assert.Equal(t, "alexandria", meta.Project)
	assert.True(t, meta.Valid, "legacy records default to valid")
	assert.Empty(t, meta.Website, "legacy records default to no website")
	assert.Nil(t, meta.Stats.Burn1h)
	assert.Nil(t, meta.Stats.Burn24h)
	assert.Nil(t, meta.Stats.Burn7d)
	assert.Zero(t, meta.Stats.Balance)
}

func TestCanisterCodecNeverFails(t *testing.T) {
	// Truncated, empty and garbage records decode to defaults instead of
	// erroring out.
	for _, raw := range [][]byte{nil, {}, {canisterSchemaV2}, {canisterSchemaV2, 0xff}, {0xee, 1, 2, 3}} {
		meta := decodeCanister(raw)
		assert.True(t, meta.Valid)
	}
}

func TestProjectCodecRoundTrip(t *testing.T) {
	burn := uint64(9)
	in := ProjectMeta{
		Website: "https://alexandria.example",
		Stats: ProjectStats{
			CanisterCount: 3,
			TotalBalance:  500,
			TotalBurn1h:   &burn,
		},
	}
	assert.Equal(t, in, decodeProject(encodeProject(in)))
}

func TestProjectCodecLegacyV1Defaults(t *testing.T) {
	buf := []byte{projectSchemaV1}
	buf = appendLPString(buf, "https://old.example")

	meta := decodeProject(buf)
	assert.Equal(t, "https://old.example", meta.Website)
	assert.Zero(t, meta.Stats.CanisterCount)
	assert.Nil(t, meta.Stats.TotalBurn24h)
}

func TestBurnPresenceDistinguishesZeroFromUnknown(t *testing.T) {
	zero := uint64(0)
	in := CanisterMeta{ProxyID: "p", Valid: true, Stats: CanisterStats{Burn1h: &zero}}
	out := decodeCanister(encodeCanister(in))
	if assert.NotNil(t, out.Stats.Burn1h) {
		assert.Zero(t, *out.Stats.Burn1h)
	}
	assert.Nil(t, out.Stats.Burn24h)
}
