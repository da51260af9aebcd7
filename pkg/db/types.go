package db

import (
	"encoding/json"
	"fmt"
)

// String field byte budgets. Oversized values are truncated at a rune
// boundary, never rejected.
const (
	MaxProjectBytes = 100
	MaxWebsiteBytes = 200
)

// ProxyType tags how a canister's cycle balance is queried.
type ProxyType uint8

const (
	// ProxyBlackhole queries one canister's status through a blackhole
	// canister that proxies canister_status.
	ProxyBlackhole ProxyType = iota
	// ProxySNSRoot queries an SNS root, whose summary reports balances for
	// every canister under that root in a single call.
	ProxySNSRoot
)

func (p ProxyType) String() string {
	switch p {
	case ProxySNSRoot:
		return "sns_root"
	default:
		return "blackhole"
	}
}

func (p ProxyType) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *ProxyType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "blackhole":
		*p = ProxyBlackhole
	case "sns_root":
		*p = ProxySNSRoot
	default:
		return fmt.Errorf("unknown proxy type %q", s)
	}
	return nil
}

// CanisterStats are the cached summary fields refreshed by the snapshot
// tracker after each cycle. Nil burn values mean the window is unknown
// (fewer than two snapshots retained).
type CanisterStats struct {
	Balance uint64  `json:"balance"`
	Burn1h  *uint64 `json:"burn_1h"`
	Burn24h *uint64 `json:"burn_24h"`
	Burn7d  *uint64 `json:"burn_7d"`
}

// Burn24hOrZero is the leaderboard sort key.
func (s CanisterStats) Burn24hOrZero() uint64 {
	if s.Burn24h == nil {
		return 0
	}
	return *s.Burn24h
}

// CanisterMeta is the registry record for one tracked canister.
type CanisterMeta struct {
	ProxyID   string
	ProxyType ProxyType
	Project   string // empty means unassigned
	Website   string
	Valid     bool
	Stats     CanisterStats
}

// CanisterImport is the bulk upsert item. Nil optional fields preserve the
// stored value on update and take defaults on first creation. The same shape
// round-trips through the export endpoint.
type CanisterImport struct {
	CanisterID string     `json:"canister_id"`
	ProxyID    string     `json:"proxy_id,omitempty"`
	ProxyType  *ProxyType `json:"proxy_type,omitempty"`
	Project    *string    `json:"project,omitempty"`
	Website    *string    `json:"website,omitempty"`
	Valid      *bool      `json:"valid,omitempty"`
}

// StringPatch is a three-way update intent for an optional string field. The
// zero patch leaves the stored value unchanged; a set patch with an empty
// value clears the field; anything else replaces it. JSON absence maps to
// the zero patch, JSON null to a clear.
type StringPatch struct {
	Value string
	Set   bool
}

// PatchSet builds a set/replace patch.
func PatchSet(v string) StringPatch { return StringPatch{Value: v, Set: true} }

// PatchClear builds a clearing patch.
func PatchClear() StringPatch { return StringPatch{Set: true} }

func (p *StringPatch) UnmarshalJSON(b []byte) error {
	p.Set = true
	if string(b) == "null" {
		p.Value = ""
		return nil
	}
	return json.Unmarshal(b, &p.Value)
}

func (p StringPatch) MarshalJSON() ([]byte, error) {
	if !p.Set {
		return []byte("null"), nil
	}
	return json.Marshal(p.Value)
}

// Apply resolves the patch against the stored value, truncating oversized
// input to maxBytes.
func (p StringPatch) Apply(stored string, maxBytes int) string {
	if !p.Set {
		return stored
	}
	return truncate(p.Value, maxBytes)
}

// CanisterUpdate is the partial-update payload for one canister.
type CanisterUpdate struct {
	Project StringPatch `json:"project,omitempty"`
	Website StringPatch `json:"website,omitempty"`
	ProxyID StringPatch `json:"proxy_id,omitempty"`
}

// ProjectStats are the cached aggregates over a project's canisters,
// rebuilt wholesale each cycle.
type ProjectStats struct {
	CanisterCount uint64  `json:"canister_count"`
	TotalBalance  uint64  `json:"total_balance"`
	TotalBurn1h   *uint64 `json:"total_burn_1h"`
	TotalBurn24h  *uint64 `json:"total_burn_24h"`
	TotalBurn7d   *uint64 `json:"total_burn_7d"`
}

func (s ProjectStats) Burn24hOrZero() uint64 {
	if s.TotalBurn24h == nil {
		return 0
	}
	return *s.TotalBurn24h
}

// ProjectMeta is the registry record for one project label.
type ProjectMeta struct {
	Website string
	Stats   ProjectStats
}

// ProjectImport is the project upsert/export item.
type ProjectImport struct {
	Project string  `json:"project"`
	Website *string `json:"website,omitempty"`
}

// Snapshot is one retained (timestamp, balance) observation. Timestamps are
// Unix nanoseconds.
type Snapshot struct {
	Timestamp int64  `json:"timestamp"`
	Cycles    uint64 `json:"cycles"`
}
