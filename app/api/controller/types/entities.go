package types

import "github.com/AlexandriaDAO/cyclescan/pkg/db"

// LeaderboardEntry is one ranked row, built purely from cached registry
// fields.
type LeaderboardEntry struct {
	CanisterID string  `json:"canister_id"`
	Project    string  `json:"project,omitempty"`
	Website    string  `json:"website,omitempty"`
	Balance    uint64  `json:"balance"`
	Burn1h     *uint64 `json:"burn_1h"`
	Burn24h    *uint64 `json:"burn_24h"`
	Burn7d     *uint64 `json:"burn_7d"`
}

// LeaderboardPage carries one page plus the unpaginated total.
type LeaderboardPage struct {
	Entries []LeaderboardEntry `json:"entries"`
	Total   uint64             `json:"total"`
	Offset  uint64             `json:"offset"`
}

// ProjectEntry is one project leaderboard row.
type ProjectEntry struct {
	Project       string  `json:"project"`
	Website       string  `json:"website,omitempty"`
	CanisterCount uint64  `json:"canister_count"`
	TotalBalance  uint64  `json:"total_balance"`
	TotalBurn1h   *uint64 `json:"total_burn_1h"`
	TotalBurn24h  *uint64 `json:"total_burn_24h"`
	TotalBurn7d   *uint64 `json:"total_burn_7d"`
}

// CanisterDetail is the full per-canister view: registry metadata, cached
// windows, the on-demand 30-day figure and the retained history.
type CanisterDetail struct {
	CanisterID string        `json:"canister_id"`
	ProxyID    string        `json:"proxy_id"`
	ProxyType  db.ProxyType  `json:"proxy_type"`
	Project    string        `json:"project,omitempty"`
	Website    string        `json:"website,omitempty"`
	Valid      bool          `json:"valid"`
	Balance    uint64        `json:"current_balance"`
	Burn1h     *uint64       `json:"burn_1h"`
	Burn24h    *uint64       `json:"burn_24h"`
	Burn7d     *uint64       `json:"burn_7d"`
	Burn30d    *uint64       `json:"burn_30d"`
	Snapshots  []db.Snapshot `json:"snapshots"`
}

// WindowBurn reports one rollup window and whether the figure reflects data
// spanning the whole window or an extrapolation.
type WindowBurn struct {
	Window string  `json:"window"`
	Burn   *uint64 `json:"burn"`
	Actual bool    `json:"actual"`
}

// CanisterHistory is CanisterDetail plus the per-window provenance flags.
type CanisterHistory struct {
	CanisterDetail
	Windows []WindowBurn `json:"windows"`
}

// SchedulerStatus reports whether periodic snapshots are enabled.
type SchedulerStatus struct {
	Running bool `json:"running"`
}
