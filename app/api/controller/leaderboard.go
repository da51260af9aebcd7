package controller

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"

	ctypes "github.com/AlexandriaDAO/cyclescan/app/api/controller/types"
	"github.com/AlexandriaDAO/cyclescan/pkg/db"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

func entryFrom(id string, meta db.CanisterMeta) ctypes.LeaderboardEntry {
	return ctypes.LeaderboardEntry{
		CanisterID: id,
		Project:    meta.Project,
		Website:    meta.Website,
		Balance:    meta.Stats.Balance,
		Burn1h:     meta.Stats.Burn1h,
		Burn24h:    meta.Stats.Burn24h,
		Burn7d:     meta.Stats.Burn7d,
	}
}

// sortByBurn orders descending by 24h burn; registry key order makes the
// tie-break stable.
func sortByBurn(entries []ctypes.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return orZero(entries[i].Burn24h) > orZero(entries[j].Burn24h)
	})
}

func orZero(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v
}

// HandleLeaderboard serves the paginated canister leaderboard, sorted by
// cached 24h burn. Only valid canisters appear. Reads never touch history.
func (c *Controller) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	offset, _ := strconv.Atoi(qs.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	limit := defaultLimit
	if v := qs.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		// limit=0 is a valid degenerate page: no entries, true total.
		limit = min(n, maxLimit)
	}

	entries := []ctypes.LeaderboardEntry{}
	err := c.App.DB.EachCanister(r.Context(), func(id string, meta db.CanisterMeta) error {
		if !meta.Valid {
			return nil
		}
		entries = append(entries, entryFrom(id, meta))
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	sortByBurn(entries)

	total := uint64(len(entries))
	if offset >= len(entries) {
		entries = []ctypes.LeaderboardEntry{}
	} else {
		entries = entries[offset:min(offset+limit, len(entries))]
	}

	writeJSON(w, http.StatusOK, ctypes.LeaderboardPage{
		Entries: entries,
		Total:   total,
		Offset:  uint64(offset),
	})
}

// HandleProjectLeaderboard serves every project with at least one canister,
// sorted by cached total 24h burn.
func (c *Controller) HandleProjectLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows := []ctypes.ProjectEntry{}
	err := c.App.DB.EachProject(r.Context(), func(name string, meta db.ProjectMeta) error {
		if meta.Stats.CanisterCount == 0 {
			return nil
		}
		rows = append(rows, ctypes.ProjectEntry{
			Project:       name,
			Website:       meta.Website,
			CanisterCount: meta.Stats.CanisterCount,
			TotalBalance:  meta.Stats.TotalBalance,
			TotalBurn1h:   meta.Stats.TotalBurn1h,
			TotalBurn24h:  meta.Stats.TotalBurn24h,
			TotalBurn7d:   meta.Stats.TotalBurn7d,
		})
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return orZero(rows[i].TotalBurn24h) > orZero(rows[j].TotalBurn24h)
	})
	writeJSON(w, http.StatusOK, rows)
}

// HandleProjectCanisters lists one project's valid canisters, burn-sorted.
func (c *Controller) HandleProjectCanisters(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	entries := []ctypes.LeaderboardEntry{}
	err := c.App.DB.EachCanister(r.Context(), func(id string, meta db.CanisterMeta) error {
		if !meta.Valid || meta.Project != name {
			return nil
		}
		entries = append(entries, entryFrom(id, meta))
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	sortByBurn(entries)
	writeJSON(w, http.StatusOK, entries)
}

// HandleProject serves one project row.
func (c *Controller) HandleProject(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	meta, err := c.App.DB.GetProject(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusNotFound, "project not tracked")
		return
	}
	writeJSON(w, http.StatusOK, ctypes.ProjectEntry{
		Project:       name,
		Website:       meta.Website,
		CanisterCount: meta.Stats.CanisterCount,
		TotalBalance:  meta.Stats.TotalBalance,
		TotalBurn1h:   meta.Stats.TotalBurn1h,
		TotalBurn24h:  meta.Stats.TotalBurn24h,
		TotalBurn7d:   meta.Stats.TotalBurn7d,
	})
}
