package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	ctypes "github.com/AlexandriaDAO/cyclescan/app/api/controller/types"
	"github.com/AlexandriaDAO/cyclescan/pkg/burn"
	"github.com/AlexandriaDAO/cyclescan/pkg/db"
)

func (c *Controller) canisterDetail(r *http.Request, id string) (ctypes.CanisterDetail, error) {
	ctx := r.Context()
	meta, err := c.App.DB.GetCanister(ctx, id)
	if err != nil {
		return ctypes.CanisterDetail{}, err
	}
	snaps, err := c.App.DB.Snapshots(ctx, id)
	if err != nil {
		return ctypes.CanisterDetail{}, err
	}

	detail := ctypes.CanisterDetail{
		CanisterID: id,
		ProxyID:    meta.ProxyID,
		ProxyType:  meta.ProxyType,
		Project:    meta.Project,
		Website:    meta.Website,
		Valid:      meta.Valid,
		Balance:    meta.Stats.Balance,
		Burn1h:     meta.Stats.Burn1h,
		Burn24h:    meta.Stats.Burn24h,
		Burn7d:     meta.Stats.Burn7d,
		Snapshots:  snaps,
	}
	// The 30-day window is the one figure not cached on the registry row.
	if v, ok := burn.Calculate(snaps, burn.Window30d, time.Now()); ok {
		detail.Burn30d = &v
	}
	return detail, nil
}

// HandleCanister serves the full canister detail, including retained
// history and the on-demand 30-day burn.
func (c *Controller) HandleCanister(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	detail, err := c.canisterDetail(r, id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "canister not tracked")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleCanisterHistory serves the detail plus, per window, whether the
// figure comes from data spanning the full window or from extrapolation.
func (c *Controller) HandleCanisterHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	detail, err := c.canisterDetail(r, id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "canister not tracked")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	now := time.Now()
	windows := []ctypes.WindowBurn{
		{Window: "1h", Burn: detail.Burn1h, Actual: burn.SpansWindow(detail.Snapshots, burn.Window1h, now)},
		{Window: "24h", Burn: detail.Burn24h, Actual: burn.SpansWindow(detail.Snapshots, burn.Window24h, now)},
		{Window: "7d", Burn: detail.Burn7d, Actual: burn.SpansWindow(detail.Snapshots, burn.Window7d, now)},
		{Window: "30d", Burn: detail.Burn30d, Actual: burn.SpansWindow(detail.Snapshots, burn.Window30d, now)},
	}
	writeJSON(w, http.StatusOK, ctypes.CanisterHistory{CanisterDetail: detail, Windows: windows})
}

// HandleStats serves store-wide counters.
func (c *Controller) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := c.App.DB.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleSchedulerStatus reports the periodic scheduler flag.
func (c *Controller) HandleSchedulerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ctypes.SchedulerStatus{Running: c.App.Scheduler.Running()})
}

// HandleExportCanisters dumps the registry in import form.
func (c *Controller) HandleExportCanisters(w http.ResponseWriter, r *http.Request) {
	dump, err := c.App.DB.ExportCanisters(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, dump)
}

// HandleExportProjects dumps administered project rows in import form.
func (c *Controller) HandleExportProjects(w http.ResponseWriter, r *http.Request) {
	dump, err := c.App.DB.ExportProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, dump)
}
