package controller

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/AlexandriaDAO/cyclescan/pkg/db"
)

// HandleImportCanisters bulk-upserts registry records.
func (c *Controller) HandleImportCanisters(w http.ResponseWriter, r *http.Request) {
	var items []db.CanisterImport
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	n, err := c.App.DB.ImportCanisters(r.Context(), items)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "import failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

// HandleUpdateCanister applies a tri-state partial update.
func (c *Controller) HandleUpdateCanister(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var upd db.CanisterUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	found, err := c.App.DB.UpdateCanister(r.Context(), id, upd)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "canister not tracked")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// HandleSetValid toggles the public-leaderboard flag.
func (c *Controller) HandleSetValid(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var in struct {
		Valid bool `json:"valid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	found, err := c.App.DB.SetValid(r.Context(), id, in.Valid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": found})
}

// HandleRemoveCanisters deletes registry rows and their whole history.
func (c *Controller) HandleRemoveCanisters(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CanisterIDs []string `json:"canister_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	n, err := c.App.DB.RemoveCanisters(r.Context(), in.CanisterIDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "remove failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

// HandleUpsertProjects creates or updates administered project rows.
func (c *Controller) HandleUpsertProjects(w http.ResponseWriter, r *http.Request) {
	var items []db.ProjectImport
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	n, err := c.App.DB.UpsertProjects(r.Context(), items)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "import failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

// HandleUpdateProject patches one project's website.
func (c *Controller) HandleUpdateProject(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var in struct {
		Website db.StringPatch `json:"website"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	found, err := c.App.DB.UpdateProjectWebsite(r.Context(), name, in.Website)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "project not tracked")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// HandleTakeSnapshot runs one cycle on demand; the scheduler path runs the
// same code.
func (c *Controller) HandleTakeSnapshot(w http.ResponseWriter, r *http.Request) {
	res, err := c.App.Tracker.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "snapshot cycle failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleSchedulerStart enables periodic cycles. The scheduler outlives the
// request, so it gets a background context; shutdown stops it explicitly.
func (c *Controller) HandleSchedulerStart(w http.ResponseWriter, _ *http.Request) {
	if err := c.App.Scheduler.Start(context.Background()); err != nil {
		writeError(w, http.StatusInternalServerError, "scheduler start failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"running": true})
}

// HandleSchedulerStop disables periodic cycles.
func (c *Controller) HandleSchedulerStop(w http.ResponseWriter, _ *http.Request) {
	c.App.Scheduler.Stop()
	writeJSON(w, http.StatusOK, map[string]bool{"running": false})
}

// HandleClearAll drops every canister, project and snapshot.
func (c *Controller) HandleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := c.App.DB.ClearAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}
