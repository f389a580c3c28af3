package application

import (
	"net/http"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/synchronization"
)

func (a *api) fullSync(w http.ResponseWriter, r *http.Request) {
	req := synchronization.FullSyncRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, a.log, err)
		return
	}

	snapshot, err := a.svcs.Sync.FullSync(r.Context(), currentUser(r), req)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func (a *api) deltaSync(w http.ResponseWriter, r *http.Request) {
	req := synchronization.DeltaSyncRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, a.log, err)
		return
	}

	delta, err := a.svcs.Sync.DeltaSync(r.Context(), currentUser(r), req)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, delta)
}

func (a *api) getSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := a.svcs.Sync.GetSyncStatus(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (a *api) resolveConflict(w http.ResponseWriter, r *http.Request) {
	conflict := synchronization.Conflict{}
	if err := decodeBody(r, &conflict); err != nil {
		writeError(w, r, a.log, err)
		return
	}

	resolution, err := a.svcs.Sync.ResolveConflict(r.Context(), conflict)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, resolution)
}
