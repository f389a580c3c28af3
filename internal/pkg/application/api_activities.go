package application

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/activities"
)

func (a *api) listActivities(w http.ResponseWriter, r *http.Request) {
	p, err := queryPage(r)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	list, err := a.svcs.Activities.ListForUser(r.Context(), currentUser(r), activities.ListOptions{
		Start:  p.Start,
		End:    p.End,
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func (a *api) createActivity(w http.ResponseWriter, r *http.Request) {
	req := activities.CreateRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, a.log, err)
		return
	}

	entry, err := a.svcs.Activities.Create(r.Context(), currentUser(r), req)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

func (a *api) getActivityStatistics(w http.ResponseWriter, r *http.Request) {
	a.statistics(w, r, r.URL.Query().Get("device_id"))
}

func (a *api) getDeviceActivities(w http.ResponseWriter, r *http.Request) {
	p, err := queryPage(r)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	list, err := a.svcs.Activities.ListForDevice(r.Context(), currentUser(r), chi.URLParam(r, "device_id"), activities.ListOptions{
		Start:  p.Start,
		End:    p.End,
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func (a *api) getDeviceActivityStatistics(w http.ResponseWriter, r *http.Request) {
	a.statistics(w, r, chi.URLParam(r, "device_id"))
}

func (a *api) statistics(w http.ResponseWriter, r *http.Request, deviceID string) {
	stats, err := a.svcs.Activities.Statistics(r.Context(), currentUser(r), deviceID, r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
