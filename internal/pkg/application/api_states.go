package application

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/states"
)

func (a *api) getAllStates(w http.ResponseWriter, r *http.Request) {
	all, err := a.svcs.States.GetAllStates(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, all)
}

func (a *api) getLatestState(w http.ResponseWriter, r *http.Request) {
	latest, err := a.svcs.States.GetLatestState(r.Context(), currentUser(r), chi.URLParam(r, "device_id"))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, latest)
}

//reportState is called by the dispenser itself, which is told whether to dispense
func (a *api) reportState(w http.ResponseWriter, r *http.Request) {
	deviceID, err := authenticatedDevice(r, chi.URLParam(r, "device_id"))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	report := states.Report{}
	if err := decodeBody(r, &report); err != nil {
		writeError(w, r, a.log, err)
		return
	}

	result, err := a.svcs.States.ReportState(r.Context(), deviceID, report)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (a *api) getStateHistory(w http.ResponseWriter, r *http.Request) {
	p, err := queryPage(r)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	history, err := a.svcs.States.GetHistory(r.Context(), currentUser(r), chi.URLParam(r, "device_id"), states.HistoryOptions{
		Start:  p.Start,
		End:    p.End,
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, history)
}
