package application

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/activities"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/devices"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/apperrors"
)

type bulkUpdateRequest struct {
	DeviceIDs []string              `json:"device_ids"`
	Updates   devices.UpdateRequest `json:"updates"`
}

func (a *api) listDevices(w http.ResponseWriter, r *http.Request) {
	includeInactive, err := queryBool(r, "include_inactive")
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	opts := devices.ListOptions{
		Sort:  r.URL.Query().Get("sort"),
		Order: r.URL.Query().Get("order"),
	}
	if includeInactive != nil {
		opts.IncludeInactive = *includeInactive
	}

	list, err := a.svcs.Devices.List(r.Context(), currentUser(r), opts)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func (a *api) createDevice(w http.ResponseWriter, r *http.Request) {
	req := devices.CreateRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, a.log, err)
		return
	}

	device, err := a.svcs.Devices.Create(r.Context(), currentUser(r), req)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, device)
}

func (a *api) bulkUpdateDevices(w http.ResponseWriter, r *http.Request) {
	req := bulkUpdateRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, a.log, err)
		return
	}

	if len(req.DeviceIDs) == 0 {
		writeError(w, r, a.log, apperrors.Validation("At least one device id is required"))
		return
	}

	updated, err := a.svcs.Devices.BulkUpdate(r.Context(), currentUser(r), req.DeviceIDs, req.Updates)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (a *api) getDevice(w http.ResponseWriter, r *http.Request) {
	device, err := a.svcs.Devices.Get(r.Context(), currentUser(r), chi.URLParam(r, "device_id"))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, device)
}

func (a *api) updateDevice(w http.ResponseWriter, r *http.Request) {
	req := devices.UpdateRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, a.log, err)
		return
	}

	device, err := a.svcs.Devices.Update(r.Context(), currentUser(r), chi.URLParam(r, "device_id"), req)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, device)
}

func (a *api) deleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := a.svcs.Devices.Delete(r.Context(), currentUser(r), chi.URLParam(r, "device_id")); err != nil {
		writeError(w, r, a.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *api) updateDeviceStatus(w http.ResponseWriter, r *http.Request) {
	deviceID, err := authenticatedDevice(r, chi.URLParam(r, "device_id"))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	report := devices.StatusReport{}
	if err := decodeBody(r, &report); err != nil {
		writeError(w, r, a.log, err)
		return
	}

	device, err := a.svcs.Devices.UpdateStatus(r.Context(), deviceID, report)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, device)
}

func (a *api) getDeviceHistory(w http.ResponseWriter, r *http.Request) {
	p, err := queryPage(r)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	history, err := a.svcs.Activities.ListForDevice(r.Context(), currentUser(r), chi.URLParam(r, "device_id"), activities.ListOptions{
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
