package application

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/notifications"
)

type bulkMarkReadRequest struct {
	NotificationIDs []string `json:"notification_ids"`
}

func (a *api) listNotifications(w http.ResponseWriter, r *http.Request) {
	isRead, err := queryBool(r, "is_read")
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	p, err := queryPage(r)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	list, err := a.svcs.Notifications.List(r.Context(), currentUser(r), notifications.ListOptions{
		IsRead:   isRead,
		Type:     r.URL.Query().Get("type"),
		DeviceID: r.URL.Query().Get("device_id"),
		Limit:    p.Limit,
		Offset:   p.Offset,
	})
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func (a *api) createNotification(w http.ResponseWriter, r *http.Request) {
	req := notifications.CreateRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, a.log, err)
		return
	}

	created, err := a.svcs.Notifications.Create(r.Context(), currentUser(r), req)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (a *api) getUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := a.svcs.Notifications.UnreadCount(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"unread_count": count})
}

func (a *api) getNotificationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svcs.Notifications.Stats(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (a *api) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	count, err := a.svcs.Notifications.MarkAllRead(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"marked_count": count})
}

func (a *api) bulkMarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	req := bulkMarkReadRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, a.log, err)
		return
	}

	count, err := a.svcs.Notifications.BulkMarkRead(r.Context(), currentUser(r), req.NotificationIDs)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"marked_count": count})
}

func (a *api) getNotification(w http.ResponseWriter, r *http.Request) {
	notification, err := a.svcs.Notifications.Get(r.Context(), currentUser(r), chi.URLParam(r, "notification_id"))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, notification)
}

func (a *api) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	notification, err := a.svcs.Notifications.MarkRead(r.Context(), currentUser(r), chi.URLParam(r, "notification_id"))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, notification)
}

func (a *api) deleteNotification(w http.ResponseWriter, r *http.Request) {
	notificationID := chi.URLParam(r, "notification_id")

	if err := a.svcs.Notifications.Delete(r.Context(), currentUser(r), notificationID); err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"notification_id": notificationID,
	})
}

func (a *api) getNotificationSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.svcs.Notifications.GetSettings(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

func (a *api) updateNotificationSettings(w http.ResponseWriter, r *http.Request) {
	update := notifications.SettingsUpdate{}
	if err := decodeBody(r, &update); err != nil {
		writeError(w, r, a.log, err)
		return
	}

	settings, err := a.svcs.Notifications.UpdateSettings(r.Context(), currentUser(r), update)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

func (a *api) updatePushToken(w http.ResponseWriter, r *http.Request) {
	update := notifications.PushTokenUpdate{}
	if err := decodeBody(r, &update); err != nil {
		writeError(w, r, a.log, err)
		return
	}

	settings, err := a.svcs.Notifications.UpdatePushToken(r.Context(), currentUser(r), update)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}
