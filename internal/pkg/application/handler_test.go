package application

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/messaging-golang/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "not-so-secret"

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

func TestThatHealthReportsAReachableDatabase(t *testing.T) {
	if router, _, ok := newRouterForTest(t); ok {
		w := serve(router, "GET", "/health", "", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "healthy", body["status"])
	}
}

func TestThatMissingTokenIsUnauthorized(t *testing.T) {
	if router, _, ok := newRouterForTest(t); ok {
		w := serve(router, "GET", "/devices", "", nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		body := decode(t, w)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "UNAUTHORIZED", body["error"].(map[string]interface{})["code"])
	}
}

func TestThatExpiredAndMistypedTokensAreRejected(t *testing.T) {
	if router, _, ok := newRouterForTest(t); ok {
		expired := sign(t, jwt.MapClaims{"sub": "user-1", "type": TokenTypeAccess, "exp": time.Now().Add(-time.Hour).Unix()})
		w := serve(router, "GET", "/devices", expired, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Token has expired", errorMessage(t, w))

		refresh := sign(t, jwt.MapClaims{"sub": "user-1", "type": "refresh"})
		w = serve(router, "GET", "/devices", refresh, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		forged, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1", "type": TokenTypeAccess}).SignedString([]byte("other"))
		w = serve(router, "GET", "/devices", forged, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
}

func TestThatDevicesCanBeRegisteredAndAreOwned(t *testing.T) {
	if router, _, ok := newRouterForTest(t); ok {
		deviceID := registerDevice(t, router, "user-1")

		w := serve(router, "GET", "/devices/"+deviceID, userToken(t, "user-1"), nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Kitchen", decode(t, w)["device_name"])

		w = serve(router, "GET", "/devices/"+deviceID, userToken(t, "user-2"), nil)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = serve(router, "GET", "/devices/does-not-exist", userToken(t, "user-1"), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
}

func TestThatDuplicateAndInvalidDevicesAreRejected(t *testing.T) {
	if router, _, ok := newRouterForTest(t); ok {
		registerDevice(t, router, "user-1")

		w := serve(router, "POST", "/devices", userToken(t, "user-1"), newDeviceBody())
		assert.Equal(t, http.StatusConflict, w.Code)

		w = serve(router, "POST", "/devices", userToken(t, "user-1"), map[string]interface{}{"device_name": "x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["error"].(map[string]interface{})["code"])
	}
}

func TestThatDeletedDevicesAreHiddenFromTheList(t *testing.T) {
	if router, _, ok := newRouterForTest(t); ok {
		deviceID := registerDevice(t, router, "user-1")
		token := userToken(t, "user-1")

		w := serve(router, "DELETE", "/devices/"+deviceID, token, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = serve(router, "GET", "/devices", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]\n", w.Body.String())

		w = serve(router, "GET", "/devices?include_inactive=true", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := []map[string]interface{}{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		assert.Len(t, list, 1)
	}
}

func TestThatConnectedDeviceIsToldToDispense(t *testing.T) {
	if router, _, ok := newRouterForTest(t); ok {
		deviceID := registerDevice(t, router, "user-1")
		device := deviceToken(t, deviceID)

		w := serve(router, "PATCH", "/devices/"+deviceID+"/status", device, map[string]interface{}{
			"battery_level":    90,
			"supplement_level": 80,
			"is_connected":     true,
			"firmware_version": "1.2.0",
		})
		require.Equal(t, http.StatusOK, w.Code)

		w = serve(router, "POST", "/states/"+deviceID, device, map[string]interface{}{
			"cup_placed":     true,
			"sensor_reading": 12.5,
		})
		require.Equal(t, http.StatusOK, w.Code)
		result := decode(t, w)
		assert.Equal(t, true, result["should_dispense"])
		assert.Equal(t, "cup_placed_and_ready", result["reason"])

		w = serve(router, "GET", "/activities", userToken(t, "user-1"), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), decode(t, w)["total"])

		w = serve(router, "GET", "/states/"+deviceID, userToken(t, "user-1"), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, result["state_id"], decode(t, w)["state_id"])
	}
}

func TestThatDeviceTokenOnlyReportsForItsOwnDevice(t *testing.T) {
	if router, _, ok := newRouterForTest(t); ok {
		deviceID := registerDevice(t, router, "user-1")

		w := serve(router, "POST", "/states/"+deviceID, deviceToken(t, "unknown-device"), map[string]interface{}{
			"cup_placed":     true,
			"sensor_reading": 1,
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = serve(router, "POST", "/states/other-device", deviceToken(t, deviceID), map[string]interface{}{
			"cup_placed":     true,
			"sensor_reading": 1,
		})
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = serve(router, "GET", "/states", deviceToken(t, deviceID), nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
}

func TestThatInvalidQueryParametersAreRejected(t *testing.T) {
	if router, _, ok := newRouterForTest(t); ok {
		token := userToken(t, "user-1")

		w := serve(router, "GET", "/activities?limit=many", token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = serve(router, "GET", "/activities?start_date=yesterday", token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = serve(router, "GET", "/activities?start_date=2024-04-01T00:00:00", token, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = serve(router, "GET", "/activities/statistics?period=decade", token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestThatNotificationsAreCountedAndMarkedRead(t *testing.T) {
	if router, _, ok := newRouterForTest(t); ok {
		token := userToken(t, "user-1")

		w := serve(router, "POST", "/notifications", token, map[string]interface{}{
			"type":    "achievement",
			"title":   "First dose",
			"message": "You took your first dose",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		notificationID := decode(t, w)["notification_id"].(string)

		w = serve(router, "GET", "/notifications/unread-count", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), decode(t, w)["unread_count"])

		w = serve(router, "PUT", "/notifications/"+notificationID+"/read", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decode(t, w)["is_read"])

		w = serve(router, "GET", "/notifications/unread-count", token, nil)
		assert.Equal(t, float64(0), decode(t, w)["unread_count"])

		w = serve(router, "DELETE", "/notifications/"+notificationID, userToken(t, "user-2"), nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	}
}

func TestThatSettingsDefaultUntilChanged(t *testing.T) {
	if router, _, ok := newRouterForTest(t); ok {
		token := userToken(t, "user-1")

		w := serve(router, "GET", "/notification-settings", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "08:00", decode(t, w)["reminder_time"])

		w = serve(router, "PUT", "/notification-settings", token, map[string]interface{}{"reminder_time": "21:30"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "21:30", decode(t, w)["reminder_time"])

		w = serve(router, "PUT", "/notification-settings", token, map[string]interface{}{"reminder_time": "25:00"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestThatFullSyncReturnsASnapshot(t *testing.T) {
	if router, _, ok := newRouterForTest(t); ok {
		registerDevice(t, router, "user-1")
		token := userToken(t, "user-1")

		w := serve(router, "POST", "/sync/full", token, map[string]interface{}{
			"device_info": map[string]interface{}{
				"platform":    "ios",
				"app_version": "1.0.0",
				"os_version":  "17.4",
			},
		})
		require.Equal(t, http.StatusOK, w.Code)
		snapshot := decode(t, w)
		assert.Equal(t, "success", snapshot["sync_status"])
		assert.Len(t, snapshot["devices"], 1)

		w = serve(router, "GET", "/sync/status", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, decode(t, w)["needs_full_sync"])
	}
}

func registerDevice(t *testing.T, router *RequestRouter, userID string) string {
	w := serve(router, "POST", "/devices", userToken(t, userID), newDeviceBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	return decode(t, w)["device_id"].(string)
}

func newDeviceBody() map[string]interface{} {
	return map[string]interface{}{
		"device_name":   "Kitchen",
		"device_type":   "fish_oil",
		"mac_address":   "aa-bb-cc-dd-ee-01",
		"serial_number": "zz12345678",
	}
}

func serve(router *RequestRouter, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	req, _ := http.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.impl.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	body := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode(t, w)["error"].(map[string]interface{})["message"].(string)
}

func sign(t *testing.T, claims jwt.MapClaims) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func userToken(t *testing.T, userID string) string {
	return sign(t, jwt.MapClaims{
		"sub":  userID,
		"type": TokenTypeAccess,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
}

func deviceToken(t *testing.T, deviceID string) string {
	return sign(t, jwt.MapClaims{
		"sub":  deviceID,
		"type": TokenTypeDevice,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
}

func newRouterForTest(t *testing.T) (*RequestRouter, database.Datastore, bool) {
	log := logging.NewLogger()
	db, err := database.NewDatabaseConnection(database.NewSQLiteConnector(), log)

	if err != nil {
		t.Error(err.Error())
		return nil, nil, false
	}

	return createRequestRouter(testSecret, db, NewServices(db, &msgMock{}, log), log), db, true
}

type msgMock struct {
	PublishCount int
}

func (m *msgMock) PublishOnTopic(message messaging.TopicMessage) error {
	m.PublishCount++
	return nil
}
