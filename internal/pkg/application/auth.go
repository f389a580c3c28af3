package application

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/devices"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/apperrors"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/logging"
)

//Token types
const (
	TokenTypeAccess = "access"
	TokenTypeDevice = "device"
)

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	deviceIDKey contextKey = "device_id"
)

//authenticator verifies bearer tokens signed with a shared HS256 secret. Tokens are issued elsewhere.
type authenticator struct {
	secret  []byte
	devices devices.Finder
	log     logging.Logger
}

func newAuthenticator(secret string, finder devices.Finder, log logging.Logger) *authenticator {
	return &authenticator{secret: []byte(secret), devices: finder, log: log}
}

func (a *authenticator) claims(r *http.Request) (jwt.MapClaims, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, apperrors.Unauthorized("Missing bearer token")
	}

	token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.Unauthorized("Token has expired")
		}
		return nil, apperrors.Unauthorized("Could not validate credentials")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperrors.Unauthorized("Invalid token claims")
	}

	return claims, nil
}

func stringClaim(claims jwt.MapClaims, name string) string {
	value, _ := claims[name].(string)
	return value
}

//RequireUser rejects requests that do not carry a valid user access token
func (a *authenticator) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.claims(r)
		if err != nil {
			writeError(w, r, a.log, err)
			return
		}

		userID := stringClaim(claims, "sub")
		if stringClaim(claims, "type") != TokenTypeAccess || userID == "" {
			writeError(w, r, a.log, apperrors.Unauthorized("Invalid token type"))
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

//RequireDevice rejects requests that do not identify an active, registered device. The device is
//taken from the device_id claim, or from sub when it is absent.
func (a *authenticator) RequireDevice(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.claims(r)
		if err != nil {
			writeError(w, r, a.log, err)
			return
		}

		tokenType := stringClaim(claims, "type")
		if tokenType != TokenTypeAccess && tokenType != TokenTypeDevice {
			writeError(w, r, a.log, apperrors.Unauthorized("Invalid token type"))
			return
		}

		deviceID := stringClaim(claims, "device_id")
		if deviceID == "" {
			deviceID = stringClaim(claims, "sub")
		}
		if deviceID == "" {
			writeError(w, r, a.log, apperrors.Unauthorized("Token missing device identifier"))
			return
		}

		device, err := a.devices.GetDeviceByID(r.Context(), deviceID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				err = apperrors.Unauthorized("Device not found")
			}
			writeError(w, r, a.log, err)
			return
		}

		if !device.IsActive {
			writeError(w, r, a.log, apperrors.Forbidden("Device is inactive"))
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), deviceIDKey, device.ID)))
	}
}

func currentUser(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

//authenticatedDevice returns the device behind the token, which has to be the device named in the path
func authenticatedDevice(r *http.Request, pathDeviceID string) (string, error) {
	id, _ := r.Context().Value(deviceIDKey).(string)
	if id != pathDeviceID {
		return "", apperrors.Forbidden("Token does not belong to this device")
	}
	return id, nil
}
