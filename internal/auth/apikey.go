package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	// AccessKeyHeader carries the shared access key.
	AccessKeyHeader = "X-Access-Key"
	// AccessKeyParam carries the key on WebSocket handshakes, where browsers
	// cannot set headers.
	AccessKeyParam = "key"
)

var (
	errMissingKey = echo.NewHTTPError(http.StatusUnauthorized, "missing access key")
	errInvalidKey = echo.NewHTTPError(http.StatusForbidden, "invalid access key")
)

// AccessKey is a shared secret guarding the terminal and upload endpoints.
// The empty key allows every request.
type AccessKey string

// PresentedKey returns the key a request carries. The query parameter is
// honoured only on WebSocket upgrades; plain requests must use the header.
func PresentedKey(r *http.Request) string {
	if k := r.Header.Get(AccessKeyHeader); k != "" {
		return k
	}
	if websocket.IsWebSocketUpgrade(r) {
		return r.URL.Query().Get(AccessKeyParam)
	}
	return ""
}

// Check returns nil if r may proceed, or an *echo.HTTPError with 401 for a
// missing key and 403 for a wrong one.
func (k AccessKey) Check(r *http.Request) error {
	if k == "" {
		return nil
	}
	provided := PresentedKey(r)
	if provided == "" {
		return errMissingKey
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(k)) != 1 {
		return errInvalidKey
	}
	return nil
}

// Middleware applies Check to every request of a route group.
func (k AccessKey) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := k.Check(c.Request()); err != nil {
				return err
			}
			return next(c)
		}
	}
}
