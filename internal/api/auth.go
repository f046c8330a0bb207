package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DeviceHeader carries the id of the browser or app instance that owns a
// cart and a browsing session.
const DeviceHeader = "X-Device-ID"

type ctxKey int

const (
	identityKey ctxKey = iota
	deviceKey
)

var errInvalidToken = errors.New("api: invalid bearer token")

// Identity is what a verified access token says about its holder.
type Identity struct {
	UserID  string
	Email   string
	Name    string
	IsAdmin bool
}

// Authenticator verifies HS256 access tokens issued by the hosted auth
// provider. It never issues tokens itself.
type Authenticator struct {
	secret    []byte
	adminRole string
	log       logrus.FieldLogger
}

func NewAuthenticator(secret, adminRole string, log logrus.FieldLogger) *Authenticator {
	return &Authenticator{secret: []byte(secret), adminRole: adminRole, log: log.WithField("component", "auth")}
}

// Parse verifies raw and extracts the identity. The subject must be a uuid;
// the role is read from app_metadata.role and the display name from
// user_metadata.full_name.
func (a *Authenticator) Parse(raw string) (Identity, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return Identity{}, errInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errInvalidToken
	}

	sub, _ := claims["sub"].(string)
	if _, err := uuid.Parse(sub); err != nil {
		return Identity{}, errInvalidToken
	}
	id := Identity{UserID: sub}
	id.Email, _ = claims["email"].(string)
	if meta, ok := claims["user_metadata"].(map[string]interface{}); ok {
		id.Name, _ = meta["full_name"].(string)
	}
	if meta, ok := claims["app_metadata"].(map[string]interface{}); ok {
		role, _ := meta["role"].(string)
		id.IsAdmin = role != "" && role == a.adminRole
	}
	return id, nil
}

func bearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return "", false
	}
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	raw := strings.TrimSpace(parts[1])
	return raw, raw != ""
}

// Identify attaches the identity of a valid bearer token to the request.
// Requests without a token continue anonymously; a bad token is rejected.
func (a *Authenticator) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}
		raw, ok := bearerToken(r)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		id, err := a.Parse(raw)
		if err != nil {
			a.log.WithField("path", r.URL.Path).Debug("rejected bearer token")
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

// RequireUser rejects anonymous requests.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			respondWithError(w, http.StatusUnauthorized, "Please sign in to continue")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin lets through signed-in users carrying the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !id.IsAdmin {
			respondWithError(w, http.StatusForbidden, "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// DeviceID makes sure every request carries a device id. A missing or
// malformed header gets a fresh one, echoed back in the response.
func DeviceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		device := r.Header.Get(DeviceHeader)
		if _, err := uuid.Parse(device); err != nil {
			device = uuid.NewString()
		}
		w.Header().Set(DeviceHeader, device)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), deviceKey, device)))
	})
}

func deviceFrom(ctx context.Context) string {
	d, _ := ctx.Value(deviceKey).(string)
	return d
}
