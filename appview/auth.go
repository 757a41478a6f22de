package appview

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	scopeAccess  = "yuuzone.access"
	scopeRefresh = "yuuzone.refresh"

	viewerContextKey = "viewer"
)

// AuthInfo is the session token pair handed to a client on login.
type AuthInfo struct {
	AccessJwt  string `json:"access_jwt"`
	RefreshJwt string `json:"refresh_jwt"`
	Handle     string `json:"handle"`
	UserID     uint   `json:"user_id"`
}

func (s *Server) makeToken(userID uint, scope string, exp time.Time) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   strconv.FormatUint(uint64(userID), 10),
		"scope": scope,
		"iat":   time.Now().Unix(),
		"exp":   exp.Unix(),
	})
	return tok.SignedString(s.jwtSecret)
}

func (s *Server) createAuthTokenForUser(userID uint, handle string) (*AuthInfo, error) {
	access, err := s.makeToken(userID, scopeAccess, time.Now().Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}
	refresh, err := s.makeToken(userID, scopeRefresh, time.Now().Add(7*24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("signing refresh token: %w", err)
	}
	return &AuthInfo{
		AccessJwt:  access,
		RefreshJwt: refresh,
		Handle:     handle,
		UserID:     userID,
	}, nil
}

// parseViewer resolves a bearer token to a user id. Returns 0 for
// missing tokens; errors only on present-but-invalid ones.
func (s *Server) parseViewer(authHeader string) (uint, error) {
	if authHeader == "" {
		return 0, nil
	}
	raw := strings.TrimPrefix(authHeader, "Bearer ")
	if raw == authHeader {
		return 0, fmt.Errorf("malformed authorization header")
	}

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !tok.Valid {
		return 0, fmt.Errorf("invalid token")
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || claims["scope"] != scopeAccess {
		return 0, fmt.Errorf("invalid token scope")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return 0, fmt.Errorf("invalid token subject")
	}
	uid, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token subject")
	}
	return uint(uid), nil
}

// viewerMiddleware resolves the viewer for every request. Read routes
// accept anonymous viewers; an invalid token is still rejected so
// clients notice expiry.
func (s *Server) viewerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		viewer, err := s.parseViewer(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		c.Set(viewerContextKey, viewer)
		return next(c)
	}
}

// requireViewer gates routes that need an authenticated user.
func (s *Server) requireViewer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.viewer(c) == 0 {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		return next(c)
	}
}

func (s *Server) viewer(c echo.Context) uint {
	if v, ok := c.Get(viewerContextKey).(uint); ok {
		return v
	}
	return 0
}
