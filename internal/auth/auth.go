// Package auth checks staff credentials against a static table and issues
// bearer tokens for the staff-facing endpoints.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/wareshop/counter/internal/audit"
	"github.com/wareshop/counter/internal/config"
	"github.com/wareshop/counter/pkg/errorbank"
)

// StaffContextKey carries the authenticated staff name on the echo context.
const StaffContextKey = "staff"

// StaffMember is one entry of the static credential table. Password hashes
// are bcrypt.
type StaffMember struct {
	Name         string `json:"name"`
	PasswordHash string `json:"password_hash"`
	Role         string `json:"role,omitempty"`
}

// Claims are the JWT claims issued on login.
type Claims struct {
	Staff string `json:"staff"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Service validates credentials and tokens.
type Service struct {
	cfg    config.Auth
	staff  map[string]StaffMember
	audit  *audit.Log
	logger *zap.Logger
}

// Module provides the auth service to Fx.
var Module = fx.Provide(NewService)

// NewService loads the staff table. A missing table file is allowed and
// yields an empty table (every login fails).
func NewService(cfg config.Config, auditLog *audit.Log, logger *zap.Logger) (*Service, error) {
	staff, err := loadStaffTable(cfg.Auth.StaffFile)
	if err != nil {
		return nil, err
	}
	if cfg.Auth.Enabled && len(staff) == 0 && logger != nil {
		logger.Warn("auth enabled with an empty staff table", zap.String("file", cfg.Auth.StaffFile))
	}
	return &Service{cfg: cfg.Auth, staff: staff, audit: auditLog, logger: logger}, nil
}

func loadStaffTable(path string) (map[string]StaffMember, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]StaffMember{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read staff table: %w", err)
	}
	var members []StaffMember
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("decode staff table: %w", err)
	}
	table := make(map[string]StaffMember, len(members))
	for _, m := range members {
		table[m.Name] = m
	}
	return table, nil
}

// Enabled reports whether staff routes require a token.
func (s *Service) Enabled() bool {
	return s.cfg.Enabled
}

// Login verifies a staff credential and returns a signed token.
func (s *Service) Login(name, password string) (string, error) {
	member, ok := s.staff[name]
	if !ok {
		return "", errorbank.Unauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(password)); err != nil {
		return "", errorbank.Unauthorized("invalid credentials")
	}

	now := time.Now()
	claims := Claims{
		Staff: member.Name,
		Role:  member.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
			Subject:   member.Name,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", errorbank.Internal("failed to sign token", errorbank.WithCause(err))
	}

	if s.audit != nil {
		s.audit.Record(audit.ActionStaffLogin, "", member.Name, "login ok")
	}
	return token, nil
}

// ValidateToken parses and verifies a bearer token.
func (s *Service) ValidateToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, errorbank.Unauthorized("invalid or expired token")
	}
	return claims, nil
}

// Middleware guards staff routes. When auth is disabled it passes everything
// through untouched.
func (s *Service) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !s.cfg.Enabled {
				return next(c)
			}

			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "authorization token required")
			}
			claims, err := s.ValidateToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}
			c.Set(StaffContextKey, claims.Staff)
			return next(c)
		}
	}
}
