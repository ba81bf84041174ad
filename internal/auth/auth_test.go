package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/wareshop/counter/internal/audit"
	"github.com/wareshop/counter/internal/config"
	"github.com/wareshop/counter/pkg/errorbank"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	table, err := json.Marshal([]StaffMember{
		{Name: "kasun", PasswordHash: string(hash), Role: "manager"},
	})
	require.NoError(t, err)
	staffFile := filepath.Join(dir, "staff.json")
	require.NoError(t, os.WriteFile(staffFile, table, 0o644))

	auditLog, err := audit.Open(filepath.Join(dir, "audit.log"), zap.NewNop())
	require.NoError(t, err)

	cfg := config.Config{Auth: config.Auth{
		Enabled:   true,
		StaffFile: staffFile,
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
	}}
	svc, err := NewService(cfg, auditLog, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestLoginAndValidate(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Login("kasun", "hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "kasun", claims.Staff)
	assert.Equal(t, "manager", claims.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Login("kasun", "wrong")
	assert.Equal(t, errorbank.KindUnauthorized, errorbank.From(err).Kind())

	_, err = svc.Login("stranger", "hunter2")
	assert.Equal(t, errorbank.KindUnauthorized, errorbank.From(err).Kind())
}

func TestValidateRejectsForgedToken(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ValidateToken("not.a.token")
	assert.Equal(t, errorbank.KindUnauthorized, errorbank.From(err).Kind())
}

func TestMiddlewareGuardsRoutes(t *testing.T) {
	svc := newTestService(t)
	token, err := svc.Login("kasun", "hunter2")
	require.NoError(t, err)

	e := echo.New()
	e.GET("/guarded", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get(StaffContextKey).(string))
	}, svc.Middleware())

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "kasun", rec.Body.String())
}

func TestMissingStaffTableYieldsEmptyTable(t *testing.T) {
	dir := t.TempDir()
	auditLog, err := audit.Open(filepath.Join(dir, "audit.log"), zap.NewNop())
	require.NoError(t, err)

	svc, err := NewService(config.Config{Auth: config.Auth{
		StaffFile: filepath.Join(dir, "missing.json"),
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
	}}, auditLog, zap.NewNop())
	require.NoError(t, err)

	_, err = svc.Login("anyone", "anything")
	assert.Equal(t, errorbank.KindUnauthorized, errorbank.From(err).Kind())
}
