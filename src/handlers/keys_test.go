package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/campusware/school-admin-server/src/clock"
	"github.com/campusware/school-admin-server/src/repositories"
	"github.com/campusware/school-admin-server/src/repositories/mock"
	"github.com/campusware/school-admin-server/src/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type nopAudit struct{}

func (nopAudit) Log(repositories.AuditEvent) {}

type keyFixture struct {
	router  *gin.Engine
	service *services.APIKeyService
	owner   uuid.UUID
}

// newKeyFixture wires a KeyHandler behind a router that injects the given
// staff identity, standing in for the JWT middleware.
func newKeyFixture(t *testing.T) *keyFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := mock.NewKeyStore()
	clk := clock.NewFake(time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC))
	service := services.NewAPIKeyService(store, clk)
	analytics, err := services.NewAnalyticsService(services.AnalyticsConfig{})
	if err != nil {
		t.Fatalf("failed to create analytics service: %v", err)
	}
	handler := NewKeyHandler(service, nopAudit{}, analytics)

	owner := uuid.New()
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("staff_id", owner.String())
		c.Next()
	})
	router.POST("/api/keys", handler.HandleGenerate)
	router.GET("/api/keys", handler.HandleList)
	router.POST("/api/keys/:key_id/rotate", handler.HandleRotate)
	router.POST("/api/keys/:key_id/revoke", handler.HandleRevoke)
	router.PATCH("/api/keys/:key_id", handler.HandleUpdate)
	router.DELETE("/api/keys/:key_id", handler.HandleDelete)

	return &keyFixture{router: router, service: service, owner: owner}
}

func (f *keyFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return out
}

func TestHandleGenerate(t *testing.T) {
	f := newKeyFixture(t)

	w := f.do(t, http.MethodPost, "/api/keys",
		`{"name":"gradebook sync","scopes":["students:read"],"rate_limit_per_hour":60}`)
	assertStatusCode(t, w, http.StatusCreated)

	body := decodeBody(t, w)
	secret, _ := body["secret"].(string)
	if !strings.HasPrefix(secret, "sk_") {
		t.Errorf("expected secret with sk_ prefix, got %q", secret)
	}

	key, _ := body["key"].(map[string]interface{})
	if key == nil {
		t.Fatal("expected key object in response")
	}
	if _, leaked := key["key_hash"]; leaked {
		t.Error("key hash must not appear in the response")
	}
	if key["rate_limit_per_hour"].(float64) != 60 {
		t.Errorf("expected rate limit 60, got %v", key["rate_limit_per_hour"])
	}

	// The returned secret must actually validate
	if _, err := f.service.Validate(context.Background(), secret, "10.0.0.1"); err != nil {
		t.Errorf("generated secret failed validation: %v", err)
	}
}

func TestHandleGenerate_MissingName(t *testing.T) {
	f := newKeyFixture(t)

	w := f.do(t, http.MethodPost, "/api/keys", `{"scopes":["students:read"]}`)
	assertStatusCode(t, w, http.StatusBadRequest)
}

func TestHandleList_OnlyCallersKeys(t *testing.T) {
	f := newKeyFixture(t)

	f.do(t, http.MethodPost, "/api/keys", `{"name":"one"}`)
	f.do(t, http.MethodPost, "/api/keys", `{"name":"two"}`)

	// A key owned by someone else must not show up
	_, _, err := f.service.Generate(context.Background(), services.GenerateParams{
		OwnerID: uuid.New(),
		Name:    "foreign",
	})
	if err != nil {
		t.Fatalf("failed to generate foreign key: %v", err)
	}

	w := f.do(t, http.MethodGet, "/api/keys", "")
	assertStatusCode(t, w, http.StatusOK)

	body := decodeBody(t, w)
	keys, _ := body["keys"].([]interface{})
	if len(keys) != 2 {
		t.Errorf("expected 2 keys, got %d", len(keys))
	}
}

func TestHandleRotate(t *testing.T) {
	f := newKeyFixture(t)

	w := f.do(t, http.MethodPost, "/api/keys", `{"name":"rotate me","scopes":["students:read"]}`)
	created := decodeBody(t, w)
	oldSecret := created["secret"].(string)
	keyID := created["key"].(map[string]interface{})["id"].(string)

	w = f.do(t, http.MethodPost, "/api/keys/"+keyID+"/rotate", "")
	assertStatusCode(t, w, http.StatusOK)

	rotated := decodeBody(t, w)
	newSecret := rotated["secret"].(string)
	if newSecret == oldSecret {
		t.Fatal("rotation must issue a fresh secret")
	}

	ctx := context.Background()
	if _, err := f.service.Validate(ctx, oldSecret, "10.0.0.1"); err == nil {
		t.Error("old secret must stop validating after rotation")
	}
	key, err := f.service.Validate(ctx, newSecret, "10.0.0.1")
	if err != nil {
		t.Fatalf("new secret failed validation: %v", err)
	}
	if !key.HasScope("students:read") {
		t.Error("rotation must carry scopes over to the replacement")
	}
}

func TestHandleRotate_RevokedKeyConflicts(t *testing.T) {
	f := newKeyFixture(t)

	w := f.do(t, http.MethodPost, "/api/keys", `{"name":"doomed"}`)
	keyID := decodeBody(t, w)["key"].(map[string]interface{})["id"].(string)

	w = f.do(t, http.MethodPost, "/api/keys/"+keyID+"/revoke", "")
	assertStatusCode(t, w, http.StatusOK)

	w = f.do(t, http.MethodPost, "/api/keys/"+keyID+"/rotate", "")
	assertStatusCode(t, w, http.StatusConflict)
}

func TestHandleRotate_NotOwned(t *testing.T) {
	f := newKeyFixture(t)

	foreign, _, err := f.service.Generate(context.Background(), services.GenerateParams{
		OwnerID: uuid.New(),
		Name:    "foreign",
	})
	if err != nil {
		t.Fatalf("failed to generate foreign key: %v", err)
	}

	w := f.do(t, http.MethodPost, "/api/keys/"+foreign.ID.String()+"/rotate", "")
	assertStatusCode(t, w, http.StatusForbidden)
}

func TestHandleUpdate(t *testing.T) {
	f := newKeyFixture(t)

	w := f.do(t, http.MethodPost, "/api/keys", `{"name":"before"}`)
	keyID := decodeBody(t, w)["key"].(map[string]interface{})["id"].(string)

	w = f.do(t, http.MethodPatch, "/api/keys/"+keyID, `{"name":"after","rate_limit_per_hour":10}`)
	assertStatusCode(t, w, http.StatusOK)

	key := decodeBody(t, w)["key"].(map[string]interface{})
	if key["name"] != "after" {
		t.Errorf("expected updated name, got %v", key["name"])
	}
	if key["rate_limit_per_hour"].(float64) != 10 {
		t.Errorf("expected rate limit 10, got %v", key["rate_limit_per_hour"])
	}
}

func TestHandleDelete_UnknownKey(t *testing.T) {
	f := newKeyFixture(t)

	w := f.do(t, http.MethodDelete, "/api/keys/"+uuid.NewString(), "")
	assertStatusCode(t, w, http.StatusNotFound)
}
