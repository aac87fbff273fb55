// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gorilla "github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/kafilah/kafilah/internal/auth"
	"github.com/kafilah/kafilah/internal/config"
	"github.com/kafilah/kafilah/internal/database"
	"github.com/kafilah/kafilah/internal/logging"
	"github.com/kafilah/kafilah/internal/models"
	"github.com/kafilah/kafilah/internal/websocket"
)

//nolint:gochecknoinits // quiet logging during tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

type testEnv struct {
	server  *httptest.Server
	db      *database.DB
	hub     *websocket.Hub
	groupID string
	// alice is a jamaah, budi is an admin, citra is a pembimbing,
	// all in groupID
	aliceID, aliceToken string
	budiID, budiToken   string
	citraID, citraToken string
}

type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

const testPassword = "rahasia123"

func setupAPI(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Defaults()
	cfg.Security.JWTSecret = strings.Repeat("s", 32)
	cfg.Database.Path = ":memory:"

	db, err := database.New(&cfg.Database)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	groupID, err := db.CreateGroup(ctx, &database.GroupInfo{
		Name: "Kafilah Barokah", JoinCode: "ABC123", IsActive: true,
	})
	if err != nil {
		t.Fatalf("seed group: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	aliceID, err := db.CreateUser(ctx, "Alice", "+628111111111", string(hash), models.RoleJamaah, groupID)
	if err != nil {
		t.Fatalf("seed alice: %v", err)
	}
	budiID, err := db.CreateUser(ctx, "Budi", "+628122222222", string(hash), models.RoleAdmin, groupID)
	if err != nil {
		t.Fatalf("seed budi: %v", err)
	}
	citraID, err := db.CreateUser(ctx, "Citra", "+628133333333", string(hash), models.RolePembimbing, groupID)
	if err != nil {
		t.Fatalf("seed citra: %v", err)
	}

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}
	aliceToken, err := jwtManager.GenerateToken(aliceID, "+628111111111", models.RoleJamaah, groupID)
	if err != nil {
		t.Fatalf("alice token: %v", err)
	}
	budiToken, err := jwtManager.GenerateToken(budiID, "+628122222222", models.RoleAdmin, groupID)
	if err != nil {
		t.Fatalf("budi token: %v", err)
	}
	citraToken, err := jwtManager.GenerateToken(citraID, "+628133333333", models.RolePembimbing, groupID)
	if err != nil {
		t.Fatalf("citra token: %v", err)
	}

	hub := websocket.NewHub()
	hubCtx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(hubCtx)
		close(hubDone)
	}()
	t.Cleanup(func() {
		cancel()
		<-hubDone
	})

	events := websocket.NewEventRouter(hub, db, nil)
	router := NewRouter(cfg, db, jwtManager, hub, events)
	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)

	return &testEnv{
		server: server, db: db, hub: hub, groupID: groupID,
		aliceID: aliceID, aliceToken: aliceToken,
		budiID: budiID, budiToken: budiToken,
		citraID: citraID, citraToken: citraToken,
	}
}

func (env *testEnv) request(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, env.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var env2 envelope
	if err := json.NewDecoder(resp.Body).Decode(&env2); err != nil && err != io.EOF {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, env2
}

func TestLoginSuccess(t *testing.T) {
	env := setupAPI(t)

	status, resp := env.request(t, http.MethodPost, "/api/auth/login", "",
		map[string]string{"phone": "+628111111111", "password": testPassword})
	if status != http.StatusOK {
		t.Fatalf("status = %d: %+v", status, resp.Error)
	}

	var data struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Token == "" {
		t.Error("missing token")
	}
	if data.User == nil || data.User.Name != "Alice" || !data.User.IsOnline {
		t.Errorf("user = %+v", data.User)
	}
}

func TestLoginRejections(t *testing.T) {
	env := setupAPI(t)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"wrong password", map[string]string{"phone": "+628111111111", "password": "nope"}, http.StatusUnauthorized},
		{"unknown phone", map[string]string{"phone": "+620000000000", "password": testPassword}, http.StatusUnauthorized},
		{"missing fields", map[string]string{"phone": "+628111111111"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := env.request(t, http.MethodPost, "/api/auth/login", "", tt.body)
			if status != tt.want {
				t.Errorf("status = %d, want %d", status, tt.want)
			}
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := setupAPI(t)

	for _, path := range []string{"/api/users", "/api/panic", "/api/groups/current", "/api/settings"} {
		status, _ := env.request(t, http.MethodGet, path, "", nil)
		if status != http.StatusUnauthorized {
			t.Errorf("GET %s without token: status = %d", path, status)
		}
	}
}

func TestGroupRoster(t *testing.T) {
	env := setupAPI(t)

	status, resp := env.request(t, http.MethodGet, "/api/users", env.aliceToken, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var users []models.User
	if err := json.Unmarshal(resp.Data, &users); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(users) != 3 {
		t.Errorf("roster size = %d, want 3", len(users))
	}
}

func TestPanicLifecycleOverREST(t *testing.T) {
	env := setupAPI(t)

	// Alice raises.
	status, resp := env.request(t, http.MethodPost, "/api/panic", env.aliceToken,
		map[string]interface{}{"lat": 21.42, "lng": 39.83})
	if status != http.StatusCreated {
		t.Fatalf("raise status = %d: %+v", status, resp.Error)
	}
	var alert models.PanicAlert
	if err := json.Unmarshal(resp.Data, &alert); err != nil {
		t.Fatalf("decode alert: %v", err)
	}
	if alert.Message != models.DefaultPanicMessage {
		t.Errorf("default message not applied: %q", alert.Message)
	}

	// The raiser now shows the panic flag.
	status, resp = env.request(t, http.MethodGet, "/api/users/"+env.aliceID, env.budiToken, nil)
	if status != http.StatusOK {
		t.Fatalf("get user status = %d", status)
	}
	var u models.User
	if err := json.Unmarshal(resp.Data, &u); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if !u.IsPanic {
		t.Error("panic flag not visible on roster")
	}

	// Budi (admin) resolves; then resolves again, which must also succeed.
	for i := 0; i < 2; i++ {
		status, resp = env.request(t, http.MethodPut, "/api/panic/"+alert.ID+"/resolve", env.budiToken, nil)
		if status != http.StatusOK {
			t.Fatalf("resolve #%d status = %d: %+v", i+1, status, resp.Error)
		}
	}

	var resolved models.PanicAlert
	if err := json.Unmarshal(resp.Data, &resolved); err != nil {
		t.Fatalf("decode resolved: %v", err)
	}
	if !resolved.IsResolved || resolved.ResolvedBy != "Budi" {
		t.Errorf("resolved alert = %+v", resolved)
	}
}

func TestResolvePanicForbiddenForOtherMember(t *testing.T) {
	env := setupAPI(t)

	// Budi raises; Alice (jamaah, not the owner) may not resolve.
	status, resp := env.request(t, http.MethodPost, "/api/panic", env.budiToken,
		map[string]interface{}{"lat": 0, "lng": 0})
	if status != http.StatusCreated {
		t.Fatalf("raise status = %d", status)
	}
	var alert models.PanicAlert
	if err := json.Unmarshal(resp.Data, &alert); err != nil {
		t.Fatalf("decode: %v", err)
	}

	status, _ = env.request(t, http.MethodPut, "/api/panic/"+alert.ID+"/resolve", env.aliceToken, nil)
	if status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", status)
	}

	status, _ = env.request(t, http.MethodPut, "/api/panic/424242/resolve", env.budiToken, nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown alert status = %d, want 404", status)
	}
}

func TestJoinAndLeaveGroupReissuesToken(t *testing.T) {
	env := setupAPI(t)

	status, resp := env.request(t, http.MethodPost, "/api/groups/leave", env.aliceToken, nil)
	if status != http.StatusOK {
		t.Fatalf("leave status = %d: %+v", status, resp.Error)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Token == "" || out.Token == env.aliceToken {
		t.Error("leave must reissue a fresh token")
	}

	// The fresh groupless token cannot rejoin a group it has no code for.
	status, _ = env.request(t, http.MethodPost, "/api/groups/join", out.Token,
		map[string]string{"joinCode": "ZZZ999"})
	if status != http.StatusNotFound {
		t.Errorf("bad code status = %d, want 404", status)
	}

	status, resp = env.request(t, http.MethodPost, "/api/groups/join", out.Token,
		map[string]string{"joinCode": "abc123"}) // case-insensitive
	if status != http.StatusOK {
		t.Fatalf("join status = %d: %+v", status, resp.Error)
	}
	var joined struct {
		Token string        `json:"token"`
		Group *models.Group `json:"group"`
	}
	if err := json.Unmarshal(resp.Data, &joined); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if joined.Group == nil || joined.Group.ID != env.groupID {
		t.Errorf("joined group = %+v", joined.Group)
	}
}

func TestSettingsAdminGating(t *testing.T) {
	env := setupAPI(t)

	body := map[string]interface{}{
		"isGpsActive": true, "trackingInterval": 60, "radiusLimit": 1000, "isAppActive": true,
	}

	status, _ := env.request(t, http.MethodPut, "/api/settings", env.aliceToken, body)
	if status != http.StatusForbidden {
		t.Errorf("jamaah settings write status = %d, want 403", status)
	}

	status, _ = env.request(t, http.MethodPut, "/api/settings", env.budiToken, body)
	if status != http.StatusOK {
		t.Errorf("admin settings write status = %d, want 200", status)
	}

	status, _ = env.request(t, http.MethodPut, "/api/settings", env.citraToken, body)
	if status != http.StatusOK {
		t.Errorf("pembimbing settings write status = %d, want 200", status)
	}

	status, resp := env.request(t, http.MethodGet, "/api/settings", env.aliceToken, nil)
	if status != http.StatusOK {
		t.Fatalf("settings read status = %d", status)
	}
	var s models.GroupSettings
	if err := json.Unmarshal(resp.Data, &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.TrackingInterval != 60 {
		t.Errorf("settings not persisted: %+v", s)
	}
}

func TestItineraryLifecycle(t *testing.T) {
	env := setupAPI(t)

	body := map[string]interface{}{"day": 1, "time": "08:00", "activity": "Ziarah"}

	status, _ := env.request(t, http.MethodPost, "/api/itinerary", env.aliceToken, body)
	if status != http.StatusForbidden {
		t.Errorf("jamaah create status = %d, want 403", status)
	}

	status, resp := env.request(t, http.MethodPost, "/api/itinerary", env.citraToken, body)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d: %+v", status, resp.Error)
	}
	var item models.ItineraryItem
	if err := json.Unmarshal(resp.Data, &item); err != nil {
		t.Fatalf("decode: %v", err)
	}

	update := map[string]interface{}{"day": 2, "time": "09:30", "activity": "Tawaf"}
	status, resp = env.request(t, http.MethodPut, "/api/itinerary/"+item.ID, env.citraToken, update)
	if status != http.StatusOK {
		t.Fatalf("update status = %d: %+v", status, resp.Error)
	}
	var updated models.ItineraryItem
	if err := json.Unmarshal(resp.Data, &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Day != 2 || updated.Activity != "Tawaf" {
		t.Errorf("updated item = %+v", updated)
	}

	status, _ = env.request(t, http.MethodPut, "/api/itinerary/424242", env.citraToken, update)
	if status != http.StatusNotFound {
		t.Errorf("unknown item update status = %d, want 404", status)
	}

	status, _ = env.request(t, http.MethodDelete, "/api/itinerary/"+item.ID, env.budiToken, nil)
	if status != http.StatusOK {
		t.Errorf("delete status = %d, want 200", status)
	}
}

func TestNotificationMarkRead(t *testing.T) {
	env := setupAPI(t)

	status, resp := env.request(t, http.MethodPost, "/api/notifications", env.citraToken,
		map[string]string{"title": "Kumpul", "content": "Lobi hotel jam 7"})
	if status != http.StatusCreated {
		t.Fatalf("create status = %d: %+v", status, resp.Error)
	}
	var n models.Notification
	if err := json.Unmarshal(resp.Data, &n); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n.IsRead {
		t.Error("new notification must start unread")
	}

	// Any member may mark; repeating is harmless.
	for i := 0; i < 2; i++ {
		status, _ = env.request(t, http.MethodPut, "/api/notifications/"+n.ID+"/read", env.aliceToken, nil)
		if status != http.StatusOK {
			t.Fatalf("mark read #%d status = %d", i+1, status)
		}
	}

	status, _ = env.request(t, http.MethodPut, "/api/notifications/424242/read", env.aliceToken, nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown notification status = %d, want 404", status)
	}

	status, resp = env.request(t, http.MethodGet, "/api/notifications", env.aliceToken, nil)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	var list []models.Notification
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || !list[0].IsRead {
		t.Errorf("list = %+v", list)
	}
}

func TestUpdateProfileBroadcast(t *testing.T) {
	env := setupAPI(t)

	status, resp := env.request(t, http.MethodPut, "/api/users/profile", env.aliceToken,
		map[string]string{"name": "Alicia"})
	if status != http.StatusOK {
		t.Fatalf("status = %d: %+v", status, resp.Error)
	}
	var u models.User
	if err := json.Unmarshal(resp.Data, &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.Name != "Alicia" {
		t.Errorf("name = %q", u.Name)
	}

	status, _ = env.request(t, http.MethodPut, "/api/users/profile", env.aliceToken,
		map[string]string{})
	if status != http.StatusBadRequest {
		t.Errorf("empty update status = %d, want 400", status)
	}
}

func TestPushSubscriptionRoundTrip(t *testing.T) {
	env := setupAPI(t)

	status, _ := env.request(t, http.MethodPost, "/api/push/subscribe", env.aliceToken,
		map[string]interface{}{
			"endpoint": "https://push.example.com/abc",
			"keys":     map[string]string{"p256dh": "k", "auth": "a"},
		})
	if status != http.StatusCreated {
		t.Fatalf("subscribe status = %d", status)
	}

	subs, err := env.db.ListGroupSubscriptions(context.Background(), env.groupID, "")
	if err != nil || len(subs) != 1 {
		t.Fatalf("subs = %d, err = %v", len(subs), err)
	}

	status, _ = env.request(t, http.MethodDelete, "/api/push/subscribe", env.aliceToken, nil)
	if status != http.StatusOK {
		t.Fatalf("unsubscribe status = %d", status)
	}
}

func TestHealth(t *testing.T) {
	env := setupAPI(t)

	status, resp := env.request(t, http.MethodGet, "/api/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var health struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	if err := json.Unmarshal(resp.Data, &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "up" || health.Database != "ok" {
		t.Errorf("health = %+v", health)
	}
}

// dialWS opens a websocket connection through the test server.
func dialWS(t *testing.T, env *testEnv, token string) *gorilla.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/ws?token=" + token
	conn, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v (resp %+v)", err, resp)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	env := setupAPI(t)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/ws?token=garbage"
	conn, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	if err == nil {
		conn.Close()
		t.Fatal("dial should fail without a valid token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 before upgrade, got %+v", resp)
	}
	if resp != nil {
		resp.Body.Close()
	}
}

func TestWebSocketLocationBroadcast(t *testing.T) {
	env := setupAPI(t)

	sender := dialWS(t, env, env.aliceToken)
	receiver := dialWS(t, env, env.budiToken)

	// Give the hub a moment to attach both clients to the room.
	deadline := time.Now().Add(2 * time.Second)
	for env.hub.ClientCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	err := sender.WriteJSON(map[string]interface{}{
		"event": "location-update",
		"data":  map[string]float64{"latitude": 21.42, "longitude": 39.83},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = receiver.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Event string `json:"event"`
		Data  struct {
			UserID   string `json:"userId"`
			Location struct {
				Lat       float64 `json:"lat"`
				Lng       float64 `json:"lng"`
				Timestamp int64   `json:"timestamp"`
			} `json:"location"`
		} `json:"data"`
	}
	if err := receiver.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Event != "user-location-updated" || msg.Data.UserID != env.aliceID {
		t.Errorf("broadcast = %+v", msg)
	}
	if msg.Data.Location.Lat != 21.42 || msg.Data.Location.Lng != 39.83 || msg.Data.Location.Timestamp == 0 {
		t.Errorf("location = %+v", msg.Data.Location)
	}

	// The sender's own socket must stay silent.
	_ = sender.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var echo map[string]interface{}
	if err := sender.ReadJSON(&echo); err == nil {
		t.Errorf("sender received its own update: %+v", echo)
	}

	// And the location is durable.
	u, err := env.db.GetUser(context.Background(), env.aliceID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Location == nil || u.Location.Lat != 21.42 {
		t.Errorf("last-known location = %+v", u.Location)
	}
}
