// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package websocket

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/kafilah/kafilah/internal/database"
	"github.com/kafilah/kafilah/internal/models"
)

type recordedLocation struct {
	userID   string
	lat, lng float64
}

// fakeStore implements Store in memory for router tests.
type fakeStore struct {
	mu           sync.Mutex
	locations    []recordedLocation
	alerts       map[string]*models.PanicAlert
	resolveCalls int
	nextID       int
	locationErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{alerts: make(map[string]*models.PanicAlert)}
}

func (s *fakeStore) RecordLocation(_ context.Context, userID string, lat, lng float64, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locationErr != nil {
		return s.locationErr
	}
	s.locations = append(s.locations, recordedLocation{userID, lat, lng})
	return nil
}

func (s *fakeStore) CreatePanicAlert(_ context.Context, userID, message string, lat, lng float64) (*models.PanicAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if message == "" {
		message = models.DefaultPanicMessage
	}
	s.nextID++
	alert := &models.PanicAlert{
		ID:       strconv.Itoa(s.nextID),
		UserID:   userID,
		Message:  message,
		Location: models.LatLng{Lat: lat, Lng: lng},
	}
	s.alerts[alert.ID] = alert
	return alert, nil
}

func (s *fakeStore) GetPanicAlert(_ context.Context, alertID string) (*models.PanicAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[alertID]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *alert
	return &copied, nil
}

func (s *fakeStore) ResolvePanicAlert(_ context.Context, alertID, resolvedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[alertID]
	if !ok {
		return database.ErrNotFound
	}
	s.resolveCalls++
	if alert.IsResolved {
		return nil
	}
	alert.IsResolved = true
	alert.ResolvedBy = resolvedBy
	return nil
}

func (s *fakeStore) lastLocation() (recordedLocation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.locations) == 0 {
		return recordedLocation{}, false
	}
	return s.locations[len(s.locations)-1], true
}

type fakePublisher struct {
	mu     sync.Mutex
	alerts []*models.PanicAlert
	groups []string
}

func (p *fakePublisher) PublishPanic(groupID string, alert *models.PanicAlert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.groups = append(p.groups, groupID)
	p.alerts = append(p.alerts, alert)
}

func setupRouter(t *testing.T) (*Hub, *fakeStore, *fakePublisher, *EventRouter) {
	t.Helper()
	hub := setupHub(t)
	store := newFakeStore()
	pub := &fakePublisher{}
	return hub, store, pub, NewEventRouter(hub, store, pub)
}

func raw(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return b
}

func TestLocationUpdatePersistsAndBroadcasts(t *testing.T) {
	hub, store, _, router := setupRouter(t)
	sender := newTestClient(hub, "1", "jamaah", "7")
	peer := newTestClient(hub, "2", "jamaah", "7")
	stranger := newTestClient(hub, "3", "jamaah", "8")
	register(t, hub, sender)
	register(t, hub, peer)
	register(t, hub, stranger)

	router.HandleEvent(context.Background(), sender, EventLocationUpdate,
		raw(t, locationPayload{Latitude: -6.2, Longitude: 106.8}))

	loc, ok := store.lastLocation()
	if !ok {
		t.Fatal("location not persisted")
	}
	if loc.userID != "1" || loc.lat != -6.2 || loc.lng != 106.8 {
		t.Errorf("persisted %+v", loc)
	}

	msg := recvMessage(t, peer)
	if msg.Event != EventUserLocationUpdated {
		t.Fatalf("event = %q", msg.Event)
	}
	bc, ok := msg.Data.(LocationBroadcast)
	if !ok {
		t.Fatalf("payload type %T", msg.Data)
	}
	if bc.UserID != "1" || bc.Location.Lat != -6.2 || bc.Location.Lng != 106.8 || bc.Location.Timestamp == 0 {
		t.Errorf("broadcast %+v", bc)
	}

	expectSilence(t, sender)
	expectSilence(t, stranger)
}

func TestLocationUpdateWithoutGroupIsDropped(t *testing.T) {
	hub, store, _, router := setupRouter(t)
	loner := newTestClient(hub, "1", "jamaah", "")

	router.HandleEvent(context.Background(), loner, EventLocationUpdate,
		raw(t, locationPayload{Latitude: 1, Longitude: 2}))

	if _, ok := store.lastLocation(); ok {
		t.Error("location should not be persisted for a groupless sender")
	}
}

func TestLocationUpdateRejectsBadCoordinates(t *testing.T) {
	hub, store, _, router := setupRouter(t)
	sender := newTestClient(hub, "1", "jamaah", "7")
	peer := newTestClient(hub, "2", "jamaah", "7")
	register(t, hub, sender)
	register(t, hub, peer)

	tests := []struct {
		name string
		data json.RawMessage
	}{
		{"latitude out of range", raw(t, locationPayload{Latitude: 95, Longitude: 0})},
		{"longitude out of range", raw(t, locationPayload{Latitude: 0, Longitude: 181})},
		{"not json", json.RawMessage(`"latitude"`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router.HandleEvent(context.Background(), sender, EventLocationUpdate, tt.data)
			if _, ok := store.lastLocation(); ok {
				t.Error("invalid payload must not persist")
			}
			expectSilence(t, peer)
		})
	}
}

func TestLocationUpdateStoreFailureSkipsBroadcast(t *testing.T) {
	hub, store, _, router := setupRouter(t)
	store.locationErr = errors.New("disk full")
	sender := newTestClient(hub, "1", "jamaah", "7")
	peer := newTestClient(hub, "2", "jamaah", "7")
	register(t, hub, sender)
	register(t, hub, peer)

	router.HandleEvent(context.Background(), sender, EventLocationUpdate,
		raw(t, locationPayload{Latitude: 1, Longitude: 2}))

	expectSilence(t, peer)
}

func TestRaisePanicBroadcastsIncludingSenderAndPushes(t *testing.T) {
	hub, _, pub, router := setupRouter(t)
	raiser := newTestClient(hub, "1", "jamaah", "7")
	peer := newTestClient(hub, "2", "jamaah", "7")
	register(t, hub, raiser)
	register(t, hub, peer)

	alert, err := router.RaisePanic(context.Background(), raiser.Claims(), "", -6.2, 106.8)
	if err != nil {
		t.Fatalf("RaisePanic: %v", err)
	}
	if alert.Message != models.DefaultPanicMessage {
		t.Errorf("message = %q", alert.Message)
	}

	for _, c := range []*Client{raiser, peer} {
		msg := recvMessage(t, c)
		if msg.Event != EventNewPanicAlert {
			t.Errorf("event = %q", msg.Event)
		}
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.alerts) != 1 || pub.groups[0] != "7" {
		t.Errorf("push fan-out: alerts=%d groups=%v", len(pub.alerts), pub.groups)
	}
}

func TestResolvePanicPermissions(t *testing.T) {
	hub, store, _, router := setupRouter(t)
	owner := newTestClient(hub, "1", "jamaah", "7")
	register(t, hub, owner)

	tests := []struct {
		name    string
		userID  string
		role    string
		wantErr error
	}{
		{"other jamaah", "2", "jamaah", ErrPermissionDenied},
		{"pembimbing", "3", "pembimbing", ErrPermissionDenied},
		{"owner", "1", "jamaah", nil},
		{"admin", "4", "admin", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert, err := store.CreatePanicAlert(context.Background(), "1", "help", 0, 0)
			if err != nil {
				t.Fatalf("seed alert: %v", err)
			}
			caller := newTestClient(hub, tt.userID, tt.role, "7")
			_, err = router.ResolvePanic(context.Background(), caller.Claims(), alert.ID)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolvePanicIdempotent(t *testing.T) {
	hub, store, _, router := setupRouter(t)
	owner := newTestClient(hub, "1", "jamaah", "7")
	register(t, hub, owner)

	alert, err := store.CreatePanicAlert(context.Background(), "1", "help", 0, 0)
	if err != nil {
		t.Fatalf("seed alert: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := router.ResolvePanic(context.Background(), owner.Claims(), alert.ID); err != nil {
			t.Fatalf("resolve #%d: %v", i+1, err)
		}
		msg := recvMessage(t, owner)
		if msg.Event != EventPanicAlertResolved {
			t.Errorf("event = %q", msg.Event)
		}
		bc := msg.Data.(ResolveBroadcast)
		if bc.AlertID != alert.ID || bc.UserID != "1" {
			t.Errorf("broadcast %+v", bc)
		}
	}

	store.mu.Lock()
	calls := store.resolveCalls
	store.mu.Unlock()
	if calls != 1 {
		t.Errorf("store resolve calls = %d, want 1", calls)
	}
}

func TestResolvePanicUnknownAlert(t *testing.T) {
	hub, _, _, router := setupRouter(t)
	caller := newTestClient(hub, "1", "admin", "7")

	_, err := router.ResolvePanic(context.Background(), caller.Claims(), "404")
	if !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("err = %v, want ErrAlertNotFound", err)
	}
}

func TestHandlePanicResolvedOverSocket(t *testing.T) {
	hub, store, _, router := setupRouter(t)
	owner := newTestClient(hub, "1", "jamaah", "7")
	peer := newTestClient(hub, "2", "jamaah", "7")
	register(t, hub, owner)
	register(t, hub, peer)

	alert, err := store.CreatePanicAlert(context.Background(), "1", "help", 0, 0)
	if err != nil {
		t.Fatalf("seed alert: %v", err)
	}

	router.HandleEvent(context.Background(), owner, EventPanicResolved,
		raw(t, resolvePayload{AlertID: alert.ID}))

	for _, c := range []*Client{owner, peer} {
		msg := recvMessage(t, c)
		if msg.Event != EventPanicAlertResolved {
			t.Errorf("event = %q", msg.Event)
		}
	}

	got, err := store.GetPanicAlert(context.Background(), alert.ID)
	if err != nil {
		t.Fatalf("get alert: %v", err)
	}
	if !got.IsResolved {
		t.Error("alert should be resolved")
	}
}

func TestHandlePanicAlertIsBroadcastOnly(t *testing.T) {
	hub, store, _, router := setupRouter(t)
	sender := newTestClient(hub, "1", "jamaah", "7")
	peer := newTestClient(hub, "2", "jamaah", "7")
	register(t, hub, sender)
	register(t, hub, peer)

	router.HandleEvent(context.Background(), sender, EventPanicAlert,
		raw(t, panicAlertPayload{Alert: models.PanicAlert{ID: "55", UserID: "999", Message: ""}}))

	// Both room members, sender included, see the alert.
	for _, c := range []*Client{sender, peer} {
		msg := recvMessage(t, c)
		if msg.Event != EventNewPanicAlert {
			t.Errorf("event = %q", msg.Event)
		}
		alert := msg.Data.(*models.PanicAlert)
		if alert.UserID != "1" {
			t.Errorf("userId = %q, spoofed identity must be replaced", alert.UserID)
		}
		if alert.Message != models.DefaultPanicMessage {
			t.Errorf("empty message should default, got %q", alert.Message)
		}
		if alert.Timestamp == 0 {
			t.Error("timestamp not filled in")
		}
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.alerts) != 0 {
		t.Error("socket panic-alert must not create alerts")
	}
}

func TestBroadcastProfileUpdated(t *testing.T) {
	hub, _, _, router := setupRouter(t)
	member := newTestClient(hub, "2", "jamaah", "7")
	register(t, hub, member)

	router.BroadcastProfileUpdated("7", "1", "a.png")

	msg := recvMessage(t, member)
	if msg.Event != EventUserProfileUpdated {
		t.Fatalf("event = %q", msg.Event)
	}
	p := msg.Data.(ProfileBroadcast)
	if p.UserID != "1" || p.Avatar != "a.png" {
		t.Errorf("broadcast %+v", p)
	}
}

func TestUnknownEventIsIgnored(t *testing.T) {
	hub, _, _, router := setupRouter(t)
	sender := newTestClient(hub, "1", "jamaah", "7")
	register(t, hub, sender)

	router.HandleEvent(context.Background(), sender, "teleport", raw(t, map[string]int{"x": 1}))
	expectSilence(t, sender)
}
