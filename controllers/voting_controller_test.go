package controller

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"gpodo/cache"
	"gpodo/lifecycle"
	"gpodo/models"
	"gpodo/utils"
)

type recordingSubscriber struct {
	mu   sync.Mutex
	msgs []utils.TallyMessage
}

func (r *recordingSubscriber) WriteJSON(v interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg, ok := v.(utils.TallyMessage); ok {
		r.msgs = append(r.msgs, msg)
	}
	return nil
}

func (r *recordingSubscriber) messages() []utils.TallyMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]utils.TallyMessage(nil), r.msgs...)
}

func newVotingApp(db *gorm.DB, hub *cache.TallyHub) *fiber.App {
	vc := NewVotingController(db, cache.NoopCache{}, 0, hub)
	return newTestApp(db, func(app *fiber.App) {
		app.Post("/groups/:id/voting-sessions", vc.CreateSession)
		app.Get("/groups/:id/voting-sessions", vc.ListSessions)
		app.Get("/voting-sessions/:id", vc.GetSession)
		app.Post("/voting-sessions/:id/votes", vc.CastVote)
		app.Post("/voting-sessions/:id/close", vc.CloseSession)
	})
}

func createSession(t *testing.T, db *gorm.DB, group models.Group, kind string, deadline time.Time, labels ...string) models.VotingSession {
	t.Helper()
	session := models.VotingSession{
		GroupID:   group.ID,
		Title:     "Supplier choice",
		Kind:      kind,
		Status:    lifecycle.SessionActive,
		Deadline:  deadline,
		CreatedBy: group.CreatorID,
	}
	for i, l := range labels {
		session.Options = append(session.Options, models.VotingOption{Position: i, Label: l})
	}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func TestCreateSession(t *testing.T) {
	db := newTestDB(t)
	app := newVotingApp(db, nil)
	creator := createUser(t, db, "creator@example.com", models.UserRoleBuyer, 0)
	admin := createUser(t, db, "admin@example.com", models.UserRoleBuyer, 0)
	group := createGroup(t, db, creator, lifecycle.PhaseNegotiation, 2, 10)
	addMember(t, db, group, admin, lifecycle.RoleAdmin)
	url := asURL("/groups/%d/voting-sessions", group.ID)
	future := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)

	tests := []struct {
		name   string
		user   uint
		body   map[string]interface{}
		status int
	}{
		{
			name:   "plain member",
			user:   creator.ID,
			body:   map[string]interface{}{"title": "Pick", "options": []string{"A", "B"}, "deadline": future},
			status: fiber.StatusForbidden,
		},
		{
			name:   "past deadline",
			user:   admin.ID,
			body:   map[string]interface{}{"title": "Pick", "options": []string{"A", "B"}, "deadline": past},
			status: fiber.StatusBadRequest,
		},
		{
			name:   "duplicate options collapse below two",
			user:   admin.ID,
			body:   map[string]interface{}{"title": "Pick", "options": []string{"A", " A ", "<i></i>"}, "deadline": future},
			status: fiber.StatusBadRequest,
		},
		{
			name:   "admin election outside its phase",
			user:   admin.ID,
			body:   map[string]interface{}{"title": "Elect", "kind": "admin_election", "candidate_ids": []uint{creator.ID, admin.ID}, "deadline": future},
			status: fiber.StatusForbidden,
		},
		{
			name:   "valid",
			user:   admin.ID,
			body:   map[string]interface{}{"title": "Pick", "options": []string{"A", "B", "A"}, "deadline": future},
			status: fiber.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doJSON(t, app, http.MethodPost, url, tt.user, tt.body)
			if status != tt.status {
				t.Fatalf("status = %d, want %d (%v)", status, tt.status, body)
			}
		})
	}

	var session models.VotingSession
	if err := db.Preload("Options").Where("group_id = ?", group.ID).First(&session).Error; err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if len(session.Options) != 2 {
		t.Errorf("options = %d, want duplicates dropped to 2", len(session.Options))
	}
}

func TestCreateAdminElectionByCreator(t *testing.T) {
	db := newTestDB(t)
	app := newVotingApp(db, nil)
	creator := createUser(t, db, "creator@example.com", models.UserRoleBuyer, 0)
	alice := createUser(t, db, "alice@example.com", models.UserRoleBuyer, 0)
	outsider := createUser(t, db, "eve@example.com", models.UserRoleBuyer, 0)
	group := createGroup(t, db, creator, lifecycle.PhaseVoteAdmins, 2, 10)
	addMember(t, db, group, alice, lifecycle.RoleMember)
	url := asURL("/groups/%d/voting-sessions", group.ID)
	future := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)

	bad := map[string]interface{}{"title": "Elect", "kind": "admin_election", "candidate_ids": []uint{alice.ID, outsider.ID}, "deadline": future}
	if status, _ := doJSON(t, app, http.MethodPost, url, creator.ID, bad); status != fiber.StatusBadRequest {
		t.Errorf("non-member candidate = %d, want 400", status)
	}

	good := map[string]interface{}{"title": "Elect", "kind": "admin_election", "candidate_ids": []uint{alice.ID, creator.ID}, "deadline": future}
	status, body := doJSON(t, app, http.MethodPost, url, creator.ID, good)
	if status != fiber.StatusCreated {
		t.Fatalf("election = %d (%v)", status, body)
	}
	session := body["session"].(map[string]interface{})
	opts := session["options"].([]interface{})
	first := opts[0].(map[string]interface{})
	if first["candidate_id"] != float64(alice.ID) || first["label"] != alice.Name {
		t.Errorf("first candidate = %v, want alice", first)
	}

	if status, _ := doJSON(t, app, http.MethodPost, url, alice.ID, good); status != fiber.StatusForbidden {
		t.Errorf("plain member election = %d, want 403", status)
	}
}

func TestCastVote(t *testing.T) {
	db := newTestDB(t)
	hub := cache.NewTallyHub(logrus.WithField("component", "tally_hub"))
	app := newVotingApp(db, hub)
	creator := createUser(t, db, "creator@example.com", models.UserRoleBuyer, 0)
	alice := createUser(t, db, "alice@example.com", models.UserRoleBuyer, 0)
	bob := createUser(t, db, "bob@example.com", models.UserRoleBuyer, 0)
	outsider := createUser(t, db, "eve@example.com", models.UserRoleBuyer, 0)
	group := createGroup(t, db, creator, lifecycle.PhaseNegotiation, 2, 10)
	addMember(t, db, group, alice, lifecycle.RoleMember)
	addMember(t, db, group, bob, lifecycle.RoleMember)

	session := createSession(t, db, group, lifecycle.SessionGeneral, time.Now().Add(time.Hour), "A", "B")
	optA, optB := session.Options[0].ID, session.Options[1].ID
	sub := &recordingSubscriber{}
	unsubscribe := hub.Subscribe(session.ID, sub)
	defer unsubscribe()

	url := asURL("/voting-sessions/%d/votes", session.ID)
	tests := []struct {
		name   string
		user   uint
		option uint
		status int
	}{
		{"creator votes A", creator.ID, optA, fiber.StatusCreated},
		{"alice votes A", alice.ID, optA, fiber.StatusCreated},
		{"bob votes B", bob.ID, optB, fiber.StatusCreated},
		{"alice votes again", alice.ID, optB, fiber.StatusConflict},
		{"outsider", outsider.ID, optA, fiber.StatusForbidden},
		{"foreign option", bob.ID, 9999, fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doJSON(t, app, http.MethodPost, url, tt.user, map[string]uint{"option_id": tt.option})
			if status != tt.status {
				t.Fatalf("status = %d, want %d (%v)", status, tt.status, body)
			}
		})
	}

	status, body := doJSON(t, app, http.MethodGet, asURL("/voting-sessions/%d", session.ID), alice.ID, nil)
	if status != fiber.StatusOK {
		t.Fatalf("get session = %d", status)
	}
	if body["can_vote"] != false || body["user_vote"] != float64(optA) {
		t.Errorf("can_vote/user_vote = %v/%v", body["can_vote"], body["user_vote"])
	}
	tally := body["tally"].(map[string]interface{})
	if tally["total_votes"] != float64(3) {
		t.Errorf("total_votes = %v, want 3", tally["total_votes"])
	}
	opts := tally["options"].([]interface{})
	wantPct := []float64{66.7, 33.3}
	for i, raw := range opts {
		if got := raw.(map[string]interface{})["percentage"]; got != wantPct[i] {
			t.Errorf("option %d percentage = %v, want %v", i, got, wantPct[i])
		}
	}

	msgs := sub.messages()
	if len(msgs) != 3 {
		t.Fatalf("broadcasts = %d, want one per accepted vote", len(msgs))
	}
	if last := msgs[len(msgs)-1]; last.Type != "tally" || last.Tally.TotalVotes != 3 {
		t.Errorf("last broadcast = %+v", last)
	}
}

func TestCastVoteAfterDeadline(t *testing.T) {
	db := newTestDB(t)
	app := newVotingApp(db, nil)
	creator := createUser(t, db, "creator@example.com", models.UserRoleBuyer, 0)
	group := createGroup(t, db, creator, lifecycle.PhaseNegotiation, 2, 10)
	session := createSession(t, db, group, lifecycle.SessionGeneral, time.Now().Add(-time.Minute), "A", "B")

	status, _ := doJSON(t, app, http.MethodPost, asURL("/voting-sessions/%d/votes", session.ID), creator.ID,
		map[string]uint{"option_id": session.Options[0].ID})
	if status != fiber.StatusConflict {
		t.Errorf("late vote = %d, want 409", status)
	}

	_, body := doJSON(t, app, http.MethodGet, asURL("/voting-sessions/%d", session.ID), creator.ID, nil)
	if body["can_vote"] != false || body["open"] != false {
		t.Errorf("can_vote/open = %v/%v, want false", body["can_vote"], body["open"])
	}
}

func TestCloseSession(t *testing.T) {
	db := newTestDB(t)
	hub := cache.NewTallyHub(logrus.WithField("component", "tally_hub"))
	app := newVotingApp(db, hub)
	creator := createUser(t, db, "creator@example.com", models.UserRoleBuyer, 0)
	admin := createUser(t, db, "admin@example.com", models.UserRoleBuyer, 0)
	group := createGroup(t, db, creator, lifecycle.PhaseNegotiation, 2, 10)
	addMember(t, db, group, admin, lifecycle.RoleAdmin)
	session := createSession(t, db, group, lifecycle.SessionGeneral, time.Now().Add(time.Hour), "A", "B")

	doJSON(t, app, http.MethodPost, asURL("/voting-sessions/%d/votes", session.ID), creator.ID,
		map[string]uint{"option_id": session.Options[1].ID})

	sub := &recordingSubscriber{}
	defer hub.Subscribe(session.ID, sub)()

	url := asURL("/voting-sessions/%d/close", session.ID)
	if status, _ := doJSON(t, app, http.MethodPost, url, creator.ID, nil); status != fiber.StatusForbidden {
		t.Errorf("member close = %d, want 403", status)
	}
	status, body := doJSON(t, app, http.MethodPost, url, admin.ID, nil)
	if status != fiber.StatusOK {
		t.Fatalf("close = %d (%v)", status, body)
	}
	closed := body["session"].(map[string]interface{})
	if closed["status"] != lifecycle.SessionClosed || closed["winner_option_id"] != float64(session.Options[1].ID) {
		t.Errorf("closed session = %v", closed)
	}
	if status, _ := doJSON(t, app, http.MethodPost, url, admin.ID, nil); status != fiber.StatusConflict {
		t.Errorf("second close = %d, want 409", status)
	}

	msgs := sub.messages()
	if len(msgs) != 1 || msgs[0].Type != "closed" {
		t.Errorf("broadcasts = %+v, want one closed message", msgs)
	}
}

func TestListSessionsFiltersByStatus(t *testing.T) {
	db := newTestDB(t)
	app := newVotingApp(db, nil)
	creator := createUser(t, db, "creator@example.com", models.UserRoleBuyer, 0)
	group := createGroup(t, db, creator, lifecycle.PhaseNegotiation, 2, 10)
	createSession(t, db, group, lifecycle.SessionGeneral, time.Now().Add(time.Hour), "A", "B")
	done := createSession(t, db, group, lifecycle.SessionGeneral, time.Now().Add(time.Hour), "C", "D")
	db.Model(&done).Update("status", lifecycle.SessionClosed)

	_, body := doJSON(t, app, http.MethodGet, asURL("/groups/%d/voting-sessions?status=active", group.ID), creator.ID, nil)
	if sessions, _ := body["sessions"].([]interface{}); len(sessions) != 1 {
		t.Errorf("active sessions = %d, want 1", len(sessions))
	}
}
