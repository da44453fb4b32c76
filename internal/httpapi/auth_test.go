package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"vansales/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	stub := &userStoreStub{
		users: map[string]domain.UserAccount{
			"driver1": {
				Username:  "driver1",
				Password:  "plaintext-pass",
				Role:      "salesman",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	auth := NewAuthManager("test-secret", time.Hour, stub)

	stub.mu.Lock()
	updates := stub.updates
	stored := stub.users["driver1"].Password
	stub.mu.Unlock()
	if updates != 1 {
		t.Fatalf("expected 1 password upgrade, got %d", updates)
	}
	if !strings.HasPrefix(stored, "$2") {
		t.Fatalf("stored password not hashed: %q", stored)
	}

	resp, err := auth.Login(domain.LoginRequest{Username: "driver1", Password: "plaintext-pass"})
	if err != nil {
		t.Fatalf("login after upgrade: %v", err)
	}
	if resp.Role != "salesman" {
		t.Fatalf("role = %s, want salesman", resp.Role)
	}
}

func TestAuthManagerRejectsBadCredentials(t *testing.T) {
	stub := &userStoreStub{
		users: map[string]domain.UserAccount{
			"driver1": {Username: "driver1", Password: "secret-pass", Role: "salesman", Active: true},
			"parked":  {Username: "parked", Password: "secret-pass", Role: "salesman", Active: false},
		},
	}
	auth := NewAuthManager("test-secret", time.Hour, stub)

	if _, err := auth.Login(domain.LoginRequest{Username: "driver1", Password: "wrong"}); err == nil {
		t.Fatal("wrong password accepted")
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "ghost", Password: "secret-pass"}); err == nil {
		t.Fatal("unknown user accepted")
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "parked", Password: "secret-pass"}); err == nil {
		t.Fatal("inactive account accepted")
	}
}

func TestParseTokenRoundTripAndTamper(t *testing.T) {
	stub := &userStoreStub{
		users: map[string]domain.UserAccount{
			"manager": {Username: "manager", Password: "manager-pass", Role: "manager", Active: true},
		},
	}
	auth := NewAuthManager("test-secret", time.Hour, stub)

	resp, err := auth.Login(domain.LoginRequest{Username: "manager", Password: "manager-pass"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "manager" || actor.Role != "manager" {
		t.Fatalf("actor = %+v", actor)
	}

	other := NewAuthManager("different-secret", time.Hour, stub)
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatal("token signed with another secret accepted")
	}
	if _, err := auth.ParseToken(resp.AccessToken + "x"); err == nil {
		t.Fatal("tampered token accepted")
	}
}
