package account

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/curakidney/api/internal/platform/apperr"
	"github.com/curakidney/api/internal/platform/auth"
	"github.com/curakidney/api/internal/platform/notification"
)

var testJWT = auth.JWTConfig{
	SigningKey: []byte("account-test-signing-key-0123456789"),
	Issuer:     "curakidney",
	TTL:        time.Hour,
}

// -- Mock Repository --

type mockUserRepo struct {
	users     map[string]*User
	createErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.users[u.Email]; ok {
		return ErrEmailTaken
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.Email] = u
	return nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	u, ok := m.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func newTestService(repo UserRepository) (*Service, *notification.MockEmailSender) {
	sender := &notification.MockEmailSender{}
	mgr := notification.NewManager(sender, nil)
	return NewService(repo, testJWT, bcrypt.MinCost, mgr, zerolog.Nop()), sender
}

func TestService_Register(t *testing.T) {
	repo := newMockUserRepo()
	svc, sender := newTestService(repo)

	u, err := svc.Register(context.Background(), RegisterRequest{
		Email: "  Nurse@Example.com ", Password: "secret1", Name: "Maria Santos",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Email != "nurse@example.com" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
	if u.PasswordHash == "secret1" || u.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}
	if err := auth.CheckPassword(u.PasswordHash, "secret1"); err != nil {
		t.Errorf("stored hash does not match: %v", err)
	}

	calls := sender.Calls()
	if len(calls) != 1 || calls[0].To != "nurse@example.com" {
		t.Errorf("expected a welcome email, got %+v", calls)
	}
}

func TestService_RegisterDuplicate(t *testing.T) {
	svc, _ := newTestService(newMockUserRepo())
	req := RegisterRequest{Email: "a@b.co", Password: "secret1", Name: "A"}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first registration: %v", err)
	}

	req.Email = "A@B.CO"
	_, err := svc.Register(context.Background(), req)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestService_RegisterPasswordOverBcryptLimit(t *testing.T) {
	svc, _ := newTestService(newMockUserRepo())
	_, err := svc.Register(context.Background(), RegisterRequest{
		Email: "a@b.co", Password: strings.Repeat("é", 40), Name: "A",
	})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_RegisterRepoFailure(t *testing.T) {
	repo := newMockUserRepo()
	repo.createErr = errors.New("disk full")
	svc, _ := newTestService(repo)

	_, err := svc.Register(context.Background(), RegisterRequest{Email: "a@b.co", Password: "secret1", Name: "A"})
	if !apperr.IsKind(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestService_RegisterWelcomeFailureIgnored(t *testing.T) {
	svc, sender := newTestService(newMockUserRepo())
	sender.SetFail(true, "smtp down")

	if _, err := svc.Register(context.Background(), RegisterRequest{Email: "a@b.co", Password: "secret1", Name: "A"}); err != nil {
		t.Fatalf("welcome failure must not fail registration: %v", err)
	}
}

func TestService_Login(t *testing.T) {
	svc, _ := newTestService(newMockUserRepo())
	u, err := svc.Register(context.Background(), RegisterRequest{Email: "a@b.co", Password: "secret1", Name: "Ana"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	tok, err := svc.Login(context.Background(), LoginRequest{Email: "A@b.co", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if tok.TokenType != "Bearer" || tok.ExpiresIn != 3600 {
		t.Errorf("unexpected token response %+v", tok)
	}
	if !tok.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("expected expiry %s, got %s", now.Add(time.Hour), tok.ExpiresAt)
	}

	claims, err := auth.ParseToken(tok.AccessToken, testJWT, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Subject != u.ID.String() || claims.Email != "a@b.co" || claims.Name != "Ana" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestService_LoginFailuresShareMessage(t *testing.T) {
	svc, _ := newTestService(newMockUserRepo())
	if _, err := svc.Register(context.Background(), RegisterRequest{Email: "a@b.co", Password: "secret1", Name: "A"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	tests := []struct {
		name string
		req  LoginRequest
	}{
		{"wrong password", LoginRequest{Email: "a@b.co", Password: "secret2"}},
		{"unknown email", LoginRequest{Email: "x@b.co", Password: "secret1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.req)
			var appErr *apperr.Error
			if !errors.As(err, &appErr) || appErr.Kind != apperr.KindAuthentication {
				t.Fatalf("expected authentication error, got %v", err)
			}
			if appErr.Message != "invalid email or password" {
				t.Errorf("unexpected message %q", appErr.Message)
			}
		})
	}
}

func TestService_Profile(t *testing.T) {
	svc, _ := newTestService(newMockUserRepo())
	u, _ := svc.Register(context.Background(), RegisterRequest{Email: "a@b.co", Password: "secret1", Name: "A"})

	got, err := svc.Profile(context.Background(), u.ID.String())
	if err != nil || got.ID != u.ID {
		t.Fatalf("expected profile for %s, got %+v, %v", u.ID, got, err)
	}

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		if _, err := svc.Profile(context.Background(), id); !apperr.IsKind(err, apperr.KindNotFound) {
			t.Errorf("%s: expected not found, got %v", id, err)
		}
	}
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	u := &User{Email: "a@b.co", Name: "A", PasswordHash: "h"}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == uuid.Nil || u.CreatedAt.IsZero() {
		t.Error("expected id and timestamps to be assigned")
	}
	if err := repo.Create(context.Background(), &User{Email: "a@b.co"}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}

	byID, err := repo.GetByID(context.Background(), u.ID)
	if err != nil || byID.Email != "a@b.co" {
		t.Errorf("GetByID: %+v, %v", byID, err)
	}
	if _, err := repo.GetByEmail(context.Background(), "z@b.co"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUserJSONOmitsHash(t *testing.T) {
	svc, _ := newTestService(newMockUserRepo())
	u, _ := svc.Register(context.Background(), RegisterRequest{Email: "a@b.co", Password: "secret1", Name: "A"})
	b, err := json.Marshal(u)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), "password") || strings.Contains(string(b), u.PasswordHash) {
		t.Errorf("user JSON leaks the hash: %s", b)
	}
}
