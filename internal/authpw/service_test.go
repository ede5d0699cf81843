package authpw

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskpilot/api/internal/store"
)

type fakeUserStore struct {
	users          map[string]store.User // keyed by email
	resets         map[string]string     // token -> userID
	usedResets     map[string]bool
	verifiedTokens map[string]bool
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:          make(map[string]store.User),
		resets:         make(map[string]string),
		usedResets:     make(map[string]bool),
		verifiedTokens: make(map[string]bool),
	}
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	user, ok := f.users[strings.ToLower(email)]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeUserStore) CreateUser(_ context.Context, user store.User) error {
	f.users[strings.ToLower(user.Email)] = user
	return nil
}

func (f *fakeUserStore) UpdateUserVerificationToken(_ context.Context, userID, token string, _ time.Time) error {
	return nil
}

func (f *fakeUserStore) VerifyUserEmail(_ context.Context, token string) error {
	for email, user := range f.users {
		if user.VerificationToken == token {
			user.IsEmailVerified = true
			f.users[email] = user
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeUserStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	for email, user := range f.users {
		if user.ID == userID {
			user.PasswordHash = passwordHash
			f.users[email] = user
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeUserStore) CreatePasswordReset(_ context.Context, userID, token string, _ time.Time) error {
	f.resets[token] = userID
	return nil
}

func (f *fakeUserStore) GetPasswordReset(_ context.Context, token string) (string, error) {
	if f.usedResets[token] {
		return "", sql.ErrNoRows
	}
	userID, ok := f.resets[token]
	if !ok {
		return "", sql.ErrNoRows
	}
	return userID, nil
}

func (f *fakeUserStore) MarkPasswordResetUsed(_ context.Context, token string) error {
	f.usedResets[token] = true
	return nil
}

func TestSignUpCreatesUnverifiedUser(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)

	resp, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:       "priya@example.com",
		Password:    "correct-horse",
		DisplayName: "Priya",
	})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if resp.UserID == "" {
		t.Fatal("expected user ID")
	}
	if !resp.RequiresEmailVerify {
		t.Fatal("expected RequiresEmailVerify")
	}

	user, err := fs.GetUserByEmail(context.Background(), "priya@example.com")
	if err != nil {
		t.Fatalf("lookup created user: %v", err)
	}
	if user.IsEmailVerified {
		t.Fatal("new user should not be verified")
	}
	if user.PasswordHash == "correct-horse" {
		t.Fatal("password stored in plaintext")
	}
}

func TestSignUpRejectsShortPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())
	_, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:       "priya@example.com",
		Password:    "short",
		DisplayName: "Priya",
	})
	if err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	fs := newFakeUserStore()
	svc := NewService(fs)

	if _, err := svc.SignUp(context.Background(), SignUpRequest{Email: "priya@example.com", Password: "correct-horse", DisplayName: "Priya"}); err != nil {
		t.Fatalf("first sign up: %v", err)
	}
	if _, err := svc.SignUp(context.Background(), SignUpRequest{Email: "priya@example.com", Password: "correct-horse", DisplayName: "Priya"}); err == nil {
		t.Fatal("expected error for duplicate email")
	}
}

func TestSignInVerifiedUser(t *testing.T) {
	fs := newFakeUserStore()
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.DefaultCost)
	fs.users["priya@example.com"] = store.User{
		ID:              "user-1",
		Email:           "priya@example.com",
		PasswordHash:    string(hash),
		IsEmailVerified: true,
	}
	svc := NewService(fs)

	resp, err := svc.SignIn(context.Background(), SignInRequest{Email: "priya@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if resp.RequiresVerify {
		t.Fatal("verified user should not require verification")
	}
	if resp.User.ID != "user-1" {
		t.Fatalf("expected user-1, got %s", resp.User.ID)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	fs := newFakeUserStore()
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.DefaultCost)
	fs.users["priya@example.com"] = store.User{
		ID:              "user-1",
		Email:           "priya@example.com",
		PasswordHash:    string(hash),
		IsEmailVerified: true,
	}
	svc := NewService(fs)

	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "priya@example.com", Password: "wrong"}); err == nil {
		t.Fatal("expected error for wrong password")
	}
}

func TestSignInUnverifiedUserRequiresVerify(t *testing.T) {
	fs := newFakeUserStore()
	fs.users["priya@example.com"] = store.User{ID: "user-1", Email: "priya@example.com"}
	svc := NewService(fs)

	resp, err := svc.SignIn(context.Background(), SignInRequest{Email: "priya@example.com", Password: "anything1"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if !resp.RequiresVerify {
		t.Fatal("expected RequiresVerify for unverified user")
	}
}

func TestVerifyEmail(t *testing.T) {
	fs := newFakeUserStore()
	fs.users["priya@example.com"] = store.User{ID: "user-1", Email: "priya@example.com", VerificationToken: "tok-1"}
	svc := NewService(fs)

	if err := svc.VerifyEmail(context.Background(), "tok-1"); err != nil {
		t.Fatalf("verify email: %v", err)
	}
	if err := svc.VerifyEmail(context.Background(), "tok-unknown"); err == nil {
		t.Fatal("expected error for unknown token")
	}
}

func TestResetPasswordFlow(t *testing.T) {
	fs := newFakeUserStore()
	hash, _ := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.DefaultCost)
	fs.users["priya@example.com"] = store.User{
		ID:              "user-1",
		Email:           "priya@example.com",
		PasswordHash:    string(hash),
		IsEmailVerified: true,
	}
	svc := NewService(fs)

	token, err := svc.RequestPasswordReset(context.Background(), "priya@example.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if token == "" {
		t.Fatal("expected reset token for known email")
	}

	if err := svc.ResetPassword(context.Background(), ResetPasswordRequest{Token: token, NewPassword: "new-password"}); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	resp, err := svc.SignIn(context.Background(), SignInRequest{Email: "priya@example.com", Password: "new-password"})
	if err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}
	if resp.RequiresVerify {
		t.Fatal("user should remain verified after reset")
	}

	// Token is single-use
	if err := svc.ResetPassword(context.Background(), ResetPasswordRequest{Token: token, NewPassword: "another-pass"}); err == nil {
		t.Fatal("expected error reusing reset token")
	}
}

func TestRequestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	svc := NewService(newFakeUserStore())
	token, err := svc.RequestPasswordReset(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if token != "" {
		t.Fatal("unknown email must not produce a token")
	}
}
