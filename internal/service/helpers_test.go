package service

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linkup-dev/linkup/internal/config"
	"github.com/linkup-dev/linkup/internal/credential"
	"github.com/linkup-dev/linkup/internal/domain"
	"github.com/linkup-dev/linkup/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type sentMail struct {
	To, Subject, Body string
}

type MockNotifier struct {
	SendFunc func(ctx context.Context, to, subject, body string) error

	mu   sync.Mutex
	sent []sentMail
}

func (m *MockNotifier) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, to, subject, body)
	}
	return nil
}

func (m *MockNotifier) Last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail was sent")
	return m.sent[len(m.sent)-1]
}

func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// MockAccountStorage runs on the in-memory store and lets single methods be overridden.
type MockAccountStorage struct {
	*memory.Storage
	SetSessionFlagsFunc    func(ctx context.Context, id domain.AccountId, status domain.Status, availability domain.Availability) error
	RestoreSoftDeletedFunc func(ctx context.Context, id domain.AccountId, status domain.Status) error
	UpdateProfileFunc      func(ctx context.Context, id domain.AccountId, update domain.ProfileUpdate) (bool, error)
	RecoverFunc            func(ctx context.Context, id domain.AccountId, now time.Time) (bool, error)
}

func (m *MockAccountStorage) Recover(ctx context.Context, id domain.AccountId, now time.Time) (bool, error) {
	if m.RecoverFunc != nil {
		return m.RecoverFunc(ctx, id, now)
	}
	return m.Storage.Recover(ctx, id, now)
}

func (m *MockAccountStorage) UpdateProfile(ctx context.Context, id domain.AccountId, update domain.ProfileUpdate) (bool, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, id, update)
	}
	return m.Storage.UpdateProfile(ctx, id, update)
}

func (m *MockAccountStorage) SetSessionFlags(ctx context.Context, id domain.AccountId, status domain.Status, availability domain.Availability) error {
	if m.SetSessionFlagsFunc != nil {
		return m.SetSessionFlagsFunc(ctx, id, status, availability)
	}
	return m.Storage.SetSessionFlags(ctx, id, status, availability)
}

func (m *MockAccountStorage) RestoreSoftDeleted(ctx context.Context, id domain.AccountId, status domain.Status) error {
	if m.RestoreSoftDeletedFunc != nil {
		return m.RestoreSoftDeletedFunc(ctx, id, status)
	}
	return m.Storage.RestoreSoftDeleted(ctx, id, status)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// --- Setup ---

const testPassword = "correct-horse"

func testConfig() *config.Public {
	return &config.Public{
		BaseURL:        "http://linkup.test",
		AccessTTL:      time.Hour,
		RememberTTL:    30 * 24 * time.Hour,
		ResetTokenTTL:  5 * time.Minute,
		OTPTTL:         24 * time.Hour,
		RecoveryWindow: 30 * 24 * time.Hour,
		NotifyTimeout:  time.Second,
	}
}

type testEnv struct {
	store    *MockAccountStorage
	notifier *MockNotifier
	issuer   *credential.Issuer
	clock    *testClock
	accounts *Accounts
	gate     *Gate
	follows  *Follows
	cfg      *config.Public
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	issuer, err := credential.NewIssuer(credential.Keys{
		Access:        "access",
		PasswordReset: "reset",
		Recovery:      "recovery",
	}, credential.WithClock(clock.Now))
	require.NoError(t, err)

	store := &MockAccountStorage{Storage: memory.New()}
	notifier := &MockNotifier{}
	cfg := testConfig()
	accounts := NewAccounts(store, notifier, issuer, cfg,
		WithAccountsClock(clock.Now),
		WithDispatcher(func(f func()) { f() }),
	)
	follows := NewFollows(store)
	follows.now = clock.Now

	return &testEnv{
		store:    store,
		notifier: notifier,
		issuer:   issuer,
		clock:    clock,
		accounts: accounts,
		gate:     NewGate(store, issuer),
		follows:  follows,
		cfg:      cfg,
	}
}

func registration(username string) Registration {
	return Registration{
		Username:  username,
		Email:     username + "@mail.test",
		Password:  testPassword,
		FirstName: strings.ToUpper(username[:1]) + username[1:],
		LastName:  "Tester",
	}
}

// confirmed registers and activates an account.
func (e *testEnv) confirmed(t *testing.T, username string) domain.Account {
	t.Helper()
	ctx := context.Background()
	id, err := e.accounts.Register(ctx, registration(username))
	require.NoError(t, err)
	account, err := e.store.AccountByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, account.ActivationCode)
	require.NoError(t, e.accounts.Activate(ctx, *account.ActivationCode))
	account, err = e.store.AccountByID(ctx, id)
	require.NoError(t, err)
	return account
}

// loggedIn returns an active, online account and its access token.
func (e *testEnv) loggedIn(t *testing.T, username string) (domain.Account, string) {
	t.Helper()
	e.confirmed(t, username)
	session, err := e.accounts.Login(context.Background(), username, testPassword, false)
	require.NoError(t, err)
	account, err := e.store.AccountByID(context.Background(), session.Account.Id)
	require.NoError(t, err)
	return account, session.Token
}

func (e *testEnv) account(t *testing.T, id domain.AccountId) domain.Account {
	t.Helper()
	account, err := e.store.AccountByID(context.Background(), id, domain.WithDeleted())
	require.NoError(t, err)
	return account
}

func identityOf(a domain.Account) domain.Identity {
	return domain.Identity{Id: a.Id, Username: a.Username, Email: a.Email, Role: a.Role}
}

// linkToken extracts the last path segment of the link following marker.
func linkToken(t *testing.T, body, marker string) string {
	t.Helper()
	i := strings.Index(body, marker)
	require.GreaterOrEqual(t, i, 0, "marker %q not found in %q", marker, body)
	rest := body[i+len(marker):]
	if j := strings.IndexAny(rest, " \n"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

var otpPattern = regexp.MustCompile(`code is (\d{6})`)

func otpFrom(t *testing.T, body string) string {
	t.Helper()
	m := otpPattern.FindStringSubmatch(body)
	require.Len(t, m, 2, "no otp in %q", body)
	return m[1]
}
