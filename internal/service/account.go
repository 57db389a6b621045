package service

import (
	"context"
	"strings"
	"time"

	"github.com/linkup-dev/linkup/internal/config"
	"github.com/linkup-dev/linkup/internal/credential"
	"github.com/linkup-dev/linkup/internal/domain"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
	"github.com/linkup-dev/linkup/internal/logger"
	"github.com/linkup-dev/linkup/internal/metrics"
	"github.com/linkup-dev/linkup/internal/notify"
)

type AccountService interface {
	Register(ctx context.Context, in Registration) (domain.AccountId, error)
	Activate(ctx context.Context, code string) error
	ResendActivation(ctx context.Context, email domain.Email) error
	Login(ctx context.Context, login string, password domain.Password, remember bool) (Session, error)
	Logout(ctx context.Context, identity domain.Identity) (Session, error)

	ForgotPassword(ctx context.Context, email domain.Email) error
	ResetPassword(ctx context.Context, token string, password domain.Password) error
	RequestPasswordOTP(ctx context.Context, email domain.Email) error
	ResetPasswordOTP(ctx context.Context, email domain.Email, otp string, password domain.Password) error
	ChangePassword(ctx context.Context, identity domain.Identity, oldPassword, newPassword domain.Password) error

	SoftDelete(ctx context.Context, identity domain.Identity) error
	Recover(ctx context.Context, token string) error

	Block(ctx context.Context, target domain.AccountId) error
	Unblock(ctx context.Context, target domain.AccountId) error
	ListAccounts(ctx context.Context) ([]domain.AccountSummary, error)
	OnlineAccounts(ctx context.Context) ([]domain.AccountSummary, error)

	Profile(ctx context.Context, identity domain.Identity) (domain.Profile, error)
	PublicProfile(ctx context.Context, viewer domain.Identity, target domain.AccountId) (domain.Profile, error)
	UpdateProfile(ctx context.Context, identity domain.Identity, update domain.ProfileUpdate) (domain.Profile, error)
}

// AccountStorage is the persistent store of accounts. Every mutation is a
// targeted conditional update; CAS methods report whether they won.
type AccountStorage interface {
	CreateAccount(ctx context.Context, account domain.Account) (domain.AccountId, error)
	AccountByID(ctx context.Context, id domain.AccountId, opts ...domain.LookupOption) (domain.Account, error)
	AccountByLogin(ctx context.Context, login string, opts ...domain.LookupOption) (domain.Account, error)
	AccountByEmail(ctx context.Context, email domain.Email, opts ...domain.LookupOption) (domain.Account, error)
	ListAccounts(ctx context.Context, onlineOnly bool) ([]domain.Account, error)

	ConfirmByActivationCode(ctx context.Context, code string) (domain.AccountId, error)
	SetSessionFlags(ctx context.Context, id domain.AccountId, status domain.Status, availability domain.Availability) error
	SetAvailability(ctx context.Context, id domain.AccountId, availability domain.Availability) error

	UpdatePassword(ctx context.Context, id domain.AccountId, passHash string, changedAt time.Time, deactivate bool) error
	SetOTP(ctx context.Context, id domain.AccountId, otpHash string, expires time.Time) error
	ResetPasswordWithOTP(ctx context.Context, id domain.AccountId, otpHash string, passHash string, changedAt time.Time) (bool, error)

	SetBlocked(ctx context.Context, id domain.AccountId, blocked bool) (bool, error)
	SoftDelete(ctx context.Context, id domain.AccountId, deadline time.Time) (bool, error)
	RestoreSoftDeleted(ctx context.Context, id domain.AccountId, status domain.Status) error
	Recover(ctx context.Context, id domain.AccountId, now time.Time) (bool, error)

	UpdateProfile(ctx context.Context, id domain.AccountId, update domain.ProfileUpdate) (bool, error)
	CountConnections(ctx context.Context, owner domain.AccountId, state domain.FollowState) (int, error)
}

// Notifier delivers a message. Only the error outcome matters to the core.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Issuer interface {
	IssueAccessToken(claims credential.Claims, ttl time.Duration) (string, error)
	IssuePurposeToken(purpose credential.Purpose, claims credential.Claims, ttl time.Duration) (string, error)
	Verify(token string, purpose credential.Purpose) (*credential.Claims, error)
}

type Registration struct {
	Username  domain.Username
	Email     domain.Email
	Password  domain.Password
	FirstName string
	LastName  string
	Phone     string
	Age       int
	Gender    domain.Gender
}

// Session is what login and logout hand to the transport: a token and how long it lives.
type Session struct {
	Token   string
	TTL     time.Duration
	Account domain.AccountSummary
}

type Accounts struct {
	storage  AccountStorage
	notifier Notifier
	issuer   Issuer
	messages notify.Messages
	cfg      *config.Public

	now        func() time.Time
	goDispatch func(func())
}

type AccountsOption func(*Accounts)

func WithAccountsClock(now func() time.Time) AccountsOption {
	return func(a *Accounts) {
		a.now = now
	}
}

// WithDispatcher replaces the goroutine launcher used for fire-and-forget notifications.
func WithDispatcher(dispatch func(func())) AccountsOption {
	return func(a *Accounts) {
		a.goDispatch = dispatch
	}
}

func NewAccounts(storage AccountStorage, notifier Notifier, issuer Issuer, cfg *config.Public, opts ...AccountsOption) *Accounts {
	a := &Accounts{
		storage:    storage,
		notifier:   notifier,
		issuer:     issuer,
		messages:   notify.Messages{BaseURL: cfg.BaseURL},
		cfg:        cfg,
		now:        time.Now,
		goDispatch: func(f func()) { go f() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func normalizeEmail(email domain.Email) domain.Email {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *Accounts) notifyTimeout() time.Duration {
	if a.cfg.NotifyTimeout > 0 {
		return a.cfg.NotifyTimeout
	}
	return 10 * time.Second
}

// dispatch sends msg without holding up the caller. Failures are logged and swallowed.
func (a *Accounts) dispatch(ctx context.Context, kind, to string, msg notify.Message) {
	detached := context.WithoutCancel(ctx)
	a.goDispatch(func() {
		ctx, cancel := context.WithTimeout(detached, a.notifyTimeout())
		defer cancel()
		err := a.notifier.Send(ctx, to, msg.Subject, msg.Body)
		metrics.ObserveNotification(kind, err)
		if err != nil {
			logger.Log.Warn("notification dispatch failed", "kind", kind, "error", err)
		}
	})
}

func (a *Accounts) Register(ctx context.Context, in Registration) (domain.AccountId, error) {
	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)

	if _, err := a.storage.AccountByEmail(ctx, email, domain.WithDeleted()); err == nil {
		return 0, internal_errors.ErrEmailTaken
	} else if !internal_errors.IsNotFound(err) {
		return 0, err
	}
	if _, err := a.storage.AccountByLogin(ctx, username, domain.WithDeleted()); err == nil {
		return 0, internal_errors.ErrUsernameTaken
	} else if !internal_errors.IsNotFound(err) {
		return 0, err
	}

	passHash, err := credential.HashSecret(in.Password)
	if err != nil {
		return 0, err
	}
	code, err := credential.IssueActivationCode()
	if err != nil {
		return 0, err
	}

	now := a.now().UTC()
	id, err := a.storage.CreateAccount(ctx, domain.Account{
		Username:       username,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          email,
		Phone:          in.Phone,
		Age:            in.Age,
		Gender:         in.Gender,
		PassHash:       passHash,
		Role:           domain.RoleUser,
		Status:         domain.StatusNotActive,
		Availability:   domain.Offline,
		ActivationCode: &code,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return 0, err
	}

	metrics.AccountTransitions.WithLabelValues("register").Inc()
	logger.Log.Info("account registered", "account_id", id)
	a.dispatch(ctx, "activation", email, a.messages.Activation(username, code))
	return id, nil
}

func (a *Accounts) Activate(ctx context.Context, code string) error {
	if code == "" {
		return internal_errors.ErrAccountNotFound
	}
	id, err := a.storage.ConfirmByActivationCode(ctx, code)
	if err != nil {
		return err
	}
	metrics.AccountTransitions.WithLabelValues("activate").Inc()
	logger.Log.Info("account activated", "account_id", id)
	return nil
}

func (a *Accounts) ResendActivation(ctx context.Context, email domain.Email) error {
	account, err := a.storage.AccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if account.Confirmed || account.ActivationCode == nil {
		return internal_errors.ErrAlreadyConfirmed
	}
	a.dispatch(ctx, "activation", account.Email, a.messages.ResendActivation(account.Username, *account.ActivationCode))
	return nil
}

func (a *Accounts) Login(ctx context.Context, login string, password domain.Password, remember bool) (Session, error) {
	login = strings.TrimSpace(login)
	if strings.Contains(login, "@") {
		login = normalizeEmail(login)
	}

	account, err := a.storage.AccountByLogin(ctx, login, domain.WithDeleted())
	if err != nil {
		return Session{}, err
	}
	if account.Suspended() {
		return Session{}, internal_errors.ErrAccountSuspended
	}
	if !account.Confirmed {
		return Session{}, internal_errors.ErrEmailNotConfirmed
	}
	if !credential.CompareSecret(account.PassHash, password) {
		return Session{}, internal_errors.ErrInvalidCredentials
	}

	if !account.LoggedIn() {
		if err := a.storage.SetSessionFlags(ctx, account.Id, domain.StatusActive, domain.Online); err != nil {
			return Session{}, err
		}
		account.Status, account.Availability = domain.StatusActive, domain.Online
	}

	ttl := a.cfg.AccessTTL
	if remember {
		ttl = a.cfg.RememberTTL
	}
	token, err := a.issuer.IssueAccessToken(credential.ClaimsFor(&account), ttl)
	if err != nil {
		return Session{}, err
	}

	metrics.AccountTransitions.WithLabelValues("login").Inc()
	return Session{Token: token, TTL: ttl, Account: account.Summary()}, nil
}

// Logout marks the identity offline and returns a replacement token that is already expired.
func (a *Accounts) Logout(ctx context.Context, identity domain.Identity) (Session, error) {
	if err := a.storage.SetAvailability(ctx, identity.Id, domain.Offline); err != nil {
		return Session{}, err
	}
	token, err := a.issuer.IssueAccessToken(credential.Claims{
		AccountId: identity.Id,
		Username:  identity.Username,
		Email:     identity.Email,
		Role:      identity.Role,
	}, 0)
	if err != nil {
		return Session{}, err
	}
	metrics.AccountTransitions.WithLabelValues("logout").Inc()
	return Session{Token: token}, nil
}

func (a *Accounts) Block(ctx context.Context, target domain.AccountId) error {
	account, err := a.storage.AccountByID(ctx, target, domain.WithDeleted())
	if err != nil {
		return err
	}
	if account.IsAdmin() {
		return internal_errors.ErrCannotBlockAdmin
	}
	swapped, err := a.storage.SetBlocked(ctx, target, true)
	if err != nil {
		return err
	}
	if !swapped {
		return internal_errors.ErrAlreadyBlocked
	}
	metrics.AccountTransitions.WithLabelValues("block").Inc()
	logger.Log.Info("account blocked", "account_id", target)
	return nil
}

func (a *Accounts) Unblock(ctx context.Context, target domain.AccountId) error {
	if _, err := a.storage.AccountByID(ctx, target, domain.WithDeleted()); err != nil {
		return err
	}
	swapped, err := a.storage.SetBlocked(ctx, target, false)
	if err != nil {
		return err
	}
	if !swapped {
		return internal_errors.ErrNotBlocked
	}
	metrics.AccountTransitions.WithLabelValues("unblock").Inc()
	logger.Log.Info("account unblocked", "account_id", target)
	return nil
}

func (a *Accounts) ListAccounts(ctx context.Context) ([]domain.AccountSummary, error) {
	return a.list(ctx, false)
}

func (a *Accounts) OnlineAccounts(ctx context.Context) ([]domain.AccountSummary, error) {
	return a.list(ctx, true)
}

func (a *Accounts) list(ctx context.Context, onlineOnly bool) ([]domain.AccountSummary, error) {
	accounts, err := a.storage.ListAccounts(ctx, onlineOnly)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AccountSummary, 0, len(accounts))
	for i := range accounts {
		out = append(out, accounts[i].Summary())
	}
	return out, nil
}
