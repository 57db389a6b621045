package domain

import "time"

type (
	AccountId = int64
	Email     = string
	Username  = string
	Password  = string
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type Status string

const (
	StatusActive    Status = "Active"
	StatusNotActive Status = "NotActive"
)

type Availability string

const (
	Online  Availability = "Online"
	Offline Availability = "Offline"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Account is the durable per-account record. Lifecycle flags are independent
// axes: Confirmed, Blocked, Deleted, Status and Availability.
type Account struct {
	Id        AccountId
	Username  Username
	FirstName string
	LastName  string
	Email     Email
	Phone     string
	Age       int
	Gender    Gender
	PassHash  string
	Role      Role

	Confirmed    bool
	Blocked      bool
	Deleted      bool
	Status       Status
	Availability Availability

	ActivationCode *string
	OTPHash        *string
	OTPExpires     *time.Time

	// ChangeAccountInfo is the session watermark: tokens issued before it are dead.
	ChangeAccountInfo  *time.Time
	PermanentlyDeleted *time.Time
	LastRecovered      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Suspended reports whether the account may not be used at all.
func (a *Account) Suspended() bool {
	return a.Deleted || a.Blocked
}

// LoggedIn reports whether the session flags already describe a logged-in account.
func (a *Account) LoggedIn() bool {
	return a.Status == StatusActive && a.Availability == Online
}

// HasPendingOTP reports whether an OTP was requested and not consumed yet.
func (a *Account) HasPendingOTP() bool {
	return a.OTPHash != nil && a.OTPExpires != nil
}

// Identity is an already-authorized caller as resolved by the session gate.
type Identity struct {
	Id       AccountId
	Username Username
	Email    Email
	Role     Role
	IssuedAt time.Time
}

func (i *Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// AccountSummary is the public projection used in listings.
type AccountSummary struct {
	Id           AccountId    `json:"id"`
	Username     Username     `json:"username"`
	FirstName    string       `json:"first_name"`
	LastName     string       `json:"last_name"`
	Email        Email        `json:"email,omitempty"`
	Availability Availability `json:"availability"`
}

func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		Id:           a.Id,
		Username:     a.Username,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Email:        a.Email,
		Availability: a.Availability,
	}
}
