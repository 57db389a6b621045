package domain

// Profile is an account as shown on a profile page.
type Profile struct {
	Id           AccountId    `json:"id"`
	Username     Username     `json:"username"`
	FirstName    string       `json:"first_name"`
	LastName     string       `json:"last_name"`
	Email        Email        `json:"email,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	Age          int          `json:"age,omitempty"`
	Gender       Gender       `json:"gender,omitempty"`
	Availability Availability `json:"availability"`
	Connections  int          `json:"connections"`
}

func (a *Account) Profile() Profile {
	return Profile{
		Id:           a.Id,
		Username:     a.Username,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Email:        a.Email,
		Phone:        a.Phone,
		Age:          a.Age,
		Gender:       a.Gender,
		Availability: a.Availability,
	}
}

// Redact drops the contact fields only the owner and admins may see.
func (p *Profile) Redact() {
	p.Email = ""
	p.Phone = ""
}

// ProfileUpdate carries the fields an account changes about itself. Nil fields are kept.
type ProfileUpdate struct {
	Username  *Username
	FirstName *string
	LastName  *string
	Email     *Email
	Phone     *string
	Age       *int
	Gender    *Gender
}

func (u ProfileUpdate) Empty() bool {
	return u.Username == nil && u.FirstName == nil && u.LastName == nil && u.Email == nil &&
		u.Phone == nil && u.Age == nil && u.Gender == nil
}

// Unchanged returns the name of the first field that repeats the current value of a, or "".
func (u ProfileUpdate) Unchanged(a *Account) string {
	switch {
	case u.Username != nil && *u.Username == a.Username:
		return "username"
	case u.FirstName != nil && *u.FirstName == a.FirstName:
		return "first_name"
	case u.LastName != nil && *u.LastName == a.LastName:
		return "last_name"
	case u.Email != nil && *u.Email == a.Email:
		return "email"
	case u.Phone != nil && *u.Phone == a.Phone:
		return "phone"
	case u.Age != nil && *u.Age == a.Age:
		return "age"
	case u.Gender != nil && *u.Gender == a.Gender:
		return "gender"
	}
	return ""
}

// Apply copies the set fields onto a.
func (u ProfileUpdate) Apply(a *Account) {
	if u.Username != nil {
		a.Username = *u.Username
	}
	if u.FirstName != nil {
		a.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		a.LastName = *u.LastName
	}
	if u.Email != nil {
		a.Email = *u.Email
	}
	if u.Phone != nil {
		a.Phone = *u.Phone
	}
	if u.Age != nil {
		a.Age = *u.Age
	}
	if u.Gender != nil {
		a.Gender = *u.Gender
	}
}
