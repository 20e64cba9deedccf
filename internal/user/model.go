package user

import (
	"time"

	"github.com/gofrs/uuid"
)

// User is an account. Email doubles as the login name.
type User struct {
	ID           uuid.UUID  `db:"id"`
	Name         string     `db:"name"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	Token        string     `db:"token"`
	Phones       []Phone    `db:"-"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	LastLogin    *time.Time `db:"last_login"`
}

type Phone struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Position  int       `db:"position"`
	DDD       string    `db:"ddd"`
	Number    string    `db:"number"`
	CreatedAt time.Time `db:"created_at"`
}

type PhoneInput struct {
	DDD    string
	Number string
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phones   []PhoneInput
}

// SessionRefresh is the command that moves a user's session clock forward.
// It is produced by a successful password check and applied separately.
type SessionRefresh struct {
	UserID uuid.UUID
	At     time.Time
}

// Verification is the outcome of a password check. Refresh is set only when
// the password matched.
type Verification struct {
	Match   bool
	Refresh *SessionRefresh
}

type PhoneView struct {
	DDD    string `json:"ddd"`
	Number string `json:"number"`
}

// Profile is the public projection of a User returned by every endpoint.
type Profile struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Phones    []PhoneView `json:"phones"`
	Created   time.Time   `json:"created"`
	Modified  time.Time   `json:"modified"`
	LastLogin *time.Time  `json:"last_login"`
	Token     string      `json:"token"`
}

// Profile projects the user. Phones is nil when the user has none.
func (u *User) Profile() Profile {
	var phones []PhoneView
	for _, p := range u.Phones {
		phones = append(phones, PhoneView{DDD: p.DDD, Number: p.Number})
	}

	return Profile{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		Phones:    phones,
		Created:   u.CreatedAt,
		Modified:  u.UpdatedAt,
		LastLogin: u.LastLogin,
		Token:     u.Token,
	}
}
