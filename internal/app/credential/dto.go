package credential

import "time"

// Credential binds a login identifier and password hash to a subject.
type Credential struct {
	Identifier   string    `json:"identifier"`
	Subject      string    `json:"subject"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CreateCmd struct {
	Identifier string
	Subject    string
	Secret     []byte `json:"-"`
}

type ChangeSecretCmd struct {
	Subject   string
	OldSecret []byte `json:"-"`
	NewSecret []byte `json:"-"`
}
