package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/curakidney/api/internal/platform/validation"
)

// User maps to the users table. The password hash never leaves the service.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

const MinPasswordLength = 6

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

var RegisterSchema = validation.Schema{
	Name: "RegisterRequest",
	Fields: []validation.FieldRule{
		{Field: "email", Required: true, Type: validation.TypeString, Format: validation.FormatEmail,
			Description: "Login email, stored lower-cased", Example: "nurse@curakidney.com"},
		{Field: "password", Required: true, Type: validation.TypeString, MinLength: MinPasswordLength, MaxBytes: MaxPasswordBytes,
			Description: "Password, at least 6 characters", Example: "s3cret!"},
		{Field: "name", Required: true, Type: validation.TypeString, MaxLength: 200,
			Description: "Display name", Example: "Maria Santos"},
	},
}

var LoginSchema = validation.Schema{
	Name: "LoginRequest",
	Fields: []validation.FieldRule{
		{Field: "email", Required: true, Type: validation.TypeString, Format: validation.FormatEmail,
			Example: "nurse@curakidney.com"},
		{Field: "password", Required: true, Type: validation.TypeString, Example: "s3cret!"},
	},
}
