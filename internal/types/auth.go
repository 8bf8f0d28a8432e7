// Package types provides the request, response and record types shared by the
// optimizer web server, its backend client and the CLI.
package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// User is the locally known account, keyed by the identity provider subject.
type User struct {
	ID        uuid.UUID `json:"id"`
	Subject   string    `json:"subject"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   string    `json:"picture,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastLogin time.Time `json:"last_login"`
}

// Identity is the verified profile carried by an identity token.
type Identity struct {
	Subject string `json:"sub" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// Validate validates the Identity using the validator.
func (i *Identity) Validate() error {
	return validator.New().Struct(i)
}

// TokenExchangeRequest trades an identity token for a backend session credential.
type TokenExchangeRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// Validate validates the TokenExchangeRequest using the validator.
func (r *TokenExchangeRequest) Validate() error {
	return validator.New().Struct(r)
}

// TokenExchangeResponse is the backend's answer to a token exchange.
type TokenExchangeResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	UserInfo    map[string]any `json:"user_info,omitempty"`
}

// SessionInfo describes the signed-in user for API responses.
type SessionInfo struct {
	User              *User `json:"user"`
	ProviderConnected bool  `json:"provider_connected"`
	TemplateCount     int   `json:"template_count"`
}
