//nolint:revive // types is a standard Go package name pattern
package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentity_Validate(t *testing.T) {
	tests := []struct {
		name     string
		identity Identity
		wantErr  bool
	}{
		{name: "valid", identity: Identity{Subject: "1234", Email: "jane@example.com", Name: "Jane"}},
		{name: "missing subject", identity: Identity{Email: "jane@example.com"}, wantErr: true},
		{name: "bad email", identity: Identity{Subject: "1234", Email: "not-an-email"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.identity.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTokenExchangeRequest_Validate(t *testing.T) {
	assert.Error(t, (&TokenExchangeRequest{}).Validate())
	assert.NoError(t, (&TokenExchangeRequest{IDToken: "eyJ..."}).Validate())
}
