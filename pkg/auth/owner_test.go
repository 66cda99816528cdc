package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveOwnerID(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{name: "valid username", username: "alice"},
		{name: "email username", username: "bob@example.com"},
		{name: "username with spaces", username: "user name"},
		{name: "empty username", username: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveOwnerID(tt.username)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEmptyUsername)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			sum := sha256.Sum256([]byte(tt.username))
			assert.Equal(t, hex.EncodeToString(sum[:]), got)
		})
	}
}

func TestLocalOwnerID_Stable(t *testing.T) {
	first := LocalOwnerID()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, LocalOwnerID())
}
