package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lakeridepros/ticketwatch/internal/domain"
)

func TestResolveAliasEmail(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		want       string
	}{
		{"known alias", "nate", "nate@lakeridepros.com"},
		{"alias is case-insensitive", "  Michael ", "michael@lakeridepros.com"},
		{"literal email passes through lower-cased", "Jim@Example.COM", "jim@example.com"},
		{"unknown alias yields empty", "somebody", ""},
		{"blank yields empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveAliasEmail(tt.identifier))
		})
	}
}

func TestNormalizeRef(t *testing.T) {
	t.Run("email derived from alias user id", func(t *testing.T) {
		got := NormalizeRef(domain.UserRef{UserID: "nate", DisplayName: " Nate "})
		assert.Equal(t, domain.UserRef{
			UserID:      "nate",
			Email:       "nate@lakeridepros.com",
			DisplayName: "Nate",
		}, got)
	})

	t.Run("user id derived from email local part", func(t *testing.T) {
		got := NormalizeRef(domain.UserRef{Email: "Jim@LakeridePros.com"})
		assert.Equal(t, "jim", got.UserID)
		assert.Equal(t, "jim@lakeridepros.com", got.Email)
	})

	t.Run("unknown alias keeps user id without email", func(t *testing.T) {
		got := NormalizeRef(domain.UserRef{UserID: "acct-991"})
		assert.Equal(t, "acct-991", got.UserID)
		assert.Empty(t, got.Email)
	})
}
