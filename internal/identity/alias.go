// Package identity resolves heterogeneous user references (emails, aliases,
// account keys) to deliverable notification endpoints.
package identity

import (
	"strings"

	"github.com/lakeridepros/ticketwatch/internal/domain"
)

// aliasEmails maps short staff nicknames to canonical email addresses.
var aliasEmails = map[string]string{
	"nate":    "nate@lakeridepros.com",
	"michael": "michael@lakeridepros.com",
	"jim":     "jim@lakeridepros.com",
}

// ResolveAliasEmail maps a short alias or raw identifier to a canonical
// email address. Identifiers that already contain "@" are treated as literal
// emails and returned lower-cased. Unknown aliases yield an empty string,
// signaling that the identifier needs store-backed resolution. Absence is
// never an error.
func ResolveAliasEmail(identifier string) string {
	raw := strings.ToLower(strings.TrimSpace(identifier))
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "@") {
		return raw
	}
	return aliasEmails[raw]
}

// NormalizeRef fills in derivable fields of a user reference: the email is
// resolved from the user id when absent, and the user id falls back to the
// email local part. Display names pass through trimmed.
func NormalizeRef(ref domain.UserRef) domain.UserRef {
	email := strings.ToLower(strings.TrimSpace(ref.Email))
	if email == "" {
		email = ResolveAliasEmail(ref.UserID)
	}

	userID := strings.TrimSpace(ref.UserID)
	if userID == "" && email != "" {
		userID = strings.SplitN(email, "@", 2)[0]
	}

	return domain.UserRef{
		UserID:      userID,
		Email:       email,
		DisplayName: strings.TrimSpace(ref.DisplayName),
	}
}
