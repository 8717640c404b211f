package schema

// UserRefreshTokenTable represents the 'users.refreshtoken' table
type UserRefreshTokenTable struct {
	Table      string
	ID         string
	IdentityID string
	TokenHash  string
	ExpiresAt  string
	RevokedAt  string
	CreatedAt  string
}

// UserRefreshToken is the schema definition for users.refreshtoken
var UserRefreshToken = UserRefreshTokenTable{
	Table:      "users.refreshtoken",
	ID:         "id",
	IdentityID: "identityid",
	TokenHash:  "tokenhash",
	ExpiresAt:  "expiresat",
	RevokedAt:  "revokedat",
	CreatedAt:  "createdat",
}

// Columns returns all standard column names
func (t UserRefreshTokenTable) Columns() []string {
	return []string{
		t.ID, t.IdentityID, t.TokenHash, t.ExpiresAt, t.RevokedAt, t.CreatedAt,
	}
}
