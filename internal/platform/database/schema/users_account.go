package schema

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table               string
	ID                  string
	Email               string
	PasswordHash        string
	DisplayName         string
	Active              string
	CreatedAt           string
	UpdatedAt           string
	LastAuthenticatedAt string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:               "users.account",
	ID:                  "id",
	Email:               "email",
	PasswordHash:        "passwordhash",
	DisplayName:         "displayname",
	Active:              "active",
	CreatedAt:           "createdat",
	UpdatedAt:           "updatedat",
	LastAuthenticatedAt: "lastauthenticatedat",
}

// Columns returns all standard column names
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Email, t.PasswordHash, t.DisplayName, t.Active, t.CreatedAt, t.UpdatedAt, t.LastAuthenticatedAt,
	}
}
