package schema

// UserRoleTable represents the 'users.role' table
type UserRoleTable struct {
	Table string
	ID    string
	Name  string
}

// UserRole is the schema definition for users.role
var UserRole = UserRoleTable{
	Table: "users.role",
	ID:    "id",
	Name:  "name",
}

// UserAccountRoleTable represents the 'users.accountrole' join table
type UserAccountRoleTable struct {
	Table     string
	AccountID string
	RoleID    string
}

// UserAccountRole is the schema definition for users.accountrole
var UserAccountRole = UserAccountRoleTable{
	Table:     "users.accountrole",
	AccountID: "accountid",
	RoleID:    "roleid",
}
