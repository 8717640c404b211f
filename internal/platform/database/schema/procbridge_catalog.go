package schema

// ProcBridgeCatalogTable represents the 'procbridge.catalog' table
type ProcBridgeCatalogTable struct {
	Table            string
	Code             string
	TargetName       string
	Description      string
	RequiresIdentity string
	AllowedRoles     string
	Transactional    string
	Active           string
	CreatedAt        string
	UpdatedAt        string
}

// ProcBridgeCatalog is the schema definition for procbridge.catalog
var ProcBridgeCatalog = ProcBridgeCatalogTable{
	Table:            "procbridge.catalog",
	Code:             "code",
	TargetName:       "targetname",
	Description:      "description",
	RequiresIdentity: "requiresidentity",
	AllowedRoles:     "allowedroles",
	Transactional:    "transactional",
	Active:           "active",
	CreatedAt:        "createdat",
	UpdatedAt:        "updatedat",
}

// Columns returns the columns read into an operation entry, in scan order
func (t ProcBridgeCatalogTable) Columns() []string {
	return []string{
		t.Code, t.TargetName, t.Description, t.RequiresIdentity, t.AllowedRoles, t.Transactional, t.Active,
	}
}
