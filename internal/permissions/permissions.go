package permissions

import "estatedesk/crm-service/internal/models"

// Set is the capability record derived from a user's role. It is computed on
// every request and never persisted.
type Set struct {
	CanDeleteLeads  bool `json:"canDeleteLeads"`
	CanViewExpenses bool `json:"canViewExpenses"`
	CanManageUsers  bool `json:"canManageUsers"`
}

// ForRole maps a role to its capability set. The mapping is total: a role
// outside the known enumeration yields the most restrictive set.
func ForRole(role string) Set {
	switch role {
	case models.RoleAdmin:
		return Set{
			CanDeleteLeads:  true,
			CanViewExpenses: true,
			CanManageUsers:  true,
		}
	case models.RoleAgent:
		return Set{
			CanDeleteLeads:  false,
			CanViewExpenses: true,
			CanManageUsers:  false,
		}
	default:
		return Set{}
	}
}
