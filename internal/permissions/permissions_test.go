package permissions

import (
	"testing"

	"estatedesk/crm-service/internal/models"
)

func TestForRoleAdmin(t *testing.T) {
	set := ForRole(models.RoleAdmin)
	if !set.CanDeleteLeads || !set.CanViewExpenses || !set.CanManageUsers {
		t.Fatalf("admin must hold every capability, got %+v", set)
	}
}

func TestForRoleAgent(t *testing.T) {
	set := ForRole(models.RoleAgent)
	if set.CanDeleteLeads {
		t.Fatalf("agent must not delete leads")
	}
	if !set.CanViewExpenses {
		t.Fatalf("agent must view expenses")
	}
	if set.CanManageUsers {
		t.Fatalf("agent must not manage users")
	}
}

func TestForRoleUnknownIsRestrictive(t *testing.T) {
	for _, role := range []string{"", "superuser", "ADMIN", "root"} {
		set := ForRole(role)
		if set != (Set{}) {
			t.Fatalf("role %q must map to the empty set, got %+v", role, set)
		}
	}
}

func TestForRoleDeterministic(t *testing.T) {
	for _, role := range []string{models.RoleAdmin, models.RoleAgent, "other"} {
		first := ForRole(role)
		for i := 0; i < 5; i++ {
			if got := ForRole(role); got != first {
				t.Fatalf("role %q resolved differently on repeated calls: %+v vs %+v", role, got, first)
			}
		}
	}
}
