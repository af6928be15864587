package core_test

import (
	"testing"

	"cashflow/internal/core"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	viewer := core.Principal{UserID: 1, CompanyID: 1, Role: core.RoleViewer, Permissions: core.EffectivePermissions(core.RoleViewer, nil)}
	operator := core.Principal{UserID: 2, CompanyID: 1, Role: core.RoleOperator, Permissions: core.EffectivePermissions(core.RoleOperator, nil)}
	admin := core.Principal{UserID: 3, CompanyID: 1, Role: core.RoleAdmin, Permissions: core.EffectivePermissions(core.RoleAdmin, nil)}
	super := core.Principal{UserID: 4, Role: core.RoleSuperAdmin}

	tests := []struct {
		name   string
		p      core.Principal
		action core.Action
		want   bool
	}{
		{"viewer reads invoices", viewer, core.ActInvoicesRead, true},
		{"viewer cannot write invoices", viewer, core.ActInvoicesWrite, false},
		{"operator opens cash sessions", operator, core.ActCashSessions, true},
		{"operator cannot cancel invoices", operator, core.ActInvoicesCancel, false},
		{"admin cancels invoices", admin, core.ActInvoicesCancel, true},
		{"admin cannot manage companies", admin, core.ActCompaniesManage, false},
		{"superadmin manages companies", super, core.ActCompaniesManage, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, core.HasPermission(tt.p, tt.action))
		})
	}
}

func TestEffectivePermissions_AddsExtraGrants(t *testing.T) {
	perms := core.EffectivePermissions(core.RoleViewer, []string{"invoices:cancel", "invoices:read"})
	assert.Contains(t, perms, core.ActInvoicesCancel)

	count := 0
	for _, p := range perms {
		if p == core.ActInvoicesRead {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestPrincipal_CompanyAccess(t *testing.T) {
	p := core.Principal{CompanyID: 1, Role: core.RoleAdmin}
	assert.True(t, p.CanAccessCompany(1))
	assert.False(t, p.CanAccessCompany(2))

	super := core.Principal{Role: core.RoleSuperAdmin}
	assert.True(t, super.CanAccessCompany(2))
	assert.True(t, core.ValidRole(core.RoleSuperAdmin))
	assert.False(t, core.ValidRole("owner"))
}

func TestUser_Principal(t *testing.T) {
	u := core.User{ID: 9, CompanyID: 2, Role: core.RoleViewer, Permissions: []string{"payables:write"}}
	p := u.Principal()
	assert.Equal(t, 9, p.UserID)
	assert.Equal(t, 2, p.CompanyID)
	assert.True(t, core.HasPermission(p, core.ActPayablesWrite))
	assert.False(t, core.HasPermission(p, core.ActBudgetsWrite))
}
