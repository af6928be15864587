package core

import "slices"

// Role is a user's coarse access level.
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleOperator   Role = "operator"
	RoleViewer     Role = "viewer"
)

// Action names a permission checked before a request touches data.
type Action string

const (
	ActInvoicesRead    Action = "invoices:read"
	ActInvoicesWrite   Action = "invoices:write"
	ActInvoicesCancel  Action = "invoices:cancel"
	ActPayablesRead    Action = "payables:read"
	ActPayablesWrite   Action = "payables:write"
	ActBudgetsRead     Action = "budgets:read"
	ActBudgetsWrite    Action = "budgets:write"
	ActCashFlowRead    Action = "cashflow:read"
	ActCashFlowWrite   Action = "cashflow:write"
	ActCashSessions    Action = "cash_sessions:operate"
	ActVendorsRead     Action = "vendors:read"
	ActVendorsWrite    Action = "vendors:write"
	ActCustomersRead   Action = "customers:read"
	ActCustomersWrite  Action = "customers:write"
	ActProductsRead    Action = "products:read"
	ActProductsWrite   Action = "products:write"
	ActUsersManage     Action = "users:manage"
	ActCompaniesManage Action = "companies:manage"
)

var readActions = []Action{
	ActInvoicesRead, ActPayablesRead, ActBudgetsRead, ActCashFlowRead,
	ActVendorsRead, ActCustomersRead, ActProductsRead,
}

var rolePermissions = map[Role][]Action{
	RoleAdmin: append(slices.Clone(readActions),
		ActInvoicesWrite, ActInvoicesCancel, ActPayablesWrite, ActBudgetsWrite,
		ActCashFlowWrite, ActCashSessions, ActVendorsWrite, ActCustomersWrite,
		ActProductsWrite, ActUsersManage,
	),
	RoleManager: append(slices.Clone(readActions),
		ActInvoicesWrite, ActInvoicesCancel, ActPayablesWrite, ActBudgetsWrite,
		ActCashFlowWrite, ActCashSessions, ActVendorsWrite, ActCustomersWrite,
		ActProductsWrite,
	),
	RoleOperator: append(slices.Clone(readActions),
		ActInvoicesWrite, ActCashFlowWrite, ActCashSessions, ActCustomersWrite,
	),
	RoleViewer: slices.Clone(readActions),
}

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	_, ok := rolePermissions[r]
	return ok || r == RoleSuperAdmin
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID      int      `json:"userId"`
	CompanyID   int      `json:"companyId"`
	Role        Role     `json:"role"`
	Permissions []Action `json:"permissions"`
}

// IsSuperuser reports whether p bypasses the tenant filter.
func (p Principal) IsSuperuser() bool {
	return p.Role == RoleSuperAdmin
}

// CanAccessCompany reports whether p may read or write data of companyID.
func (p Principal) CanAccessCompany(companyID int) bool {
	return p.IsSuperuser() || p.CompanyID == companyID
}

// HasPermission reports whether p may perform action.
func HasPermission(p Principal, action Action) bool {
	if p.IsSuperuser() {
		return true
	}
	return slices.Contains(p.Permissions, action)
}

// EffectivePermissions merges the role defaults with per-user grants, without duplicates.
func EffectivePermissions(role Role, extra []string) []Action {
	perms := slices.Clone(rolePermissions[role])
	for _, e := range extra {
		a := Action(e)
		if !slices.Contains(perms, a) {
			perms = append(perms, a)
		}
	}
	return perms
}
