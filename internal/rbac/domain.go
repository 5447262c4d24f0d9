package rbac

// Role is the backend account role.
type Role string

// Roles known to the backend.
const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleSupplier Role = "supplier"
	RoleRetailer Role = "retailer"
	RoleUser     Role = "user"
)

// Roles lists every role in display order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleStaff, RoleSupplier, RoleRetailer, RoleUser}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleSupplier, RoleRetailer, RoleUser:
		return true
	}
	return false
}

// Permissions used by route groups.
const (
	PermDashboardView     = "dashboard.view"
	PermInventoryView     = "inventory.view"
	PermInventoryEdit     = "inventory.edit"
	PermAlertsAck         = "alerts.ack"
	PermProductsView      = "products.view"
	PermProductsEdit      = "products.edit"
	PermSuppliersView     = "suppliers.view"
	PermSuppliersEdit     = "suppliers.edit"
	PermOrdersView        = "orders.view"
	PermOrdersCreate      = "orders.create"
	PermOrdersReceive     = "orders.receive"
	PermSupplierOrders    = "supplier.orders"
	PermShop              = "shop.purchase"
	PermUsersView         = "users.view"
	PermUsersEdit         = "users.edit"
	PermAnnouncementsView = "announcements.view"
	PermAnnouncementsEdit = "announcements.edit"
	PermLeaveApply        = "leave.apply"
	PermLeaveApprove      = "leave.approve"
	PermSalaryView        = "salary.view"
	PermSalaryManage      = "salary.manage"
	PermPaymentsView      = "payments.view"
	PermTransactionsView  = "transactions.view"
	PermJobsView          = "jobs.view"
	PermAuditView         = "audit.view"
)

var rolePermissions = map[Role][]string{
	RoleAdmin: {
		PermDashboardView, PermInventoryView, PermInventoryEdit, PermAlertsAck,
		PermProductsView, PermProductsEdit, PermSuppliersView, PermSuppliersEdit,
		PermOrdersView, PermOrdersCreate, PermOrdersReceive,
		PermUsersView, PermUsersEdit, PermAnnouncementsView, PermAnnouncementsEdit,
		PermLeaveApprove, PermSalaryManage, PermPaymentsView, PermTransactionsView,
		PermJobsView, PermAuditView,
	},
	RoleStaff: {
		PermDashboardView, PermInventoryView, PermInventoryEdit, PermAlertsAck,
		PermProductsView, PermSuppliersView, PermOrdersView, PermOrdersCreate,
		PermOrdersReceive, PermAnnouncementsView, PermLeaveApply, PermSalaryView,
	},
	RoleSupplier: {
		PermDashboardView, PermSupplierOrders, PermAnnouncementsView, PermPaymentsView,
	},
	RoleRetailer: {
		PermDashboardView, PermProductsView, PermShop, PermAnnouncementsView, PermPaymentsView,
	},
	RoleUser: {
		PermDashboardView, PermProductsView, PermShop, PermAnnouncementsView, PermPaymentsView,
	},
}
