// Package permissions holds the pure authorization rules. Handlers resolve
// identity and role from the bearer token first; these functions only decide
// allow or deny.
package permissions

import "storefront/models"

// CanWriteCatalog allows product create/update/delete for admins only.
// Catalog reads are open and never consult this.
func CanWriteCatalog(role string) bool {
	return role == models.RoleAdmin
}

// CanViewOrder allows the owning customer and any admin.
func CanViewOrder(userID int64, role string, ownerID int64) bool {
	return role == models.RoleAdmin || userID == ownerID
}

// CanChangeOrderStatus allows admins to set any status; the owner may only
// cancel their own order.
func CanChangeOrderStatus(userID int64, role string, ownerID int64, newStatus string) bool {
	if role == models.RoleAdmin {
		return true
	}
	return userID == ownerID && newStatus == models.OrderStatusCancelled
}

// CanChangeRole allows admins to change another user's role.
func CanChangeRole(role string) bool {
	return role == models.RoleAdmin
}
