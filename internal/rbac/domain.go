// Package rbac guards route groups with per-company permissions.
package rbac

// Permissions checked by the HTTP layer.
const (
	PermDocumentsView  = "documents.view"
	PermDocumentsEdit  = "documents.edit"
	PermPaymentsView   = "payments.view"
	PermPaymentsEdit   = "payments.edit"
	PermInventoryView  = "inventory.view"
	PermInventoryEdit  = "inventory.edit"
	PermPurchasingView = "purchasing.view"
	PermPurchasingEdit = "purchasing.edit"
	PermSettingsEdit   = "settings.edit"
	PermAuditView      = "audit.view"
)

// All lists every permission, used to seed the admin role.
var All = []string{
	PermDocumentsView, PermDocumentsEdit,
	PermPaymentsView, PermPaymentsEdit,
	PermInventoryView, PermInventoryEdit,
	PermPurchasingView, PermPurchasingEdit,
	PermSettingsEdit, PermAuditView,
}
