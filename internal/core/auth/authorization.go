package auth

import "github.com/artpar/formdesk/internal/core/domain"

// =============================================================================
// Form Authorization
// =============================================================================

// CanManageForm checks if the user owns the form. Only owners may read
// submissions, edit, export or delete a form.
func CanManageForm(ctx Context, form domain.Form) bool {
	return ctx.Authenticated && ctx.UserID != "" && ctx.UserID == form.OwnerID
}

// CanViewPublicForm checks if anyone may open the form's public link.
func CanViewPublicForm(form domain.Form) bool {
	return form.IsPublic
}
