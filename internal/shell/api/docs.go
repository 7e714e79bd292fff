package api

import (
	"net/http"

	"github.com/artpar/formdesk/internal/core/analytics"
	"github.com/artpar/formdesk/internal/core/catalog"
	"github.com/artpar/formdesk/internal/core/domain"
	"github.com/artpar/formdesk/internal/shell/api/openapi"
)

// registerDocs describes every /api route for GET /api/docs.
func (h *Handler) registerDocs() {
	routes := []openapi.Route{
		{Method: "POST", Path: "/api/auth/register", Summary: "Create an account", Tag: "auth",
			Request: RegisterRequest{}, Response: domain.PublicUser{}, Status: http.StatusCreated},
		{Method: "POST", Path: "/api/auth/login", Summary: "Sign in and set the session cookie", Tag: "auth",
			Request: LoginRequest{}, Response: UserResponse{}},
		{Method: "POST", Path: "/api/auth/logout", Summary: "Clear the session cookie", Tag: "auth",
			Response: OKResponse{}},
		{Method: "GET", Path: "/api/auth/me", Summary: "Current user, or null", Tag: "auth",
			Response: UserResponse{}},

		{Method: "GET", Path: "/api/templates", Summary: "List starter templates", Tag: "templates",
			Response: []catalog.Template{}},
		{Method: "GET", Path: "/api/templates/{id}", Summary: "Get a starter template", Tag: "templates",
			Response: catalog.Template{}},

		{Method: "GET", Path: "/api/forms", Summary: "List your forms, newest first. All forms unless ?limit or ?offset is given", Tag: "forms", Auth: true,
			Response: []domain.FormSummary{}},
		{Method: "POST", Path: "/api/forms", Summary: "Create a form", Tag: "forms", Auth: true,
			Request: domain.FormInput{}, Response: domain.Form{}, Status: http.StatusCreated},
		{Method: "GET", Path: "/api/forms/{id}", Summary: "Get a form", Tag: "forms", Auth: true,
			Response: domain.Form{}},
		{Method: "PUT", Path: "/api/forms/{id}", Summary: "Update a form", Tag: "forms", Auth: true,
			Request: domain.FormPatch{}, Response: domain.Form{}},
		{Method: "PATCH", Path: "/api/forms/{id}", Summary: "Update part of a form", Tag: "forms", Auth: true,
			Request: domain.FormPatch{}, Response: domain.Form{}},
		{Method: "DELETE", Path: "/api/forms/{id}", Summary: "Delete a form and its uploads", Tag: "forms", Auth: true,
			Response: OKResponse{}},
		{Method: "GET", Path: "/api/forms/public/{publicId}", Summary: "Public view of a form", Tag: "forms",
			Response: domain.Form{}},

		{Method: "POST", Path: "/api/submissions/{publicId}", Summary: "Submit answers (JSON or multipart)", Tag: "submissions",
			Response: CreatedResponse{}, Status: http.StatusCreated},
		{Method: "GET", Path: "/api/submissions/form/{formId}", Summary: "List a form's submissions", Tag: "submissions", Auth: true,
			Response: []domain.Submission{}},
		{Method: "GET", Path: "/api/submissions/export/{formId}/{type}", Summary: "Export submissions as csv or json", Tag: "submissions", Auth: true,
			ContentType: "text/csv"},
		{Method: "GET", Path: "/api/submissions/stats/{formId}", Summary: "Per-field response summary", Tag: "submissions", Auth: true,
			Response: analytics.Report{}},
	}
	for _, r := range routes {
		h.docs.RegisterRoute(r)
	}
}
