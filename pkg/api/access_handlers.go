package api

import (
	"net/http"

	"github.com/cairnhq/cairn/pkg/access"
	"github.com/cairnhq/cairn/pkg/httputil"
	"github.com/cairnhq/cairn/pkg/middleware"
)

type accessCheckResponse struct {
	Allowed   bool   `json:"allowed"`
	Role      string `json:"role,omitempty"`
	Synthetic bool   `json:"synthetic,omitempty"`
}

// checkAccess handles GET /v1/access/{family}/{id}?capability=...
//
// A 200 response means the actor holds the requested capability on the
// entity. Denials surface as the resolver's own status and reason code,
// so callers can distinguish a hidden entity from a permission failure.
func (s *Server) checkAccess(w http.ResponseWriter, r *http.Request) {
	actorID, found := middleware.GetActorID(r)
	if !found {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "actor required")
		return
	}

	entityID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	capability, ok := parseCapability(w, r)
	if !ok {
		return
	}

	var membership *access.Membership
	switch httputil.GetPathVars(r)["family"] {
	case "workspaces":
		actx, err := s.guards.EnsureWorkspaceAccess(r.Context(), actorID, entityID, capability)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		membership = actx.Membership
	case "projects":
		actx, err := s.guards.EnsureProjectAccess(r.Context(), actorID, entityID, capability)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		membership = actx.Membership
	case "milestones":
		actx, err := s.guards.EnsureMilestoneAccess(r.Context(), actorID, entityID, capability)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		membership = actx.Membership
	case "tasks":
		cctx, err := s.guards.EnsureTaskAccess(r.Context(), actorID, entityID, capability)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		membership = cctx.Membership
	case "boards":
		actx, err := s.guards.EnsureBoardAccess(r.Context(), actorID, entityID, capability)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		membership = actx.Membership
	case "cards":
		actx, err := s.guards.EnsureCardAccess(r.Context(), actorID, entityID, capability)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		membership = actx.Membership
	default:
		httputil.WriteBadRequest(w, "unknown entity family")
		return
	}

	resp := accessCheckResponse{Allowed: true}
	if membership != nil {
		resp.Role = string(membership.Role)
		resp.Synthetic = membership.Synthetic
	}
	httputil.WriteSuccess(w, resp)
}

// parseCapability reads the capability query parameter. An absent
// parameter requests a membership existence check only.
func parseCapability(w http.ResponseWriter, r *http.Request) (access.Capability, bool) {
	raw := r.URL.Query().Get("capability")
	if raw == "" {
		return access.CapNone, true
	}

	for _, capability := range access.Capabilities() {
		if string(capability) == raw {
			return capability, true
		}
	}

	httputil.WriteBadRequest(w, "unknown capability: "+raw)
	return access.CapNone, false
}
