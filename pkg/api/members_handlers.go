package api

import (
	"errors"
	"net/http"

	"github.com/cairnhq/cairn/pkg/access"
	"github.com/cairnhq/cairn/pkg/httputil"
	"github.com/cairnhq/cairn/pkg/middleware"
	"github.com/cairnhq/cairn/pkg/tracker"
)

var kindsByPath = map[string]tracker.ContainerKind{
	"workspaces": tracker.KindWorkspace,
	"projects":   tracker.KindProject,
	"boards":     tracker.KindBoard,
}

type addMemberRequest struct {
	UserID  int64  `json:"user_id"`
	Role    string `json:"role"`
	Comment string `json:"comment,omitempty"`
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

type updateCommentRequest struct {
	Comment string `json:"comment"`
}

// listMembers handles GET /v1/{kind}/{id}/members
func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	actorID, kind, containerID, ok := s.memberRequestVars(w, r)
	if !ok {
		return
	}

	members, err := s.members.ListMembers(r.Context(), actorID, kind, containerID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"members": members,
	})
}

// addMember handles POST /v1/{kind}/{id}/members
func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	actorID, kind, containerID, ok := s.memberRequestVars(w, r)
	if !ok {
		return
	}

	var req addMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		httputil.WriteBadRequest(w, "user_id is required")
		return
	}

	err := s.members.AddMember(r.Context(), actorID, kind, containerID, req.UserID, access.Role(req.Role), req.Comment)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httputil.WriteCreated(w, map[string]interface{}{
		"user_id": req.UserID,
		"role":    req.Role,
	})
}

// updateMemberRole handles PUT /v1/{kind}/{id}/members/{userID}/role
func (s *Server) updateMemberRole(w http.ResponseWriter, r *http.Request) {
	actorID, kind, containerID, ok := s.memberRequestVars(w, r)
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userID")
	if !ok {
		return
	}

	var req updateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := s.members.UpdateMemberRole(r.Context(), actorID, kind, containerID, userID, access.Role(req.Role))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httputil.WriteNoContent(w)
}

// updateMemberComment handles PUT /v1/{kind}/{id}/members/{userID}/comment
func (s *Server) updateMemberComment(w http.ResponseWriter, r *http.Request) {
	actorID, kind, containerID, ok := s.memberRequestVars(w, r)
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userID")
	if !ok {
		return
	}

	var req updateCommentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := s.members.UpdateMemberComment(r.Context(), actorID, kind, containerID, userID, req.Comment)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httputil.WriteNoContent(w)
}

// removeMember handles DELETE /v1/{kind}/{id}/members/{userID}
func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	actorID, kind, containerID, ok := s.memberRequestVars(w, r)
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userID")
	if !ok {
		return
	}

	err := s.members.RemoveMember(r.Context(), actorID, kind, containerID, userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	httputil.WriteNoContent(w)
}

// memberRequestVars extracts the actor, container kind and container ID
// shared by every member management handler.
func (s *Server) memberRequestVars(w http.ResponseWriter, r *http.Request) (int64, tracker.ContainerKind, int64, bool) {
	actorID, found := middleware.GetActorID(r)
	if !found {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "actor required")
		return 0, "", 0, false
	}

	kind, known := kindsByPath[httputil.GetPathVars(r)["kind"]]
	if !known {
		httputil.WriteBadRequest(w, "unknown container kind")
		return 0, "", 0, false
	}

	containerID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return 0, "", 0, false
	}

	return actorID, kind, containerID, true
}

// writeServiceError maps service failures onto HTTP responses. Access
// denials carry their own status and reason code; everything else is a 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var accessErr *access.Error
	if errors.As(err, &accessErr) {
		httputil.WriteJSON(w, accessErr.Status, map[string]string{
			"error":  accessErr.Message,
			"reason": string(accessErr.Reason),
		})
		return
	}

	s.logger.WithRequestContext(r.Context()).WithError(err).Error("request failed")
	httputil.WriteInternalError(w, errors.New("internal server error"))
}
