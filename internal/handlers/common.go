package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/inkwell-blog/inkwell-api/internal/auth"
	"github.com/inkwell-blog/inkwell-api/internal/models"
)

func parseObjectID(w http.ResponseWriter, value, label string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid "+label)
		return primitive.NilObjectID, false
	}
	return id, true
}

// Privileged requests are checked in a fixed order: caller identity
// (401), then role where the action is admin-only (403), then the local
// user record (404). Ownership checks happen per action after that.

func callerIdentity(w http.ResponseWriter, r *http.Request) (string, bool) {
	externalID, ok := auth.Identity(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return "", false
	}
	return externalID, true
}

func callerRole(w http.ResponseWriter, r *http.Request, roles auth.RoleResolver, log *logrus.Logger, externalID string) (auth.Role, bool) {
	role, err := roles.Resolve(r.Context(), externalID)
	if err != nil {
		serverError(w, log, "failed to resolve role", err)
		return "", false
	}
	return role, true
}

func localUser(w http.ResponseWriter, r *http.Request, dir UserDirectory, log *logrus.Logger, externalID string) (*models.User, bool) {
	user, err := dir.GetUserByExternalID(r.Context(), externalID)
	if err != nil {
		serverError(w, log, "failed to load user", err)
		return nil, false
	}
	if user == nil {
		respondError(w, http.StatusNotFound, "user not found")
		return nil, false
	}
	return user, true
}

// requireUser covers signed-in endpoints that need no role: identity
// then local record.
func requireUser(w http.ResponseWriter, r *http.Request, dir UserDirectory, log *logrus.Logger) (*models.User, bool) {
	externalID, ok := callerIdentity(w, r)
	if !ok {
		return nil, false
	}
	return localUser(w, r, dir, log, externalID)
}

// requireAdmin covers admin-only endpoints: identity, role, then local
// record.
func requireAdmin(w http.ResponseWriter, r *http.Request, dir UserDirectory, roles auth.RoleResolver, log *logrus.Logger, forbiddenMsg string) (*models.User, bool) {
	externalID, ok := callerIdentity(w, r)
	if !ok {
		return nil, false
	}
	role, ok := callerRole(w, r, roles, log, externalID)
	if !ok {
		return nil, false
	}
	if role != auth.RoleAdmin {
		respondError(w, http.StatusForbidden, forbiddenMsg)
		return nil, false
	}
	return localUser(w, r, dir, log, externalID)
}

// requireUserWithRole covers owner-or-admin endpoints, which need both
// the local record and the role for the ownership decision.
func requireUserWithRole(w http.ResponseWriter, r *http.Request, dir UserDirectory, roles auth.RoleResolver, log *logrus.Logger) (*models.User, auth.Role, bool) {
	externalID, ok := callerIdentity(w, r)
	if !ok {
		return nil, "", false
	}
	role, ok := callerRole(w, r, roles, log, externalID)
	if !ok {
		return nil, "", false
	}
	user, ok := localUser(w, r, dir, log, externalID)
	if !ok {
		return nil, "", false
	}
	return user, role, true
}
