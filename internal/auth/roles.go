package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Role is a caller's role as recorded in the identity provider's user
// metadata.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// RoleResolver resolves a caller's role from their external identity
// id. It is injected into the handlers so privileged paths can be
// tested (or later cached) without a live provider.
type RoleResolver interface {
	Resolve(ctx context.Context, externalID string) (Role, error)
}

// APIRoleResolver fetches the role from the identity provider's backend
// API rather than trusting client-supplied token claims, which keeps
// role checks robust to session-template configuration. Any failure
// degrades to RoleUser, so admin actions fail closed when the provider
// is unreachable.
type APIRoleResolver struct {
	baseURL   string
	secretKey string
	client    *http.Client
	log       *logrus.Logger
}

func NewAPIRoleResolver(baseURL, secretKey string, log *logrus.Logger) *APIRoleResolver {
	return &APIRoleResolver{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    &http.Client{Timeout: 5 * time.Second},
		log:       log,
	}
}

type providerUser struct {
	PublicMetadata struct {
		Role string `json:"role"`
	} `json:"public_metadata"`
}

func (r *APIRoleResolver) Resolve(ctx context.Context, externalID string) (Role, error) {
	url := fmt.Sprintf("%s/users/%s", r.baseURL, externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return RoleUser, err
	}
	req.Header.Set("Authorization", "Bearer "+r.secretKey)

	resp, err := r.client.Do(req)
	if err != nil {
		r.log.WithError(err).WithField("externalId", externalID).Warn("role lookup failed")
		return RoleUser, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log.WithFields(logrus.Fields{
			"externalId": externalID,
			"status":     resp.StatusCode,
		}).Warn("role lookup returned non-200")
		return RoleUser, nil
	}

	var user providerUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		r.log.WithError(err).Warn("role lookup: bad response body")
		return RoleUser, nil
	}
	if user.PublicMetadata.Role == "" {
		return RoleUser, nil
	}
	return Role(user.PublicMetadata.Role), nil
}
