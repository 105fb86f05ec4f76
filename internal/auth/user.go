// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

/*
Package auth implements single sign-on against the organization's OAuth2 /
OIDC provider.

The flow is deliberately stateless on the provider side: after the
authorization-code exchange the service issues its own short-lived HS256
session token and hands it to the browser as a cookie. Every subsequent
request is verified locally (with a Redis fast path), so the identity
provider is only contacted during login.
*/
package auth

import (
	"github.com/hep-fcc/datacat/internal/platform/sec"
)

// User is the signed-in identity as exposed to the frontend.
type User struct {
	Username string   `json:"username"`
	FullName string   `json:"full_name,omitempty"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// FromClaims projects verified session claims into the transport shape.
func FromClaims(claims *sec.AuthClaims) *User {
	if claims == nil {
		return nil
	}
	return &User{
		Username: claims.Username,
		FullName: claims.FullName,
		Email:    claims.Email,
		Roles:    claims.Roles,
	}
}
