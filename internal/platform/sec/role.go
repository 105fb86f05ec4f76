// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package sec

import "strings"

// # Role Checks
//
// Roles come straight from the SSO token; the catalog does not maintain its
// own role table. Authorization is a flat membership test against the single
// role configured for mutating endpoints.

// HasRole reports whether the claim set carries the named role.
// Comparison is case-insensitive to tolerate SSO capitalization drift.
func (c *AuthClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// CanMutate reports whether the claims satisfy the configured role
// requirement for write endpoints. An empty requirement admits any
// signed-in user.
func (c *AuthClaims) CanMutate(requiredRole string) bool {
	if c == nil {
		return false
	}
	if requiredRole == "" {
		return true
	}
	return c.HasRole(requiredRole)
}
