// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hep-fcc/datacat/internal/platform/sec"
)

func TestStringClaim(t *testing.T) {
	claims := map[string]any{
		"preferred_username": "jdoe",
		"sub":                "cern-subject-id",
		"name":               "J. Doe",
		"empty":              "",
	}

	assert.Equal(t, "jdoe", stringClaim(claims, "preferred_username", "sub"))
	assert.Equal(t, "cern-subject-id", stringClaim(claims, "missing", "sub"))
	assert.Equal(t, "", stringClaim(claims, "empty", "missing"))
}

func TestRolesClaim(t *testing.T) {
	t.Run("cern_roles_preferred", func(t *testing.T) {
		roles := rolesClaim(map[string]any{
			"cern_roles": []any{"fcc-datacat-editor", "fcc-member"},
			"roles":      []any{"other"},
		})
		assert.Equal(t, []string{"fcc-datacat-editor", "fcc-member"}, roles)
	})

	t.Run("falls_back_to_generic_claims", func(t *testing.T) {
		roles := rolesClaim(map[string]any{"groups": []any{"editors"}})
		assert.Equal(t, []string{"editors"}, roles)
	})

	t.Run("non_string_entries_skipped", func(t *testing.T) {
		roles := rolesClaim(map[string]any{"cern_roles": []any{42, "editor"}})
		assert.Equal(t, []string{"editor"}, roles)
	})

	t.Run("absent", func(t *testing.T) {
		assert.Nil(t, rolesClaim(map[string]any{}))
	})
}

func TestFromClaims(t *testing.T) {
	assert.Nil(t, FromClaims(nil))

	user := FromClaims(&sec.AuthClaims{
		Username: "jdoe",
		FullName: "J. Doe",
		Email:    "j.doe@cern.ch",
		Roles:    []string{"fcc-datacat-editor"},
	})
	assert.Equal(t, "jdoe", user.Username)
	assert.Equal(t, "J. Doe", user.FullName)
	assert.Equal(t, []string{"fcc-datacat-editor"}, user.Roles)
}
