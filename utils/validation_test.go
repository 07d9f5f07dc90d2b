package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifyRequest struct {
	IDToken string `json:"idToken" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("accepts a valid struct", func(t *testing.T) {
		assert.NoError(t, ValidateStruct(verifyRequest{IDToken: "abc"}))
	})

	t.Run("reports missing required fields", func(t *testing.T) {
		err := ValidateStruct(verifyRequest{})
		require.Error(t, err)

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "validation failed", vErr.Error())
		assert.Equal(t, "IDToken is required", vErr.Fields["IDToken"])
	})

	t.Run("reports malformed emails", func(t *testing.T) {
		err := ValidateStruct(verifyRequest{IDToken: "abc", Email: "not-an-email"})
		require.Error(t, err)

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "Email must be a valid email", vErr.Fields["Email"])
	})
}
