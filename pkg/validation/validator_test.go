package validation

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func TestToDetailsValidationErrors(t *testing.T) {
	v := validator.New()
	err := v.Struct(signupPayload{Email: "not-an-email", Password: "short"})
	require.Error(t, err)

	details := ToDetails(err)
	assert.Equal(t, "must be a valid email", details["Email"])
	assert.Equal(t, "must be at least 8 characters long", details["Password"])
}

func TestToDetailsInvalidJSON(t *testing.T) {
	var dst signupPayload
	err := json.Unmarshal([]byte(`{"email":`), &dst)
	require.Error(t, err)

	details := ToDetails(err)
	assert.Equal(t, "invalid json", details["payload"])
}

func TestToDetailsNil(t *testing.T) {
	assert.Nil(t, ToDetails(nil))
}
