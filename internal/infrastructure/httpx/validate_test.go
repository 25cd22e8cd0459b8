package httpx

import (
	"testing"

	"github.com/66gu1/authsession/internal/infrastructure/apperr"
	"github.com/stretchr/testify/require"
)

type validateInput struct {
	Identifier string `json:"identifier" validate:"required,max=8"`
	Secret     string `json:"secret,omitempty" validate:"required"`
	SessionID  string `json:"session_id" validate:"omitempty,uuid"`
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   validateInput
		wantErr error
	}{
		{
			name:  "ok",
			input: validateInput{Identifier: "alice", Secret: "x"},
		},
		{
			name:  "missing fields",
			input: validateInput{},
			wantErr: apperr.ErrBadRequest().
				WithViolation(apperr.Violation{Field: "identifier", Rule: apperr.RuleRequired}).
				WithViolation(apperr.Violation{Field: "secret", Rule: apperr.RuleRequired}),
		},
		{
			name:  "too long",
			input: validateInput{Identifier: "alice-in-wonderland", Secret: "x"},
			wantErr: apperr.ErrBadRequest().
				WithViolation(apperr.Violation{Field: "identifier", Rule: apperr.RuleTooLong}),
		},
		{
			name:  "bad format",
			input: validateInput{Identifier: "alice", Secret: "x", SessionID: "nope"},
			wantErr: apperr.ErrBadRequest().
				WithViolation(apperr.Violation{Field: "session_id", Rule: apperr.RuleInvalidFormat}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.input)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, apperr.ClassBadRequest, apperr.ClassOf(err))
		})
	}
}
