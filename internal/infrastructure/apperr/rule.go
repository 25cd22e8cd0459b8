package apperr

// Rule names the constraint a request field violated.
type Rule string

const (
	RuleRequired      Rule = "required"
	RuleTooLong       Rule = "too_long"
	RuleTooShort      Rule = "too_short"
	RuleInvalidFormat Rule = "invalid_format"
	// RuleInvalidState marks a field that conflicts with another one in the same request.
	RuleInvalidState Rule = "invalid_state"
)
