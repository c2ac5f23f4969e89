package password

import "errors"

var (
	// ErrEmptyPassword is returned by hashers for an empty input.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrPolicy is wrapped by every *PolicyError.
	ErrPolicy = errors.New("password does not satisfy policy")
)

// PolicyError names the first policy rule a candidate password broke.
type PolicyError struct {
	Rule string
}

func (e *PolicyError) Error() string {
	return "password policy: " + e.Rule
}

func (e *PolicyError) Unwrap() error {
	return ErrPolicy
}
