package identity

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingFields covers absent required input on signup and login.
	ErrMissingFields = errors.New("identity: missing required fields")

	// ErrInvalidInput covers present-but-malformed input (email shape,
	// password length, unknown role). The wrapped variants below let the
	// HTTP layer keep field-specific messages without string matching.
	ErrInvalidInput = errors.New("identity: invalid input")

	ErrInvalidEmail     = fmt.Errorf("%w: malformed email address", ErrInvalidInput)
	ErrPasswordTooShort = fmt.Errorf("%w: password below minimum length", ErrInvalidInput)
	ErrInvalidRole      = fmt.Errorf("%w: unknown user type", ErrInvalidInput)

	// ErrDuplicateEmail is returned when a signup email is already taken.
	ErrDuplicateEmail = errors.New("identity: email already registered")

	// ErrInvalidCredentials is the single generic login failure. Unknown
	// email and wrong password are deliberately indistinguishable to keep
	// account enumeration impossible.
	ErrInvalidCredentials = errors.New("identity: invalid email or password")

	// ErrMissingGoogleEmail fails a federated login whose provider profile
	// carries no usable email. Email is the unique join key across
	// authentication methods; without it the profile cannot be linked.
	ErrMissingGoogleEmail = errors.New("identity: google profile has no email")
)
