// Package types holds the validated input types the flows accept and the
// enumerations that appear on the wire.
package types

import "fmt"

// PasswordReason identifies the first validation rule a candidate
// password broke. The order of reporting is fixed: length, illegal
// character set, uppercase, lowercase, digit, special.
type PasswordReason int

const (
	TooFewChars PasswordReason = iota
	TooManyChars
	IllegalCharacter
	MissingUppercase
	MissingLowercase
	MissingDigit
	MissingSpecial
)

func (r PasswordReason) String() string {
	switch r {
	case TooFewChars:
		return "too few characters"
	case TooManyChars:
		return "too many characters"
	case IllegalCharacter:
		return "illegal character"
	case MissingUppercase:
		return "missing uppercase letter"
	case MissingLowercase:
		return "missing lowercase letter"
	case MissingDigit:
		return "missing digit"
	case MissingSpecial:
		return "missing special character"
	}
	return "invalid password"
}

// PasswordError reports why a candidate password was rejected. Len is only
// meaningful for the length reasons.
type PasswordError struct {
	Reason PasswordReason
	Len    int
}

func (e *PasswordError) Error() string {
	switch e.Reason {
	case TooFewChars, TooManyChars:
		return fmt.Sprintf("invalid password: %s (len %d)", e.Reason, e.Len)
	}
	return "invalid password: " + e.Reason.String()
}

const (
	passwordMinLen = 8
	passwordMaxLen = 72
)

// Password is a validated login password. The zero value is unusable;
// construct one with ParsePassword.
type Password struct {
	raw string
}

func isSpecial(c byte) bool {
	return (c >= 0x21 && c <= 0x2f) || (c >= 0x3a && c <= 0x40) || (c >= 0x7b && c <= 0x7e)
}

// ParsePassword validates s: length 8..72, at least one uppercase letter,
// lowercase letter, decimal digit and special character, and no characters
// outside those four classes. The first broken rule, in the fixed order,
// is reported.
func ParsePassword(s string) (Password, error) {
	if len(s) < passwordMinLen {
		return Password{}, &PasswordError{Reason: TooFewChars, Len: len(s)}
	}
	if len(s) > passwordMaxLen {
		return Password{}, &PasswordError{Reason: TooManyChars, Len: len(s)}
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	legal := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c >= 'a' && c <= 'z':
			hasLower = true
		case c >= '0' && c <= '9':
			hasDigit = true
		case isSpecial(c):
			hasSpecial = true
		default:
			legal = false
		}
	}

	switch {
	case !legal:
		return Password{}, &PasswordError{Reason: IllegalCharacter}
	case !hasUpper:
		return Password{}, &PasswordError{Reason: MissingUppercase}
	case !hasLower:
		return Password{}, &PasswordError{Reason: MissingLowercase}
	case !hasDigit:
		return Password{}, &PasswordError{Reason: MissingDigit}
	case !hasSpecial:
		return Password{}, &PasswordError{Reason: MissingSpecial}
	}
	return Password{raw: s}, nil
}

// Raw returns the password for transmission to the identity provider.
func (p Password) Raw() string {
	return p.raw
}

// String masks the password in logs and panics.
func (p Password) String() string {
	return "********"
}

// OtpErrorKind distinguishes the two OTP rejection causes.
type OtpErrorKind int

const (
	OtpInvalidLength OtpErrorKind = iota
	OtpNonNumeric
)

// OtpError reports an OTP or TOTP code rejection.
type OtpError struct {
	Kind     OtpErrorKind
	Expected int
	Received int
}

func (e *OtpError) Error() string {
	if e.Kind == OtpInvalidLength {
		return fmt.Sprintf("invalid otp: expected %d digits, received %d characters", e.Expected, e.Received)
	}
	return "invalid otp: non-numeric"
}

// digitsOnly reports whether every byte of s is a decimal digit. Validity
// is accumulated with bitwise and so the running time depends only on the
// length of s.
func digitsOnly(s string) bool {
	valid := uint64(1)
	for i := 0; i < len(s); i++ {
		// The subtraction wraps within 32 bits so out-of-range bytes stay
		// positive once widened to 64 bits.
		v := uint64(uint32(s[i]) - '0')
		valid &= (v - 10) >> 63
	}
	return valid == 1
}

const (
	simpleOtpLen = 6
	totpLen      = 8
)

// SimpleOtp is a validated six-digit SMS or email one-time password.
type SimpleOtp struct {
	code string
}

// ParseSimpleOtp validates a six-digit code.
func ParseSimpleOtp(s string) (SimpleOtp, error) {
	if len(s) != simpleOtpLen {
		return SimpleOtp{}, &OtpError{Kind: OtpInvalidLength, Expected: simpleOtpLen, Received: len(s)}
	}
	if !digitsOnly(s) {
		return SimpleOtp{}, &OtpError{Kind: OtpNonNumeric, Expected: simpleOtpLen, Received: len(s)}
	}
	return SimpleOtp{code: s}, nil
}

// Raw returns the code for transmission.
func (o SimpleOtp) Raw() string {
	return o.code
}

// Totp is a validated eight-digit authenticator code.
type Totp struct {
	code string
}

// ParseTotp validates an eight-digit code.
func ParseTotp(s string) (Totp, error) {
	if len(s) != totpLen {
		return Totp{}, &OtpError{Kind: OtpInvalidLength, Expected: totpLen, Received: len(s)}
	}
	if !digitsOnly(s) {
		return Totp{}, &OtpError{Kind: OtpNonNumeric, Expected: totpLen, Received: len(s)}
	}
	return Totp{code: s}, nil
}

// Raw returns the code for transmission.
func (o Totp) Raw() string {
	return o.code
}
