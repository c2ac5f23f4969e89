package password

import "unicode"

// Policy is the strength rule set applied to new passwords.
type Policy struct {
	MinLength     int
	MaxLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// DefaultPolicy requires 8 to 128 bytes with mixed case, a digit and a symbol.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:     8,
		MaxLength:     128,
		RequireUpper:  true,
		RequireLower:  true,
		RequireDigit:  true,
		RequireSymbol: true,
	}
}

// Check returns a *PolicyError for the first rule candidate breaks.
func (p Policy) Check(candidate string) error {
	if len(candidate) < p.MinLength {
		return &PolicyError{Rule: "too short"}
	}
	if p.MaxLength > 0 && len(candidate) > p.MaxLength {
		return &PolicyError{Rule: "too long"}
	}

	var upper, lower, digit, symbol bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}

	switch {
	case p.RequireUpper && !upper:
		return &PolicyError{Rule: "missing upper-case letter"}
	case p.RequireLower && !lower:
		return &PolicyError{Rule: "missing lower-case letter"}
	case p.RequireDigit && !digit:
		return &PolicyError{Rule: "missing digit"}
	case p.RequireSymbol && !symbol:
		return &PolicyError{Rule: "missing symbol"}
	}
	return nil
}
