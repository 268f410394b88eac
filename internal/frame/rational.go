package frame

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rational is a fraction such as a frame rate (30000/1001) or a time base.
type Rational struct {
	Num int
	Den int
}

// IsZero reports whether r is unset.
func (r Rational) IsZero() bool {
	return r.Num == 0 || r.Den == 0
}

// Float64 returns r as a float, 0 when the denominator is 0.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Interval returns the duration of one period at rate r, 0 when unset.
func (r Rational) Interval() time.Duration {
	if r.IsZero() {
		return 0
	}
	return time.Duration(int64(time.Second) * int64(r.Den) / int64(r.Num))
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// MarshalText encodes r as "num/den".
func (r Rational) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText accepts "num/den" or a plain integer.
func (r *Rational) UnmarshalText(text []byte) error {
	v, err := ParseRational(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseRational parses "num/den" or a plain integer such as "25".
func ParseRational(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	numStr, denStr, found := strings.Cut(s, "/")
	if !found {
		denStr = "1"
	}
	num, err := strconv.Atoi(strings.TrimSpace(numStr))
	if err != nil {
		return Rational{}, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	den, err := strconv.Atoi(strings.TrimSpace(denStr))
	if err != nil {
		return Rational{}, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	if den <= 0 {
		return Rational{}, fmt.Errorf("invalid rational %q: denominator must be positive", s)
	}
	return Rational{Num: num, Den: den}, nil
}
