// Package provider supplies the clock and identifier generators used when
// segments are constructed programmatically and when a conversion refreshes
// the header timestamp. Tests swap in Fixed for deterministic output.
package provider

import (
	"math/rand/v2"
	"strings"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces random identifiers.
type IDGenerator interface {
	Numeric(length int) string
	Alphanumeric(length int) string
}

// Source combines the collaborators needed to fill construction defaults.
type Source interface {
	Clock
	IDGenerator
}

const (
	digits       = "0123456789"
	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

type system struct{}

// System returns a Source backed by the wall clock and math/rand.
func System() Source {
	return system{}
}

func (system) Now() time.Time { return time.Now() }

func (system) Numeric(length int) string { return randomString(digits, length) }

func (system) Alphanumeric(length int) string { return randomString(alphanumeric, length) }

func randomString(alphabet string, length int) string {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return b.String()
}

// Fixed is a deterministic Source. Identifiers are Digits (or Letters)
// repeated or cut to the requested length.
type Fixed struct {
	At      time.Time
	Digits  string
	Letters string
}

// Now returns f.At.
func (f Fixed) Now() time.Time { return f.At }

// Numeric returns Digits sized to length, defaulting to zeros.
func (f Fixed) Numeric(length int) string { return fit(f.Digits, "0", length) }

// Alphanumeric returns Letters sized to length, defaulting to "X".
func (f Fixed) Alphanumeric(length int) string { return fit(f.Letters, "X", length) }

func fit(pattern, fallback string, length int) string {
	if pattern == "" {
		pattern = fallback
	}
	return strings.Repeat(pattern, length/len(pattern)+1)[:length]
}
