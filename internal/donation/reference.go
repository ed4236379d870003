package donation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	referencePrefix = "SONLIFE"
	suffixLength    = 13
)

// ReferenceGenerator mints SONLIFE-<unix millis>-<suffix> references. Clock
// and Entropy are replaceable in tests.
type ReferenceGenerator struct {
	Clock   func() time.Time
	Entropy func() string
}

func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{
		Clock:   time.Now,
		Entropy: func() string { return uuid.NewString() },
	}
}

func (g *ReferenceGenerator) Generate() string {
	return fmt.Sprintf("%s-%d-%s", referencePrefix, g.Clock().UnixMilli(), suffix(g.Entropy()))
}

// suffix keeps the lowercase alphanumerics of seed, padded with more uuids
// when seed runs short.
func suffix(seed string) string {
	var b strings.Builder
	for b.Len() < suffixLength {
		for _, r := range strings.ToLower(seed) {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
				if b.Len() == suffixLength {
					break
				}
			}
		}
		seed = uuid.NewString()
	}
	return b.String()
}

// ValidReference reports whether ref has the shape Generate produces.
func ValidReference(ref string) bool {
	parts := strings.Split(ref, "-")
	if len(parts) != 3 || parts[0] != referencePrefix || parts[1] == "" {
		return false
	}
	for _, r := range parts[1] {
		if r < '0' || r > '9' {
			return false
		}
	}
	if len(parts[2]) != suffixLength {
		return false
	}
	for _, r := range parts[2] {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
