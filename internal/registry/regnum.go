// internal/registry/regnum.go
package registry

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"
)

// NewRegistrationNumber mints an identifier of the form
// <PREFIX><unix-millis><3 random digits>, e.g. XYZ1733750400123042.
// Millisecond timestamps keep numbers monotonic across runs; the random
// suffix separates registrations minted in the same millisecond.
func NewRegistrationNumber(prefix string) string {
	return fmt.Sprintf("%s%d%03d", strings.ToUpper(prefix), time.Now().UnixMilli(), rand.Intn(1000))
}

var registrationPattern = regexp.MustCompile(`^[A-Z]+\d+$`)

// ValidRegistrationNumber reports whether s looks like a minted identifier.
func ValidRegistrationNumber(s string) bool {
	return registrationPattern.MatchString(s)
}
