package database

import (
	"fmt"
	"strings"
	"testing"
)

func TestDuePredicateUsesSharedBounds(t *testing.T) {
	claimWindow := fmt.Sprintf("claimed_at < NOW() - make_interval(secs => %d)", int64(ClaimTTL.Seconds()))
	if !strings.Contains(duePredicate, claimWindow) {
		t.Errorf("Expected due predicate to interpolate the claim TTL, got:\n%s", duePredicate)
	}

	pubDateWindow := fmt.Sprintf("pub_date BETWEEN NOW() - make_interval(secs => %d)", int64(MaxFrequency.Seconds()))
	if !strings.Contains(duePredicate, pubDateWindow) {
		t.Errorf("Expected due predicate to interpolate the max frequency, got:\n%s", duePredicate)
	}

	// no literal windows that could drift from the constants
	if strings.Contains(duePredicate, "INTERVAL '") {
		t.Errorf("Expected no hardcoded interval literals, got:\n%s", duePredicate)
	}
}
