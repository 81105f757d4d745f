package config

import "strings"

// Mode is the Stripe execution mode the process runs against.
type Mode string

const (
	ModeTest Mode = "test"
	ModeLive Mode = "live"
)

var testKeyPrefixes = []string{"sk_test_", "rk_test_"}

// ResolveMode derives the execution mode from a Stripe secret or restricted key.
// Anything that is not recognisably a test key is treated as live.
func ResolveMode(apiKey string) Mode {
	key := strings.TrimSpace(apiKey)
	for _, prefix := range testKeyPrefixes {
		if strings.HasPrefix(key, prefix) {
			return ModeTest
		}
	}
	return ModeLive
}

func (m Mode) IsTest() bool {
	return m == ModeTest
}
