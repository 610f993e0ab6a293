package tor

import (
	"encoding/base32"
	"errors"
	"strings"
	"testing"
)

// Valid v3 addresses generated from deterministic public keys. They do not
// correspond to any real onion service.
const (
	// testOnionV3Addr1 is generated from an all-zero 32-byte public key.
	testOnionV3Addr1 = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqd.onion"
	// testOnionV3Addr2 is generated from a sequential (0,1,2,...,31) public key.
	testOnionV3Addr2 = "aaaqeayeaudaocajbifqydiob4ibceqtcqkrmfyydenbwha5dyp3kead.onion"
)

// v3AddressFromPublicKey builds an address the way a Tor daemon does.
func v3AddressFromPublicKey(t *testing.T, pubkey []byte) string {
	t.Helper()

	if len(pubkey) != 32 {
		t.Fatalf("public key must be 32 bytes, got %d", len(pubkey))
	}
	data := make([]byte, 0, 35)
	data = append(data, pubkey...)
	data = append(data, computeV3Checksum(pubkey, OnionV3Version)...)
	data = append(data, OnionV3Version)

	return strings.ToLower(base32.StdEncoding.EncodeToString(data)) + OnionSuffix
}

func TestV3AddressFromPublicKey(t *testing.T) {
	t.Parallel()

	zero := make([]byte, 32)
	if got := v3AddressFromPublicKey(t, zero); got != testOnionV3Addr1 {
		t.Errorf("all-zero key = %s, want %s", got, testOnionV3Addr1)
	}

	seq := make([]byte, 32)
	for i := range seq {
		seq[i] = byte(i)
	}
	if got := v3AddressFromPublicKey(t, seq); got != testOnionV3Addr2 {
		t.Errorf("sequential key = %s, want %s", got, testOnionV3Addr2)
	}
}

func TestIsValidV3Address(t *testing.T) {
	t.Parallel()

	// Flip the last character of the checksum region.
	corrupted := testOnionV3Addr1[:51] + "b" + testOnionV3Addr1[52:]

	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{"valid zero key", testOnionV3Addr1, true},
		{"valid sequential key", testOnionV3Addr2, true},
		{"uppercase", strings.ToUpper(testOnionV3Addr2), true},
		{"missing suffix", strings.TrimSuffix(testOnionV3Addr1, OnionSuffix), false},
		{"bad checksum", corrupted, false},
		{"too short", "abc.onion", false},
		{"invalid characters", strings.Repeat("1", 56) + ".onion", false},
		{"v2 address", "expyuzz4wqqyqhjn.onion", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsValidV3Address(tt.address); got != tt.want {
				t.Errorf("IsValidV3Address(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

func TestIsV2Address(t *testing.T) {
	t.Parallel()

	if !IsV2Address("expyuzz4wqqyqhjn.onion") {
		t.Error("expected v2 address to match")
	}
	if !IsV2Address("EXPYUZZ4WQQYQHJN.ONION") {
		t.Error("expected uppercase v2 address to match")
	}
	if IsV2Address(testOnionV3Addr1) {
		t.Error("v3 address must not match the v2 format")
	}
}

func TestIsOnionHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host string
		want bool
	}{
		{testOnionV3Addr1, true},
		{"www." + testOnionV3Addr1, true},
		{"EXAMPLE.ONION", true},
		{"example.onion.", true},
		{"example.com", false},
		{"onion.example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsOnionHost(tt.host); got != tt.want {
			t.Errorf("IsOnionHost(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestCheckOnionURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rawURL  string
		wantErr error
	}{
		{"clearnet url passes", "https://example.com/path", nil},
		{"valid v3", "http://" + testOnionV3Addr1 + "/", nil},
		{"valid v3 with port and path", "http://" + testOnionV3Addr2 + ":8080/a?b=c", nil},
		{"valid v3 subdomain", "http://www." + testOnionV3Addr1 + "/", nil},
		{"uppercase host", "http://" + strings.ToUpper(testOnionV3Addr1) + "/", nil},
		{"v2 address", "http://expyuzz4wqqyqhjn.onion/", ErrV2AddressDeprecated},
		{"bad checksum", "http://" + strings.Repeat("a", 56) + ".onion/", ErrInvalidOnionAddress},
		{"short name", "http://example.onion/", ErrInvalidOnionAddress},
		{"unparsable url", "http://[::1", ErrInvalidOnionAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CheckOnionURL(tt.rawURL)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("CheckOnionURL(%q) = %v, want nil", tt.rawURL, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckOnionURL(%q) = %v, want %v", tt.rawURL, err, tt.wantErr)
			}
		})
	}
}

func TestHasOnionTarget(t *testing.T) {
	t.Parallel()

	if HasOnionTarget([]string{"https://example.com/", "https://example.org/"}) {
		t.Error("expected no onion target")
	}
	if !HasOnionTarget([]string{"https://example.com/", "http://" + testOnionV3Addr1 + "/"}) {
		t.Error("expected onion target")
	}
	if HasOnionTarget(nil) {
		t.Error("expected false for no targets")
	}
}
