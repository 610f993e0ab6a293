package tor

import (
	"encoding/base32"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	// OnionSuffix is the common suffix for all onion addresses.
	OnionSuffix = ".onion"

	// OnionV3Version is the version byte for v3 onion addresses.
	OnionV3Version = 0x03
)

var (
	// ErrInvalidOnionAddress is returned for a .onion host that fails the
	// v3 format or checksum check.
	ErrInvalidOnionAddress = errors.New("invalid onion address")

	// ErrV2AddressDeprecated is returned for a 16-character v2 host.
	// V2 services stopped working in October 2021.
	ErrV2AddressDeprecated = errors.New("v2 onion addresses are deprecated and no longer functional")
)

// onionV3Pattern matches 56 base32 characters plus ".onion".
// Base32 here is a-z and 2-7.
var onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)

var onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)

// checksumPrefix is the constant prefix of the v3 checksum input.
var checksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host (without port) is in the .onion TLD.
func IsOnionHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSuffix(host, ".")), OnionSuffix)
}

// IsValidV3Address checks the format and the checksum of a v3 onion address.
// The check is case-insensitive and requires the ".onion" suffix.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(address, OnionSuffix)))
	if err != nil || len(decoded) != 35 {
		return false
	}

	// pubkey (32) || checksum (2) || version (1)
	pubkey := decoded[:32]
	checksum := decoded[32:34]
	version := decoded[34]
	if version != OnionV3Version {
		return false
	}

	expected := computeV3Checksum(pubkey, version)
	return checksum[0] == expected[0] && checksum[1] == expected[1]
}

// computeV3Checksum returns the first 2 bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	hash := sha3.Sum256(data)
	return hash[:2]
}

// IsV2Address reports whether address has the deprecated v2 format.
func IsV2Address(address string) bool {
	return onionV2Pattern.MatchString(strings.ToLower(address))
}

// CheckOnionURL validates the host of rawURL when it is a .onion host.
// Subdomains are allowed ("www.<v3>.onion"); the last label before
// ".onion" must be a valid v3 address. Non-onion URLs pass unchecked.
func CheckOnionURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOnionAddress, err)
	}

	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if !IsOnionHost(host) {
		return nil
	}

	labels := strings.Split(strings.TrimSuffix(host, OnionSuffix), ".")
	service := labels[len(labels)-1] + OnionSuffix

	if IsValidV3Address(service) {
		return nil
	}
	if IsV2Address(service) {
		return fmt.Errorf("%w: %s", ErrV2AddressDeprecated, service)
	}
	return fmt.Errorf("%w: %s", ErrInvalidOnionAddress, service)
}

// HasOnionTarget reports whether any of the URLs points at a .onion host.
func HasOnionTarget(rawURLs []string) bool {
	for _, raw := range rawURLs {
		if u, err := url.Parse(raw); err == nil && IsOnionHost(u.Hostname()) {
			return true
		}
	}
	return false
}
