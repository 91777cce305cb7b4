// Package validation provides format checks for Bitcoin identifiers.
// Checks are syntactic only; no checksum verification is performed.
package validation

import (
	"regexp"
	"strings"

	"github.com/cryptocompliance/btc-screening/internal/domain"
)

// IdentifierKind classifies a screening input
type IdentifierKind string

const (
	KindAddress IdentifierKind = "ADDRESS"
	KindTx      IdentifierKind = "TX"
)

var (
	// Legacy (P2PKH) and P2SH addresses. The set is the case closure of
	// the base58 alphabet so that upper/lower variants of one address
	// validate alike; zero is in no variant and stays rejected.
	base58AddressRe = regexp.MustCompile(`^[13][1-9A-Za-z]{25,34}$`)
	// Bech32 (segwit) addresses, canonical lower case only
	bech32AddressRe = regexp.MustCompile(`^bc1[a-z0-9]{39,59}$`)
	txHashRe        = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
)

// IsValidAddress reports whether s looks like a Bitcoin address.
// Base58 addresses are accepted as supplied; bech32 must be all lower
// case, so mixed-case segwit inputs are rejected here rather than folded.
func IsValidAddress(s string) bool {
	if base58AddressRe.MatchString(s) {
		return true
	}
	return bech32AddressRe.MatchString(s)
}

// IsValidTxHash reports whether s is a 64-character hex transaction id
func IsValidTxHash(s string) bool {
	return txHashRe.MatchString(s)
}

// ClassifyIdentifier determines whether s is an address or a transaction
// hash. Tx hashes are checked first since no address is 64 hex chars.
func ClassifyIdentifier(s string) (IdentifierKind, error) {
	switch {
	case IsValidTxHash(s):
		return KindTx, nil
	case IsValidAddress(s):
		return KindAddress, nil
	default:
		return "", domain.ValidationError("identifier is neither a valid address nor a transaction hash").
			WithDetail("identifier", s)
	}
}

// NormalizeDirection maps the accepted direction spellings onto the
// canonical inputs/outputs/both set
func NormalizeDirection(s string) (domain.TxDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both":
		return domain.DirectionBoth, nil
	case "inputs", "incoming":
		return domain.DirectionInputs, nil
	case "outputs", "outgoing":
		return domain.DirectionOutputs, nil
	default:
		return "", domain.ValidationError("direction must be one of inputs, outputs, both").
			WithDetail("direction", s)
	}
}

// ClampMaxHops bounds a caller-supplied hop count to [1,10], substituting
// the fallback when the caller sent nothing
func ClampMaxHops(requested, fallback int) int {
	if requested == 0 {
		requested = fallback
	}
	if requested < 1 {
		return 1
	}
	if requested > 10 {
		return 10
	}
	return requested
}
