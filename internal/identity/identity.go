// Package identity proves wallet ownership with Ethereum personal_sign
// signatures and keeps the display names wallets have claimed.
package identity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

var (
	ErrBadSignature   = errors.New("malformed signature")
	ErrWalletMismatch = errors.New("signature does not match wallet")
	ErrStale          = errors.New("signature timestamp outside accepted window")
)

// Message is the text a wallet signs to claim a display name.
func Message(displayName string, timestamp int64) string {
	return fmt.Sprintf("Set display name to %s at %d", displayName, timestamp)
}

// DefaultDisplayName is used for wallets that never claimed a name.
func DefaultDisplayName(wallet string) string {
	w := strings.ToLower(strings.TrimSpace(wallet))
	w = strings.TrimPrefix(w, "0x")
	if len(w) > 4 {
		w = w[:4]
	}
	return "player_" + w
}

// Verifier checks EIP-191 signatures. A zero MaxAge disables the freshness check.
type Verifier struct {
	MaxAge time.Duration
	Now    func() time.Time
}

// Verify recovers the signer of Message(displayName, timestamp) and compares
// it with wallet. timestamp is in unix milliseconds.
func (v Verifier) Verify(wallet, displayName string, timestamp int64, signature string) error {
	if v.MaxAge > 0 {
		now := time.Now
		if v.Now != nil {
			now = v.Now
		}
		age := now().Sub(time.UnixMilli(timestamp))
		if age > v.MaxAge || age < -v.MaxAge {
			return ErrStale
		}
	}
	addr, err := RecoverAddress(Message(displayName, timestamp), signature)
	if err != nil {
		return err
	}
	if !strings.EqualFold(addr, strings.TrimSpace(wallet)) {
		return ErrWalletMismatch
	}
	return nil
}

// RecoverAddress returns the 0x-prefixed lowercase address that produced a
// 65 byte r||s||v personal_sign signature over msg.
func RecoverAddress(msg, signature string) (string, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "0x"))
	if err != nil || len(sig) != 65 {
		return "", ErrBadSignature
	}
	recID := sig[64]
	if recID >= 27 {
		recID -= 27
	}
	if recID > 1 {
		return "", ErrBadSignature
	}
	// decred expects the recovery code first: 27 + id, without the compressed flag
	compact := make([]byte, 65)
	compact[0] = 27 + recID
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, hashMessage(msg))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return "0x" + hex.EncodeToString(keccak(pub.SerializeUncompressed()[1:])[12:]), nil
}

func hashMessage(msg string) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	return keccak([]byte(prefix), []byte(msg))
}

func keccak(parts ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}
