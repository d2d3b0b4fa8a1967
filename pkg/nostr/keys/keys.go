// Package keys generates and derives the secp256k1 keys used to sign and
// verify events.
package keys

import (
	"strings"

	"github.com/Hubmakerlabs/aggregatr/pkg/hex"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"lukechampine.com/frand"
)

// GeneratePrivateKey returns a new random secret key in hexadecimal.
func GeneratePrivateKey() string {
	b := frand.Bytes(32)
	sk, _ := btcec.PrivKeyFromBytes(b)
	return hex.Enc(sk.Serialize())
}

// GetPublicKey derives the x-only public key in hexadecimal from a secret
// key in hexadecimal.
func GetPublicKey(sk string) (string, error) {
	b, err := hex.Dec(sk)
	if err != nil {
		return "", err
	}
	_, pk := btcec.PrivKeyFromBytes(b)
	return hex.Enc(schnorr.SerializePubKey(pk)), nil
}

// IsValid32ByteHex is the sanity check applied to pubkeys and event ids
// found in filters before they are sent anywhere.
func IsValid32ByteHex(pk string) bool {
	if strings.ToLower(pk) != pk {
		return false
	}
	dec, _ := hex.Dec(pk)
	return len(dec) == 32
}
