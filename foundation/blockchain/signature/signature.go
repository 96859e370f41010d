// Package signature provides the cryptographic primitives for the ledger:
// key generation, address derivation, transaction signing, and the two-stage
// digest used for every piece of consensus data.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/crypto/ripemd160"
)

// ZeroHash represents a hash code of zeros.
const ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// HashLen is the number of hex digits in a digest.
const HashLen = 64

// addressVersion is the version byte prepended to the public key hash
// before checksumming and encoding.
const addressVersion = byte(0x00)

// =============================================================================

// GenerateKeyPair constructs a new secp256k1 private key. The public key
// hangs off the private key.
func GenerateKeyPair() (*btcec.PrivateKey, error) {
	privateKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	return privateKey, nil
}

// PrivateKeyFromHex reconstructs a private key from its hex encoding.
func PrivateKeyFromHex(s string) (*btcec.PrivateKey, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(data) != 32 {
		return nil, errors.New("private key must be 32 bytes")
	}

	privateKey, _ := btcec.PrivKeyFromBytes(data)
	return privateKey, nil
}

// PrivateKeyToHex returns the hex encoding of the private key for storage.
func PrivateKeyToHex(privateKey *btcec.PrivateKey) string {
	return hex.EncodeToString(privateKey.Serialize())
}

// PublicKeyHex returns the hex encoding of the compressed public key.
func PublicKeyHex(privateKey *btcec.PrivateKey) string {
	return hex.EncodeToString(privateKey.PubKey().SerializeCompressed())
}

// =============================================================================

// Hash returns the hex encoded SHA-256 digest of the data.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// DoubleHash returns the hex encoded SHA-256 of the SHA-256 of the data.
// Every consensus identity (transaction id, block hash, address checksum)
// uses this exact two-stage scheme so nodes agree bit for bit.
func DoubleHash(data []byte) string {
	return hex.EncodeToString(digest32(data))
}

// =============================================================================

// PublicKeyToAddress derives the payment address for the specified public
// key: SHA-256, then RIPEMD-160, version byte prepended, 4 byte checksum of
// the double digest appended, base58 encoded.
func PublicKeyToAddress(publicKey *btcec.PublicKey) string {
	return BytesToAddress(publicKey.SerializeCompressed())
}

// BytesToAddress derives the payment address from raw public key bytes.
func BytesToAddress(publicKey []byte) string {
	sha := sha256.Sum256(publicKey)

	rip := ripemd160.New()
	rip.Write(sha[:])
	pubHash := rip.Sum(nil)

	payload := make([]byte, 0, 1+ripemd160.Size+4)
	payload = append(payload, addressVersion)
	payload = append(payload, pubHash...)

	payload = append(payload, checksum(payload)...)

	return base58.Encode(payload)
}

// ValidateAddress reports whether the specified address is well formed by
// recomputing and comparing the checksum. It never fails hard; any
// malformed input returns false.
func ValidateAddress(address string) bool {
	payload := base58.Decode(address)
	if len(payload) != 1+ripemd160.Size+4 {
		return false
	}

	body := payload[:len(payload)-4]
	check := payload[len(payload)-4:]

	want := checksum(body)
	for i := range check {
		if check[i] != want[i] {
			return false
		}
	}

	return true
}

// checksum returns the first 4 bytes of the double SHA-256 of the payload.
func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:4]
}

// =============================================================================

// Sign signs the double digest of the message with the private key and
// returns the DER encoded signature in hex.
func Sign(message []byte, privateKey *btcec.PrivateKey) (string, error) {
	if privateKey == nil {
		return "", errors.New("missing private key")
	}

	sig := ecdsa.Sign(privateKey, digest32(message))

	return hex.EncodeToString(sig.Serialize()), nil
}

// Verify checks the DER hex signature over the message against the hex
// encoded compressed public key. Any malformed input verifies false.
func Verify(sigHex string, message []byte, publicKeyHex string) bool {
	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}

	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false
	}

	pubBytes, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return false
	}

	publicKey, err := btcec.ParsePubKey(pubBytes)
	if err != nil {
		return false
	}

	return sig.Verify(digest32(message), publicKey)
}

// digest32 computes the 32 byte double SHA-256 digest.
func digest32(message []byte) []byte {
	first := sha256.Sum256(message)
	second := sha256.Sum256(first[:])
	return second[:]
}
