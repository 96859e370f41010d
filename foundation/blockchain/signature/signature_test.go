package signature_test

import (
	"testing"

	"github.com/calderaledger/caldera/foundation/blockchain/signature"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// =============================================================================

func Test_SignVerify(t *testing.T) {
	t.Log("Given the need to sign and verify a message.")
	{
		t.Logf("\tTest 0:\tWhen using a fresh key pair.")
		{
			privateKey, err := signature.GenerateKeyPair()
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to generate a key pair: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to generate a key pair.", success)

			msg := []byte("the quick brown fox")

			sig, err := signature.Sign(msg, privateKey)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to sign the message: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to sign the message.", success)

			pubKey := signature.PublicKeyHex(privateKey)

			if !signature.Verify(sig, msg, pubKey) {
				t.Errorf("\t%s\tTest 0:\tShould be able to verify the signature.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould be able to verify the signature.", success)
			}

			if signature.Verify(sig, []byte("a different message"), pubKey) {
				t.Errorf("\t%s\tTest 0:\tShould not verify against a different message.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould not verify against a different message.", success)
			}

			other, _ := signature.GenerateKeyPair()
			if signature.Verify(sig, msg, signature.PublicKeyHex(other)) {
				t.Errorf("\t%s\tTest 0:\tShould not verify against a different key.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould not verify against a different key.", success)
			}
		}
	}
}

func Test_KeyRoundTrip(t *testing.T) {
	t.Log("Given the need to persist keys as hex.")
	{
		t.Logf("\tTest 0:\tWhen encoding and decoding a private key.")
		{
			privateKey, err := signature.GenerateKeyPair()
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to generate a key pair: %v", failed, err)
			}

			encoded := signature.PrivateKeyToHex(privateKey)

			decoded, err := signature.PrivateKeyFromHex(encoded)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to decode the key: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to decode the key.", success)

			addr1 := signature.PublicKeyToAddress(privateKey.PubKey())
			addr2 := signature.PublicKeyToAddress(decoded.PubKey())
			if addr1 != addr2 {
				t.Errorf("\t%s\tTest 0:\tShould derive the same address. got %s, exp %s", failed, addr2, addr1)
			} else {
				t.Logf("\t%s\tTest 0:\tShould derive the same address.", success)
			}
		}
	}
}

func Test_Addresses(t *testing.T) {
	t.Log("Given the need to derive and validate addresses.")
	{
		t.Logf("\tTest 0:\tWhen deriving an address from a public key.")
		{
			privateKey, err := signature.GenerateKeyPair()
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to generate a key pair: %v", failed, err)
			}

			address := signature.PublicKeyToAddress(privateKey.PubKey())

			if !signature.ValidateAddress(address) {
				t.Errorf("\t%s\tTest 0:\tShould produce an address that checksums.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould produce an address that checksums.", success)
			}

			again := signature.PublicKeyToAddress(privateKey.PubKey())
			if address != again {
				t.Errorf("\t%s\tTest 0:\tShould derive deterministically.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould derive deterministically.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen validating corrupted addresses.")
		{
			privateKey, _ := signature.GenerateKeyPair()
			address := signature.PublicKeyToAddress(privateKey.PubKey())

			// Flip one character somewhere in the middle.
			corrupted := []byte(address)
			if corrupted[10] == 'a' {
				corrupted[10] = 'b'
			} else {
				corrupted[10] = 'a'
			}

			if signature.ValidateAddress(string(corrupted)) {
				t.Errorf("\t%s\tTest 1:\tShould reject a corrupted address.", failed)
			} else {
				t.Logf("\t%s\tTest 1:\tShould reject a corrupted address.", success)
			}

			if signature.ValidateAddress("") {
				t.Errorf("\t%s\tTest 1:\tShould reject an empty address.", failed)
			} else {
				t.Logf("\t%s\tTest 1:\tShould reject an empty address.", success)
			}

			if signature.ValidateAddress("not-base58-!!!") {
				t.Errorf("\t%s\tTest 1:\tShould reject junk input without panicking.", failed)
			} else {
				t.Logf("\t%s\tTest 1:\tShould reject junk input without panicking.", success)
			}
		}
	}
}

func Test_Hashing(t *testing.T) {
	t.Log("Given the need for deterministic digests.")
	{
		t.Logf("\tTest 0:\tWhen hashing the same bytes twice.")
		{
			data := []byte("caldera")

			if signature.Hash(data) != signature.Hash(data) {
				t.Errorf("\t%s\tTest 0:\tShould produce identical single digests.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould produce identical single digests.", success)
			}

			if signature.DoubleHash(data) != signature.DoubleHash(data) {
				t.Errorf("\t%s\tTest 0:\tShould produce identical double digests.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould produce identical double digests.", success)
			}

			if signature.Hash(data) == signature.DoubleHash(data) {
				t.Errorf("\t%s\tTest 0:\tShould produce distinct single and double digests.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould produce distinct single and double digests.", success)
			}

			if len(signature.DoubleHash(data)) != signature.HashLen {
				t.Errorf("\t%s\tTest 0:\tShould produce a full width digest.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould produce a full width digest.", success)
			}
		}
	}
}
