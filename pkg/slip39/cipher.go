package slip39

import (
	"crypto/sha256"
	"encoding/binary"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"
)

const (
	// baseIterationCount is the minimum PBKDF2 iteration count, scaled up by
	// the share's iteration exponent and spread across the Feistel rounds.
	baseIterationCount = 10000
	roundCount         = 4
)

// cipherEncrypt runs the 4-round balanced Feistel network over the master
// secret. The output halves are swapped, per the SLIP-0039 convention.
func cipherEncrypt(
	masterSecret, passphrase []byte,
	iterationExponent int,
	identifier uint16,
	extendable bool,
) ([]byte, error) {
	if len(masterSecret)%2 != 0 {
		return nil, ErrInvalidSecretLength
	}

	l := masterSecret[:len(masterSecret)/2]
	r := masterSecret[len(masterSecret)/2:]
	salt := buildSalt(identifier, extendable)
	for i := 0; i < roundCount; i++ {
		f := roundFunction(i, passphrase, iterationExponent, salt, r)
		l, r = r, xorBytes(l, f)
	}
	return append(r, l...), nil
}

// cipherDecrypt mirrors cipherEncrypt with the round keys applied in reverse
// order. A wrong passphrase, identifier or extendable flag yields wrong
// plaintext without error: the binding is cryptographic, not structural.
func cipherDecrypt(
	encryptedSecret, passphrase []byte,
	iterationExponent int,
	identifier uint16,
	extendable bool,
) ([]byte, error) {
	if len(encryptedSecret)%2 != 0 {
		return nil, ErrInvalidSecretLength
	}

	l := encryptedSecret[:len(encryptedSecret)/2]
	r := encryptedSecret[len(encryptedSecret)/2:]
	salt := buildSalt(identifier, extendable)
	for i := roundCount - 1; i >= 0; i-- {
		f := roundFunction(i, passphrase, iterationExponent, salt, r)
		l, r = r, xorBytes(l, f)
	}
	return append(r, l...), nil
}

// roundFunction derives the round key material with PBKDF2-HMAC-SHA256. The
// round index is prepended to the passphrase and the running half to the salt.
func roundFunction(round int, passphrase []byte, iterationExponent int, salt, r []byte) []byte {
	password := append([]byte{byte(round)}, passphrase...)
	roundSalt := append(append([]byte{}, salt...), r...)
	iterations := (baseIterationCount << iterationExponent) / roundCount
	return pbkdf2.Key(password, roundSalt, iterations, len(r), sha256.New)
}

// buildSalt couples non-extendable ciphertext to the share identifier.
// Extendable shares use an empty salt so the same secret can be re-split
// later under a fresh identifier.
func buildSalt(identifier uint16, extendable bool) []byte {
	if extendable {
		return []byte{}
	}
	salt := make([]byte, 0, len(customizationNonExtendable)+2)
	salt = append(salt, customizationNonExtendable...)
	var id [2]byte
	binary.BigEndian.PutUint16(id[:], identifier)
	return append(salt, id[:]...)
}

// normalizePassphrase applies NFKD normalization before the passphrase enters
// the key derivation, matching reference implementations byte for byte.
func normalizePassphrase(passphrase string) []byte {
	return []byte(norm.NFKD.String(passphrase))
}

func xorBytes(a, b []byte) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] ^ b[i]
	}
	return out
}
