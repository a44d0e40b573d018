// Package slip39 implements the single-share (1-of-1) profile of SLIP-0039:
// mnemonic encoding with the RS1024 checksum and the passphrase-keyed Feistel
// encryption of the master secret.
//
// The full multi-group Shamir sharing of SLIP-0039 is representable in the
// wire format but deliberately not implemented; every mnemonic produced here
// uses group count 1, group threshold 1 and member threshold 1.
package slip39

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"strings"
)

var (
	// ErrInvalidSecretLength is returned when a master secret is not exactly
	// 16 or 32 bytes long.
	ErrInvalidSecretLength = errors.New("master secret must be 16 or 32 bytes")
	// ErrInvalidMnemonicLength is returned when a mnemonic does not count
	// exactly 20 or 33 words.
	ErrInvalidMnemonicLength = errors.New("mnemonic must count exactly 20 or 33 words")
	// ErrInvalidWord is returned when a word is not part of the vocabulary.
	ErrInvalidWord = errors.New("mnemonic contains a word outside the wordlist")
	// ErrChecksumMismatch is returned when the RS1024 checksum does not verify.
	ErrChecksumMismatch = errors.New("mnemonic checksum mismatch")
	// ErrInvalidPadding is returned when the padding bits of the share value
	// are not zero.
	ErrInvalidPadding = errors.New("mnemonic value padding bits must be zero")
	// ErrUnsupportedShareShape is returned when decoding a share that is not
	// in the 1-of-1 single-share shape.
	ErrUnsupportedShareShape = errors.New(
		"only single-share mnemonics (1-of-1, single group) are supported",
	)
)

// GenerateMnemonicOpts is the struct given to GenerateMnemonic.
type GenerateMnemonicOpts struct {
	MasterSecret []byte
	// Passphrase protects the secret; leave empty for the wallet's default
	// passphrase-less flow.
	Passphrase string
}

func (o GenerateMnemonicOpts) validate() error {
	if len(o.MasterSecret) != 16 && len(o.MasterSecret) != 32 {
		return ErrInvalidSecretLength
	}
	return nil
}

// GenerateMnemonic encrypts the master secret under a fresh random 15-bit
// identifier and encodes it as a 20 or 33 word mnemonic. Two calls with the
// same secret yield different mnemonics that recover to the same secret.
func GenerateMnemonic(opts GenerateMnemonicOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	identifier, err := randomIdentifier()
	if err != nil {
		return "", err
	}

	meta := ShareMetadata{
		Identifier:        identifier,
		Extendable:        false,
		IterationExponent: 0,
		GroupIndex:        0,
		GroupThreshold:    1,
		GroupCount:        1,
		MemberIndex:       0,
		MemberThreshold:   1,
	}

	encryptedSecret, err := cipherEncrypt(
		opts.MasterSecret,
		normalizePassphrase(opts.Passphrase),
		meta.IterationExponent,
		meta.Identifier,
		meta.Extendable,
	)
	if err != nil {
		return "", err
	}

	indices := encodeShare(meta, encryptedSecret)
	words := make([]string, len(indices))
	for i, index := range indices {
		words[i] = wordlist[index]
	}
	return strings.Join(words, " "), nil
}

// ValidateMnemonic reports whether the text is a well-formed single-share
// mnemonic with a valid checksum. It never returns an error: any malformed
// input yields false.
func ValidateMnemonic(mnemonic string) bool {
	_, _, err := decodeShare(strings.Fields(strings.ToLower(mnemonic)))
	return err == nil
}

// RecoverMasterSecretOpts is the struct given to RecoverMasterSecret.
type RecoverMasterSecretOpts struct {
	Mnemonic string
	// Passphrase must match the one used at generation time. A mismatched
	// passphrase decrypts to a different secret without any error signal.
	Passphrase string
}

func (o RecoverMasterSecretOpts) validate() error {
	if len(strings.TrimSpace(o.Mnemonic)) <= 0 {
		return ErrInvalidMnemonicLength
	}
	return nil
}

// RecoverMasterSecret decodes and decrypts a mnemonic back to the master
// secret bytes. The caller owns the returned slice and should zero it once
// the derived keys have been computed.
func RecoverMasterSecret(opts RecoverMasterSecretOpts) ([]byte, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	meta, encryptedSecret, err := decodeShare(
		strings.Fields(strings.ToLower(opts.Mnemonic)),
	)
	if err != nil {
		return nil, err
	}
	if meta.GroupCount != 1 || meta.GroupThreshold != 1 || meta.MemberThreshold != 1 {
		return nil, ErrUnsupportedShareShape
	}

	return cipherDecrypt(
		encryptedSecret,
		normalizePassphrase(opts.Passphrase),
		meta.IterationExponent,
		meta.Identifier,
		meta.Extendable,
	)
}

// randomIdentifier draws a 15-bit identifier from the system CSPRNG.
func randomIdentifier() (uint16, error) {
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]) & (1<<identifierBits - 1), nil
}
