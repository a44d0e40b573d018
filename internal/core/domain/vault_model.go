package domain

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/heirvault/heirvault-daemon/pkg/slip39"
	"github.com/heirvault/heirvault-daemon/pkg/wallet"
)

// Vault holds the backup mnemonic encrypted at rest. The plaintext mnemonic
// only exists in memory for the duration of the operation that needs it.
type Vault struct {
	EncryptedMnemonic string
	PassphraseHash    []byte
}

// NewVault encrypts the provided mnemonic with the passphrase and returns a
// new Vault initialized with the encrypted mnemonic and the hash of the
// passphrase.
func NewVault(mnemonic, passphrase string) (*Vault, error) {
	if len(mnemonic) <= 0 || len(passphrase) <= 0 {
		return nil, ErrNullMnemonicOrPassphrase
	}
	if !slip39.ValidateMnemonic(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	encryptedMnemonic, err := wallet.Encrypt(wallet.EncryptOpts{
		PlainText:  mnemonic,
		Passphrase: passphrase,
	})
	if err != nil {
		return nil, err
	}

	return &Vault{
		EncryptedMnemonic: encryptedMnemonic,
		PassphraseHash:    btcutil.Hash160([]byte(passphrase)),
	}, nil
}

// IsValidPassphrase returns whether the passphrase matches the one the vault
// was initialized with.
func (v *Vault) IsValidPassphrase(passphrase string) bool {
	return bytes.Equal(v.PassphraseHash, btcutil.Hash160([]byte(passphrase)))
}

// RevealMnemonic decrypts the stored mnemonic with the given passphrase.
func (v *Vault) RevealMnemonic(passphrase string) (string, error) {
	if !v.IsValidPassphrase(passphrase) {
		return "", ErrInvalidPassphrase
	}
	return wallet.Decrypt(wallet.DecryptOpts{
		CypherText: v.EncryptedMnemonic,
		Passphrase: passphrase,
	})
}

// ChangePassphrase re-encrypts the stored mnemonic under a new passphrase.
func (v *Vault) ChangePassphrase(currentPassphrase, newPassphrase string) error {
	if len(newPassphrase) <= 0 {
		return ErrNullMnemonicOrPassphrase
	}
	mnemonic, err := v.RevealMnemonic(currentPassphrase)
	if err != nil {
		return err
	}

	encryptedMnemonic, err := wallet.Encrypt(wallet.EncryptOpts{
		PlainText:  mnemonic,
		Passphrase: newPassphrase,
	})
	if err != nil {
		return err
	}

	v.EncryptedMnemonic = encryptedMnemonic
	v.PassphraseHash = btcutil.Hash160([]byte(newPassphrase))
	return nil
}
