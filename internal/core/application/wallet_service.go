package application

import (
	"context"
	"crypto/rand"
	"sync"

	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"

	"github.com/heirvault/heirvault-daemon/internal/core/domain"
	"github.com/heirvault/heirvault-daemon/internal/core/ports"
	"github.com/heirvault/heirvault-daemon/pkg/slip39"
	"github.com/heirvault/heirvault-daemon/pkg/wallet"
)

const masterSecretLength = 32

// WalletService manages the lifecycle of the daemon wallet: mnemonic
// generation and restore, the encrypted vault holding the backup at rest, and
// the in-memory hierarchical deterministic root that exists only between
// unlock and lock.
type WalletService struct {
	repoManager ports.RepoManager
	net         *chaincfg.Params

	mtx      sync.RWMutex
	unlocked *wallet.Wallet
}

// WalletServiceOpts is the struct given to NewWalletService.
type WalletServiceOpts struct {
	RepoManager ports.RepoManager
	Network     *chaincfg.Params
}

func (o WalletServiceOpts) validate() error {
	if o.RepoManager == nil {
		return ErrNullRepoManager
	}
	if o.Network == nil {
		return wallet.ErrNullNetwork
	}
	return nil
}

// NewWalletService returns a wallet service in locked state.
func NewWalletService(opts WalletServiceOpts) (*WalletService, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &WalletService{
		repoManager: opts.RepoManager,
		net:         opts.Network,
	}, nil
}

// Network returns the chain parameters the service operates on.
func (s *WalletService) Network() *chaincfg.Params {
	return s.net
}

// InitWallet generates a fresh master secret, encodes it as the backup
// mnemonic and stores it encrypted under the given passphrase. The wallet is
// left unlocked. The mnemonic is returned exactly once, here: it is never
// persisted in clear.
func (s *WalletService) InitWallet(
	ctx context.Context, passphrase string,
) (string, error) {
	if s.IsInitialized(ctx) {
		return "", ErrWalletAlreadyInitialized
	}

	masterSecret := make([]byte, masterSecretLength)
	if _, err := rand.Read(masterSecret); err != nil {
		return "", err
	}
	defer zeroBytes(masterSecret)

	mnemonic, err := slip39.GenerateMnemonic(slip39.GenerateMnemonicOpts{
		MasterSecret: masterSecret,
	})
	if err != nil {
		return "", err
	}

	if _, err := s.repoManager.VaultRepository().GetOrCreateVault(
		ctx, mnemonic, passphrase,
	); err != nil {
		return "", err
	}

	if err := s.unlock(masterSecret); err != nil {
		return "", err
	}

	log.Info("wallet initialized and unlocked")
	return mnemonic, nil
}

// RestoreWallet initializes the vault from an existing backup mnemonic and
// leaves the wallet unlocked.
func (s *WalletService) RestoreWallet(
	ctx context.Context, mnemonic, passphrase string,
) error {
	if s.IsInitialized(ctx) {
		return ErrWalletAlreadyInitialized
	}
	if !slip39.ValidateMnemonic(mnemonic) {
		return domain.ErrInvalidMnemonic
	}

	if _, err := s.repoManager.VaultRepository().GetOrCreateVault(
		ctx, mnemonic, passphrase,
	); err != nil {
		return err
	}

	masterSecret, err := slip39.RecoverMasterSecret(slip39.RecoverMasterSecretOpts{
		Mnemonic: mnemonic,
	})
	if err != nil {
		return err
	}
	defer zeroBytes(masterSecret)

	if err := s.unlock(masterSecret); err != nil {
		return err
	}

	log.Info("wallet restored from mnemonic and unlocked")
	return nil
}

// UnlockWallet decrypts the vault mnemonic with the passphrase and rebuilds
// the hierarchical deterministic root in memory.
func (s *WalletService) UnlockWallet(ctx context.Context, passphrase string) error {
	vault, err := s.repoManager.VaultRepository().GetVault(ctx)
	if err != nil {
		return ErrWalletNotInitialized
	}

	mnemonic, err := vault.RevealMnemonic(passphrase)
	if err != nil {
		return err
	}

	masterSecret, err := slip39.RecoverMasterSecret(slip39.RecoverMasterSecretOpts{
		Mnemonic: mnemonic,
	})
	if err != nil {
		return err
	}
	defer zeroBytes(masterSecret)

	return s.unlock(masterSecret)
}

// LockWallet drops the in-memory root. Key material must be re-derived from
// the vault with the passphrase to operate again.
func (s *WalletService) LockWallet() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.unlocked = nil
}

// IsInitialized returns whether a vault exists.
func (s *WalletService) IsInitialized(ctx context.Context) bool {
	_, err := s.repoManager.VaultRepository().GetVault(ctx)
	return err == nil
}

// IsLocked returns whether no root is held in memory.
func (s *WalletService) IsLocked() bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.unlocked == nil
}

// BackupMnemonic reveals the backup mnemonic, gated by the vault passphrase.
func (s *WalletService) BackupMnemonic(
	ctx context.Context, passphrase string,
) (string, error) {
	vault, err := s.repoManager.VaultRepository().GetVault(ctx)
	if err != nil {
		return "", ErrWalletNotInitialized
	}
	return vault.RevealMnemonic(passphrase)
}

// ChangePassphrase re-encrypts the vault under a new passphrase.
func (s *WalletService) ChangePassphrase(
	ctx context.Context, currentPassphrase, newPassphrase string,
) error {
	return s.repoManager.VaultRepository().UpdateVault(
		ctx, func(v *domain.Vault) (*domain.Vault, error) {
			if err := v.ChangePassphrase(currentPassphrase, newPassphrase); err != nil {
				return nil, err
			}
			return v, nil
		},
	)
}

func (s *WalletService) unlock(masterSecret []byte) error {
	w, err := wallet.NewWalletFromMasterSecret(wallet.NewWalletOpts{
		MasterSecret: masterSecret,
		Network:      s.net,
	})
	if err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.unlocked = w
	return nil
}

// wallet returns the in-memory root or fails if the wallet is locked.
func (s *WalletService) wallet() (*wallet.Wallet, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if s.unlocked == nil {
		return nil, ErrWalletIsLocked
	}
	return s.unlocked, nil
}

func zeroBytes(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
