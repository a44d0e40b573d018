package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"

	"github.com/heirvault/heirvault-daemon/internal/config"
	"github.com/heirvault/heirvault-daemon/internal/core/application"
	"github.com/heirvault/heirvault-daemon/internal/core/domain"
	"github.com/heirvault/heirvault-daemon/internal/core/ports"
	"github.com/heirvault/heirvault-daemon/internal/infrastructure/contacts"
	"github.com/heirvault/heirvault-daemon/internal/infrastructure/escrow"
	dbbadger "github.com/heirvault/heirvault-daemon/internal/infrastructure/storage/db/badger"
	"github.com/heirvault/heirvault-daemon/pkg/crawler"
	"github.com/heirvault/heirvault-daemon/pkg/explorer"
	"github.com/heirvault/heirvault-daemon/pkg/explorer/esplora"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Panic("invalid config")
	}

	net, err := config.GetNetwork()
	if err != nil {
		log.WithError(err).Panic("invalid network")
	}
	log.Infof("starting daemon on network %s", net.Name)

	repoManager, err := dbbadger.NewRepoManager(config.GetDatadir(), log.New())
	if err != nil {
		log.WithError(err).Panic("error while opening database")
	}
	defer repoManager.Close()

	explorerSvc, err := newExplorerService()
	if err != nil {
		log.WithError(err).Panic("error while connecting to explorer")
	}

	escrowSvc, err := newEscrowSigner(net)
	if err != nil {
		log.WithError(err).Panic("error while setting up escrow signer")
	}
	contactsSvc := contacts.NewFileDirectory(config.GetString(config.ContactsFileKey))

	walletSvc, err := application.NewWalletService(application.WalletServiceOpts{
		RepoManager: repoManager,
		Network:     net,
	})
	if err != nil {
		log.WithError(err).Panic("error while setting up wallet service")
	}

	accountSvc, err := application.NewAccountService(application.AccountServiceOpts{
		RepoManager: repoManager,
		ExplorerSvc: explorerSvc,
		WalletSvc:   walletSvc,
	})
	if err != nil {
		log.WithError(err).Panic("error while setting up account service")
	}

	inheritanceSvc, err := application.NewInheritanceService(application.InheritanceServiceOpts{
		RepoManager:     repoManager,
		ExplorerSvc:     explorerSvc,
		WalletSvc:       walletSvc,
		Escrow:          escrowSvc,
		Contacts:        contactsSvc,
		FeeTargetBlocks: config.GetInt(config.FeeTargetBlocksKey),
		FallbackFeeRate: uint64(config.GetInt(config.FallbackFeeRateKey)),
	})
	if err != nil {
		log.WithError(err).Panic("error while setting up inheritance service")
	}

	if _, err := application.NewTransactionService(application.TransactionServiceOpts{
		RepoManager:     repoManager,
		ExplorerSvc:     explorerSvc,
		WalletSvc:       walletSvc,
		AccountSvc:      accountSvc,
		InheritanceSvc:  inheritanceSvc,
		FeeTargetBlocks: config.GetInt(config.FeeTargetBlocksKey),
		FallbackFeeRate: uint64(config.GetInt(config.FallbackFeeRateKey)),
	}); err != nil {
		log.WithError(err).Panic("error while setting up transaction service")
	}

	crawlerSvc := crawler.NewService(crawler.Opts{
		ExplorerSvc:            explorerSvc,
		IntervalInMilliseconds: config.GetInt(config.CrawlIntervalKey),
		RequestsPerSecond:      config.GetInt(config.ExplorerRequestsPerSecondKey),
		ErrorHandler: func(err error) {
			log.WithError(err).Warn("error while observing the chain")
		},
	})
	go crawlerSvc.Start()
	defer crawlerSvc.Stop()

	if err := observeAccounts(crawlerSvc, accountSvc); err != nil {
		log.WithError(err).Warn("error while restoring chain observation")
	}
	go handleCrawlerEvents(crawlerSvc, accountSvc)

	if walletSvc.IsInitialized(context.Background()) {
		log.Info("wallet is initialized, waiting to be unlocked")
	} else {
		log.Info("wallet is not initialized")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down")
}

// observeAccounts adds every derived address of every account to the watch
// list so that deposits made while the daemon was down are picked up again.
func observeAccounts(
	crawlerSvc crawler.Service, accountSvc *application.AccountService,
) error {
	accounts, err := accountSvc.ListAccounts(context.Background())
	if err != nil {
		return err
	}

	for _, account := range accounts {
		for _, addr := range account.Addresses {
			crawlerSvc.AddObservable(&crawler.AddressObservable{
				AccountID: account.ID,
				Address:   addr.Address,
				IsFunding: addr.Role == domain.AddressRoleFunding,
			})
		}
	}
	return nil
}

func handleCrawlerEvents(
	crawlerSvc crawler.Service, accountSvc *application.AccountService,
) {
	for event := range crawlerSvc.GetEventChannel() {
		switch e := event.(type) {
		case crawler.AddressEvent:
			if len(e.Utxos) <= 0 {
				continue
			}
			if e.Type() == crawler.FundingDeposit {
				log.Infof(
					"detected funding deposit of account %s on address %s",
					e.AccountID, e.Address,
				)
			}
			if _, err := accountSvc.GetBalance(
				context.Background(), e.AccountID,
			); err != nil {
				log.WithError(err).Warn("error while refreshing account balance")
			}
		case crawler.TransactionEvent:
			if e.Type() == crawler.TransactionConfirmed {
				log.Infof("transaction %s confirmed", e.TxID)
			}
		case crawler.QuitEvent:
			return
		}
	}
}

func newExplorerService() (explorer.Service, error) {
	requestTimeout := time.Duration(
		config.GetInt(config.ExplorerRequestTimeoutKey),
	) * time.Second
	innerSvc, err := esplora.NewService(
		config.GetString(config.ExplorerEndpointKey), requestTimeout,
	)
	if err != nil {
		return nil, err
	}

	return explorer.NewResilientService(explorer.ResilientServiceOpts{
		Inner:             innerSvc,
		RequestsPerSecond: config.GetInt(config.ExplorerRequestsPerSecondKey),
	})
}

func newEscrowSigner(net *chaincfg.Params) (ports.EscrowIdentityProvider, error) {
	mnemonic := config.GetString(config.EscrowMnemonicKey)
	if mnemonic == "" {
		return nil, errors.New("escrow mnemonic must be set")
	}
	return escrow.NewLocalSigner(escrow.NewLocalSignerOpts{
		Mnemonic: mnemonic,
		Network:  net,
	})
}
