// Package relay holds the service's own chain account and submits transactions for users
// who never pay fees themselves.
package relay

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/chain"
	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
	"github.com/RIKUY-ORG/Rikuy/pkg/logger"
	"github.com/RIKUY-ORG/Rikuy/pkg/rabbitmq"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type BalanceStatus struct {
	Balance    *big.Int
	IsLow      bool
	IsCritical bool
	CheckedAt  time.Time
}

type SubmitResult struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	GasCost     *big.Int
	// Pending is set when confirmation did not arrive within the timeout.
	Pending bool
	Receipt *types.Receipt
}

type CostEstimate struct {
	Gas      uint64
	GasPrice *big.Int
	Cost     *big.Int
}

type Signer struct {
	backend ChainBackend
	key     *ecdsa.PrivateKey
	address common.Address
	chainId *big.Int
	cfg     Config
	alerts  rabbitmq.IRabbitmqPublisher
	log     *logger.Logger

	// mu serializes nonce allocation and broadcast for the operating account
	mu         sync.Mutex
	nonce      uint64
	nonceKnown bool

	balanceMu sync.RWMutex
	last      *BalanceStatus

	background sync.WaitGroup
}

func NewSigner(backend ChainBackend, privateKeyHex string, chainId *big.Int, cfg Config, alerts rabbitmq.IRabbitmqPublisher, log *logger.Logger) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid relayer private key")
	}
	if chainId == nil || chainId.Sign() <= 0 {
		return nil, fmt.Errorf("chain id required")
	}
	if alerts == nil {
		alerts = rabbitmq.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Signer{
		backend: backend,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainId: chainId,
		cfg:     cfg.withDefaults(),
		alerts:  alerts,
		log:     log.Named("relay"),
	}, nil
}

func (s *Signer) Address() common.Address { return s.address }

func (s *Signer) Thresholds() (min, critical *big.Int) {
	return new(big.Int).Set(s.cfg.MinBalance), new(big.Int).Set(s.cfg.CriticalBalance)
}

// CheckBalance reads the balance with retries and records the reading.
func (s *Signer) CheckBalance(ctx context.Context) (BalanceStatus, error) {
	balance, err := s.readBalance(ctx)
	if err != nil {
		s.log.Error(err, "Could not read relayer balance")
		return BalanceStatus{}, apperror.ExternalService("blockchain", err)
	}

	status := BalanceStatus{
		Balance:    balance,
		IsLow:      balance.Cmp(s.cfg.MinBalance) < 0,
		IsCritical: balance.Cmp(s.cfg.CriticalBalance) < 0,
		CheckedAt:  time.Now().UTC(),
	}

	s.balanceMu.Lock()
	s.last = &status
	s.balanceMu.Unlock()

	fields := map[string]any{
		"address":    s.address.Hex(),
		"balanceWei": balance.String(),
	}
	switch {
	case status.IsCritical:
		s.log.Fields(fields).Error(errors.New("balance below critical threshold"), "Relayer balance CRITICAL, submissions are blocked")
		s.publishAlert(AlertCritical, balance, s.cfg.CriticalBalance)
	case status.IsLow:
		s.log.Fields(fields).Warn("Relayer balance low")
		s.publishAlert(AlertLow, balance, s.cfg.MinBalance)
	}

	return status, nil
}

func (s *Signer) readBalance(ctx context.Context) (*big.Int, error) {
	var err error
	wait := s.cfg.BalanceRetryWait
	for i := 0; i < balanceReadAttempts; i++ {
		var balance *big.Int
		balance, err = s.backend.BalanceAt(ctx, s.address, nil)
		if err == nil {
			return balance, nil
		}
		if i == balanceReadAttempts-1 {
			break
		}
		s.log.Warnf("Balance read attempt %d failed: %v. Retrying in %v...", i+1, err, wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return nil, err
}

func (s *Signer) publishAlert(level AlertLevel, balance, threshold *big.Int) {
	err := s.alerts.Publish(BalanceAlert{
		Level:     level,
		Address:   s.address.Hex(),
		ChainId:   s.chainId.String(),
		Balance:   balance.String(),
		Threshold: threshold.String(),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		s.log.Error(err, "Could not publish balance alert")
	}
}

// EnsureSufficientBalance fails with InsufficientFunds when the balance is critical.
func (s *Signer) EnsureSufficientBalance(ctx context.Context) error {
	status, err := s.CheckBalance(ctx)
	if err != nil {
		return err
	}
	if status.IsCritical {
		return apperror.InsufficientFunds(nil)
	}
	return nil
}

func (s *Signer) LastBalance() (BalanceStatus, bool) {
	s.balanceMu.RLock()
	defer s.balanceMu.RUnlock()
	if s.last == nil {
		return BalanceStatus{}, false
	}
	return *s.last, true
}

// EstimateCost returns buffered gas times the suggested price for intent.
func (s *Signer) EstimateCost(ctx context.Context, intent chain.Intent) (CostEstimate, error) {
	gas, err := s.estimateGas(ctx, intent)
	if err != nil {
		return CostEstimate{}, mapChainError(err)
	}
	price, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return CostEstimate{}, mapChainError(err)
	}
	return CostEstimate{
		Gas:      gas,
		GasPrice: price,
		Cost:     new(big.Int).Mul(price, new(big.Int).SetUint64(gas)),
	}, nil
}

func (s *Signer) estimateGas(ctx context.Context, intent chain.Intent) (uint64, error) {
	to := intent.To
	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.address,
		To:    &to,
		Value: intent.Value,
		Data:  intent.Data,
	})
	if err != nil {
		return 0, err
	}
	return gas * (100 + gasBufferPercent) / 100, nil
}

// Submit signs intent, broadcasts it and waits for confirmation. A confirmation timeout is
// not an error: the result comes back with Pending set.
func (s *Signer) Submit(ctx context.Context, intent chain.Intent) (*SubmitResult, error) {
	if err := s.EnsureSufficientBalance(ctx); err != nil {
		return nil, err
	}

	signed, err := s.signAndSend(ctx, intent)
	if err != nil {
		s.log.Errorf(err, "Relay of %s failed", intent.Label)
		return nil, mapChainError(err)
	}
	s.log.Infof("Relayed %s in tx %s", intent.Label, signed.Hash().Hex())

	result, err := s.waitForReceipt(ctx, signed)
	if err != nil {
		return nil, err
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		bctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, _ = s.CheckBalance(bctx)
	}()

	return result, nil
}

func (s *Signer) signAndSend(ctx context.Context, intent chain.Intent) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gas, err := s.estimateGas(ctx, intent)
	if err != nil {
		return nil, err
	}
	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	if !s.nonceKnown {
		if err := s.syncNonce(ctx); err != nil {
			return nil, err
		}
	}

	signed, err := s.send(ctx, intent, gas, gasPrice)
	if err != nil && isNonceConflict(err) {
		s.log.Warnf("Nonce conflict at %d, resyncing: %v", s.nonce, err)
		if err := s.syncNonce(ctx); err != nil {
			return nil, err
		}
		signed, err = s.send(ctx, intent, gas, gasPrice)
	}
	if err != nil {
		s.nonceKnown = false
		return nil, err
	}

	s.nonce++
	return signed, nil
}

func (s *Signer) syncNonce(ctx context.Context) error {
	nonce, err := s.backend.PendingNonceAt(ctx, s.address)
	if err != nil {
		return err
	}
	s.nonce = nonce
	s.nonceKnown = true
	return nil
}

func (s *Signer) send(ctx context.Context, intent chain.Intent, gas uint64, gasPrice *big.Int) (*types.Transaction, error) {
	to := intent.To
	value := intent.Value
	if value == nil {
		value = new(big.Int)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    s.nonce,
		To:       &to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     intent.Data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainId), s.key)
	if err != nil {
		return nil, err
	}
	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		if isAlreadyKnown(err) {
			s.log.Warnf("Transaction %s already in the node pool", signed.Hash().Hex())
			return signed, nil
		}
		return nil, err
	}
	return signed, nil
}

func (s *Signer) waitForReceipt(ctx context.Context, tx *types.Transaction) (*SubmitResult, error) {
	wctx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmationTimeout)
	defer cancel()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.backend.TransactionReceipt(wctx, tx.Hash())
		if err == nil && receipt != nil {
			return s.resultFromReceipt(tx, receipt)
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			s.log.Debugf("Receipt lookup for %s failed: %v", tx.Hash().Hex(), err)
		}

		select {
		case <-wctx.Done():
			s.log.Warnf("Transaction %s not confirmed after %v, reporting as pending", tx.Hash().Hex(), s.cfg.ConfirmationTimeout)
			return &SubmitResult{TxHash: tx.Hash().Hex(), Pending: true}, nil
		case <-ticker.C:
		}
	}
}

func (s *Signer) resultFromReceipt(tx *types.Transaction, receipt *types.Receipt) (*SubmitResult, error) {
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, apperror.TransactionFailed(fmt.Errorf("transaction %s reverted", tx.Hash().Hex()))
	}

	price := receipt.EffectiveGasPrice
	if price == nil {
		price = tx.GasPrice()
	}
	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}

	return &SubmitResult{
		TxHash:      tx.Hash().Hex(),
		BlockNumber: block,
		GasUsed:     receipt.GasUsed,
		GasCost:     new(big.Int).Mul(price, new(big.Int).SetUint64(receipt.GasUsed)),
		Receipt:     receipt,
	}, nil
}

// IsConfirmed is best effort: any lookup failure reads as not confirmed.
func (s *Signer) IsConfirmed(ctx context.Context, txHash string) bool {
	receipt, err := s.backend.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil || receipt == nil {
		return false
	}
	return receipt.Status == types.ReceiptStatusSuccessful
}

// Wait blocks until background balance checks finish.
func (s *Signer) Wait() {
	s.background.Wait()
}
