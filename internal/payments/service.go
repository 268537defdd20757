package payments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/pbx-remit/backend/internal/fx"
	"github.com/pbx-remit/backend/internal/identity"
	"github.com/pbx-remit/backend/internal/ledger"
	"github.com/pbx-remit/backend/internal/notification"
	"github.com/pbx-remit/backend/internal/wallet"
)

var (
	// ErrUnsupportedPair rejects conversions outside the supported currency pairs.
	ErrUnsupportedPair = errors.New("unsupported currency pair")
	// ErrSelfTransfer rejects transfers where sender and recipient are the same account.
	ErrSelfTransfer = errors.New("cannot transfer to the same account")
)

// Service handles wallet-to-wallet transfers and currency conversions.
type Service struct {
	ledger   ledger.Ledger
	wallets  *wallet.Service
	engine   *fx.Engine
	locks    *fx.LockService
	resolver identity.Resolver
	notifier notification.Notifier
}

// NewService builds a payments service ensuring the liquidity accounts exist.
func NewService(ctx context.Context, ledgerBackend ledger.Ledger, wallets *wallet.Service, engine *fx.Engine, locks *fx.LockService, resolver identity.Resolver, notifier notification.Notifier) (*Service, error) {
	if resolver == nil {
		resolver = identity.TokenResolver{}
	}
	if notifier == nil {
		notifier = notification.NopNotifier{}
	}
	for _, currency := range []string{ledger.CurrencyUSD, ledger.CurrencyPHP, ledger.CurrencyUSDC} {
		if err := ledgerBackend.EnsureAccount(ctx, ledger.LiquidityAccountCode(currency)); err != nil {
			return nil, err
		}
	}
	return &Service{
		ledger:   ledgerBackend,
		wallets:  wallets,
		engine:   engine,
		locks:    locks,
		resolver: resolver,
		notifier: notifier,
	}, nil
}

// TransferInput captures a wallet-to-wallet transfer. Recipient is an opaque
// token resolved to an account id; Currency selects which balance moves.
type TransferInput struct {
	Sender     identity.AccountID
	Recipient  string
	Currency   string
	Amount     int64
	Note       string
	ClientTxID string
}

// TransferResult reports the posting outcome.
type TransferResult struct {
	Reference     string
	Status        string
	Recipient     identity.AccountID
	SenderBalance int64
}

// Transfer moves funds between two wallets in the same currency.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	if !validCurrency(input.Currency) {
		return TransferResult{}, fmt.Errorf("unsupported currency %q", input.Currency)
	}
	recipient := s.resolver.Resolve(input.Recipient)
	if recipient == input.Sender {
		return TransferResult{}, ErrSelfTransfer
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.NewString()
	}

	if err := s.wallets.Open(ctx, input.Sender); err != nil {
		return TransferResult{}, err
	}
	if err := s.wallets.Open(ctx, recipient); err != nil {
		return TransferResult{}, err
	}

	from := ledger.WalletAccountCode(input.Sender.String(), input.Currency)
	to := ledger.WalletAccountCode(recipient.String(), input.Currency)

	res, err := s.ledger.Transfer(ctx, from, to, ledger.KindInternalTransfer, input.ClientTxID, ledger.NewReference("xfer"), input.Amount)
	if err != nil {
		return TransferResult{Reference: res.Reference, Status: res.Status, Recipient: recipient, SenderBalance: res.FromBalance}, err
	}

	s.wallets.Stamp(ctx, input.Sender)
	s.wallets.Stamp(ctx, recipient)
	s.notifier.Notify(ctx, notification.Event{
		Kind:      notification.KindTransferReceived,
		AccountID: recipient.String(),
		Reference: res.Reference,
		Amount:    input.Amount,
		Currency:  input.Currency,
		Detail:    input.Note,
	})

	return TransferResult{Reference: res.Reference, Status: res.Status, Recipient: recipient, SenderBalance: res.FromBalance}, nil
}

// ConvertInput captures an in-wallet currency conversion. LockID optionally
// redeems a held rate instead of quoting fresh.
type ConvertInput struct {
	AccountID    identity.AccountID
	FromCurrency string
	ToCurrency   string
	FromAmount   int64
	LockID       string
	ClientTxID   string
}

// ConvertResult reports the conversion outcome.
type ConvertResult struct {
	Reference   string
	Status      string
	FromAmount  int64
	ToAmount    int64
	Rate        float64
	FromBalance int64
	ToBalance   int64
	ConvertedAt time.Time
}

// Convert exchanges between two of the account's currency balances. USD<->PHP
// prices off the quote engine (or a redeemed rate lock); USD<->USDC is pegged
// one-to-one.
func (s *Service) Convert(ctx context.Context, input ConvertInput) (ConvertResult, error) {
	if input.FromAmount <= 0 {
		return ConvertResult{}, fmt.Errorf("amount must be positive")
	}
	if !validCurrency(input.FromCurrency) || !validCurrency(input.ToCurrency) || input.FromCurrency == input.ToCurrency {
		return ConvertResult{}, ErrUnsupportedPair
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.NewString()
	}

	rate, err := s.conversionRate(ctx, input)
	if err != nil {
		return ConvertResult{}, err
	}

	if err := s.wallets.Open(ctx, input.AccountID); err != nil {
		return ConvertResult{}, err
	}

	id := input.AccountID.String()
	toAmount := int64(math.Round(float64(input.FromAmount) * rate))
	if toAmount <= 0 {
		return ConvertResult{}, fmt.Errorf("amount too small to convert")
	}

	res, err := s.ledger.Convert(ctx, ledger.ConversionPosting{
		FromWallet:    ledger.WalletAccountCode(id, input.FromCurrency),
		ToWallet:      ledger.WalletAccountCode(id, input.ToCurrency),
		FromLiquidity: ledger.LiquidityAccountCode(input.FromCurrency),
		ToLiquidity:   ledger.LiquidityAccountCode(input.ToCurrency),
		ClientTxID:    input.ClientTxID,
		Reference:     ledger.NewReference("conv"),
		FromAmount:    input.FromAmount,
		ToAmount:      toAmount,
		Rate:          rate,
	})
	out := ConvertResult{
		Reference:   res.Reference,
		Status:      res.Status,
		FromAmount:  input.FromAmount,
		ToAmount:    toAmount,
		Rate:        rate,
		FromBalance: res.FromBalance,
		ToBalance:   res.ToBalance,
		ConvertedAt: time.Now().UTC(),
	}
	if err != nil {
		return out, err
	}

	s.wallets.Stamp(ctx, input.AccountID)
	return out, nil
}

// conversionRate prices the pair. A redeemed lock fixes the USD->PHP rate; the
// PHP->USD rate is the reciprocal of the offered USD->PHP rate for the
// equivalent USD value.
func (s *Service) conversionRate(ctx context.Context, input ConvertInput) (float64, error) {
	from, to := input.FromCurrency, input.ToCurrency

	switch {
	case isStablePair(from, to):
		if input.LockID != "" {
			return 0, fmt.Errorf("rate locks apply only to USD to PHP conversions")
		}
		return 1.0, nil

	case from == ledger.CurrencyUSD && to == ledger.CurrencyPHP:
		if input.LockID != "" {
			lock, err := s.locks.Redeem(ctx, input.LockID, input.AccountID.String())
			if err != nil {
				return 0, err
			}
			return lock.Rate, nil
		}
		quote, err := s.engine.Quote(ctx, float64(input.FromAmount)/100)
		if err != nil {
			return 0, err
		}
		return quote.PBXRate, nil

	case from == ledger.CurrencyPHP && to == ledger.CurrencyUSD:
		if input.LockID != "" {
			return 0, fmt.Errorf("rate locks apply only to USD to PHP conversions")
		}
		// Size the spread tier by the USD value of the PHP amount.
		probe, err := s.engine.Quote(ctx, 1)
		if err != nil {
			return 0, err
		}
		usdValue := float64(input.FromAmount) / 100 / probe.MidMarket
		quote, err := s.engine.Quote(ctx, math.Max(usdValue, 0.01))
		if err != nil {
			return 0, err
		}
		return 1 / quote.PBXRate, nil

	default:
		return 0, ErrUnsupportedPair
	}
}

func isStablePair(from, to string) bool {
	return (from == ledger.CurrencyUSD && to == ledger.CurrencyUSDC) ||
		(from == ledger.CurrencyUSDC && to == ledger.CurrencyUSD)
}

func validCurrency(currency string) bool {
	switch currency {
	case ledger.CurrencyUSD, ledger.CurrencyPHP, ledger.CurrencyUSDC:
		return true
	}
	return false
}
