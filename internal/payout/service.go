package payout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pbx-remit/backend/internal/fx"
	"github.com/pbx-remit/backend/internal/identity"
	"github.com/pbx-remit/backend/internal/ledger"
	"github.com/pbx-remit/backend/internal/notification"
	"github.com/pbx-remit/backend/internal/wallet"
)

// ErrUnknownChannel rejects payout requests for channels not in the catalog.
var ErrUnknownChannel = errors.New("unknown payout channel")

// Delivery channels for PHP payouts. E-wallet rails and cash pickup settle
// instantly in the sandbox; bank rails settle asynchronously via Settle.
var channels = map[string]channelSpec{
	"gcash":       {status: ledger.StatusCompleted},
	"maya":        {status: ledger.StatusCompleted},
	"bank":        {status: ledger.StatusProcessing},
	"pesonet":     {status: ledger.StatusProcessing},
	"cash_pickup": {status: ledger.StatusCompleted, pickupCode: true},
}

type channelSpec struct {
	status     string
	pickupCode bool
}

// Channels lists the supported payout channel names.
func Channels() []string {
	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	return names
}

// Service delivers PHP balances to external payout channels and billers.
type Service struct {
	ledger   ledger.Ledger
	wallets  *wallet.Service
	engine   *fx.Engine
	notifier notification.Notifier
}

// NewService builds a payout service ensuring the channel suspense accounts exist.
func NewService(ctx context.Context, ledgerBackend ledger.Ledger, wallets *wallet.Service, engine *fx.Engine, notifier notification.Notifier) (*Service, error) {
	if notifier == nil {
		notifier = notification.NopNotifier{}
	}
	for name := range channels {
		if err := ledgerBackend.EnsureAccount(ctx, ledger.PayoutChannelAccountCode(name)); err != nil {
			return nil, err
		}
	}
	if err := ledgerBackend.EnsureAccount(ctx, ledger.BillerAccountCode); err != nil {
		return nil, err
	}
	for _, currency := range []string{ledger.CurrencyUSD, ledger.CurrencyPHP} {
		if err := ledgerBackend.EnsureAccount(ctx, ledger.LiquidityAccountCode(currency)); err != nil {
			return nil, err
		}
	}
	return &Service{ledger: ledgerBackend, wallets: wallets, engine: engine, notifier: notifier}, nil
}

// SendInput captures a payout of PHP balance to an external recipient.
type SendInput struct {
	AccountID        identity.AccountID
	Channel          string
	AmountPHP        int64
	RecipientName    string
	RecipientAccount string
	ClientTxID       string
}

// SendResult reports the payout posting and, for cash pickup, the claim code.
type SendResult struct {
	Reference  string
	Status     string
	PHPBalance int64
	PickupCode string
	SentAt     time.Time
}

// Send debits the PHP wallet into the channel's suspense account. Instant
// channels complete immediately; bank rails stay processing until settled.
func (s *Service) Send(ctx context.Context, input SendInput) (SendResult, error) {
	spec, ok := channels[input.Channel]
	if !ok {
		return SendResult{}, fmt.Errorf("%w: %q", ErrUnknownChannel, input.Channel)
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.NewString()
	}
	if err := s.wallets.Open(ctx, input.AccountID); err != nil {
		return SendResult{}, err
	}

	walletCode := ledger.WalletAccountCode(input.AccountID.String(), ledger.CurrencyPHP)
	destination := ledger.PayoutChannelAccountCode(input.Channel)

	res, err := s.ledger.Payout(ctx, walletCode, destination, ledger.KindPayout, input.ClientTxID, ledger.NewReference("out"), input.AmountPHP, spec.status)
	if err != nil {
		return SendResult{Reference: res.Reference, Status: res.Status, PHPBalance: res.FromBalance}, err
	}

	out := SendResult{
		Reference:  res.Reference,
		Status:     res.Status,
		PHPBalance: res.FromBalance,
		SentAt:     time.Now().UTC(),
	}
	if spec.pickupCode {
		out.PickupCode = strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	}

	s.wallets.Stamp(ctx, input.AccountID)
	s.notifier.Notify(ctx, notification.Event{
		Kind:      notification.KindPayoutSent,
		AccountID: input.AccountID.String(),
		Reference: res.Reference,
		Amount:    input.AmountPHP,
		Currency:  ledger.CurrencyPHP,
		Detail:    input.Channel,
	})
	return out, nil
}

// Settle marks a processing payout as completed, standing in for the bank
// rail's settlement callback.
func (s *Service) Settle(ctx context.Context, reference string) error {
	return s.ledger.MarkCompleted(ctx, reference)
}

// PayBillInput captures a PHP bill payment. FromSubWallet draws on the "bills"
// USD envelope, converting just enough to cover the bill.
type PayBillInput struct {
	AccountID     identity.AccountID
	Biller        string
	AccountNumber string
	AmountPHP     int64
	FromSubWallet bool
	ClientTxID    string
}

// PayBillResult reports the bill posting and resulting PHP balance.
type PayBillResult struct {
	Reference  string
	Status     string
	PHPBalance int64
	PaidAt     time.Time
}

// PayBill debits the PHP wallet to the external biller. With FromSubWallet set,
// the service first releases USD from the bills envelope and converts it at the
// current offered rate; any PHP rounding surplus stays in the main wallet.
func (s *Service) PayBill(ctx context.Context, input PayBillInput) (PayBillResult, error) {
	if input.Biller == "" {
		return PayBillResult{}, fmt.Errorf("biller is required")
	}
	if input.AmountPHP <= 0 {
		return PayBillResult{}, fmt.Errorf("amount must be positive")
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.NewString()
	}
	if err := s.wallets.Open(ctx, input.AccountID); err != nil {
		return PayBillResult{}, err
	}

	if input.FromSubWallet {
		if err := s.coverFromBillsEnvelope(ctx, input); err != nil {
			return PayBillResult{}, err
		}
	}

	walletCode := ledger.WalletAccountCode(input.AccountID.String(), ledger.CurrencyPHP)
	res, err := s.ledger.Payout(ctx, walletCode, ledger.BillerAccountCode, ledger.KindBillPay, input.ClientTxID, ledger.NewReference("bill"), input.AmountPHP, ledger.StatusCompleted)
	if err != nil {
		return PayBillResult{Reference: res.Reference, Status: res.Status, PHPBalance: res.FromBalance}, err
	}

	s.wallets.Stamp(ctx, input.AccountID)
	return PayBillResult{
		Reference:  res.Reference,
		Status:     res.Status,
		PHPBalance: res.FromBalance,
		PaidAt:     time.Now().UTC(),
	}, nil
}

// coverFromBillsEnvelope tops up the PHP balance from the bills USD envelope:
// it moves enough USD back to the main wallet and converts it, sized so the
// converted PHP covers the bill. The release and conversion postings derive
// their client tx ids from the bill's, so a replayed bill payment hits the
// ledger's duplicate path instead of draining the envelope again.
func (s *Service) coverFromBillsEnvelope(ctx context.Context, input PayBillInput) error {
	id := input.AccountID.String()
	phpCode := ledger.WalletAccountCode(id, ledger.CurrencyPHP)

	phpBalance, err := s.ledger.Balance(ctx, phpCode)
	if err != nil {
		return err
	}
	shortfall := input.AmountPHP - phpBalance
	if shortfall <= 0 {
		return nil
	}

	probe, err := s.engine.Quote(ctx, 1)
	if err != nil {
		return err
	}
	quote, err := s.engine.Quote(ctx, math.Max(float64(shortfall)/100/probe.MidMarket, 0.01))
	if err != nil {
		return err
	}
	usdCents := int64(math.Ceil(float64(shortfall) / quote.PBXRate))

	subCode := ledger.SubWalletAccountCode(id, "bills")
	usdCode := ledger.WalletAccountCode(id, ledger.CurrencyUSD)
	_, err = s.ledger.Transfer(ctx, subCode, usdCode, ledger.KindSubWalletMove, input.ClientTxID+":release", ledger.NewReference("sub"), usdCents)
	if err != nil && !errors.Is(err, ledger.ErrDuplicateTransaction) {
		return err
	}

	phpOut := int64(math.Round(float64(usdCents) * quote.PBXRate))
	_, err = s.ledger.Convert(ctx, ledger.ConversionPosting{
		FromWallet:    usdCode,
		ToWallet:      phpCode,
		FromLiquidity: ledger.LiquidityAccountCode(ledger.CurrencyUSD),
		ToLiquidity:   ledger.LiquidityAccountCode(ledger.CurrencyPHP),
		ClientTxID:    input.ClientTxID + ":convert",
		Reference:     ledger.NewReference("conv"),
		FromAmount:    usdCents,
		ToAmount:      phpOut,
		Rate:          quote.PBXRate,
	})
	if err != nil && !errors.Is(err, ledger.ErrDuplicateTransaction) {
		return err
	}
	return nil
}
