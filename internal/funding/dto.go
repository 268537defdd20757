package funding

// FundRequest captures user-provided data to fund a wallet from a linked bank account.
type FundRequest struct {
	AmountUSD      int64  `json:"amount_usd_cents" validate:"required,gt=0"`
	ProcessorToken string `json:"processor_token"`
	ClientTxID     string `json:"client_tx_id"`
}

// FundResponse represents the API response for funding actions.
type FundResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	AmountUSD     int64  `json:"amount_usd_cents"`
	Currency      string `json:"currency"`
	USDBalance    int64  `json:"usd_balance"`
	BankReference string `json:"bank_reference"`
}
