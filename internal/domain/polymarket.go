package domain

import "time"

// PredictionMarket is a Polymarket market as seen through the Gamma API.
type PredictionMarket struct {
	ID            string    `json:"id"`
	ConditionID   string    `json:"conditionId"`
	Question      string    `json:"question"`
	Slug          string    `json:"slug"`
	EventSlug     string    `json:"eventSlug,omitempty"`
	Outcomes      []string  `json:"outcomes"`
	OutcomePrices []float64 `json:"outcomePrices"`
	Volume        float64   `json:"volume"`
	Liquidity     float64   `json:"liquidity"`
	EndDate       time.Time `json:"endDate"`
	Active        bool      `json:"active"`
	Closed        bool      `json:"closed"`
}

// WalletPosition is an on-chain position reported by the Polymarket
// data API for a wallet address.
type WalletPosition struct {
	ConditionID  string    `json:"conditionId"`
	Title        string    `json:"title"`
	Outcome      string    `json:"outcome"` // "Yes" or "No"
	Size         float64   `json:"size"`    // shares held
	AvgPrice     float64   `json:"avgPrice"`
	CurrentPrice float64   `json:"curPrice"`
	InitialValue float64   `json:"initialValue"`
	CurrentValue float64   `json:"currentValue"`
	CashPnL      float64   `json:"cashPnl"`
	Redeemable   bool      `json:"redeemable"`
	Slug         string    `json:"slug"`
	EventSlug    string    `json:"eventSlug"`
	EndDate      time.Time `json:"endDate"`
}
