package domain

import "time"

// BetType categorizes a bet by the kind of live data that resolves it.
type BetType string

const (
	BetTypeCrypto  BetType = "crypto"
	BetTypeStock   BetType = "stock"
	BetTypeWeather BetType = "weather"
	BetTypeSports  BetType = "sports"
	BetTypeOther   BetType = "other"
)

// BetPosition is the side taken on a market question.
type BetPosition string

const (
	PositionYes BetPosition = "YES"
	PositionNo  BetPosition = "NO"
)

// BetOutcome records how a resolved bet settled.
type BetOutcome string

const (
	OutcomeWon  BetOutcome = "won"
	OutcomeLost BetOutcome = "lost"
)

// Bet is a tracked prediction-market position.
type Bet struct {
	ID            string      `json:"id"`
	Market        string      `json:"market"` // full market question text
	Type          BetType     `json:"type"`
	Position      BetPosition `json:"position"`
	Amount        float64     `json:"amount"` // USD invested
	Shares        float64     `json:"shares"`
	EntryOdds     float64     `json:"entryOdds"` // price per share at entry, 0..1
	Asset         string      `json:"asset"`     // "BTC", "TSLA", "NYC", ...
	Threshold     float64     `json:"threshold"`
	ThresholdUnit string      `json:"thresholdUnit"` // "USD", "F", ...
	ResolveDate   time.Time   `json:"resolveDate"`
	Resolved      bool        `json:"resolved"`
	Outcome       *BetOutcome `json:"outcome,omitempty"`
	CurrentValue  *float64    `json:"currentValue,omitempty"` // latest known share price, refreshed by wallet sync and the broadcast loop
	PnL           *float64    `json:"pnl,omitempty"`
	Category      string      `json:"category,omitempty"`
	DataSource    string      `json:"dataSource"`

	// Polymarket linkage, set when the bet was imported via wallet sync.
	ConditionID string `json:"conditionId,omitempty"`
	Slug        string `json:"slug,omitempty"`
	EventSlug   string `json:"eventSlug,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Distance describes how far the current reading is from the bet threshold,
// signed so that positive means the position is ahead.
type Distance struct {
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

// PnLBreakdown is the live profit-and-loss view of a bet.
type PnLBreakdown struct {
	Invested        float64 `json:"invested"`
	CurrentValue    float64 `json:"currentValue"`
	UnrealizedPnL   float64 `json:"unrealizedPnL"`
	PotentialPayout float64 `json:"potentialPayout"`
	ROI             float64 `json:"roi"`
}

// BetStatus is the computed live state of an unresolved bet.
type BetStatus struct {
	BetID        string       `json:"betId"`
	Asset        string       `json:"asset"`
	CurrentValue float64      `json:"currentValue"` // live reading for the asset
	Threshold    float64      `json:"threshold"`
	Position     BetPosition  `json:"position"`
	Distance     Distance     `json:"distance"`
	IsWinning    bool         `json:"isWinning"`
	Status       string       `json:"status"` // "winning" or "losing"
	PnL          PnLBreakdown `json:"pnl"`
	Stale        bool         `json:"stale,omitempty"`
	Warning      string       `json:"warning,omitempty"`
}
