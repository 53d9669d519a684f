package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma
// API responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexStrings unmarshals from a JSON array of strings or from a
// JSON-encoded string holding such an array, e.g. "[\"Yes\",\"No\"]".
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*f = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = nil
		return nil
	}
	return json.Unmarshal([]byte(s), (*[]string)(f))
}

// flexFloat unmarshals from a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// APIMarket is a market as returned by the Gamma API.
type APIMarket struct {
	ID            string      `json:"id"`
	Question      string      `json:"question"`
	ConditionID   string      `json:"conditionId"`
	Slug          string      `json:"slug"`
	Outcomes      flexStrings `json:"outcomes"`
	OutcomePrices flexStrings `json:"outcomePrices"`
	Volume        flexFloat   `json:"volume"`
	Liquidity     flexFloat   `json:"liquidity"`
	EndDate       string      `json:"endDate"`
	Active        flexBool    `json:"active"`
	Closed        flexBool    `json:"closed"`
	Events        []struct {
		Slug string `json:"slug"`
	} `json:"events"`
}

// ToPredictionMarket converts the API shape to the domain market.
func (m *APIMarket) ToPredictionMarket() domain.PredictionMarket {
	prices := make([]float64, 0, len(m.OutcomePrices))
	for _, p := range m.OutcomePrices {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			v = 0
		}
		prices = append(prices, v)
	}

	pm := domain.PredictionMarket{
		ID:            m.ID,
		ConditionID:   m.ConditionID,
		Question:      m.Question,
		Slug:          m.Slug,
		Outcomes:      []string(m.Outcomes),
		OutcomePrices: prices,
		Volume:        float64(m.Volume),
		Liquidity:     float64(m.Liquidity),
		Active:        bool(m.Active),
		Closed:        bool(m.Closed),
	}
	if len(m.Events) > 0 {
		pm.EventSlug = m.Events[0].Slug
	}
	if t, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
		pm.EndDate = t
	}
	return pm
}

// APIPosition is a wallet position as returned by the data API.
type APIPosition struct {
	ConditionID  string  `json:"conditionId"`
	Title        string  `json:"title"`
	Outcome      string  `json:"outcome"`
	Size         float64 `json:"size"`
	AvgPrice     float64 `json:"avgPrice"`
	CurPrice     float64 `json:"curPrice"`
	InitialValue float64 `json:"initialValue"`
	CurrentValue float64 `json:"currentValue"`
	CashPnL      float64 `json:"cashPnl"`
	Redeemable   bool    `json:"redeemable"`
	Slug         string  `json:"slug"`
	EventSlug    string  `json:"eventSlug"`
	EndDate      string  `json:"endDate"`
}

// ToWalletPosition converts the API shape to the domain position.
func (p *APIPosition) ToWalletPosition() domain.WalletPosition {
	wp := domain.WalletPosition{
		ConditionID:  p.ConditionID,
		Title:        p.Title,
		Outcome:      p.Outcome,
		Size:         p.Size,
		AvgPrice:     p.AvgPrice,
		CurrentPrice: p.CurPrice,
		InitialValue: p.InitialValue,
		CurrentValue: p.CurrentValue,
		CashPnL:      p.CashPnL,
		Redeemable:   p.Redeemable,
		Slug:         p.Slug,
		EventSlug:    p.EventSlug,
	}
	if t, err := time.Parse(time.RFC3339, p.EndDate); err == nil {
		wp.EndDate = t
	}
	return wp
}
