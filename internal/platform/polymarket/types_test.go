package polymarket

import (
	"encoding/json"
	"testing"
)

func TestAPIMarketDecodeStringEncodedFields(t *testing.T) {
	raw := `{
		"id": "12345",
		"question": "Will Bitcoin hit $110k before Feb 1?",
		"conditionId": "0xabc",
		"slug": "will-bitcoin-hit-110k",
		"outcomes": "[\"Yes\",\"No\"]",
		"outcomePrices": "[\"0.62\",\"0.38\"]",
		"volume": "150000.5",
		"liquidity": "12000",
		"endDate": "2026-02-01T00:00:00Z",
		"active": "true",
		"closed": false,
		"events": [{"slug": "bitcoin-feb"}]
	}`

	var m APIMarket
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	pm := m.ToPredictionMarket()
	if pm.ConditionID != "0xabc" || pm.EventSlug != "bitcoin-feb" {
		t.Errorf("ids = %q/%q", pm.ConditionID, pm.EventSlug)
	}
	if len(pm.Outcomes) != 2 || pm.Outcomes[0] != "Yes" {
		t.Errorf("outcomes = %v", pm.Outcomes)
	}
	if len(pm.OutcomePrices) != 2 || pm.OutcomePrices[0] != 0.62 {
		t.Errorf("prices = %v", pm.OutcomePrices)
	}
	if pm.Volume != 150000.5 || pm.Liquidity != 12000 {
		t.Errorf("volume/liquidity = %v/%v", pm.Volume, pm.Liquidity)
	}
	if !pm.Active || pm.Closed {
		t.Errorf("active/closed = %v/%v", pm.Active, pm.Closed)
	}
	if pm.EndDate.IsZero() {
		t.Error("endDate not parsed")
	}
}

func TestAPIMarketDecodeNativeFields(t *testing.T) {
	raw := `{"id":"1","outcomes":["Yes","No"],"volume":5,"active":true}`

	var m APIMarket
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	pm := m.ToPredictionMarket()
	if len(pm.Outcomes) != 2 || pm.Volume != 5 || !pm.Active {
		t.Errorf("decoded = %+v", pm)
	}
}

func TestExtractSlugFromURL(t *testing.T) {
	slug, err := ExtractSlugFromURL("https://polymarket.com/event/will-bitcoin-hit-110000-before-feb-1")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if slug != "will-bitcoin-hit-110000-before-feb-1" {
		t.Errorf("slug = %q", slug)
	}

	if _, err := ExtractSlugFromURL("https://polymarket.com/"); err == nil {
		t.Error("expected error for url without slug")
	}
}
