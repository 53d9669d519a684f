package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

var parseNow = time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)

func TestParseCrypto(t *testing.T) {
	got, err := Parse("Will Bitcoin hit $110k before Feb 1?", parseNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Type != domain.BetTypeCrypto || got.Asset != "BTC" {
		t.Errorf("type/asset = %s/%s", got.Type, got.Asset)
	}
	if got.Threshold != 110_000 {
		t.Errorf("threshold = %v, want 110000", got.Threshold)
	}
	if got.Position != domain.PositionYes {
		t.Errorf("position = %s, want YES", got.Position)
	}
	if got.ResolveDate.Month() != time.February || got.ResolveDate.Day() != 1 {
		t.Errorf("resolveDate = %v", got.ResolveDate)
	}
	if got.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %s", got.Confidence)
	}
}

func TestParseStock(t *testing.T) {
	got, err := Parse("TSLA above $400 by March 15, 2026", parseNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Type != domain.BetTypeStock || got.Asset != "TSLA" {
		t.Errorf("type/asset = %s/%s", got.Type, got.Asset)
	}
	if got.Threshold != 400 {
		t.Errorf("threshold = %v", got.Threshold)
	}
	if got.ResolveDate.Year() != 2026 || got.ResolveDate.Month() != time.March {
		t.Errorf("resolveDate = %v", got.ResolveDate)
	}
}

func TestParseWeather(t *testing.T) {
	got, err := Parse("Will the temperature in New York stay under 90F on July 4?", parseNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Type != domain.BetTypeWeather {
		t.Errorf("type = %s", got.Type)
	}
	if got.Asset != "NYC" {
		t.Errorf("asset = %s, want NYC", got.Asset)
	}
	if got.Threshold != 90 {
		t.Errorf("threshold = %v", got.Threshold)
	}
	if got.ThresholdUnit != "F" {
		t.Errorf("unit = %s", got.ThresholdUnit)
	}
	if got.Position != domain.PositionNo {
		t.Errorf("position = %s, want NO (under)", got.Position)
	}
}

func TestParseNoPosition(t *testing.T) {
	got, err := Parse("Ethereum below $3,000 - 6/30/2026", parseNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Asset != "ETH" || got.Position != domain.PositionNo {
		t.Errorf("asset/position = %s/%s", got.Asset, got.Position)
	}
	if got.Threshold != 3000 {
		t.Errorf("threshold = %v", got.Threshold)
	}
	if got.ResolveDate.Month() != time.June || got.ResolveDate.Day() != 30 {
		t.Errorf("resolveDate = %v", got.ResolveDate)
	}
}

func TestParseDefaultsResolveDate(t *testing.T) {
	got, err := Parse("Solana $500", parseNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := parseNow.AddDate(0, 1, 0)
	if !got.ResolveDate.Equal(want) {
		t.Errorf("resolveDate = %v, want %v", got.ResolveDate, want)
	}
}

func TestParseUnrecognized(t *testing.T) {
	_, err := Parse("Will it happen?", parseNow)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupportedCrypto("btc") || IsSupportedCrypto("SHIB") {
		t.Error("crypto support table mismatch")
	}
	if !IsSupportedStock("aapl") || IsSupportedStock("ZZZZ") {
		t.Error("stock support table mismatch")
	}
}

func TestNormalizeSymbol(t *testing.T) {
	if got := NormalizeSymbol("bitcoin"); got != "BTC" {
		t.Errorf("NormalizeSymbol(bitcoin) = %s", got)
	}
	if got := NormalizeSymbol("tsla"); got != "TSLA" {
		t.Errorf("NormalizeSymbol(tsla) = %s", got)
	}
}
