// Package parser extracts structured bet fields from free-form market
// question text, e.g. "Will Bitcoin hit $110k before Feb 1?".
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

// Confidence grades how sure the parser is about its extraction.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParsedBet is the structured interpretation of a market question.
type ParsedBet struct {
	Type          domain.BetType     `json:"type"`
	Asset         string             `json:"asset"`
	Threshold     float64            `json:"threshold"`
	ThresholdUnit string             `json:"thresholdUnit"`
	Position      domain.BetPosition `json:"position"`
	ResolveDate   time.Time          `json:"resolveDate"`
	Confidence    Confidence         `json:"confidence"`
}

// cryptoKeywords maps names and tickers found in question text to the
// canonical symbol.
var cryptoKeywords = map[string]string{
	"bitcoin": "BTC", "btc": "BTC",
	"ethereum": "ETH", "eth": "ETH",
	"solana": "SOL", "sol": "SOL",
	"polygon": "MATIC", "matic": "MATIC",
	"dogecoin": "DOGE", "doge": "DOGE",
	"cardano": "ADA", "ada": "ADA",
	"chainlink": "LINK", "link": "LINK",
	"avalanche": "AVAX", "avax": "AVAX",
	"polkadot": "DOT", "dot": "DOT",
	"ripple": "XRP", "xrp": "XRP",
}

// cryptoOrder fixes the scan order so longer names win over short
// tickers embedded in other words.
var cryptoOrder = []string{
	"bitcoin", "btc", "ethereum", "eth", "solana", "sol",
	"polygon", "matic", "dogecoin", "doge", "cardano", "ada",
	"chainlink", "link", "avalanche", "avax", "polkadot", "dot",
	"ripple", "xrp",
}

var stockSymbols = []string{
	"GOOGL", "GOOG", "AAPL", "TSLA", "NVDA", "MSFT", "AMZN", "META",
	"NFLX", "AMD", "INTC", "COIN", "PYPL", "SQ", "SHOP", "UBER",
	"LYFT", "ABNB", "SNAP", "TWTR", "PINS", "ROKU", "ZM", "DOCU",
	"CRM", "ORCL", "IBM", "CSCO", "ADBE", "NOW", "SNOW", "PLTR",
	"SPY", "QQQ", "DIA", "IWM", "VTI", "VOO",
}

var cityNames = []string{
	"new york", "nyc", "los angeles", "la", "chicago", "miami",
	"houston", "phoenix", "philadelphia", "san antonio", "san diego",
	"dallas", "san jose", "austin", "jacksonville", "fort worth",
	"columbus", "charlotte", "san francisco", "sf", "indianapolis",
	"seattle", "denver", "washington", "dc", "boston", "nashville",
	"detroit", "portland", "las vegas", "vegas", "atlanta",
}

// cityAliases collapses long city names onto their common short form.
var cityAliases = map[string]string{
	"NEW_YORK":      "NYC",
	"LOS_ANGELES":   "LA",
	"SAN_FRANCISCO": "SF",
}

var weatherKeywords = []string{
	"temperature", "temp", "weather", "°f", "°c", "fahrenheit", "celsius",
}

var sportsKeywords = []string{
	"lakers", "warriors", "celtics", "bulls", "heat", "nets",
	"knicks", "suns", "bucks", "sixers", "mavericks", "clippers",
	"nba", "nfl", "mlb", "nhl", "beat", "win", "score",
}

var noKeywords = []string{
	"below", "under", "less than", "won't", "will not", "fail",
}

// Threshold patterns, tried in order. The k-suffix forms come first so
// "$110k" is not read as 110 dollars.
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$\s*([\d,]+(?:\.\d+)?)\s*[kK]`),
	regexp.MustCompile(`\$\s*([\d,]+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)([\d,]+(?:\.\d+)?)\s*[kK]\s*(?:dollars?|usd)?`),
	regexp.MustCompile(`([\d,]+(?:\.\d+)?)\s*°?\s*[fF]`),
	regexp.MustCompile(`(?i)([\d,]+(?:\.\d+)?)\s*(?:dollars?|usd)`),
}

// Date patterns, tried in order; the first regex that matches decides,
// even when its word turns out not to be a month name.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:before|by|on)\s+(\w+)\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s*(\d{4}))?`),
	regexp.MustCompile(`(?i)(\w+)\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s*(\d{4}))?`),
	regexp.MustCompile(`(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?`),
}

var months = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

var wordBoundaryCache = buildStockPatterns()

func buildStockPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(stockSymbols))
	for _, sym := range stockSymbols {
		patterns[sym] = regexp.MustCompile(`(?i)\b` + sym + `\b`)
	}
	return patterns
}

// Parse interprets market question text relative to now. It returns
// ErrValidation wrapped with detail when the text does not yield a
// type, asset and threshold.
func Parse(market string, now time.Time) (ParsedBet, error) {
	lower := strings.ToLower(market)

	parsed := ParsedBet{
		ThresholdUnit: "USD",
		Position:      domain.PositionYes,
		ResolveDate:   now.AddDate(0, 1, 0),
		Confidence:    ConfidenceLow,
	}

	for _, keyword := range cryptoOrder {
		if strings.Contains(lower, keyword) {
			parsed.Type = domain.BetTypeCrypto
			parsed.Asset = cryptoKeywords[keyword]
			parsed.Confidence = ConfidenceHigh
			break
		}
	}

	if parsed.Type == "" {
		for _, sym := range stockSymbols {
			if wordBoundaryCache[sym].MatchString(market) {
				parsed.Type = domain.BetTypeStock
				parsed.Asset = sym
				parsed.Confidence = ConfidenceHigh
				break
			}
		}
	}

	if parsed.Type == "" && containsAny(lower, weatherKeywords) {
		parsed.Type = domain.BetTypeWeather
		parsed.ThresholdUnit = "F"
		for _, city := range cityNames {
			if strings.Contains(lower, city) {
				asset := strings.ReplaceAll(strings.ToUpper(city), " ", "_")
				if short, ok := cityAliases[asset]; ok {
					asset = short
				}
				parsed.Asset = asset
				parsed.Confidence = ConfidenceHigh
				break
			}
		}
	}

	if parsed.Type == "" && containsAny(lower, sportsKeywords) {
		parsed.Type = domain.BetTypeSports
		parsed.Confidence = ConfidenceMedium
	}

	threshold, ok := extractThreshold(market)
	parsed.Threshold = threshold

	if date, ok := extractDate(market, now); ok {
		parsed.ResolveDate = date
	}

	if containsAny(lower, noKeywords) {
		parsed.Position = domain.PositionNo
	}

	if parsed.Type == "" || parsed.Asset == "" || !ok {
		return ParsedBet{}, fmt.Errorf("parser: could not extract bet from %q: %w", market, domain.ErrValidation)
	}
	return parsed, nil
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func extractThreshold(market string) (float64, bool) {
	for _, pattern := range pricePatterns {
		match := pattern.FindStringSubmatch(market)
		if match == nil {
			continue
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
		if err != nil {
			continue
		}
		if strings.ContainsAny(match[0], "kK") {
			value *= 1000
		}
		return value, true
	}
	return 0, false
}

func extractDate(market string, now time.Time) (time.Time, bool) {
	for _, pattern := range datePatterns {
		match := pattern.FindStringSubmatch(market)
		if match == nil {
			continue
		}

		year := now.Year()
		if match[3] != "" {
			year, _ = strconv.Atoi(match[3])
			if year < 100 {
				year += 2000
			}
		}

		if month, ok := months[strings.ToLower(match[1])]; ok {
			day, _ := strconv.Atoi(match[2])
			return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
		}
		if m, err := strconv.Atoi(match[1]); err == nil && m >= 1 && m <= 12 {
			day, _ := strconv.Atoi(match[2])
			return time.Date(year, time.Month(m), day, 0, 0, 0, 0, time.UTC), true
		}
		break
	}
	return time.Time{}, false
}

// IsSupportedCrypto reports whether the symbol is in the crypto table.
func IsSupportedCrypto(symbol string) bool {
	upper := strings.ToUpper(symbol)
	for _, sym := range cryptoKeywords {
		if sym == upper {
			return true
		}
	}
	return false
}

// IsSupportedStock reports whether the symbol is in the stock table.
func IsSupportedStock(symbol string) bool {
	upper := strings.ToUpper(symbol)
	for _, sym := range stockSymbols {
		if sym == upper {
			return true
		}
	}
	return false
}

// SupportedStocks returns the recognized stock tickers.
func SupportedStocks() []string {
	out := make([]string, len(stockSymbols))
	copy(out, stockSymbols)
	return out
}

// NormalizeSymbol maps a crypto name or ticker to its canonical symbol,
// uppercasing anything unknown.
func NormalizeSymbol(input string) string {
	if sym, ok := cryptoKeywords[strings.ToLower(input)]; ok {
		return sym
	}
	return strings.ToUpper(input)
}
