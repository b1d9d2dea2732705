package takeout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vanshika/lifetrace/internal/domain"
)

var (
	amountPattern   = regexp.MustCompile(`[\d.,]+`)
	mapQueryPattern = regexp.MustCompile(`query=([\d.-]+),([\d.-]+)`)

	// Plain decimals, or digit groups such as 1,234.50 and 1,00,000. The last
	// group always has three digits, so a decimal comma (12,50) is rejected.
	amountValuePattern = regexp.MustCompile(`^(?:\d{1,3}(?:,\d{3})+|\d{1,2}(?:,\d{2})*,\d{3}|\d+)(?:\.\d*)?$`)

	sentPrefixes     = []string{"Used ", "Sent ", "Paid "}
	receivedPrefixes = []string{"Received "}
	viewedPrefixes   = []string{"Viewed "}

	errNoAmount            = errors.New("no amount in card")
	errInformational       = errors.New("informational card")
	errUnrecognizedContent = errors.New("unrecognized content")
	errNoTimestamp         = errors.New("no timestamp in card")
	errUnknownZone         = errors.New("unknown time zone abbreviation, read as UTC")
)

// ActivityResult is the outcome of parsing one payment activity export.
type ActivityResult struct {
	Cards int
	// Transactions keeps source order. Location is nil unless the card carried
	// a map link.
	Transactions []domain.PaymentTransaction
	// Warnings lists cards dropped for a reason worth reporting.
	Warnings []*domain.ParseError
	// Ignored counts cards dropped silently: no amount, or informational only.
	Ignored int
}

// PaymentActivityParser turns activity cards into payment transactions.
type PaymentActivityParser struct {
	finder CardFinder
	logger *slog.Logger
}

// NewPaymentActivityParser constructs a parser. A nil finder reads HTML.
func NewPaymentActivityParser(finder CardFinder, logger *slog.Logger) *PaymentActivityParser {
	if finder == nil {
		finder = HTMLCardFinder{}
	}
	return &PaymentActivityParser{finder: finder, logger: logger}
}

// ParseFile parses the export at path. A missing file yields domain.ErrNotFound.
func (p *PaymentActivityParser) ParseFile(ctx context.Context, path string, userID int64) (ActivityResult, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ActivityResult{}, fmt.Errorf("payment activity %s: %w", path, domain.ErrNotFound)
		}
		return ActivityResult{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	return p.Parse(ctx, file, userID)
}

// Parse reads every card in r, in order.
func (p *PaymentActivityParser) Parse(ctx context.Context, r io.Reader, userID int64) (ActivityResult, error) {
	cards, err := p.finder.FindCards(r)
	if err != nil {
		return ActivityResult{}, &domain.ParseError{Source: "payment activity", Fatal: true, Err: err}
	}

	result := ActivityResult{Cards: len(cards)}
	for idx, card := range cards {
		if err := ctx.Err(); err != nil {
			return ActivityResult{}, err
		}
		p.logger.Debug("parsing card", "card", idx+1, "total", len(cards))

		tx, zoneKnown, err := parseCard(card)
		switch {
		case err == nil:
			tx.UserID = userID
			result.Transactions = append(result.Transactions, tx)
			if !zoneKnown {
				result.Warnings = append(result.Warnings, &domain.ParseError{
					Source: "payment activity",
					Record: fmt.Sprintf("card %d", idx+1),
					Err:    errUnknownZone,
				})
			}
		case errors.Is(err, errNoAmount), errors.Is(err, errInformational):
			result.Ignored++
		default:
			pe := &domain.ParseError{Source: "payment activity", Record: fmt.Sprintf("card %d", idx+1), Err: err}
			p.logger.Warn("skipping card", "card", idx+1, "error", err)
			result.Warnings = append(result.Warnings, pe)
		}
	}
	return result, nil
}

// ParseCard extracts one transaction from a card. The UserID is left unset.
func ParseCard(card Card) (domain.PaymentTransaction, error) {
	tx, _, err := parseCard(card)
	return tx, err
}

func parseCard(card Card) (domain.PaymentTransaction, bool, error) {
	amount, ok := findAmount(card.Text)
	if !ok {
		if amount, ok = findAmount(card.Details); !ok {
			return domain.PaymentTransaction{}, false, errNoAmount
		}
	}

	txType, err := classify(card.Text)
	if err != nil {
		return domain.PaymentTransaction{}, false, err
	}

	raw, ok := FindTimestamp(card.Text)
	if !ok {
		return domain.PaymentTransaction{}, false, errNoTimestamp
	}
	ts, zoneKnown, err := parseTimestamp(raw)
	if err != nil {
		return domain.PaymentTransaction{}, false, err
	}

	tx := domain.PaymentTransaction{
		Type:      txType,
		Amount:    amount,
		Timestamp: ts,
	}
	if card.MapHref != "" {
		if loc, ok := parseMapQuery(card.MapHref); ok {
			tx.Location = &loc
		}
	}
	return tx, zoneKnown, nil
}

// findAmount reads the first numeric run in text. A run that is not a well
// formed amount (such as the "5," of a date) fails rather than searching on.
func findAmount(text string) (decimal.Decimal, bool) {
	match := amountPattern.FindString(text)
	if !amountValuePattern.MatchString(match) {
		return decimal.Decimal{}, false
	}
	match = strings.TrimSuffix(strings.ReplaceAll(match, ",", ""), ".")
	amount, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return amount, true
}

func classify(text string) (domain.TransactionType, error) {
	switch {
	case hasAnyPrefix(text, sentPrefixes):
		return domain.TransactionSent, nil
	case hasAnyPrefix(text, receivedPrefixes):
		return domain.TransactionReceived, nil
	case hasAnyPrefix(text, viewedPrefixes):
		return "", errInformational
	default:
		return "", fmt.Errorf("%w: %q", errUnrecognizedContent, truncate(text, 80))
	}
}

func parseMapQuery(href string) (domain.Coordinates, bool) {
	if unescaped, err := url.QueryUnescape(href); err == nil {
		href = unescaped
	}
	m := mapQueryPattern.FindStringSubmatch(href)
	if m == nil {
		return domain.Coordinates{}, false
	}
	lat, errLat := strconv.ParseFloat(m[1], 64)
	lng, errLng := strconv.ParseFloat(m[2], 64)
	if errLat != nil || errLng != nil {
		return domain.Coordinates{}, false
	}
	return domain.Coordinates{Lat: lat, Lng: lng}, true
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
