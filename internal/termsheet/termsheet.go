// Package termsheet turns approved deal terms into structured SAFE or priced
// equity term sheets with their headline metrics.
package termsheet

import (
	"fmt"
	"math"
	"strings"

	"deal-eval/backend/internal/deal"
)

const (
	// DefaultSharesOutstanding is assumed when neither the caller nor a cap
	// table supplies a share count.
	DefaultSharesOutstanding = 10_000_000

	defaultCompany     = "Company"
	defaultInvestor    = "New Investor"
	safeDiscount       = 0.20
	qualifiedFinancing = 1_000_000.0
	maxShareCount      = 1 << 53
)

// Input carries the deal terms a term sheet is drafted from. Zero post-money
// means pre-money plus investment; zero preference means 1x.
type Input struct {
	Name                  string          `json:"name,omitempty"`
	CompanyName           string          `json:"company_name" validate:"required"`
	InvestorName          string          `json:"investor_name" validate:"required"`
	Instrument            deal.Instrument `json:"instrument"`
	InvestmentAmount      float64         `json:"investment_amount" validate:"gt=0"`
	PreMoneyValuation     float64         `json:"pre_money_valuation" validate:"gte=0"`
	PostMoneyValuation    float64         `json:"post_money_valuation,omitempty" validate:"gte=0"`
	SharesOutstanding     int64           `json:"shares_outstanding,omitempty" validate:"gte=0"`
	NewSharesIssued       int64           `json:"new_shares_issued,omitempty" validate:"gte=0"`
	LiquidationPreference float64         `json:"liquidation_preference,omitempty" validate:"gte=0"`
	AntiDilution          bool            `json:"anti_dilution,omitempty"`
	BoardSeats            int             `json:"board_seats,omitempty" validate:"gte=0"`
	ProtectiveProvisions  []string        `json:"protective_provisions,omitempty"`
	UseOfProceeds         string          `json:"use_of_proceeds,omitempty"`
	ConditionsPrecedent   []string        `json:"conditions_precedent,omitempty"`
	ClosingDate           string          `json:"closing_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// InvestmentTerms are the economic terms of the instrument.
type InvestmentTerms struct {
	Instrument         string  `json:"instrument"`
	InvestmentAmount   float64 `json:"investment_amount"`
	PreMoneyValuation  float64 `json:"pre_money_valuation"`
	PostMoneyValuation float64 `json:"post_money_valuation"`
	OwnershipPercent   float64 `json:"ownership_percent"`
	SharesIssued       int64   `json:"shares_issued,omitempty"`
	PricePerShare      float64 `json:"price_per_share,omitempty"`
	ValuationCap       float64 `json:"valuation_cap,omitempty"`
	ConversionPrice    float64 `json:"conversion_price,omitempty"`
	ConversionShares   int64   `json:"conversion_shares,omitempty"`
	ConversionDiscount float64 `json:"conversion_discount,omitempty"`
}

// KeyTerms are the governance and preference terms.
type KeyTerms struct {
	LiquidationPreference string   `json:"liquidation_preference"`
	AntiDilution          string   `json:"anti_dilution"`
	BoardSeats            int      `json:"board_seats"`
	ProtectiveProvisions  []string `json:"protective_provisions"`
	ConversionTrigger     string   `json:"conversion_trigger,omitempty"`
	DragAlong             bool     `json:"drag_along"`
	TagAlong              bool     `json:"tag_along"`
	RightOfFirstRefusal   bool     `json:"right_of_first_refusal"`
	CoSale                bool     `json:"co_sale"`
}

// ClosingTerms describe closing logistics.
type ClosingTerms struct {
	ClosingDate         string   `json:"closing_date,omitempty"`
	UseOfProceeds       string   `json:"use_of_proceeds"`
	ConditionsPrecedent []string `json:"conditions_precedent"`
}

// Section is one rendered clause of the sheet.
type Section struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// Metrics summarise ownership and valuation effects. Percentages are 0..100.
type Metrics struct {
	OwnershipPercent         float64 `json:"ownership_percent"`
	EffectiveOwnership       float64 `json:"effective_ownership"`
	FounderRetention         float64 `json:"founder_retention"`
	PreMoneyValuation        float64 `json:"pre_money_valuation"`
	PostMoneyValuation       float64 `json:"post_money_valuation"`
	InvestmentEfficiency     float64 `json:"investment_efficiency"`
	ValuationIncreasePercent float64 `json:"valuation_increase_percent"`
	InvestmentAmount         float64 `json:"investment_amount"`
	LiquidationPreference    float64 `json:"liquidation_preference"`
	EffectiveInvestment      float64 `json:"effective_investment"`
}

// TermSheet is a drafted sheet ready for rendering.
type TermSheet struct {
	Title      string          `json:"title"`
	Instrument deal.Instrument `json:"instrument"`
	Company    string          `json:"company"`
	Investor   string          `json:"investor"`
	Investment InvestmentTerms `json:"investment"`
	KeyTerms   KeyTerms        `json:"key_terms"`
	Closing    ClosingTerms    `json:"closing"`
	Sections   []Section       `json:"sections"`
	Metrics    Metrics         `json:"metrics"`
}

// Draft validates the input and builds the sheet for its instrument.
// An empty instrument drafts a SAFE.
func Draft(in Input) (TermSheet, error) {
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.InvestorName = strings.TrimSpace(in.InvestorName)
	if err := deal.ValidateStruct(in); err != nil {
		return TermSheet{}, err
	}
	if err := deal.RequireFinite("term_sheet", in.InvestmentAmount, in.PreMoneyValuation,
		in.PostMoneyValuation, in.LiquidationPreference); err != nil {
		return TermSheet{}, err
	}

	instrument := deal.InstrumentSAFE
	if in.Instrument != "" {
		parsed, ok := deal.ParseInstrument(string(in.Instrument))
		if !ok {
			return TermSheet{}, deal.NewInvalidInput("instrument", in.Instrument, "must be SAFE or Equity")
		}
		instrument = parsed
	}
	if in.PostMoneyValuation == 0 {
		in.PostMoneyValuation = in.PreMoneyValuation + in.InvestmentAmount
	}
	if in.PostMoneyValuation < in.PreMoneyValuation {
		return TermSheet{}, deal.NewInvalidInput("post_money_valuation", in.PostMoneyValuation, "must be >= pre-money valuation")
	}
	if in.LiquidationPreference == 0 {
		in.LiquidationPreference = 1
	}
	if in.SharesOutstanding == 0 {
		in.SharesOutstanding = DefaultSharesOutstanding
	}

	sheet := TermSheet{
		Instrument: instrument,
		Company:    in.CompanyName,
		Investor:   in.InvestorName,
		Metrics:    ComputeMetrics(in),
		Closing: ClosingTerms{
			ClosingDate:         in.ClosingDate,
			UseOfProceeds:       in.UseOfProceeds,
			ConditionsPrecedent: cleanList(in.ConditionsPrecedent),
		},
	}
	if instrument == deal.InstrumentEquity {
		draftEquity(&sheet, in)
	} else {
		draftSAFE(&sheet, in)
	}
	return sheet, nil
}

func draftSAFE(sheet *TermSheet, in Input) {
	conversionPrice := in.PreMoneyValuation / float64(in.SharesOutstanding)
	var conversionShares int64
	if conversionPrice > 0 {
		if n := math.Floor(in.InvestmentAmount / conversionPrice); n <= maxShareCount {
			conversionShares = int64(n)
		}
	}

	sheet.Title = "SAFE Term Sheet - " + in.CompanyName
	sheet.Investment = InvestmentTerms{
		Instrument:         "SAFE (Simple Agreement for Future Equity)",
		InvestmentAmount:   in.InvestmentAmount,
		PreMoneyValuation:  in.PreMoneyValuation,
		PostMoneyValuation: in.PostMoneyValuation,
		OwnershipPercent:   sheet.Metrics.OwnershipPercent,
		ValuationCap:       in.PreMoneyValuation,
		ConversionPrice:    conversionPrice,
		ConversionShares:   conversionShares,
		ConversionDiscount: safeDiscount,
	}
	sheet.KeyTerms = KeyTerms{
		LiquidationPreference: "None (converts to common)",
		AntiDilution:          "None",
		ProtectiveProvisions:  []string{},
		ConversionTrigger:     "Next Qualified Financing",
	}
	if sheet.Closing.UseOfProceeds == "" {
		sheet.Closing.UseOfProceeds = "General corporate purposes"
	}
	if len(sheet.Closing.ConditionsPrecedent) == 0 {
		sheet.Closing.ConditionsPrecedent = []string{"Due diligence completion", "Legal documentation"}
	}
	sheet.Sections = []Section{
		{"Investment Amount", fmt.Sprintf("The Investor will purchase a SAFE for %s.", dollars(in.InvestmentAmount))},
		{"Valuation Cap", fmt.Sprintf("The SAFE will convert at a valuation cap of %s.", dollars(in.PreMoneyValuation))},
		{"Discount Rate", fmt.Sprintf("The SAFE will convert at a %.0f%% discount to the price per share in the next qualified financing.", safeDiscount*100)},
		{"Conversion", fmt.Sprintf("The SAFE will automatically convert to equity upon the next qualified financing of at least %s.", dollars(qualifiedFinancing))},
		{"Liquidation", "In the event of a liquidation, the SAFE will convert to common shares and participate pro rata."},
	}
}

var defaultProvisions = []string{
	"Sale of company",
	"Issuance of new shares",
	"Amendment of certificate of incorporation",
	"Declaration of dividends",
	"Incurrence of debt over $100K",
}

func draftEquity(sheet *TermSheet, in Input) {
	ownership := sheet.Metrics.OwnershipPercent / 100
	shares := in.NewSharesIssued
	if shares == 0 && ownership > 0 && ownership < 1 {
		if n := math.Round(float64(in.SharesOutstanding) * ownership / (1 - ownership)); n <= maxShareCount {
			shares = int64(n)
		}
	}
	price := 0.0
	if shares > 0 {
		price = in.InvestmentAmount / float64(shares)
	}

	provisions := cleanList(in.ProtectiveProvisions)
	if len(provisions) == 0 {
		provisions = append([]string(nil), defaultProvisions...)
	}
	antiDilution := "None"
	antiDilutionClause := "No anti-dilution protection."
	if in.AntiDilution {
		antiDilution = "Full ratchet"
		antiDilutionClause = "Full ratchet anti-dilution protection."
	}
	boardClause := "No board seats for the Investor."
	if in.BoardSeats > 0 {
		boardClause = fmt.Sprintf("%d board seat(s) for the Investor.", in.BoardSeats)
	}
	preference := fmt.Sprintf("%gx non-participating", in.LiquidationPreference)

	sheet.Title = "Series A Term Sheet - " + in.CompanyName
	sheet.Investment = InvestmentTerms{
		Instrument:         "Series A Preferred Stock",
		InvestmentAmount:   in.InvestmentAmount,
		PreMoneyValuation:  in.PreMoneyValuation,
		PostMoneyValuation: in.PostMoneyValuation,
		OwnershipPercent:   sheet.Metrics.OwnershipPercent,
		SharesIssued:       shares,
		PricePerShare:      price,
	}
	sheet.KeyTerms = KeyTerms{
		LiquidationPreference: preference,
		AntiDilution:          antiDilution,
		BoardSeats:            in.BoardSeats,
		ProtectiveProvisions:  provisions,
		DragAlong:             true,
		TagAlong:              true,
		RightOfFirstRefusal:   true,
		CoSale:                true,
	}
	if sheet.Closing.UseOfProceeds == "" {
		sheet.Closing.UseOfProceeds = "Working capital and general corporate purposes"
	}
	if len(sheet.Closing.ConditionsPrecedent) == 0 {
		sheet.Closing.ConditionsPrecedent = []string{
			"Due diligence completion",
			"Legal documentation",
			"Board approval",
			"Shareholder approval if required",
		}
	}
	sheet.Sections = []Section{
		{"Investment", fmt.Sprintf("The Investor will invest %s in exchange for %.1f%% ownership.", dollars(in.InvestmentAmount), sheet.Metrics.OwnershipPercent)},
		{"Valuation", fmt.Sprintf("Pre-money valuation: %s, Post-money valuation: %s.", dollars(in.PreMoneyValuation), dollars(in.PostMoneyValuation))},
		{"Liquidation Preference", preference + " liquidation preference."},
		{"Anti-dilution", antiDilutionClause},
		{"Board Rights", boardClause},
		{"Protective Provisions", "The Investor will have protective provisions including: " + strings.Join(provisions, ", ") + "."},
	}
}

// ComputeMetrics derives ownership and valuation figures. Effective ownership
// and investment are scaled by the liquidation preference.
func ComputeMetrics(in Input) Metrics {
	post := in.PostMoneyValuation
	if post == 0 {
		post = in.PreMoneyValuation + in.InvestmentAmount
	}
	preference := in.LiquidationPreference
	if preference == 0 {
		preference = 1
	}
	m := Metrics{
		PreMoneyValuation:     in.PreMoneyValuation,
		PostMoneyValuation:    post,
		InvestmentAmount:      in.InvestmentAmount,
		LiquidationPreference: preference,
		EffectiveInvestment:   in.InvestmentAmount * preference,
	}
	if post > 0 {
		m.OwnershipPercent = in.InvestmentAmount / post * 100
	}
	m.EffectiveOwnership = m.OwnershipPercent * preference
	m.FounderRetention = 100 - m.OwnershipPercent
	if in.PreMoneyValuation > 0 {
		m.InvestmentEfficiency = in.InvestmentAmount / in.PreMoneyValuation
		m.ValuationIncreasePercent = (post - in.PreMoneyValuation) / in.PreMoneyValuation * 100
	}
	return m
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// dollars formats a whole-dollar amount with thousands separators.
func dollars(v float64) string {
	n := int64(math.Round(v))
	sign := ""
	if n < 0 {
		sign, n = "-", -n
	}
	digits := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String()
}
