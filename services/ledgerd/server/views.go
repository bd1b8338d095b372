package server

import (
	"encoding/hex"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"proplend/crypto"
	nativecommon "proplend/native/common"
	"proplend/native/lending"
	"proplend/native/market"
	"proplend/native/tranche"
	"proplend/native/waterfall"
)

// Amounts cross the API as decimal strings of whole units.
func units(v *big.Int) string { return nativecommon.FormatUnits(v) }

type poolView struct {
	SeniorTVL              string    `json:"seniorTvl"`
	JuniorTVL              string    `json:"juniorTvl"`
	TotalValue             string    `json:"totalValue"`
	TotalDeployed          string    `json:"totalDeployed"`
	AvailableLiquidity     string    `json:"availableLiquidity"`
	TotalWrittenDown       string    `json:"totalWrittenDown"`
	TotalInterestCollected string    `json:"totalInterestCollected"`
	UndistributedInterest  string    `json:"undistributedInterest"`
	LoanCount              uint64    `json:"loanCount"`
	Ratio                  ratioView `json:"ratio"`
	SeniorToken            string    `json:"seniorToken"`
	JuniorToken            string    `json:"juniorToken"`
	Distributor            string    `json:"distributor,omitempty"`
}

type ratioView struct {
	TargetSeniorPercent uint64 `json:"targetSeniorPercent"`
	TargetJuniorPercent uint64 `json:"targetJuniorPercent"`
	ActualSeniorPercent uint64 `json:"actualSeniorPercent"`
	ActualJuniorPercent uint64 `json:"actualJuniorPercent"`
}

func addressOrEmpty(addr crypto.Address) string {
	if addr.IsZero() {
		return ""
	}
	return addr.String()
}

func toPoolView(s *lending.Summary) poolView {
	return poolView{
		SeniorTVL:              units(s.SeniorTVL),
		JuniorTVL:              units(s.JuniorTVL),
		TotalValue:             units(s.TotalValue),
		TotalDeployed:          units(s.TotalDeployed),
		AvailableLiquidity:     units(s.AvailableLiquidity),
		TotalWrittenDown:       units(s.TotalWrittenDown),
		TotalInterestCollected: units(s.TotalInterestCollected),
		UndistributedInterest:  units(s.UndistributedInterest),
		LoanCount:              s.LoanCount,
		Ratio: ratioView{
			TargetSeniorPercent: s.Ratio.TargetSeniorPercent,
			TargetJuniorPercent: s.Ratio.TargetJuniorPercent,
			ActualSeniorPercent: s.Ratio.ActualSeniorPercent,
			ActualJuniorPercent: s.Ratio.ActualJuniorPercent,
		},
		SeniorToken: addressOrEmpty(s.SeniorToken),
		JuniorToken: addressOrEmpty(s.JuniorToken),
		Distributor: addressOrEmpty(s.Distributor),
	}
}

type loanView struct {
	ID              uint64 `json:"id"`
	Borrower        string `json:"borrower"`
	Principal       string `json:"principal"`
	PropertyID      string `json:"propertyId"`
	PropertyValue   string `json:"propertyValue"`
	LTVPercent      uint64 `json:"ltvPercent"`
	InterestRateBps uint64 `json:"interestRateBps"`
	TermMonths      uint64 `json:"termMonths"`
	InterestDue     string `json:"interestDue"`
	TotalDue        string `json:"totalDue"`
	Status          string `json:"status"`
	OriginatedAt    uint64 `json:"originatedAt"`
	MaturesAt       uint64 `json:"maturesAt"`
	ClosedAt        uint64 `json:"closedAt,omitempty"`
}

func toLoanView(l *lending.Loan) loanView {
	return loanView{
		ID:              l.ID,
		Borrower:        l.Borrower.String(),
		Principal:       units(l.Principal),
		PropertyID:      "0x" + hex.EncodeToString(l.PropertyID[:]),
		PropertyValue:   units(l.PropertyValue),
		LTVPercent:      l.LTVPercent,
		InterestRateBps: l.InterestRateBps,
		TermMonths:      l.TermMonths,
		InterestDue:     units(l.InterestDue),
		TotalDue:        units(l.TotalDue()),
		Status:          l.Status.String(),
		OriginatedAt:    l.OriginatedAt,
		MaturesAt:       l.MaturesAt,
		ClosedAt:        l.ClosedAt,
	}
}

type repaymentView struct {
	LoanID      uint64 `json:"loanId"`
	Principal   string `json:"principal"`
	Interest    string `json:"interest"`
	Total       string `json:"total"`
	Distributed bool   `json:"distributed"`
}

func toRepaymentView(r *lending.Repayment) repaymentView {
	return repaymentView{
		LoanID:      r.LoanID,
		Principal:   units(r.Principal),
		Interest:    units(r.Interest),
		Total:       units(r.Total),
		Distributed: r.Distributed,
	}
}

type statsView struct {
	SeniorPaid    string `json:"seniorPaid"`
	JuniorPaid    string `json:"juniorPaid"`
	PlatformPaid  string `json:"platformPaid"`
	Distributions uint64 `json:"distributions"`
}

func toStatsView(s waterfall.Stats) statsView {
	return statsView{
		SeniorPaid:    units(s.SeniorPaid),
		JuniorPaid:    units(s.JuniorPaid),
		PlatformPaid:  units(s.PlatformPaid),
		Distributions: s.Distributions,
	}
}

type splitView struct {
	Interest     string `json:"interest"`
	SeniorTarget string `json:"seniorTarget"`
	Senior       string `json:"senior"`
	Platform     string `json:"platform"`
	Junior       string `json:"junior"`
}

func toSplitView(s *waterfall.Split) splitView {
	return splitView{
		Interest:     units(s.Interest),
		SeniorTarget: units(s.SeniorTarget),
		Senior:       units(s.Senior),
		Platform:     units(s.Platform),
		Junior:       units(s.Junior),
	}
}

type orderView struct {
	ID              uint64 `json:"id"`
	Creator         string `json:"creator"`
	Tranche         string `json:"tranche"`
	Side            string `json:"side"`
	Amount          string `json:"amount"`
	RemainingAmount string `json:"remainingAmount"`
	PricePerUnit    string `json:"pricePerUnit"`
	Status          string `json:"status"`
	CreatedAt       uint64 `json:"createdAt"`
	UpdatedAt       uint64 `json:"updatedAt"`
}

func toOrderView(o *market.Order) orderView {
	return orderView{
		ID:              o.ID,
		Creator:         o.Creator.String(),
		Tranche:         o.Tranche.String(),
		Side:            o.Side.String(),
		Amount:          units(o.Amount),
		RemainingAmount: units(o.RemainingAmount),
		PricePerUnit:    units(o.PricePerUnit),
		Status:          o.Status.String(),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toOrderViews(orders []*market.Order) []orderView {
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderView(o))
	}
	return out
}

type fillView struct {
	OrderID   uint64 `json:"orderId"`
	Amount    string `json:"amount"`
	Cost      string `json:"cost"`
	Fee       string `json:"fee"`
	Remaining string `json:"remaining"`
	Status    string `json:"status"`
}

func toFillView(f *market.Fill) fillView {
	return fillView{
		OrderID:   f.OrderID,
		Amount:    units(f.Amount),
		Cost:      units(f.Cost),
		Fee:       units(f.Fee),
		Remaining: units(f.Remaining),
		Status:    f.Status.String(),
	}
}

type marketStatsView struct {
	TotalVolume        string `json:"totalVolume"`
	TotalFeesCollected string `json:"totalFeesCollected"`
	ActiveOrderCount   uint64 `json:"activeOrderCount"`
	TotalOrders        uint64 `json:"totalOrders"`
}

type tokenView struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TrancheType string `json:"trancheType"`
	TotalSupply string `json:"totalSupply"`
}

func toTokenView(t *tranche.Token) tokenView {
	return tokenView{
		Address:     t.Address.String(),
		Name:        t.Name,
		Symbol:      t.Symbol,
		Decimals:    t.Decimals,
		TrancheType: t.TrancheType(),
		TotalSupply: units(t.TotalSupply),
	}
}

func pathUint(r *http.Request, name string) (uint64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequest("invalid " + name + " " + strconv.Quote(raw))
	}
	return v, nil
}

func pathAddress(r *http.Request, name string) (crypto.Address, error) {
	return parseAddress(chi.URLParam(r, name), name)
}

func pathTranche(r *http.Request) (tranche.Class, error) {
	class, err := tranche.ParseClass(chi.URLParam(r, "tranche"))
	if err != nil {
		return 0, badRequest(err.Error())
	}
	return class, nil
}

func parseAddress(raw, field string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return crypto.Address{}, badRequest("invalid " + field + " address")
	}
	return addr, nil
}

func parseAmount(raw string) (*big.Int, error) {
	return nativecommon.ParseUnits(raw)
}
