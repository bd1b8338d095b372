package server

import (
	"context"
	"math/big"
	"net/http"
	"strings"

	"proplend/crypto"
	"proplend/native/lending"
)

type depositRequest struct {
	Amount string `json:"amount"`
	Senior bool   `json:"senior"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handlePoolMove(w, r, s.ledger.Deposit)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handlePoolMove(w, r, s.ledger.Withdraw)
}

type poolMove func(ctx context.Context, caller crypto.Address, amount *big.Int, isSenior bool) error

func (s *Server) handlePoolMove(w http.ResponseWriter, r *http.Request, move poolMove) {
	caller, err := CallerFrom(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	if err := move(r.Context(), caller, amount, req.Senior); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	balance, err := s.ledger.UserBalance(caller, req.Senior)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"amount":  units(amount),
		"senior":  req.Senior,
		"balance": units(balance),
	})
}

func (s *Server) handlePoolSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.PoolSummary()
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPoolView(summary))
}

func (s *Server) handlePoolBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "addr")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	senior, err := s.ledger.UserBalance(addr, true)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	junior, err := s.ledger.UserBalance(addr, false)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": addr.String(),
		"senior":  units(senior),
		"junior":  units(junior),
	})
}

type loanRequest struct {
	Borrower      string `json:"borrower,omitempty"`
	Principal     string `json:"principal"`
	PropertyID    string `json:"propertyId,omitempty"`
	PropertyLabel string `json:"propertyLabel,omitempty"`
	PropertyValue string `json:"propertyValue"`
	TermMonths    uint64 `json:"termMonths"`
}

func (req loanRequest) toLoanRequest() (lending.LoanRequest, error) {
	var out lending.LoanRequest
	if strings.TrimSpace(req.Borrower) != "" {
		addr, err := parseAddress(req.Borrower, "borrower")
		if err != nil {
			return out, err
		}
		out.Borrower = addr
	}
	principal, err := parseAmount(req.Principal)
	if err != nil {
		return out, err
	}
	value, err := parseAmount(req.PropertyValue)
	if err != nil {
		return out, err
	}
	switch {
	case strings.TrimSpace(req.PropertyID) != "":
		id, err := lending.ParsePropertyID(req.PropertyID)
		if err != nil {
			return out, badRequest(err.Error())
		}
		out.PropertyID = id
	case strings.TrimSpace(req.PropertyLabel) != "":
		out.PropertyID = lending.PropertyIDFromLabel(req.PropertyLabel)
	default:
		return out, badRequest("propertyId or propertyLabel required")
	}
	out.Principal = principal
	out.PropertyValue = value
	out.TermMonths = req.TermMonths
	return out, nil
}

func (s *Server) handleApplyForLoan(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFrom(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	var body loanRequest
	if err := decodeJSON(r, &body); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	req, err := body.toLoanRequest()
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	loan, err := s.ledger.ApplyForLoan(r.Context(), caller, req)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanView(loan))
}

func (s *Server) handleRepayLoan(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFrom(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	repayment, err := s.ledger.RepayLoan(r.Context(), caller, id)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRepaymentView(repayment))
}

func (s *Server) handleLiquidateLoan(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFrom(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	loan, err := s.ledger.LiquidateLoan(r.Context(), caller, id)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanView(loan))
}

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	loan, err := s.ledger.Loan(id)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanView(loan))
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.Loans()
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	out := make([]loanView, 0, len(loans))
	for _, loan := range loans {
		if status != "" && loan.Status.String() != status {
			continue
		}
		out = append(out, toLoanView(loan))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"loans": out})
}

func (s *Server) handleDistributionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledger.DistributionStats()
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	treasury, err := s.ledger.PlatformTreasury()
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":    toStatsView(stats),
		"treasury": addressOrEmpty(treasury),
	})
}
