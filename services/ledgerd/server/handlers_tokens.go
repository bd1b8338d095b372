package server

import (
	"net/http"
)

type shareTransferRequest struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Spender string `json:"spender,omitempty"`
	Amount  string `json:"amount"`
}

func (s *Server) handleShareTransfer(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFrom(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	class, err := pathTranche(r)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	var req shareTransferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	to, err := parseAddress(req.To, "to")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	if err := s.ledger.TransferShares(r.Context(), class, caller, to, amount); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tranche": class.String(), "from": caller.String(), "to": to.String(), "amount": units(amount)})
}

func (s *Server) handleShareApprove(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFrom(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	class, err := pathTranche(r)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	var req shareTransferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	spender, err := parseAddress(req.Spender, "spender")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	if err := s.ledger.ApproveShares(r.Context(), class, caller, spender, amount); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tranche": class.String(), "owner": caller.String(), "spender": spender.String(), "allowance": units(amount)})
}

func (s *Server) handleShareTransferFrom(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFrom(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	class, err := pathTranche(r)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	var req shareTransferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	from, err := parseAddress(req.From, "from")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	to, err := parseAddress(req.To, "to")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	if err := s.ledger.TransferSharesFrom(r.Context(), class, caller, from, to, amount); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tranche": class.String(), "from": from.String(), "to": to.String(), "amount": units(amount)})
}

func (s *Server) handleTokenInfo(w http.ResponseWriter, r *http.Request) {
	class, err := pathTranche(r)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	token, err := s.ledger.Token(class)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenView(token))
}

func (s *Server) handleShareBalance(w http.ResponseWriter, r *http.Request) {
	class, err := pathTranche(r)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	addr, err := pathAddress(r, "addr")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	balance, err := s.ledger.ShareBalance(class, addr)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tranche": class.String(), "address": addr.String(), "balance": units(balance)})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	class, err := pathTranche(r)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	owner, err := pathAddress(r, "owner")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	spender, err := pathAddress(r, "spender")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	allowance, err := s.ledger.Allowance(class, owner, spender)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tranche": class.String(), "owner": owner.String(), "spender": spender.String(), "allowance": units(allowance)})
}

type currencyTransferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleCurrencyTransfer(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFrom(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	var req currencyTransferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	to, err := parseAddress(req.To, "to")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	if err := s.ledger.TransferCurrency(r.Context(), caller, to, amount); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"from": caller.String(), "to": to.String(), "amount": units(amount)})
}

func (s *Server) handleCurrencyBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "addr")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	balance, err := s.ledger.CurrencyBalance(addr)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": addr.String(), "balance": units(balance)})
}
