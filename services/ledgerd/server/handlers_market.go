package server

import (
	"net/http"
	"strings"

	"proplend/native/market"
	"proplend/native/tranche"
)

type createOrderRequest struct {
	Tranche string `json:"tranche"`
	Side    string `json:"side"`
	Amount  string `json:"amount"`
	Price   string `json:"price"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFrom(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	class, err := tranche.ParseClass(req.Tranche)
	if err != nil {
		writeLedgerError(w, r, badRequest(err.Error()))
		return
	}
	side, err := market.ParseSide(req.Side)
	if err != nil {
		writeLedgerError(w, r, badRequest(err.Error()))
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	order, err := s.ledger.CreateOrder(r.Context(), caller, class, side, amount, price)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderView(order))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
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
	order, err := s.ledger.CancelOrder(r.Context(), caller, id)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(order))
}

type fillOrderRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleFillOrder(w http.ResponseWriter, r *http.Request) {
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
	var req fillOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	fill, err := s.ledger.FillOrder(r.Context(), caller, id, amount)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFillView(fill))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	order, err := s.ledger.Order(id)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(order))
}

// handleActiveOrders lists active orders of one tranche, or every order when
// no tranche is given.
func (s *Server) handleActiveOrders(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("tranche"))
	var (
		orders []*market.Order
		err    error
	)
	if raw == "" {
		orders, err = s.ledger.Orders()
	} else {
		class, parseErr := tranche.ParseClass(raw)
		if parseErr != nil {
			writeLedgerError(w, r, badRequest(parseErr.Error()))
			return
		}
		orders, err = s.ledger.ActiveOrders(class)
	}
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": toOrderViews(orders)})
}

func (s *Server) handleUserOrders(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "addr")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	orders, err := s.ledger.UserOrders(addr)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": toOrderViews(orders)})
}

func (s *Server) handleMarketStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledger.MarketStats()
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, marketStatsView{
		TotalVolume:        units(stats.TotalVolume),
		TotalFeesCollected: units(stats.TotalFeesCollected),
		ActiveOrderCount:   stats.ActiveOrderCount,
		TotalOrders:        stats.TotalOrders,
	})
}
