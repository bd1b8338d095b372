package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"proplend/crypto"
	nativecommon "proplend/native/common"
	"proplend/observability/audit"
)

type issueRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFrom(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	var req issueRequest
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
	if err := s.ledger.Issue(r.Context(), caller, to, amount); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"to": to.String(), "amount": units(amount)})
}

type roleRequest struct {
	Scope   string `json:"scope"`
	Role    string `json:"role"`
	Address string `json:"address"`
}

func (s *Server) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	s.handleRoleChange(w, r, true)
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	s.handleRoleChange(w, r, false)
}

func (s *Server) handleRoleChange(w http.ResponseWriter, r *http.Request, grant bool) {
	caller, err := CallerFrom(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	addr, err := parseAddress(req.Address, "address")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	scope := strings.TrimSpace(req.Scope)
	role := nativecommon.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if grant {
		err = s.ledger.GrantRole(r.Context(), caller, scope, role, addr)
	} else {
		err = s.ledger.RevokeRole(r.Context(), caller, scope, role, addr)
	}
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scope":   scope,
		"role":    string(role),
		"address": addr.String(),
		"granted": grant,
	})
}

func (s *Server) handleBindDistributor(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFrom(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	if err := s.ledger.BindDistributor(r.Context(), caller); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	summary, err := s.ledger.PoolSummary()
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"distributor": addressOrEmpty(summary.Distributor)})
}

type distributeRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFrom(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	var req distributeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	split, err := s.ledger.Distribute(r.Context(), caller, amount)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSplitView(split))
}

func (s *Server) handleDistributeRetained(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFrom(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	forwarded, err := s.ledger.DistributeRetained(r.Context(), caller)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"forwarded": units(forwarded)})
}

type addressRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleSetTreasury(w http.ResponseWriter, r *http.Request) {
	s.handleSetAddress(w, r, s.ledger.SetTreasury)
}

func (s *Server) handleSetMarketTreasury(w http.ResponseWriter, r *http.Request) {
	s.handleSetAddress(w, r, s.ledger.SetMarketTreasury)
}

func (s *Server) handleSetAddress(w http.ResponseWriter, r *http.Request, set func(ctx context.Context, caller, addr crypto.Address) error) {
	caller, err := CallerFrom(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	addr, err := parseAddress(req.Address, "address")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	if err := set(r.Context(), caller, addr); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": addr.String()})
}

type recipientsRequest struct {
	Senior string `json:"senior"`
	Junior string `json:"junior"`
}

func (s *Server) handleSetRecipients(w http.ResponseWriter, r *http.Request) {
	caller, err := CallerFrom(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	var req recipientsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	senior, err := parseAddress(req.Senior, "senior")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	junior, err := parseAddress(req.Junior, "junior")
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	if err := s.ledger.SetPoolRecipients(r.Context(), caller, senior, junior); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"senior": senior.String(), "junior": junior.String()})
}

type auditRecordView struct {
	ID         string            `json:"id"`
	Seq        uint64            `json:"seq"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Digest     string            `json:"digest"`
	PrevDigest string            `json:"prevDigest,omitempty"`
	CreatedAt  string            `json:"createdAt"`
}

func (s *Server) requireAdmin(r *http.Request) error {
	caller, err := CallerFrom(r.Context())
	if err != nil {
		return err
	}
	if !s.ledger.HasRole(nativecommon.ScopeLending, nativecommon.RoleAdmin, caller) {
		return nativecommon.NewError(nativecommon.ErrUnauthorized, "admin role required")
	}
	return nil
}

func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if err := s.requireAdmin(r); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	if s.audit == nil {
		writeError(w, r, http.StatusNotFound, "not_configured", "audit log disabled")
		return
	}
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeLedgerError(w, r, badRequest("invalid limit"))
			return
		}
		limit = parsed
	}
	records, err := s.audit.List(r.Context(), r.URL.Query().Get("type"), limit)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	out := make([]auditRecordView, 0, len(records))
	for _, rec := range records {
		attrs := map[string]string{}
		_ = json.Unmarshal([]byte(rec.Attributes), &attrs)
		out = append(out, auditRecordView{
			ID:         rec.ID.String(),
			Seq:        rec.Seq,
			Type:       rec.Type,
			Attributes: attrs,
			Digest:     rec.Digest,
			PrevDigest: rec.PrevDigest,
			CreatedAt:  rec.CreatedAt.UTC().Format(timeLayout),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": out})
}

func (s *Server) handleAuditVerify(w http.ResponseWriter, r *http.Request) {
	if err := s.requireAdmin(r); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	if s.audit == nil {
		writeError(w, r, http.StatusNotFound, "not_configured", "audit log disabled")
		return
	}
	if err := s.audit.Verify(r.Context()); err != nil {
		if errors.Is(err, audit.ErrChainBroken) {
			writeError(w, r, http.StatusConflict, "audit_chain_broken", err.Error())
			return
		}
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}
