package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"launchpad/core"
	"launchpad/core/types"
	"launchpad/native/presale"
	"launchpad/observability"
	"launchpad/storage/journal"
)

func (s *Server) handleSendTransaction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.auth.verify(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	if len(req.Params) == 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "transaction parameter required", nil)
		return
	}

	var tx types.Transaction
	if err := json.Unmarshal(req.Params[0], &tx); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid transaction format", err.Error())
		return
	}

	source := clientSource(r)
	if !s.allowSource(source, time.Now()) {
		observability.ModuleMetrics().RecordThrottle("lp", "rate_limit")
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "transaction rate limit exceeded", source)
		return
	}

	receipt, err := s.backend.SubmitTransaction(r.Context(), &tx)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrChainIDMismatch),
			errors.Is(err, core.ErrNonceMismatch),
			errors.Is(err, core.ErrNilTransaction),
			errors.Is(err, types.ErrMissingSignature):
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "transaction rejected", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to execute transaction", err.Error())
		}
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleGetNonce(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, err := paramAddress(req.Params, 0, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	nonce, err := s.backend.Nonce(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load nonce", err.Error())
		return
	}
	writeResult(w, req.ID, nonce)
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	hash, err := paramHash(req.Params, 0, "txHash")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	receipt, err := s.backend.Receipt(r.Context(), hash)
	if err != nil {
		switch {
		case errors.Is(err, journal.ErrNotFound):
			writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "receipt not found", hash.Hex())
		case errors.Is(err, core.ErrJournalDisabled):
			writeError(w, http.StatusServiceUnavailable, req.ID, codeServerError, err.Error(), nil)
		default:
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load receipt", err.Error())
		}
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeServerError, core.ErrJournalDisabled.Error(), nil)
		return
	}
	var query EventQuery
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params[0], &query); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid event filter", err.Error())
			return
		}
	}
	filter := journal.EventFilter{Type: query.Type, FromHeight: query.FromHeight, Limit: query.Limit}
	if query.TxHash != "" {
		hash, err := parseHash(query.TxHash, "txHash")
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		filter.TxHash = &hash
	}
	list, err := s.events.Events(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load events", err.Error())
		return
	}
	writeResult(w, req.ID, formatEvents(list))
}

func (s *Server) handleChainInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, ChainInfoResult{
		ChainID:   s.backend.ChainID(),
		Height:    s.backend.Height(),
		StateRoot: s.backend.StateRoot(),
	})
}

func (s *Server) handleModuleActions(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	name, err := paramString(req.Params, 0, "txType")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	txType, ok := types.ParseTxType(name)
	if !ok || (txType != types.TxTypeAdmin && txType != types.TxTypeConfirm) {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "txType must be admin or confirm", name)
		return
	}
	writeResult(w, req.ID, core.ModuleActions(txType))
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, err := paramAddress(req.Params, 0, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	asset := optionalString(req.Params, 1)
	if asset == "" {
		info, err := s.backend.TokenInfo()
		if err != nil {
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load token info", err.Error())
			return
		}
		asset = info.Symbol
	}
	balance, err := s.backend.Balance(addr, asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "failed to load balance", err.Error())
		return
	}
	writeResult(w, req.ID, BalanceResult{Address: addr.Hex(), Asset: asset, Balance: balance})
}

func (s *Server) handleTokenAllowance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	owner, err := paramAddress(req.Params, 0, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	spender, err := paramAddress(req.Params, 1, "spender")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	allowance, err := s.backend.Allowance(owner, spender)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load allowance", err.Error())
		return
	}
	writeResult(w, req.ID, allowance)
}

func (s *Server) handleTokenInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	info, err := s.backend.TokenInfo()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load token info", err.Error())
		return
	}
	writeResult(w, req.ID, info)
}

func (s *Server) handlePresaleStats(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	stats, err := s.backend.PresaleStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load presale stats", err.Error())
		return
	}
	writeResult(w, req.ID, stats)
}

func (s *Server) handlePresalePhase(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var number uint64
	if len(req.Params) > 0 {
		n, err := parseUintParam(req.Params[0], "phase")
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		number = n
	}
	view, err := s.backend.PresalePhase(number)
	if err != nil {
		if errors.Is(err, presale.ErrUnknownPhase) {
			writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "phase not found", number)
			return
		}
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load phase", err.Error())
		return
	}
	writeResult(w, req.ID, view)
}

func (s *Server) handlePresalePurchase(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	buyer, err := paramAddress(req.Params, 0, "buyer")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	view, err := s.backend.PresalePurchase(buyer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load purchase", err.Error())
		return
	}
	writeResult(w, req.ID, view)
}

func (s *Server) handleListingPrice(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	low, high, err := s.backend.ListingPrice()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to compute listing price", err.Error())
		return
	}
	writeResult(w, req.ID, ListingPriceResult{Low: low, High: high})
}

func (s *Server) handleVestingRecord(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, err := paramAddress(req.Params, 0, "beneficiary")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	view, ok, err := s.backend.VestingRecord(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load vesting record", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "no vesting allocation", addr.Hex())
		return
	}
	writeResult(w, req.ID, view)
}

func (s *Server) handleVestingStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	status, err := s.backend.VestingStatus()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load vesting status", err.Error())
		return
	}
	writeResult(w, req.ID, status)
}

func (s *Server) handleOracleQuote(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	asset, err := paramString(req.Params, 0, "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	quote, ok, err := s.backend.OracleQuote(asset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load quote", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "no price reported", asset)
		return
	}
	writeResult(w, req.ID, formatQuote(quote))
}

func (s *Server) handleMultisigOperation(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	module, err := paramString(req.Params, 0, "module")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := paramHash(req.Params, 1, "operationId")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, ok, err := s.backend.MultisigOperation(module, id)
	if err != nil {
		if errors.Is(err, core.ErrUnknownModule) {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load operation", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "operation not found", id.Hex())
		return
	}
	writeResult(w, req.ID, formatOperation(record))
}

func (s *Server) handleMultisigNonce(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	module, err := paramString(req.Params, 0, "module")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	nonce, err := s.backend.MultisigNonce(module)
	if err != nil {
		if errors.Is(err, core.ErrUnknownModule) {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load multisig nonce", err.Error())
		return
	}
	writeResult(w, req.ID, nonce)
}

func (s *Server) handleRoleMembers(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	scope, err := paramString(req.Params, 0, "scope")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	role, err := paramString(req.Params, 1, "role")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	members, err := s.backend.RoleMembers(scope, role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load role members", err.Error())
		return
	}
	writeResult(w, req.ID, formatAddresses(members))
}
