package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type methodHandler func(w http.ResponseWriter, req RPCRequest)

var mutatingMethods = map[string]bool{
	"vault_registerPool": true,
}

func (s *Server) methods() map[string]methodHandler {
	return map[string]methodHandler{
		"vault_isRegisteredPool": s.handleIsRegisteredPool,
		"vault_getPoolTokens":    s.handleGetPoolTokens,
		"vault_getPoolBalance":   s.handleGetPoolBalance,
		"vault_getReserves":      s.handleGetReserves,
		"vault_getShareBalance":  s.handleGetShareBalance,
		"vault_getTotalSupply":   s.handleGetTotalSupply,
		"vault_getAllowance":     s.handleGetAllowance,
		"vault_registerPool":     s.handleRegisterPool,
	}
}

func decodeParams(req RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected a single params object")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddressParam(raw, field string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%s must be a hex address", field)
	}
	return common.HexToAddress(trimmed), nil
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func (s *Server) handleIsRegisteredPool(w http.ResponseWriter, req RPCRequest) {
	var params struct {
		Pool string `json:"pool"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	pool, err := parseAddressParam(params.Pool, "pool")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	registered, err := s.engine.IsRegisteredPool(pool)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return
	}
	writeResult(w, req.ID, map[string]bool{"registered": registered})
}

func (s *Server) handleGetPoolTokens(w http.ResponseWriter, req RPCRequest) {
	var params struct {
		Pool string `json:"pool"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	pool, err := parseAddressParam(params.Pool, "pool")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	tokens, balances, err := s.engine.GetPoolTokens(pool)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error())
		return
	}
	tokenHexes := make([]string, len(tokens))
	balanceStrings := make([]string, len(balances))
	for i := range tokens {
		tokenHexes[i] = strings.ToLower(tokens[i].Hex())
		balanceStrings[i] = amountString(balances[i])
	}
	writeResult(w, req.ID, map[string]interface{}{
		"tokens":   tokenHexes,
		"balances": balanceStrings,
	})
}

func (s *Server) handleGetPoolBalance(w http.ResponseWriter, req RPCRequest) {
	var params struct {
		Pool  string `json:"pool"`
		Token string `json:"token"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	pool, err := parseAddressParam(params.Pool, "pool")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	token, err := parseAddressParam(params.Token, "token")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	balance, err := s.engine.PoolBalance(pool, token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{
		"cash":    amountString(balance.Cash),
		"managed": amountString(balance.Managed),
	})
}

func (s *Server) handleGetReserves(w http.ResponseWriter, req RPCRequest) {
	var params struct {
		Token string `json:"token"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	token, err := parseAddressParam(params.Token, "token")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	reserves, err := s.engine.Reserves(token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{"reserves": amountString(reserves)})
}

func (s *Server) handleGetShareBalance(w http.ResponseWriter, req RPCRequest) {
	var params struct {
		Pool   string `json:"pool"`
		Holder string `json:"holder"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	pool, err := parseAddressParam(params.Pool, "pool")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	holder, err := parseAddressParam(params.Holder, "holder")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	balance, err := s.shares.BalanceOf(pool, holder)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{"balance": amountString(balance)})
}

func (s *Server) handleGetTotalSupply(w http.ResponseWriter, req RPCRequest) {
	var params struct {
		Pool string `json:"pool"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	pool, err := parseAddressParam(params.Pool, "pool")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	supply, err := s.shares.TotalSupply(pool)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{"totalSupply": amountString(supply)})
}

func (s *Server) handleGetAllowance(w http.ResponseWriter, req RPCRequest) {
	var params struct {
		Pool    string `json:"pool"`
		Owner   string `json:"owner"`
		Spender string `json:"spender"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	pool, err := parseAddressParam(params.Pool, "pool")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	owner, err := parseAddressParam(params.Owner, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	spender, err := parseAddressParam(params.Spender, "spender")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	allowance, err := s.shares.Allowance(pool, owner, spender)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{"allowance": amountString(allowance)})
}

func (s *Server) handleRegisterPool(w http.ResponseWriter, req RPCRequest) {
	var params struct {
		Pool     string   `json:"pool"`
		Tokens   []string `json:"tokens"`
		Managers []string `json:"managers,omitempty"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	pool, err := parseAddressParam(params.Pool, "pool")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	tokens := make([]common.Address, len(params.Tokens))
	for i, raw := range params.Tokens {
		tokens[i], err = parseAddressParam(raw, "tokens")
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
			return
		}
	}
	var managers []common.Address
	if len(params.Managers) > 0 {
		managers = make([]common.Address, len(params.Managers))
		for i, raw := range params.Managers {
			managers[i], err = parseAddressParam(raw, "managers")
			if err != nil {
				writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
				return
			}
		}
	}
	if err := s.engine.RegisterPool(pool, tokens, managers); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error())
		return
	}
	writeResult(w, req.ID, map[string]bool{"registered": true})
}
