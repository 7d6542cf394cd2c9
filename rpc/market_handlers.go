package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"marketchain/core/types"
	"marketchain/crypto"
	"marketchain/native/marketplace"
	"marketchain/native/token"
	"marketchain/services/indexer"
)

func formatAddress(addr [20]byte) string { return crypto.MarketAddress(addr).String() }

func formatAmount(v uint64) string { return strconv.FormatUint(v, 10) }

func stringParam(req *RPCRequest, idx int, name string) (string, *failure) {
	if len(req.Params) <= idx {
		return "", fail(http.StatusBadRequest, codeInvalidParams, name+" parameter required", nil)
	}
	var value string
	if err := json.Unmarshal(req.Params[idx], &value); err != nil {
		return "", fail(http.StatusBadRequest, codeInvalidParams, "invalid "+name, err.Error())
	}
	return value, nil
}

func addressParam(req *RPCRequest, idx int, name string) ([20]byte, *failure) {
	value, failed := stringParam(req, idx, name)
	if failed != nil {
		return [20]byte{}, failed
	}
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return [20]byte{}, fail(http.StatusBadRequest, codeInvalidParams, "invalid "+name, err.Error())
	}
	return addr, nil
}

// stateFailure maps domain errors onto JSON-RPC errors.
func stateFailure(err error) *failure {
	switch {
	case errors.Is(err, marketplace.ErrMarketplaceNotFound),
		errors.Is(err, marketplace.ErrListingNotFound),
		errors.Is(err, token.ErrMintNotFound):
		return fail(http.StatusNotFound, codeNotFound, err.Error(), nil)
	case errors.Is(err, marketplace.ErrNameEmpty), errors.Is(err, marketplace.ErrNameTooLong):
		return fail(http.StatusBadRequest, codeInvalidParams, err.Error(), nil)
	default:
		return fail(http.StatusInternalServerError, codeServerError, "state query failed", err.Error())
	}
}

func (s *Server) handleSendTransaction(ctx context.Context, req *RPCRequest) (interface{}, *failure) {
	if len(req.Params) == 0 {
		return nil, fail(http.StatusBadRequest, codeInvalidParams, "transaction parameter required", nil)
	}
	var tx types.Transaction
	if err := json.Unmarshal(req.Params[0], &tx); err != nil {
		return nil, fail(http.StatusBadRequest, codeInvalidParams, "invalid transaction format", err.Error())
	}
	receipt, err := s.chain.ApplyTransaction(ctx, &tx)
	if err != nil {
		return nil, fail(http.StatusBadRequest, codeTxRejected, "transaction rejected", err.Error())
	}
	result := SendTransactionResult{
		TxHash: "0x" + hex.EncodeToString(receipt.TxHash[:]),
		From:   formatAddress(receipt.From),
		Events: make([]EventResult, 0, len(receipt.Events)),
	}
	for _, evt := range receipt.Events {
		result.Events = append(result.Events, EventResult{Type: evt.Type, Attributes: evt.Attributes})
	}
	return result, nil
}

func (s *Server) handleGetMarketplace(req *RPCRequest) (interface{}, *failure) {
	name, failed := stringParam(req, 0, "name")
	if failed != nil {
		return nil, failed
	}
	view, err := s.chain.Marketplace(name)
	if err != nil {
		return nil, stateFailure(err)
	}
	return MarketplaceResult{
		Address:         formatAddress(view.Address),
		Name:            view.Record.Name,
		Admin:           formatAddress(view.Record.Admin),
		FeeBps:          view.Record.FeeBps,
		Treasury:        formatAddress(view.Treasury),
		TreasuryBalance: formatAmount(view.TreasuryBalance),
		RewardMint:      formatAddress(view.RewardMint),
		RewardDecimals:  view.Record.RewardDecimals,
		RewardSupply:    formatAmount(view.RewardSupply),
	}, nil
}

func (s *Server) handleGetListing(req *RPCRequest) (interface{}, *failure) {
	name, failed := stringParam(req, 0, "marketplace")
	if failed != nil {
		return nil, failed
	}
	asset, failed := addressParam(req, 1, "asset")
	if failed != nil {
		return nil, failed
	}
	view, err := s.chain.Listing(name, asset)
	if err != nil {
		return nil, stateFailure(err)
	}
	return ListingResult{
		Address:     formatAddress(view.Address),
		Marketplace: formatAddress(view.Record.Marketplace),
		Maker:       formatAddress(view.Record.Maker),
		Asset:       formatAddress(view.Record.Asset),
		Price:       formatAmount(view.Record.Price),
		Vault:       formatAddress(view.Record.Vault),
	}, nil
}

func (s *Server) handleGetBalance(req *RPCRequest) (interface{}, *failure) {
	addr, failed := addressParam(req, 0, "address")
	if failed != nil {
		return nil, failed
	}
	account, err := s.chain.Account(addr)
	if err != nil {
		return nil, stateFailure(err)
	}
	return BalanceResult{Address: formatAddress(addr), Balance: formatAmount(account.Balance), Nonce: account.Nonce}, nil
}

func (s *Server) handleGetTokenBalance(req *RPCRequest) (interface{}, *failure) {
	owner, failed := addressParam(req, 0, "owner")
	if failed != nil {
		return nil, failed
	}
	mint, failed := addressParam(req, 1, "mint")
	if failed != nil {
		return nil, failed
	}
	balance, err := s.chain.TokenBalance(owner, mint)
	if err != nil {
		return nil, stateFailure(err)
	}
	return TokenBalanceResult{Owner: formatAddress(owner), Mint: formatAddress(mint), Balance: formatAmount(balance)}, nil
}

func (s *Server) handleGetSales(req *RPCRequest) (interface{}, *failure) {
	if s.index == nil {
		return nil, fail(http.StatusServiceUnavailable, codeUnavailable, "event index disabled", nil)
	}
	name, failed := stringParam(req, 0, "marketplace")
	if failed != nil {
		return nil, failed
	}
	limit := 50
	if len(req.Params) > 1 {
		if err := json.Unmarshal(req.Params[1], &limit); err != nil {
			return nil, fail(http.StatusBadRequest, codeInvalidParams, "limit must be an integer", err.Error())
		}
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	mkt, _, err := marketplace.MarketplaceAddress(name)
	if err != nil {
		return nil, stateFailure(err)
	}
	sales, err := s.index.Sales(mkt, limit)
	if err != nil {
		return nil, fail(http.StatusInternalServerError, codeServerError, "sales query failed", err.Error())
	}
	out := make([]SaleResult, 0, len(sales))
	for _, sale := range sales {
		out = append(out, SaleResult{
			Listing:  hexToAddress(sale.Listing),
			Maker:    hexToAddress(sale.Maker),
			Taker:    hexToAddress(sale.Taker),
			Asset:    hexToAddress(sale.Asset),
			Price:    sale.Price,
			Fee:      sale.Fee,
			Proceeds: sale.Proceeds,
			Reward:   sale.Reward,
			Time:     sale.CreatedAt.Unix(),
		})
	}
	return out, nil
}

func (s *Server) handleGetFeeTotals(req *RPCRequest) (interface{}, *failure) {
	if s.index == nil {
		return nil, fail(http.StatusServiceUnavailable, codeUnavailable, "event index disabled", nil)
	}
	name, failed := stringParam(req, 0, "marketplace")
	if failed != nil {
		return nil, failed
	}
	mkt, _, err := marketplace.MarketplaceAddress(name)
	if err != nil {
		return nil, stateFailure(err)
	}
	totals, err := s.index.FeeTotals(mkt)
	if err != nil {
		if errors.Is(err, indexer.ErrNotIndexed) {
			return nil, fail(http.StatusNotFound, codeNotFound, "marketplace not indexed", name)
		}
		return nil, fail(http.StatusInternalServerError, codeServerError, "fee totals query failed", err.Error())
	}
	return FeeTotalsResult{
		Marketplace: formatAddress(mkt),
		Treasury:    formatAddress(totals.Wallet),
		Sales:       formatAmount(totals.Count),
		Gross:       formatAmount(totals.Gross),
		Fees:        formatAmount(totals.Fee),
		Proceeds:    formatAmount(totals.Net),
	}, nil
}

// hexToAddress renders an indexed hex address in bech32 form, passing through
// values that do not decode.
func hexToAddress(value string) string {
	raw, err := hex.DecodeString(value)
	if err != nil || len(raw) != 20 {
		return value
	}
	var addr [20]byte
	copy(addr[:], raw)
	return formatAddress(addr)
}
