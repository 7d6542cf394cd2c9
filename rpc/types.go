package rpc

import (
	"encoding/json"
	"net/http"
)

const jsonRPCVersion = "2.0"

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeNotFound       = -32004
	codeTxRejected     = -32010
	codeRateLimited    = -32020
	codeUnavailable    = -32030
)

// RPCRequest is a JSON-RPC 2.0 call. Params are positional.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// failure carries the HTTP status alongside the JSON-RPC error of a handler.
type failure struct {
	status int
	err    RPCError
}

func fail(status, code int, message string, data interface{}) *failure {
	return &failure{status: status, err: RPCError{Code: code, Message: message, Data: data}}
}

func writeError(w http.ResponseWriter, status int, id interface{}, rpcErr RPCError) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &rpcErr})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// MarketplaceResult describes a registered marketplace.
type MarketplaceResult struct {
	Address         string `json:"address"`
	Name            string `json:"name"`
	Admin           string `json:"admin"`
	FeeBps          uint16 `json:"feeBps"`
	Treasury        string `json:"treasury"`
	TreasuryBalance string `json:"treasuryBalance"`
	RewardMint      string `json:"rewardMint"`
	RewardDecimals  uint8  `json:"rewardDecimals"`
	RewardSupply    string `json:"rewardSupply"`
}

// ListingResult describes an active listing.
type ListingResult struct {
	Address     string `json:"address"`
	Marketplace string `json:"marketplace"`
	Maker       string `json:"maker"`
	Asset       string `json:"asset"`
	Price       string `json:"price"`
	Vault       string `json:"vault"`
}

type BalanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

type TokenBalanceResult struct {
	Owner   string `json:"owner"`
	Mint    string `json:"mint"`
	Balance string `json:"balance"`
}

// SaleResult is one indexed purchase.
type SaleResult struct {
	Listing  string `json:"listing"`
	Maker    string `json:"maker"`
	Taker    string `json:"taker"`
	Asset    string `json:"asset"`
	Price    string `json:"price"`
	Fee      string `json:"fee"`
	Proceeds string `json:"proceeds"`
	Reward   string `json:"reward"`
	Time     int64  `json:"time"`
}

// FeeTotalsResult sums the indexed sales of a marketplace.
type FeeTotalsResult struct {
	Marketplace string `json:"marketplace"`
	Treasury    string `json:"treasury"`
	Sales       string `json:"sales"`
	Gross       string `json:"gross"`
	Fees        string `json:"fees"`
	Proceeds    string `json:"proceeds"`
}

type SendTransactionResult struct {
	TxHash string        `json:"txHash"`
	From   string        `json:"from"`
	Events []EventResult `json:"events"`
}

type EventResult struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
