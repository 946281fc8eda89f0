package discovery

// ContractsResponse is the exchange-info payload for active futures
// contracts (spec §6: "a single call at startup returning the list of
// active futures contracts").
type ContractsResponse struct {
	Contracts []Contract `json:"contracts"`
}

// Contract is one {symbol, is_active} tuple. Only IsActive contracts are
// registered (spec §6).
type Contract struct {
	Symbol   string `json:"symbol"`
	IsActive bool   `json:"is_active"`
}
