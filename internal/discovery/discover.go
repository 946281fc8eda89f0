package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/mvoss-labs/pumpsentinel/internal/model"
)

// ErrNoActiveSymbols is returned when the exchange-info call succeeds but
// no contract is active (spec §7: "symbol list empty" is a discovery
// error). doWithRetry retries failed requests only, so a successful
// response with no active contract yields this error without a retry.
var ErrNoActiveSymbols = errors.New("discovery: no active symbols returned")

// ActiveSymbols fetches the active futures contract list (spec §6) and
// returns the symbols with is_active = true, intersected with wanted if
// wanted is non-empty (spec §6: "empty list ⇒ register all discovered
// symbols; otherwise the intersection with discovered active symbols").
func (c *Client) ActiveSymbols(ctx context.Context, wanted []model.Symbol) ([]model.Symbol, error) {
	var resp ContractsResponse
	if err := c.get(ctx, "/exchange/contracts", nil, &resp); err != nil {
		return nil, fmt.Errorf("discovery: fetch active contracts: %w", err)
	}

	want := make(map[model.Symbol]bool, len(wanted))
	for _, s := range wanted {
		want[s] = true
	}

	var active []model.Symbol
	for _, contract := range resp.Contracts {
		if !contract.IsActive {
			continue
		}
		sym := model.Symbol(contract.Symbol)
		if len(want) > 0 && !want[sym] {
			continue
		}
		active = append(active, sym)
	}

	if len(active) == 0 {
		return nil, ErrNoActiveSymbols
	}

	return active, nil
}
