// Package discovery implements the out-of-scope (spec §1) REST discovery
// collaborator: a single startup call to the venue's exchange-info
// endpoint, returning {symbol, is_active} tuples intersected with the
// configured symbol set (spec §6).
package discovery
