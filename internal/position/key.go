// Package position owns the authoritative map of venue-keyed positions
// and the canonical PositionKey / Position / PositionSnapshot types.
package position

import (
	"fmt"
	"strings"
)

// Venue enumerates the recognized position venues.
type Venue string

const (
	VenueAaveV3   Venue = "aave_v3"
	VenueMorpho   Venue = "morpho"
	VenueEtherFi  Venue = "etherfi"
	VenueLido     Venue = "lido"
	VenueBinance  Venue = "binance"
	VenueBybit    Venue = "bybit"
	VenueOKX      Venue = "okx"
	VenueWallet   Venue = "wallet"
)

// Type enumerates the recognized position types.
type Type string

const (
	TypeBaseToken     Type = "BaseToken"
	TypeAToken        Type = "aToken"
	TypeVariableDebt  Type = "variableDebt"
	TypeSpot          Type = "spot"
	TypePerp          Type = "perp"
	TypeStaked        Type = "staked"
)

// Key is the canonical, hashable, value-typed position identifier:
// venue:position_type:symbol.
type Key struct {
	Venue  Venue
	Type   Type
	Symbol string
}

func NewKey(venue Venue, typ Type, symbol string) Key {
	return Key{Venue: venue, Type: typ, Symbol: symbol}
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Venue, k.Type, k.Symbol)
}

// ParseKey reverses Key.String, for call sites (order deltas, venue
// handshakes) that carry keys in their string form across package
// boundaries rather than importing this package's Key type directly.
func ParseKey(s string) (Key, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("malformed position key %q", s)
	}
	return Key{Venue: Venue(parts[0]), Type: Type(parts[1]), Symbol: parts[2]}, nil
}

// IsDebt reports whether the key's position type carries debt semantics:
// debt positions carry positive scaled values under variableDebt.
func (k Key) IsDebt() bool {
	return k.Type == TypeVariableDebt
}

// IsLendingToken reports whether the key's underlying quantity must be
// derived via a protocol index rather than taken at face value.
func (k Key) IsLendingToken() bool {
	return k.Type == TypeAToken || k.Type == TypeVariableDebt
}

// IsPerp reports whether the key represents a CEX perpetual position,
// which is margin-collateralized rather than asset-held.
func (k Key) IsPerp() bool {
	return k.Type == TypePerp
}
