// Package ledger tracks position balances. Every position kind is a
// distinct asset: LP shares and withdrawal shares are singleton
// assets, while longs and shorts get one asset per maturity time so
// that positions minted in different checkpoints never commingle.
package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

var (
	// ErrInsufficientBalance is returned when a burn or transfer
	// exceeds the holder's balance.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
)

// Kind enumerates the position asset classes.
type Kind uint8

const (
	KindLP Kind = iota
	KindLong
	KindShort
	KindWithdrawalShare
)

func (k Kind) String() string {
	switch k {
	case KindLP:
		return "lp"
	case KindLong:
		return "long"
	case KindShort:
		return "short"
	case KindWithdrawalShare:
		return "withdrawal-share"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// AssetID identifies one asset. MaturityTime is zero for the LP and
// withdrawal-share assets.
type AssetID struct {
	Kind         Kind
	MaturityTime int64
}

// LPAssetID is the singleton LP share asset.
func LPAssetID() AssetID {
	return AssetID{Kind: KindLP}
}

// WithdrawalShareAssetID is the singleton withdrawal share asset.
func WithdrawalShareAssetID() AssetID {
	return AssetID{Kind: KindWithdrawalShare}
}

// LongAssetID returns the long asset maturing at the given time.
func LongAssetID(maturityTime int64) AssetID {
	return AssetID{Kind: KindLong, MaturityTime: maturityTime}
}

// ShortAssetID returns the short asset maturing at the given time.
func ShortAssetID(maturityTime int64) AssetID {
	return AssetID{Kind: KindShort, MaturityTime: maturityTime}
}

func (a AssetID) String() string {
	if a.MaturityTime == 0 {
		return a.Kind.String()
	}
	return fmt.Sprintf("%s:%d", a.Kind, a.MaturityTime)
}

// Ledger mints, burns and reports position balances. Implementations
// are not required to be safe for concurrent use; the pool serializes
// all mutations.
type Ledger interface {
	Mint(id AssetID, owner common.Address, amount fixedpoint.FixedPoint) error
	Burn(id AssetID, owner common.Address, amount fixedpoint.FixedPoint) error
	Transfer(id AssetID, from, to common.Address, amount fixedpoint.FixedPoint) error
	BalanceOf(id AssetID, owner common.Address) fixedpoint.FixedPoint
	TotalSupply(id AssetID) fixedpoint.FixedPoint
}

// MemoryLedger is the in-process Ledger implementation.
type MemoryLedger struct {
	balances map[AssetID]map[common.Address]fixedpoint.FixedPoint
	supply   map[AssetID]fixedpoint.FixedPoint
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[AssetID]map[common.Address]fixedpoint.FixedPoint),
		supply:   make(map[AssetID]fixedpoint.FixedPoint),
	}
}

// Mint credits amount of the asset to owner.
func (l *MemoryLedger) Mint(id AssetID, owner common.Address, amount fixedpoint.FixedPoint) error {
	if amount.IsZero() {
		return nil
	}
	holders, ok := l.balances[id]
	if !ok {
		holders = make(map[common.Address]fixedpoint.FixedPoint)
		l.balances[id] = holders
	}
	holders[owner] = holders[owner].Add(amount)
	l.supply[id] = l.supply[id].Add(amount)
	return nil
}

// Burn debits amount of the asset from owner.
func (l *MemoryLedger) Burn(id AssetID, owner common.Address, amount fixedpoint.FixedPoint) error {
	holders := l.balances[id]
	bal := holders[owner]
	if amount.Gt(bal) {
		return fmt.Errorf("burn %s of %s from %s with balance %s: %w",
			amount, id, owner.Hex(), bal, ErrInsufficientBalance)
	}
	next, err := bal.Sub(amount)
	if err != nil {
		return err
	}
	if next.IsZero() {
		delete(holders, owner)
	} else {
		holders[owner] = next
	}
	remaining, err := l.supply[id].Sub(amount)
	if err != nil {
		return err
	}
	l.supply[id] = remaining
	return nil
}

// Transfer moves amount of the asset between owners.
func (l *MemoryLedger) Transfer(id AssetID, from, to common.Address, amount fixedpoint.FixedPoint) error {
	if err := l.Burn(id, from, amount); err != nil {
		return err
	}
	return l.Mint(id, to, amount)
}

// BalanceOf returns owner's balance of the asset.
func (l *MemoryLedger) BalanceOf(id AssetID, owner common.Address) fixedpoint.FixedPoint {
	bal, ok := l.balances[id][owner]
	if !ok {
		return fixedpoint.Zero()
	}
	return bal
}

// TotalSupply returns the outstanding amount of the asset.
func (l *MemoryLedger) TotalSupply(id AssetID) fixedpoint.FixedPoint {
	sup, ok := l.supply[id]
	if !ok {
		return fixedpoint.Zero()
	}
	return sup
}
