// Copyright 2026 The sieve Authors
// This file is part of the sieve library.
//
// The sieve library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The sieve library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the sieve library. If not, see <http://www.gnu.org/licenses/>.

// Package types defines the normalized item schema Sieve filters operate
// over: headers, confirmed transactions, pending transactions, logs, and
// the synthetic reorg marker.
package types

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/sieve-xyz/sieve/chain"
)

// Kind tags the concrete payload carried by an Item.
type Kind uint8

const (
	KindHeader Kind = iota
	KindConfirmedTx
	KindPendingTx
	KindLog
	KindReorgMarker
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindConfirmedTx:
		return "confirmed_tx"
	case KindPendingTx:
		return "pending_tx"
	case KindLog:
		return "log"
	case KindReorgMarker:
		return "reorg_marker"
	default:
		return "unknown"
	}
}

// Item is one normalized unit ingested from a chain. Exactly one of the
// payload fields below is populated, matching Kind.
type Item struct {
	Chain chain.Tag
	Kind  Kind

	Header      *Header
	ConfirmedTx *ConfirmedTx
	PendingTx   *PendingTx
	Log         *Log
	Reorg       *ReorgMarker

	// Raw is the unparsed RPC payload backing this item, consulted by the
	// dynamic field fallback in package schema when no hardcoded accessor
	// matches a requested path.
	Raw json.RawMessage

	// ingestedAt is used for watch_within window arithmetic.
	ingestedAt time.Time
}

// IngestedAt reports when the pipeline normalized this item.
func (it *Item) IngestedAt() time.Time { return it.ingestedAt }

// NewItem stamps the current time as the item's ingestion timestamp; called
// exactly once by the ingestion pipeline's normalization step.
func NewItem(c chain.Tag, k Kind) *Item {
	return &Item{Chain: c, Kind: k, ingestedAt: time.Now()}
}

// WithIngestedAt overrides the ingestion timestamp; used by tests that need
// deterministic window arithmetic.
func (it *Item) WithIngestedAt(t time.Time) *Item {
	it.ingestedAt = t
	return it
}

// BlockNumber returns the item's block number and whether one applies.
// PendingTx has none; Header/ConfirmedTx/Log/ReorgMarker do.
func (it *Item) BlockNumber() (uint64, bool) {
	switch it.Kind {
	case KindHeader:
		return it.Header.Number, true
	case KindConfirmedTx:
		return it.ConfirmedTx.BlockNumber, true
	case KindLog:
		return it.Log.BlockNumber, true
	case KindReorgMarker:
		return it.Reorg.ToNumber, true
	default:
		return 0, false
	}
}

// TxIndex returns the item's in-block transaction index and whether one
// applies, used for the monotonic (block, index) ordering guarantee.
func (it *Item) TxIndex() (uint64, bool) {
	switch it.Kind {
	case KindConfirmedTx:
		return uint64(it.ConfirmedTx.Index), true
	case KindLog:
		return uint64(it.Log.LogIndex), true
	default:
		return 0, false
	}
}

// Header is a block header, chain-tagged.
type Header struct {
	Chain      chain.Tag
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Timestamp  uint64
	GasUsed    uint64
	GasLimit   uint64
	BaseFee    *uint256.Int // nil if the chain/block predates EIP-1559
}

// TxFields are the fields common to confirmed and pending transactions.
type TxFields struct {
	Hash       common.Hash
	From       common.Address
	To         *common.Address // nil for contract creation
	Value      *uint256.Int
	Nonce      uint64
	Gas        uint64
	GasPrice   *uint256.Int // legacy gas price, nil for EIP-1559 txs
	MaxFee     *uint256.Int // EIP-1559 max fee per gas, nil for legacy txs
	MaxPriority *uint256.Int // EIP-1559 max priority fee per gas
	Input      []byte
	AccessList []AccessTuple
}

// AccessTuple is one entry of an EIP-2930 access list.
type AccessTuple struct {
	Address     common.Address
	StorageKeys []common.Hash
}

// EffectiveGasPrice returns the derived-cheap accessor value for
// "gas_price" on an EIP-1559 transaction given the block's base fee:
// min(MaxFee, BaseFee + MaxPriority).
func (f *TxFields) EffectiveGasPrice(baseFee *uint256.Int) *uint256.Int {
	if f.GasPrice != nil {
		return f.GasPrice
	}
	if f.MaxFee == nil || baseFee == nil {
		return nil
	}
	tip := f.MaxPriority
	if tip == nil {
		tip = uint256.NewInt(0)
	}
	sum := new(uint256.Int).Add(baseFee, tip)
	if sum.Cmp(f.MaxFee) > 0 {
		return f.MaxFee
	}
	return sum
}

// ConfirmedTx is a transaction included in a canonical block.
type ConfirmedTx struct {
	Chain       chain.Tag
	BlockNumber uint64
	BlockHash   common.Hash
	Index       uint32
	Fields      TxFields
	Receipt     *Receipt // nil until fetched; see schema.Decoded receipt fields
}

// PendingTx is a transaction observed in a chain's mempool.
type PendingTx struct {
	Chain       chain.Tag
	Fields      TxFields
	FirstSeenTS time.Time
}

// Receipt mirrors the subset of eth_getTransactionReceipt fields Sieve's
// schema exposes as "receipt.*" accessors.
type Receipt struct {
	Status            uint64
	CumulativeGasUsed uint64
	GasUsed           uint64
	ContractAddress   *common.Address
	Logs              []*Log
	EffectiveGasPrice *uint256.Int
}

// Log is a single event log entry.
type Log struct {
	Chain       chain.Tag
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint32
	Address     common.Address
	Topics      []common.Hash
	Data        []byte
}

// ReorgMarker is synthesized by the ingestion pipeline when a new header
// supersedes a previously emitted header at or below its height with a
// different hash.
type ReorgMarker struct {
	Chain      chain.Tag
	FromNumber uint64
	ToNumber   uint64
}
