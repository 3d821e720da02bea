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

package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/types"
)

// dynamicTxType is the minimum EIP-2718 type byte carrying EIP-1559 fee
// fields (maxFeePerGas/maxPriorityFeePerGas) instead of a flat gasPrice.
const dynamicTxType = 2

// rpcHeader mirrors the subset of an eth_getBlockByNumber result Sieve
// needs, decoded independently of go-ethereum/core/types so normalization
// doesn't depend on that package's exact field layout across versions.
type rpcHeader struct {
	Number        *hexutil.Big   `json:"number"`
	Hash          common.Hash    `json:"hash"`
	ParentHash    common.Hash    `json:"parentHash"`
	Timestamp     hexutil.Uint64 `json:"timestamp"`
	GasUsed       hexutil.Uint64 `json:"gasUsed"`
	GasLimit      hexutil.Uint64 `json:"gasLimit"`
	BaseFeePerGas *hexutil.Big   `json:"baseFeePerGas"`
}

func normalizeHeader(c chain.Tag, raw json.RawMessage) (*types.Item, error) {
	var h rpcHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("ingest: decode header: %w", err)
	}
	if h.Number == nil {
		return nil, fmt.Errorf("ingest: header missing number")
	}
	hdr := &types.Header{
		Chain:      c,
		Number:     h.Number.ToInt().Uint64(),
		Hash:       h.Hash,
		ParentHash: h.ParentHash,
		Timestamp:  uint64(h.Timestamp),
		GasUsed:    uint64(h.GasUsed),
		GasLimit:   uint64(h.GasLimit),
	}
	if h.BaseFeePerGas != nil {
		if bf, overflow := uint256.FromBig(h.BaseFeePerGas.ToInt()); !overflow {
			hdr.BaseFee = bf
		}
	}
	item := types.NewItem(c, types.KindHeader)
	item.Header = hdr
	item.Raw = raw
	return item, nil
}

// rpcAccessTuple mirrors one EIP-2930 access list entry on the wire.
type rpcAccessTuple struct {
	Address     common.Address `json:"address"`
	StorageKeys []common.Hash  `json:"storageKeys"`
}

// rpcTransaction mirrors the fields an eth_getTransactionByHash /
// eth_getTransactionByBlockHashAndIndex result carries beyond the raw signed
// transaction: the node-attached from/blockNumber/blockHash/index.
type rpcTransaction struct {
	Hash                 common.Hash      `json:"hash"`
	From                 common.Address   `json:"from"`
	To                   *common.Address  `json:"to"`
	Value                *hexutil.Big     `json:"value"`
	Nonce                hexutil.Uint64   `json:"nonce"`
	Gas                  hexutil.Uint64   `json:"gas"`
	GasPrice             *hexutil.Big     `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big     `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big     `json:"maxPriorityFeePerGas"`
	Input                hexutil.Bytes    `json:"input"`
	AccessList           []rpcAccessTuple `json:"accessList"`
	Type                 *hexutil.Uint64  `json:"type"`
	BlockNumber          *hexutil.Big     `json:"blockNumber"`
	BlockHash            *common.Hash     `json:"blockHash"`
	TransactionIndex     *hexutil.Uint64  `json:"transactionIndex"`
}

func (t *rpcTransaction) toFields() types.TxFields {
	f := types.TxFields{
		Hash:  t.Hash,
		From:  t.From,
		To:    t.To,
		Nonce: uint64(t.Nonce),
		Gas:   uint64(t.Gas),
		Input: []byte(t.Input),
		Value: uint256.NewInt(0),
	}
	if t.Value != nil {
		if v, overflow := uint256.FromBig(t.Value.ToInt()); !overflow {
			f.Value = v
		}
	}
	if t.Type != nil && uint64(*t.Type) >= dynamicTxType {
		if t.MaxFeePerGas != nil {
			if v, overflow := uint256.FromBig(t.MaxFeePerGas.ToInt()); !overflow {
				f.MaxFee = v
			}
		}
		if t.MaxPriorityFeePerGas != nil {
			if v, overflow := uint256.FromBig(t.MaxPriorityFeePerGas.ToInt()); !overflow {
				f.MaxPriority = v
			}
		}
	} else if t.GasPrice != nil {
		if v, overflow := uint256.FromBig(t.GasPrice.ToInt()); !overflow {
			f.GasPrice = v
		}
	}
	if len(t.AccessList) > 0 {
		f.AccessList = make([]types.AccessTuple, len(t.AccessList))
		for i, a := range t.AccessList {
			f.AccessList[i] = types.AccessTuple{Address: a.Address, StorageKeys: a.StorageKeys}
		}
	}
	return f
}

// normalizeConfirmedTx decodes a mined rpcTransaction into a ConfirmedTx
// item. Receipt is left nil: it is populated on demand by ReceiptFetcher.
func normalizeConfirmedTx(c chain.Tag, raw json.RawMessage) (*types.Item, error) {
	var t rpcTransaction
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("ingest: decode transaction: %w", err)
	}
	if t.BlockNumber == nil || t.BlockHash == nil || t.TransactionIndex == nil {
		return nil, fmt.Errorf("ingest: transaction %s has no inclusion info", t.Hash)
	}
	item := types.NewItem(c, types.KindConfirmedTx)
	item.ConfirmedTx = &types.ConfirmedTx{
		Chain:       c,
		BlockNumber: t.BlockNumber.ToInt().Uint64(),
		BlockHash:   *t.BlockHash,
		Index:       uint32(*t.TransactionIndex),
		Fields:      t.toFields(),
	}
	item.Raw = raw
	return item, nil
}

// normalizePendingTx decodes a mempool rpcTransaction into a PendingTx item,
// stamping firstSeen as the pipeline's own observation time: the RPC
// payload itself carries no "first seen" timestamp.
func normalizePendingTx(c chain.Tag, raw json.RawMessage, firstSeen time.Time) (*types.Item, error) {
	var t rpcTransaction
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("ingest: decode pending transaction: %w", err)
	}
	item := types.NewItem(c, types.KindPendingTx)
	item.PendingTx = &types.PendingTx{
		Chain:       c,
		Fields:      t.toFields(),
		FirstSeenTS: firstSeen,
	}
	item.Raw = raw
	return item, nil
}

// rpcLog mirrors one eth_getLogs / subscription "logs" entry.
type rpcLog struct {
	Address         common.Address `json:"address"`
	Topics          []common.Hash  `json:"topics"`
	Data            hexutil.Bytes  `json:"data"`
	BlockNumber     hexutil.Uint64 `json:"blockNumber"`
	TransactionHash common.Hash    `json:"transactionHash"`
	LogIndex        hexutil.Uint64 `json:"logIndex"`
	Removed         bool           `json:"removed"`
}

func normalizeLog(c chain.Tag, raw json.RawMessage) (*types.Item, error) {
	var l rpcLog
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("ingest: decode log: %w", err)
	}
	item := types.NewItem(c, types.KindLog)
	item.Log = &types.Log{
		Chain:       c,
		BlockNumber: uint64(l.BlockNumber),
		TxHash:      l.TransactionHash,
		LogIndex:    uint32(l.LogIndex),
		Address:     l.Address,
		Topics:      l.Topics,
		Data:        []byte(l.Data),
	}
	item.Raw = raw
	return item, nil
}

// rpcReceipt mirrors an eth_getTransactionReceipt result.
type rpcReceipt struct {
	Status            hexutil.Uint64  `json:"status"`
	CumulativeGasUsed hexutil.Uint64  `json:"cumulativeGasUsed"`
	GasUsed           hexutil.Uint64  `json:"gasUsed"`
	ContractAddress   *common.Address `json:"contractAddress"`
	EffectiveGasPrice *hexutil.Big    `json:"effectiveGasPrice"`
	Logs              []rpcLog        `json:"logs"`
}

func normalizeReceipt(c chain.Tag, raw json.RawMessage) (*types.Receipt, error) {
	var r rpcReceipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("ingest: decode receipt: %w", err)
	}
	rc := &types.Receipt{
		Status:            uint64(r.Status),
		CumulativeGasUsed: uint64(r.CumulativeGasUsed),
		GasUsed:           uint64(r.GasUsed),
		ContractAddress:   r.ContractAddress,
	}
	if r.EffectiveGasPrice != nil {
		if v, overflow := uint256.FromBig(r.EffectiveGasPrice.ToInt()); !overflow {
			rc.EffectiveGasPrice = v
		}
	}
	if len(r.Logs) > 0 {
		rc.Logs = make([]*types.Log, len(r.Logs))
		for i, l := range r.Logs {
			rc.Logs[i] = &types.Log{
				Chain:       c,
				BlockNumber: uint64(l.BlockNumber),
				TxHash:      l.TransactionHash,
				LogIndex:    uint32(l.LogIndex),
				Address:     l.Address,
				Topics:      l.Topics,
				Data:        []byte(l.Data),
			}
		}
	}
	return rc, nil
}
