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

package schema

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/decode"
	"github.com/sieve-xyz/sieve/types"
)

// ReceiptFetcher serves on-demand eth_getTransactionReceipt lookups for
// receipt.* field resolution when a ConfirmedTx's Receipt is not yet
// populated. Implemented by ingest.ReceiptFetcher; kept as a narrow local
// interface here so schema does not need to import package ingest's
// RPC/breaker machinery for one method.
type ReceiptFetcher interface {
	Fetch(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// defaultReceiptFetchTimeout bounds an on-demand receipt fetch triggered by
// evaluation, matching spec's request_timeout default.
const defaultReceiptFetchTimeout = 10 * time.Second

// Registry resolves dotted field paths to typed accessors, classified as
// Raw, DerivedCheap, or Decoded, falling back to dynamic heuristic
// extraction from the raw payload for chain-specific fields.
type Registry struct {
	decoder decode.Decoder

	mu              sync.RWMutex
	receiptFetchers map[chain.Tag]ReceiptFetcher
}

// NewRegistry builds a field registry. decoder may be nil, in which case
// Decoded field paths always resolve absent rather than erroring: a decode
// failure is logged and the item is still delivered with affected fields
// absent.
func NewRegistry(decoder decode.Decoder) *Registry {
	return &Registry{decoder: decoder, receiptFetchers: make(map[chain.Tag]ReceiptFetcher)}
}

// SetReceiptFetcher wires f as chain c's on-demand receipt source for
// receipt.* fields. Called once a conn.Supervisor has dialed and built its
// ingest.ReceiptFetcher; safe for concurrent use with field resolution.
func (r *Registry) SetReceiptFetcher(c chain.Tag, f ReceiptFetcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receiptFetchers[c] = f
}

func (r *Registry) receiptFetcherFor(c chain.Tag) ReceiptFetcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.receiptFetchers[c]
}

// fetchReceipt resolves a ConfirmedTx's receipt on demand via the chain's
// registered ReceiptFetcher, memoizing the result in dc under the
// pseudo-signature "receipt" so repeated receipt.* references for the same
// tx collapse to one fetch. Returns (nil, nil) if no fetcher is registered
// for the item's chain.
func (r *Registry) fetchReceipt(it *types.Item, dc *decode.Cache) (*types.Receipt, error) {
	fetcher := r.receiptFetcherFor(it.Chain)
	if fetcher == nil {
		return nil, nil
	}
	hash := it.ConfirmedTx.Fields.Hash
	compute := func() (map[string]any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), defaultReceiptFetchTimeout)
		defer cancel()
		rc, err := fetcher.Fetch(ctx, hash)
		if err != nil {
			return nil, err
		}
		return map[string]any{"receipt": rc}, nil
	}
	var (
		m   map[string]any
		err error
	)
	if dc != nil {
		m, err = dc.GetOrCompute(hash, "receipt", compute)
	} else {
		m, err = compute()
	}
	if err != nil {
		return nil, err
	}
	rc, _ := m["receipt"].(*types.Receipt)
	return rc, nil
}

// Resolve returns the accessor for path within scope, or ok=false if the
// path is not legal in that scope (a filter.Build()-time error). Legality is
// independent of whether the underlying item kind currently has the field
// populated — that is an evaluation-time "absent", not a build error.
func (r *Registry) Resolve(scope Scope, path string) (FieldDescriptor, bool) {
	if scope == ScopeChainSpecific {
		return FieldDescriptor{Path: path, Scope: scope, Kind: KindString, Class: Raw, Fn: r.dynamicAccessor(path)}, true
	}
	head, rest := splitPath(path)
	table := fieldTables[scope]
	if table == nil {
		return FieldDescriptor{}, false
	}
	build, ok := table[head]
	if !ok {
		return FieldDescriptor{}, false
	}
	return build(r, path, head, rest), true
}

// fieldBuilder constructs the FieldDescriptor for a known field head, given
// the full path and the (possibly empty) remainder after the head, e.g. for
// "topics[0]" head="topics" rest="[0]".
type fieldBuilder func(r *Registry, path, head, rest string) FieldDescriptor

var fieldTables = map[Scope]map[string]fieldBuilder{
	ScopeBlock:       blockFields,
	ScopeTransaction: txFields(types.KindConfirmedTx),
	ScopePool:        txFields(types.KindPendingTx),
	ScopeEvent:       eventFields,
}

var blockFields = map[string]fieldBuilder{
	"number": func(r *Registry, path, head, rest string) FieldDescriptor {
		return FieldDescriptor{Path: path, Scope: ScopeBlock, Kind: KindU64, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
			if it.Kind != types.KindHeader {
				return Absent, nil
			}
			return u64Value(it.Header.Number), nil
		}}
	},
	"hash": func(r *Registry, path, head, rest string) FieldDescriptor {
		return FieldDescriptor{Path: path, Scope: ScopeBlock, Kind: KindBytes, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
			if it.Kind != types.KindHeader {
				return Absent, nil
			}
			return bytesValue(it.Header.Hash.Bytes()), nil
		}}
	},
	"parent_hash": func(r *Registry, path, head, rest string) FieldDescriptor {
		return FieldDescriptor{Path: path, Scope: ScopeBlock, Kind: KindBytes, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
			if it.Kind != types.KindHeader {
				return Absent, nil
			}
			return bytesValue(it.Header.ParentHash.Bytes()), nil
		}}
	},
	"timestamp": func(r *Registry, path, head, rest string) FieldDescriptor {
		return FieldDescriptor{Path: path, Scope: ScopeBlock, Kind: KindU64, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
			if it.Kind != types.KindHeader {
				return Absent, nil
			}
			return u64Value(it.Header.Timestamp), nil
		}}
	},
	"gas_used": func(r *Registry, path, head, rest string) FieldDescriptor {
		return FieldDescriptor{Path: path, Scope: ScopeBlock, Kind: KindU64, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
			if it.Kind != types.KindHeader {
				return Absent, nil
			}
			return u64Value(it.Header.GasUsed), nil
		}}
	},
	"gas_limit": func(r *Registry, path, head, rest string) FieldDescriptor {
		return FieldDescriptor{Path: path, Scope: ScopeBlock, Kind: KindU64, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
			if it.Kind != types.KindHeader {
				return Absent, nil
			}
			return u64Value(it.Header.GasLimit), nil
		}}
	},
	"base_fee": func(r *Registry, path, head, rest string) FieldDescriptor {
		return FieldDescriptor{Path: path, Scope: ScopeBlock, Kind: KindU256, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
			if it.Kind != types.KindHeader || it.Header.BaseFee == nil {
				return Absent, nil
			}
			return u256Value(it.Header.BaseFee), nil
		}}
	},
}

// txFields builds the field table shared by the transaction (confirmed) and
// pool (pending) scopes, which address the same TxFields shape; kind
// distinguishes which Item.Kind the accessor reads from.
func txFields(kind types.Kind) map[string]fieldBuilder {
	fields := func(it *types.Item) *types.TxFields {
		switch kind {
		case types.KindConfirmedTx:
			if it.Kind != types.KindConfirmedTx {
				return nil
			}
			return &it.ConfirmedTx.Fields
		case types.KindPendingTx:
			if it.Kind != types.KindPendingTx {
				return nil
			}
			return &it.PendingTx.Fields
		default:
			return nil
		}
	}
	scope := ScopeTransaction
	if kind == types.KindPendingTx {
		scope = ScopePool
	}
	table := map[string]fieldBuilder{
		"hash": func(r *Registry, path, head, rest string) FieldDescriptor {
			return FieldDescriptor{Path: path, Scope: scope, Kind: KindBytes, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
				f := fields(it)
				if f == nil {
					return Absent, nil
				}
				return bytesValue(f.Hash.Bytes()), nil
			}}
		},
		"from": func(r *Registry, path, head, rest string) FieldDescriptor {
			return FieldDescriptor{Path: path, Scope: scope, Kind: KindAddress, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
				f := fields(it)
				if f == nil {
					return Absent, nil
				}
				return addrValue(f.From), nil
			}}
		},
		"to": func(r *Registry, path, head, rest string) FieldDescriptor {
			return FieldDescriptor{Path: path, Scope: scope, Kind: KindAddress, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
				f := fields(it)
				if f == nil || f.To == nil {
					return Absent, nil
				}
				return addrValue(*f.To), nil
			}}
		},
		"value": func(r *Registry, path, head, rest string) FieldDescriptor {
			return FieldDescriptor{Path: path, Scope: scope, Kind: KindU256, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
				f := fields(it)
				if f == nil {
					return Absent, nil
				}
				return u256Value(f.Value), nil
			}}
		},
		"nonce": func(r *Registry, path, head, rest string) FieldDescriptor {
			return FieldDescriptor{Path: path, Scope: scope, Kind: KindU64, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
				f := fields(it)
				if f == nil {
					return Absent, nil
				}
				return u64Value(f.Nonce), nil
			}}
		},
		"gas": func(r *Registry, path, head, rest string) FieldDescriptor {
			return FieldDescriptor{Path: path, Scope: scope, Kind: KindU64, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
				f := fields(it)
				if f == nil {
					return Absent, nil
				}
				return u64Value(f.Gas), nil
			}}
		},
		"gas_price": func(r *Registry, path, head, rest string) FieldDescriptor {
			return FieldDescriptor{Path: path, Scope: scope, Kind: KindU256, Class: DerivedCheap, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
				f := fields(it)
				if f == nil {
					return Absent, nil
				}
				if f.GasPrice != nil {
					return u256Value(f.GasPrice), nil
				}
				// EIP-1559 tx and no block base fee is known at this layer;
				// MaxFee is the best cheap upper-bound approximation.
				return u256Value(f.MaxFee), nil
			}}
		},
		"input": func(r *Registry, path, head, rest string) FieldDescriptor {
			return FieldDescriptor{Path: path, Scope: scope, Kind: KindBytes, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
				f := fields(it)
				if f == nil {
					return Absent, nil
				}
				return bytesValue(f.Input), nil
			}}
		},
		"access_list": func(r *Registry, path, head, rest string) FieldDescriptor {
			return FieldDescriptor{Path: path, Scope: scope, Kind: KindList, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
				f := fields(it)
				if f == nil || len(f.AccessList) == 0 {
					return Absent, nil
				}
				list := make([]Value, len(f.AccessList))
				for i, t := range f.AccessList {
					list[i] = addrValue(t.Address)
				}
				return Value{Kind: KindList, List: list}, nil
			}}
		},
	}
	if kind == types.KindPendingTx {
		table["first_seen_ts"] = func(r *Registry, path, head, rest string) FieldDescriptor {
			return FieldDescriptor{Path: path, Scope: scope, Kind: KindU64, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
				if it.Kind != types.KindPendingTx {
					return Absent, nil
				}
				return u64Value(uint64(it.PendingTx.FirstSeenTS.Unix())), nil
			}}
		}
	}
	if kind == types.KindConfirmedTx {
		table["receipt"] = func(r *Registry, path, head, rest string) FieldDescriptor {
			sub := strings.TrimPrefix(rest, ".")
			return FieldDescriptor{Path: path, Scope: scope, Kind: receiptKind(sub), Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
				if it.Kind != types.KindConfirmedTx {
					return Absent, nil
				}
				rc := it.ConfirmedTx.Receipt
				if rc == nil {
					fetched, err := r.fetchReceipt(it, dc)
					if err != nil {
						return Absent, err
					}
					rc = fetched
				}
				if rc == nil {
					return Absent, nil
				}
				return resolveReceiptField(rc, sub), nil
			}}
		}
		table["input"] = func(r *Registry, path, head, rest string) FieldDescriptor {
			if strings.HasPrefix(rest, ".method") {
				return FieldDescriptor{Path: path, Scope: scope, Kind: KindString, Class: Decoded, Fn: r.decodedMethodAccessor()}
			}
			return FieldDescriptor{Path: path, Scope: scope, Kind: KindBytes, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
				f := fields(it)
				if f == nil {
					return Absent, nil
				}
				return bytesValue(f.Input), nil
			}}
		}
	}
	return table
}

func receiptKind(sub string) Kind {
	switch sub {
	case "status", "cumulative_gas_used", "gas_used":
		return KindU64
	case "contract_address":
		return KindAddress
	case "effective_gas_price":
		return KindU256
	default:
		return KindAbsent
	}
}

func resolveReceiptField(rc *types.Receipt, sub string) Value {
	switch sub {
	case "status":
		return u64Value(rc.Status)
	case "cumulative_gas_used":
		return u64Value(rc.CumulativeGasUsed)
	case "gas_used":
		return u64Value(rc.GasUsed)
	case "contract_address":
		if rc.ContractAddress == nil {
			return Absent
		}
		return addrValue(*rc.ContractAddress)
	case "effective_gas_price":
		return u256Value(rc.EffectiveGasPrice)
	default:
		return Absent
	}
}

var eventFields = map[string]fieldBuilder{
	"address": func(r *Registry, path, head, rest string) FieldDescriptor {
		return FieldDescriptor{Path: path, Scope: ScopeEvent, Kind: KindAddress, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
			if it.Kind != types.KindLog {
				return Absent, nil
			}
			return addrValue(it.Log.Address), nil
		}}
	},
	"block_number": func(r *Registry, path, head, rest string) FieldDescriptor {
		return FieldDescriptor{Path: path, Scope: ScopeEvent, Kind: KindU64, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
			if it.Kind != types.KindLog {
				return Absent, nil
			}
			return u64Value(it.Log.BlockNumber), nil
		}}
	},
	"tx_hash": func(r *Registry, path, head, rest string) FieldDescriptor {
		return FieldDescriptor{Path: path, Scope: ScopeEvent, Kind: KindBytes, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
			if it.Kind != types.KindLog {
				return Absent, nil
			}
			return bytesValue(it.Log.TxHash.Bytes()), nil
		}}
	},
	"log_index": func(r *Registry, path, head, rest string) FieldDescriptor {
		return FieldDescriptor{Path: path, Scope: ScopeEvent, Kind: KindU64, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
			if it.Kind != types.KindLog {
				return Absent, nil
			}
			return u64Value(uint64(it.Log.LogIndex)), nil
		}}
	},
	"data": func(r *Registry, path, head, rest string) FieldDescriptor {
		return FieldDescriptor{Path: path, Scope: ScopeEvent, Kind: KindBytes, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
			if it.Kind != types.KindLog {
				return Absent, nil
			}
			return bytesValue(it.Log.Data), nil
		}}
	},
	"topics": func(r *Registry, path, head, rest string) FieldDescriptor {
		idx, ok := listIndex(rest)
		if !ok {
			return FieldDescriptor{Path: path, Scope: ScopeEvent, Kind: KindList, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
				if it.Kind != types.KindLog {
					return Absent, nil
				}
				list := make([]Value, len(it.Log.Topics))
				for i, t := range it.Log.Topics {
					list[i] = bytesValue(t.Bytes())
				}
				return Value{Kind: KindList, List: list}, nil
			}}
		}
		return FieldDescriptor{Path: path, Scope: ScopeEvent, Kind: KindBytes, Class: Raw, Fn: func(it *types.Item, dc *decode.Cache) (Value, error) {
			if it.Kind != types.KindLog || idx >= len(it.Log.Topics) {
				return Absent, nil
			}
			return bytesValue(it.Log.Topics[idx].Bytes()), nil
		}}
	},
	"event": func(r *Registry, path, head, rest string) FieldDescriptor {
		name := strings.TrimPrefix(rest, ".")
		return FieldDescriptor{Path: path, Scope: ScopeEvent, Kind: KindString, Class: Decoded, Fn: r.decodedEventAccessor(name)}
	},
}

// decodedMethodAccessor resolves "input.method": the ABI-decoded function
// name of a transaction's input, memoized by the evaluator's decode cache.
func (r *Registry) decodedMethodAccessor() AccessorFunc {
	return func(it *types.Item, dc *decode.Cache) (Value, error) {
		if it.Kind != types.KindConfirmedTx && it.Kind != types.KindPendingTx {
			return Absent, nil
		}
		var input []byte
		if it.Kind == types.KindConfirmedTx {
			input = it.ConfirmedTx.Fields.Input
		} else {
			input = it.PendingTx.Fields.Input
		}
		if len(input) < 4 || r.decoder == nil {
			return Absent, nil
		}
		selector := hex.EncodeToString(input[:4])
		decoded, err := r.decode(it, "method:"+selector, input, dc)
		if err != nil || decoded == nil {
			return Absent, nil
		}
		name, _ := decoded["method"].(string)
		if name == "" {
			return Absent, nil
		}
		return strValue(name), nil
	}
}

// decodedEventAccessor resolves "event.<argName>": one ABI-decoded log
// argument, keyed by the log's first topic (the event signature hash).
func (r *Registry) decodedEventAccessor(argName string) AccessorFunc {
	return func(it *types.Item, dc *decode.Cache) (Value, error) {
		if it.Kind != types.KindLog || len(it.Log.Topics) == 0 || r.decoder == nil {
			return Absent, nil
		}
		sig := it.Log.Topics[0].Hex()
		decoded, err := r.decode(it, "event:"+sig, it.Log.Data, dc)
		if err != nil || decoded == nil {
			return Absent, nil
		}
		v, ok := decoded[argName]
		if !ok {
			return Absent, nil
		}
		return toValue(v), nil
	}
}

func toValue(v any) Value {
	switch x := v.(type) {
	case string:
		return strValue(x)
	case []byte:
		return bytesValue(x)
	case uint64:
		return u64Value(x)
	default:
		return strValue(fmt.Sprintf("%v", x))
	}
}

// decode resolves a tx hash for the item (if applicable) and delegates to
// the decode cache, or decodes uncached when dc is nil. A decode failure is
// logged; the caller resolves the field absent.
func (r *Registry) decode(it *types.Item, signature string, data []byte, dc *decode.Cache) (map[string]any, error) {
	compute := func() (map[string]any, error) {
		m, err := r.decoder.Decode(signature, data)
		if err != nil {
			log.Debug("ABI decode failed, decoded field resolves absent", "chain", it.Chain.String(), "signature", signature, "err", err)
		}
		return m, err
	}
	if dc != nil {
		hash := txHashOf(it)
		return dc.GetOrCompute(hash, signature, compute)
	}
	return compute()
}

func txHashOf(it *types.Item) (h [32]byte) {
	switch it.Kind {
	case types.KindConfirmedTx:
		return it.ConfirmedTx.Fields.Hash
	case types.KindPendingTx:
		return it.PendingTx.Fields.Hash
	case types.KindLog:
		return it.Log.TxHash
	default:
		return h
	}
}

// dynamicAccessor resolves chain-specific fields not in the hardcoded
// field tables: field-name match (camelCase/snake_case), then the
// per-chain alias table, over the item's raw JSON payload.
func (r *Registry) dynamicAccessor(name string) AccessorFunc {
	return func(it *types.Item, dc *decode.Cache) (Value, error) {
		if len(it.Raw) == 0 {
			return Absent, nil
		}
		var payload map[string]json.RawMessage
		if err := json.Unmarshal(it.Raw, &payload); err != nil {
			return Absent, nil
		}
		for _, candidate := range aliasesFor(it.Chain, name) {
			raw, ok := payload[candidate]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				return strValue(s), nil
			}
			return strValue(string(raw)), nil
		}
		return Absent, nil
	}
}

// Describe enumerates the legal fields for a scope, for introspection and
// tooling (e.g. building a filter-authoring UI or CLI autocompletion).
func (r *Registry) Describe(scope Scope) []FieldDescriptor {
	table := fieldTables[scope]
	out := make([]FieldDescriptor, 0, len(table))
	for head, build := range table {
		out = append(out, build(r, head, head, ""))
	}
	return out
}
