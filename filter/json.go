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

package filter

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/errs"
	"github.com/sieve-xyz/sieve/schema"
)

// wireNode is the JSON-wire shape of one AST node, used to make
// Filter.MarshalJSON/UnmarshalJSON round-trip idempotent (testable property
// 1). Mirrors the discriminated-union style of go-ethereum's FilterQuery
// JSON (de)serialization in interfaces.go.
type wireNode struct {
	Type     string      `json:"type"`
	Path     string      `json:"path,omitempty"`
	Op       string      `json:"op,omitempty"`
	Operand  *wireValue  `json:"operand,omitempty"`
	OperandHi *wireValue `json:"operand_hi,omitempty"`
	Children []wireNode  `json:"children,omitempty"`
}

type wireValue struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

func encodeValue(v schema.Value) *wireValue {
	switch v.Kind {
	case schema.KindU256:
		return &wireValue{Kind: "u256", Value: v.U256.Dec()}
	case schema.KindU64:
		return &wireValue{Kind: "u64", Value: fmt.Sprintf("%d", v.U64)}
	case schema.KindAddress:
		return &wireValue{Kind: "address", Value: v.Address.Hex()}
	case schema.KindBytes:
		return &wireValue{Kind: "bytes", Value: "0x" + common.Bytes2Hex(v.Bytes)}
	case schema.KindString:
		return &wireValue{Kind: "string", Value: v.Str}
	default:
		return nil
	}
}

func decodeValue(w *wireValue) (schema.Value, error) {
	if w == nil {
		return schema.Absent, nil
	}
	switch w.Kind {
	case "u256":
		n, err := uint256.FromDecimal(w.Value)
		if err != nil {
			return schema.Absent, err
		}
		return schema.Value{Kind: schema.KindU256, U256: n}, nil
	case "u64":
		var n uint64
		if _, err := fmt.Sscanf(w.Value, "%d", &n); err != nil {
			return schema.Absent, err
		}
		return schema.Value{Kind: schema.KindU64, U64: n}, nil
	case "address":
		return schema.Value{Kind: schema.KindAddress, Address: common.HexToAddress(w.Value)}, nil
	case "bytes":
		return schema.Value{Kind: schema.KindBytes, Bytes: common.FromHex(w.Value)}, nil
	case "string":
		return schema.Value{Kind: schema.KindString, Str: w.Value}, nil
	default:
		return schema.Absent, fmt.Errorf("filter: unknown operand kind %q", w.Kind)
	}
}

func encodeNode(n Node) wireNode {
	switch t := n.(type) {
	case *Predicate:
		return wireNode{Type: "predicate", Path: t.Path, Op: t.Op.String(), Operand: encodeValue(t.Operand), OperandHi: encodeValue(t.OperandHi)}
	case *And:
		return wireNode{Type: "and", Children: encodeChildren(t.Children)}
	case *Or:
		return wireNode{Type: "or", Children: encodeChildren(t.Children)}
	case *Xor:
		return wireNode{Type: "xor", Children: encodeChildren(t.Children)}
	case *Not:
		return wireNode{Type: "not", Children: []wireNode{encodeNode(t.Child)}}
	case *Group:
		return wireNode{Type: "group:" + t.Scope.String(), Children: encodeChildren(t.Children)}
	default:
		return wireNode{Type: "unknown"}
	}
}

func encodeChildren(children []Node) []wireNode {
	out := make([]wireNode, len(children))
	for i, c := range children {
		out[i] = encodeNode(c)
	}
	return out
}

var opByName = map[string]Op{}

func init() {
	for i := OpEq; i <= OpRegex; i++ {
		opByName[i.String()] = i
	}
}

func decodeNode(w wireNode, scope schema.Scope) (Node, error) {
	switch w.Type {
	case "predicate":
		op, ok := opByName[w.Op]
		if !ok {
			return nil, &errs.FilterBuildError{Msg: "unknown op " + w.Op}
		}
		operand, err := decodeValue(w.Operand)
		if err != nil {
			return nil, err
		}
		hi, err := decodeValue(w.OperandHi)
		if err != nil {
			return nil, err
		}
		return &Predicate{Path: w.Path, Scope: scope, Op: op, Operand: operand, OperandHi: hi}, nil
	case "and":
		children, err := decodeChildren(w.Children, scope)
		if err != nil {
			return nil, err
		}
		return &And{Children: children}, nil
	case "or":
		children, err := decodeChildren(w.Children, scope)
		if err != nil {
			return nil, err
		}
		return &Or{Children: children}, nil
	case "xor":
		children, err := decodeChildren(w.Children, scope)
		if err != nil {
			return nil, err
		}
		return &Xor{Children: children}, nil
	case "not":
		if len(w.Children) != 1 {
			return nil, &errs.FilterBuildError{Msg: "not must have exactly one child"}
		}
		child, err := decodeNode(w.Children[0], scope)
		if err != nil {
			return nil, err
		}
		return &Not{Child: child}, nil
	default:
		return nil, &errs.FilterBuildError{Msg: "unknown node type " + w.Type}
	}
}

func decodeChildren(in []wireNode, scope schema.Scope) ([]Node, error) {
	out := make([]Node, len(in))
	for i, w := range in {
		n, err := decodeNode(w, scope)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func scopeFromGroupType(t string) (schema.Scope, bool) {
	switch t {
	case "group:transaction":
		return schema.ScopeTransaction, true
	case "group:pool":
		return schema.ScopePool, true
	case "group:event":
		return schema.ScopeEvent, true
	case "group:block":
		return schema.ScopeBlock, true
	case "group:chain-specific":
		return schema.ScopeChainSpecific, true
	default:
		return 0, false
	}
}

// wireFilter is the top-level JSON shape of a Filter.
type wireFilter struct {
	Chain string   `json:"chain"`
	Root  wireNode `json:"root"`
}

// MarshalJSON renders f as the wire format consumed by UnmarshalJSON,
// satisfying testable property 1's "round-trip AST serialization is
// idempotent".
func (f *Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireFilter{Chain: f.Chain.String(), Root: encodeNode(f.Root)})
}

// UnmarshalJSON rebuilds a Filter from the wire format produced by
// MarshalJSON. The result is a frozen Filter exactly as Build() would
// produce, not re-validated against the static registry: the producing
// side already validated it at Build() time.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var w wireFilter
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c, ok := chain.Parse(w.Chain)
	if !ok {
		return &errs.FilterBuildError{Msg: "unknown chain " + w.Chain}
	}
	scope, ok := scopeFromGroupType(w.Root.Type)
	if !ok {
		return &errs.FilterBuildError{Msg: "root node must be a group, got " + w.Root.Type}
	}
	children, err := decodeChildren(w.Root.Children, scope)
	if err != nil {
		return err
	}
	f.Chain = c
	f.Root = &Group{Scope: scope, Children: children}
	return nil
}
