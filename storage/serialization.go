// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"
	"math"
	"sort"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Field value kinds in the binary encoding.
const (
	kindString uint64 = iota + 1
	kindInt
	kindFloat
	kindBool
	kindStrings
)

// NodeRecord is the persisted form of a node.
type NodeRecord struct {
	Key    string
	Labels []string
	Fields map[string]any
}

// HasLabels reports whether the record carries every label in labels.
func (r *NodeRecord) HasLabels(labels ...string) bool {
	for _, want := range labels {
		found := false
		for _, have := range r.Labels {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// EdgeRecord is the persisted form of an edge.
type EdgeRecord struct {
	StartKey string
	EndKey   string
	Relation string
	Property string
	ClaimId  string
}

// MarshalNodeRecord serializes a NodeRecord to bytes.
// Fields are written in key order so equal records encode identically.
func MarshalNodeRecord(record *NodeRecord) ([]byte, error) {
	bs := appendString(nil, record.Key)
	bs = appendUint(bs, uint64(len(record.Labels)))
	for _, label := range record.Labels {
		bs = appendString(bs, label)
	}

	names := make([]string, 0, len(record.Fields))
	for name := range record.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	bs = appendUint(bs, uint64(len(names)))
	for _, name := range names {
		bs = appendString(bs, name)
		var err error
		bs, err = appendValue(bs, record.Fields[name])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
	}
	return bs, nil
}

// UnmarshalNodeRecord deserializes a NodeRecord from bytes.
func UnmarshalNodeRecord(data []byte) (*NodeRecord, error) {
	d := &decoder{bs: data}
	record := &NodeRecord{Key: d.string()}

	labelCount := d.count()
	record.Labels = make([]string, 0, labelCount)
	for i := 0; i < labelCount && d.err == nil; i++ {
		record.Labels = append(record.Labels, d.string())
	}

	fieldCount := d.count()
	record.Fields = make(map[string]any, fieldCount)
	for i := 0; i < fieldCount && d.err == nil; i++ {
		name := d.string()
		record.Fields[name] = d.value()
	}

	if d.err != nil {
		return nil, d.err
	}
	return record, nil
}

// MarshalEdgeRecord serializes an EdgeRecord to bytes.
func MarshalEdgeRecord(record *EdgeRecord) []byte {
	bs := appendString(nil, record.StartKey)
	bs = appendString(bs, record.EndKey)
	bs = appendString(bs, record.Relation)
	bs = appendString(bs, record.Property)
	return appendString(bs, record.ClaimId)
}

// UnmarshalEdgeRecord deserializes an EdgeRecord from bytes.
func UnmarshalEdgeRecord(data []byte) (*EdgeRecord, error) {
	d := &decoder{bs: data}
	record := &EdgeRecord{
		StartKey: d.string(),
		EndKey:   d.string(),
		Relation: d.string(),
		Property: d.string(),
		ClaimId:  d.string(),
	}
	if d.err != nil {
		return nil, d.err
	}
	return record, nil
}

// NormalizeValue converts a field value to one of the persisted kinds.
func NormalizeValue(v any) (any, error) {
	switch val := v.(type) {
	case string, int64, float64, bool, []string:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case float32:
		return float64(val), nil
	case []any:
		out := make([]string, 0, len(val))
		for _, e := range val {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: list element %T", ErrUnsupportedValue, e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func appendValue(bs []byte, v any) ([]byte, error) {
	v, err := NormalizeValue(v)
	if err != nil {
		return nil, err
	}
	switch val := v.(type) {
	case string:
		bs = appendUint(bs, kindString)
		return appendString(bs, val), nil
	case int64:
		bs = appendUint(bs, kindInt)
		return appendInt(bs, val), nil
	case float64:
		bs = appendUint(bs, kindFloat)
		return appendUint(bs, math.Float64bits(val)), nil
	case bool:
		bs = appendUint(bs, kindBool)
		if val {
			return appendUint(bs, 1), nil
		}
		return appendUint(bs, 0), nil
	case []string:
		bs = appendUint(bs, kindStrings)
		bs = appendUint(bs, uint64(len(val)))
		for _, s := range val {
			bs = appendString(bs, s)
		}
		return bs, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

func appendString(bs []byte, s string) []byte {
	n := ord.String.Size(s)
	bs = grow(bs, n)
	ord.String.Marshal(s, bs[len(bs)-n:])
	return bs
}

func appendUint(bs []byte, u uint64) []byte {
	n := varint.Uint64.Size(u)
	bs = grow(bs, n)
	varint.Uint64.Marshal(u, bs[len(bs)-n:])
	return bs
}

func appendInt(bs []byte, i int64) []byte {
	n := varint.Int64.Size(i)
	bs = grow(bs, n)
	varint.Int64.Marshal(i, bs[len(bs)-n:])
	return bs
}

func grow(bs []byte, n int) []byte {
	if cap(bs)-len(bs) < n {
		next := make([]byte, len(bs), 2*cap(bs)+n)
		copy(next, bs)
		bs = next
	}
	return bs[:len(bs)+n]
}

// decoder reads values sequentially and keeps the first error.
type decoder struct {
	bs  []byte
	err error
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	if len(d.bs) == 0 {
		d.fail(ErrTruncatedData)
		return ""
	}
	s, n, err := ord.String.Unmarshal(d.bs)
	if err != nil {
		d.fail(err)
		return ""
	}
	d.bs = d.bs[n:]
	return s
}

func (d *decoder) uint() uint64 {
	if d.err != nil {
		return 0
	}
	if len(d.bs) == 0 {
		d.fail(ErrTruncatedData)
		return 0
	}
	u, n, err := varint.Uint64.Unmarshal(d.bs)
	if err != nil {
		d.fail(err)
		return 0
	}
	d.bs = d.bs[n:]
	return u
}

func (d *decoder) int() int64 {
	if d.err != nil {
		return 0
	}
	if len(d.bs) == 0 {
		d.fail(ErrTruncatedData)
		return 0
	}
	i, n, err := varint.Int64.Unmarshal(d.bs)
	if err != nil {
		d.fail(err)
		return 0
	}
	d.bs = d.bs[n:]
	return i
}

// count reads a length prefix and bounds it by the remaining input.
func (d *decoder) count() int {
	c := d.uint()
	if c > uint64(len(d.bs)) {
		d.fail(ErrTruncatedData)
		return 0
	}
	return int(c)
}

func (d *decoder) value() any {
	switch kind := d.uint(); kind {
	case kindString:
		return d.string()
	case kindInt:
		return d.int()
	case kindFloat:
		return math.Float64frombits(d.uint())
	case kindBool:
		return d.uint() == 1
	case kindStrings:
		n := d.count()
		out := make([]string, 0, n)
		for i := 0; i < n && d.err == nil; i++ {
			out = append(out, d.string())
		}
		return out
	default:
		if d.err == nil {
			d.fail(fmt.Errorf("unknown value kind %d", kind))
		}
		return nil
	}
}
