// Package eventsourcing implements the generic per-entity change-log
// substrate: typed events, field-level diffing, deterministic replay,
// and reconstruction from a Created event alone.
package eventsourcing

import (
	"fmt"

	coreerrors "github.com/tradsys/lobcore/internal/core/errors"
	"github.com/tradsys/lobcore/internal/core/domain"
	"github.com/tradsys/lobcore/internal/core/fixedpoint"
)

// Side re-exports domain.Side so eventsourcing callers need only import
// this package for the common FieldValue/Side vocabulary.
type Side = domain.Side

const (
	Buy  = domain.Buy
	Sell = domain.Sell
)

// ValueKind tags the variant carried by a FieldValue. No dynamic
// dispatch: replay and diff switch on this tag directly.
type ValueKind uint8

const (
	KindUnspecified ValueKind = iota
	KindU32
	KindU64
	KindOptionUsize
	KindTraderID
	KindOrderID
	KindQuantity
	KindPrice
	KindSide
	KindString
	KindStatus
)

// FieldValue is the tagged union covering every scalar the change-log
// needs to carry: integer widths, optional indices, and domain-nominal
// types (TraderId, OrderId, Quantity, Side). Exactly one of the typed
// fields is meaningful, selected by Kind.
type FieldValue struct {
	Kind ValueKind

	U32  uint32
	U64  uint64
	Opt  *uint64 // OptionUsize: nil means None
	Str  string
	Dec  fixedpoint.Value // Quantity / Price
	Side Side
}

// NewU32 builds a KindU32 FieldValue.
func NewU32(v uint32) FieldValue { return FieldValue{Kind: KindU32, U32: v} }

// NewU64 builds a KindU64 FieldValue.
func NewU64(v uint64) FieldValue { return FieldValue{Kind: KindU64, U64: v} }

// NewOptionUsize builds a KindOptionUsize FieldValue. A nil present
// value encodes None.
func NewOptionUsize(present *uint64) FieldValue {
	return FieldValue{Kind: KindOptionUsize, Opt: present}
}

// NewTraderID builds a KindTraderID FieldValue.
func NewTraderID(id uint64) FieldValue { return FieldValue{Kind: KindTraderID, U64: id} }

// NewOrderID builds a KindOrderID FieldValue.
func NewOrderID(id uint64) FieldValue { return FieldValue{Kind: KindOrderID, U64: id} }

// NewQuantity builds a KindQuantity FieldValue.
func NewQuantity(v fixedpoint.Value) FieldValue { return FieldValue{Kind: KindQuantity, Dec: v} }

// NewPrice builds a KindPrice FieldValue.
func NewPrice(v fixedpoint.Value) FieldValue { return FieldValue{Kind: KindPrice, Dec: v} }

// NewSide builds a KindSide FieldValue.
func NewSide(s Side) FieldValue { return FieldValue{Kind: KindSide, Side: s} }

// NewStatus builds a KindStatus FieldValue, tagged as a string so it
// survives log roundtrips independent of the enum's numeric layout.
func NewStatus(s string) FieldValue { return FieldValue{Kind: KindStatus, Str: s} }

// NewStringValue builds a KindString FieldValue.
func NewStringValue(s string) FieldValue { return FieldValue{Kind: KindString, Str: s} }

// Equal compares two FieldValues for the purposes of diffing: values of
// different Kind are never equal.
func (v FieldValue) Equal(other FieldValue) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindU32:
		return v.U32 == other.U32
	case KindU64, KindTraderID, KindOrderID:
		return v.U64 == other.U64
	case KindOptionUsize:
		if v.Opt == nil || other.Opt == nil {
			return v.Opt == other.Opt
		}
		return *v.Opt == *other.Opt
	case KindQuantity, KindPrice:
		return v.Dec.Equal(other.Dec)
	case KindSide:
		return v.Side == other.Side
	case KindStatus, KindString:
		return v.Str == other.Str
	default:
		return true
	}
}

// AsU64 extracts the unsigned 64-bit payload for Kind in
// {U64, TraderID, OrderID}, or a FieldParseError for any other Kind.
func (v FieldValue) AsU64() (uint64, error) {
	switch v.Kind {
	case KindU64, KindTraderID, KindOrderID:
		return v.U64, nil
	default:
		return 0, coreerrors.FieldParseError("field value kind %d is not a u64 variant", v.Kind)
	}
}

// AsDecimal extracts the fixed-point payload for Kind in
// {Quantity, Price}, or a FieldParseError otherwise.
func (v FieldValue) AsDecimal() (fixedpoint.Value, error) {
	switch v.Kind {
	case KindQuantity, KindPrice:
		return v.Dec, nil
	default:
		return fixedpoint.Value{}, coreerrors.FieldParseError("field value kind %d is not a decimal variant", v.Kind)
	}
}

// AsSide extracts the Side payload, or a FieldParseError if Kind is not
// KindSide.
func (v FieldValue) AsSide() (Side, error) {
	if v.Kind != KindSide {
		return 0, coreerrors.FieldParseError("field value kind %d is not a side variant", v.Kind)
	}
	return v.Side, nil
}

// AsString extracts the string payload for Kind in {Status, String}, or
// a FieldParseError otherwise.
func (v FieldValue) AsString() (string, error) {
	switch v.Kind {
	case KindStatus, KindString:
		return v.Str, nil
	default:
		return "", coreerrors.FieldParseError("field value kind %d is not a string variant", v.Kind)
	}
}

func (v FieldValue) String() string {
	switch v.Kind {
	case KindU32:
		return fmt.Sprintf("%d", v.U32)
	case KindU64, KindTraderID, KindOrderID:
		return fmt.Sprintf("%d", v.U64)
	case KindOptionUsize:
		if v.Opt == nil {
			return "none"
		}
		return fmt.Sprintf("%d", *v.Opt)
	case KindQuantity, KindPrice:
		return v.Dec.String()
	case KindSide:
		return v.Side.String()
	case KindStatus, KindString:
		return v.Str
	default:
		return "unspecified"
	}
}
