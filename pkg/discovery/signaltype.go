package discovery

import "fmt"

// SignalType enumerates the value types an info block's signal
// descriptions can name.
type SignalType int

const (
	TypeUndefined SignalType = iota
	TypeBoolean
	TypeChar
	TypeUChar
	TypeShort
	TypeUShort
	TypeInt
	TypeUInt
	TypeInt64
	TypeUInt64
	TypeFloat
	TypeDouble
	TypeStr
)

var typeNames = map[string]SignalType{
	"boolean": TypeBoolean,
	"char":    TypeChar,
	"uchar":   TypeUChar,
	"short":   TypeShort,
	"ushort":  TypeUShort,
	"int":     TypeInt,
	"uint":    TypeUInt,
	"int64":   TypeInt64,
	"uint64":  TypeUInt64,
	"float":   TypeFloat,
	"double":  TypeDouble,
	"str":     TypeStr,
}

// ParseSignalType maps an info block's type name to a SignalType.
func ParseSignalType(name string) (SignalType, error) {
	t, ok := typeNames[name]
	if !ok {
		return TypeUndefined, fmt.Errorf("discovery: unknown signal type %q", name)
	}
	return t, nil
}

func (t SignalType) String() string {
	for name, v := range typeNames {
		if v == t {
			return name
		}
	}
	return "undefined"
}

// ElemSize returns the per-element byte size. Boolean and string sizes
// depend on the element count, so callers use SignalBytes for those.
func (t SignalType) ElemSize() int {
	switch t {
	case TypeBoolean, TypeChar, TypeUChar, TypeStr:
		return 1
	case TypeShort, TypeUShort:
		return 2
	case TypeInt, TypeUInt, TypeFloat:
		return 4
	case TypeInt64, TypeUInt64, TypeDouble:
		return 8
	default:
		return 0
	}
}

// SignalBytes returns how many memory-block bytes a signal of type t with
// n elements occupies. Every signal carries a leading state byte; a single
// boolean packs its value into that byte, boolean arrays pack 8 values per
// byte LSB first after it, and a string of n characters takes
// n+1 bytes.
func SignalBytes(t SignalType, n int) int {
	if n < 1 {
		n = 1
	}
	switch t {
	case TypeStr:
		return n + 1
	case TypeBoolean:
		if n == 1 {
			return 1
		}
		return (n+7)/8 + 1
	default:
		return n*t.ElemSize() + 1
	}
}
