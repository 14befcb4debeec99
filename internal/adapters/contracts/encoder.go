package contracts

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ethertulip/tulip-deployer/internal/domain"
)

var bigIntType = reflect.TypeOf(&big.Int{})

// EncodeConstructorArgs converts plan values (strings, numbers, lists, maps as
// decoded from YAML or JSON) to the constructor's ABI types and packs them.
func (i *Indexer) EncodeConstructorArgs(artifact *domain.Artifact, args []any) ([]byte, error) {
	return EncodeConstructorArgs(artifact.ABI, args)
}

// EncodeConstructorArgs packs args for the constructor of contract
func EncodeConstructorArgs(contract abi.ABI, args []any) ([]byte, error) {
	inputs := contract.Constructor.Inputs
	if len(args) != len(inputs) {
		return nil, fmt.Errorf("argument count mismatch: got %d for %d", len(args), len(inputs))
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	values := make([]any, len(args))
	for idx, input := range inputs {
		v, err := convertArg(input.Type, args[idx])
		if err != nil {
			name := input.Name
			if name == "" {
				name = strconv.Itoa(idx)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, input.Type.String(), err)
		}
		values[idx] = v
	}

	packed, err := inputs.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode constructor arguments: %w", err)
	}
	return packed, nil
}

func convertArg(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.AddressTy:
		s, ok := v.(string)
		if !ok || !common.IsHexAddress(s) {
			return nil, fmt.Errorf("expected an address, got %v", v)
		}
		return common.HexToAddress(s), nil

	case abi.UintTy, abi.IntTy:
		n, err := toBigInt(v)
		if err != nil {
			return nil, err
		}
		return fitInteger(t, n)

	case abi.BoolTy:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(b)
		}
		return nil, fmt.Errorf("expected a bool, got %v", v)

	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %v", v)
		}
		return s, nil

	case abi.BytesTy:
		return toBytes(v)

	case abi.FixedBytesTy:
		b, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("expected %d bytes, got %d", t.Size, len(b))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil

	case abi.SliceTy, abi.ArrayTy:
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected a list, got %v", v)
		}
		var out reflect.Value
		if t.T == abi.ArrayTy {
			if len(list) != t.Size {
				return nil, fmt.Errorf("expected %d elements, got %d", t.Size, len(list))
			}
			out = reflect.New(t.GetType()).Elem()
		} else {
			out = reflect.MakeSlice(t.GetType(), len(list), len(list))
		}
		for idx, item := range list {
			conv, err := convertArg(*t.Elem, item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			out.Index(idx).Set(reflect.ValueOf(conv))
		}
		return out.Interface(), nil

	case abi.TupleTy:
		return convertTuple(t, v)
	}
	return nil, fmt.Errorf("unsupported type %s", t.String())
}

// convertTuple accepts either a positional list or a map keyed by component name
func convertTuple(t abi.Type, v any) (any, error) {
	out := reflect.New(t.GetType()).Elem()
	var lookup func(idx int) (any, bool)

	switch val := v.(type) {
	case []any:
		if len(val) != len(t.TupleElems) {
			return nil, fmt.Errorf("expected %d components, got %d", len(t.TupleElems), len(val))
		}
		lookup = func(idx int) (any, bool) { return val[idx], true }
	case map[string]any:
		lookup = func(idx int) (any, bool) {
			item, ok := val[t.TupleRawNames[idx]]
			return item, ok
		}
	default:
		return nil, fmt.Errorf("expected a list or mapping, got %v", v)
	}

	for idx, elem := range t.TupleElems {
		item, ok := lookup(idx)
		if !ok {
			return nil, fmt.Errorf("missing component %s", t.TupleRawNames[idx])
		}
		conv, err := convertArg(*elem, item)
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", t.TupleRawNames[idx], err)
		}
		out.Field(idx).Set(reflect.ValueOf(conv))
	}
	return out.Interface(), nil
}

func toBigInt(v any) (*big.Int, error) {
	switch n := v.(type) {
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			return nil, fmt.Errorf("%v is not an exact integer, quote large numbers", n)
		}
		return big.NewInt(int64(n)), nil
	case json.Number:
		return parseBigInt(n.String())
	case string:
		return parseBigInt(n)
	case *big.Int:
		return new(big.Int).Set(n), nil
	}
	return nil, fmt.Errorf("expected an integer, got %v", v)
}

func parseBigInt(s string) (*big.Int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok || s == "" {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

// fitInteger range-checks n and returns the Go type abi.Pack expects for t
func fitInteger(t abi.Type, n *big.Int) (any, error) {
	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, fmt.Errorf("%s out of range for uint%d", n, t.Size)
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return nil, fmt.Errorf("%s out of range for int%d", n, t.Size)
		}
	}

	goType := t.GetType()
	if goType == bigIntType {
		return n, nil
	}
	if t.T == abi.UintTy {
		return reflect.ValueOf(n.Uint64()).Convert(goType).Interface(), nil
	}
	return reflect.ValueOf(n.Int64()).Convert(goType).Interface(), nil
}

func toBytes(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected hex bytes, got %v", v)
	}
	if s == "0x" || s == "" {
		return []byte{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}
