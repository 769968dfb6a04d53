package common

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Marshaler is implemented by values with a fixed GPU byte layout, such as the packed structs
// uploaded to uniform and storage buffers.
type Marshaler interface {
	// Marshal serializes the value into a byte buffer suitable for GPU upload.
	//
	// Returns:
	//   - []byte: the little-endian encoded value
	Marshal() []byte
}

// EncodeValue serializes a host value into its little-endian GPU representation.
// Supported values are Marshaler implementations, raw []byte, numeric scalars, bool (as u32),
// numeric slices and the common float32 vector and matrix arrays. int and uint encode as 32-bit
// integers, float64 encodes as f32.
//
// Parameters:
//   - value: the value to encode
//   - half: encode floating point components as IEEE 754 binary16
//
// Returns:
//   - []byte: the encoded bytes
//   - error: error if the value type is not supported
func EncodeValue(value any, half bool) ([]byte, error) {
	switch v := value.(type) {
	case Marshaler:
		return v.Marshal(), nil
	case []byte:
		return v, nil
	case float32:
		return encodeFloats([]float32{v}, half), nil
	case float64:
		return encodeFloats([]float32{float32(v)}, half), nil
	case int32:
		return binary.LittleEndian.AppendUint32(nil, uint32(v)), nil
	case int:
		return binary.LittleEndian.AppendUint32(nil, uint32(int32(v))), nil
	case uint32:
		return binary.LittleEndian.AppendUint32(nil, v), nil
	case uint:
		return binary.LittleEndian.AppendUint32(nil, uint32(v)), nil
	case bool:
		var u uint32
		if v {
			u = 1
		}
		return binary.LittleEndian.AppendUint32(nil, u), nil
	case []float32:
		return encodeFloats(v, half), nil
	case []float64:
		f := make([]float32, len(v))
		for i, x := range v {
			f[i] = float32(x)
		}
		return encodeFloats(f, half), nil
	case []int32:
		buf := make([]byte, 0, 4*len(v))
		for _, x := range v {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(x))
		}
		return buf, nil
	case []uint32:
		buf := make([]byte, 0, 4*len(v))
		for _, x := range v {
			buf = binary.LittleEndian.AppendUint32(buf, x)
		}
		return buf, nil
	case [2]float32:
		return encodeFloats(v[:], half), nil
	case [3]float32:
		return encodeFloats(v[:], half), nil
	case [4]float32:
		return encodeFloats(v[:], half), nil
	case [16]float32:
		return encodeFloats(v[:], half), nil
	default:
		return nil, fmt.Errorf("unsupported GPU value type %T", value)
	}
}

func encodeFloats(v []float32, half bool) []byte {
	if half {
		buf := make([]byte, 0, 2*len(v))
		for _, f := range v {
			buf = binary.LittleEndian.AppendUint16(buf, Float16Bits(f))
		}
		return buf
	}
	buf := make([]byte, 0, 4*len(v))
	for _, f := range v {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}

// Float16Bits converts f to IEEE 754 binary16, rounding to nearest even. Values outside the
// half range saturate to infinity, values below the subnormal range flush to zero.
//
// Parameters:
//   - f: the value to convert
//
// Returns:
//   - uint16: the binary16 bit pattern
func Float16Bits(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23) & 0xff
	mant := bits & 0x7fffff

	switch {
	case exp == 0xff:
		if mant != 0 {
			return sign | 0x7e00
		}
		return sign | 0x7c00
	case exp-127 > 15:
		return sign | 0x7c00
	case exp-127 < -24:
		return sign
	case exp-127 < -14:
		// subnormal half
		mant |= 0x800000
		shift := uint32(-(exp - 127) - 14 + 13)
		half := mant >> shift
		rem := mant & ((1 << shift) - 1)
		mid := uint32(1) << (shift - 1)
		if rem > mid || (rem == mid && half&1 == 1) {
			half++
		}
		return sign | uint16(half)
	}

	half := uint32(exp-127+15)<<10 | mant>>13
	rem := mant & 0x1fff
	if rem > 0x1000 || (rem == 0x1000 && half&1 == 1) {
		half++
	}
	return sign | uint16(half)
}
