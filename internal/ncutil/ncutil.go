// Package ncutil holds small helpers for pulling numeric data out of
// NetCDF variables: CF scale_factor/add_offset unpacking, fill-value
// masking, and attribute coercion across the integer/float types that
// appear in ABI and GLM files.
package ncutil

import (
	"fmt"
	"math"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// AttrFloat returns a numeric attribute as float64. NetCDF attributes may
// arrive as scalars or one-element slices depending on how the file was
// written.
func AttrFloat(am api.AttributeMap, key string) (float64, bool) {
	if am == nil {
		return 0, false
	}
	v, has := am.Get(key)
	if !has {
		return 0, false
	}
	return toFloat(v)
}

// AttrString returns a string attribute.
func AttrString(am api.AttributeMap, key string) (string, bool) {
	if am == nil {
		return "", false
	}
	v, has := am.Get(key)
	if !has {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case []string:
		if len(s) == 1 {
			return s[0], true
		}
	}
	return "", false
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int16:
		return float64(x), true
	case int8:
		return float64(x), true
	case []float64:
		if len(x) == 1 {
			return x[0], true
		}
	case []float32:
		if len(x) == 1 {
			return float64(x[0]), true
		}
	case []int32:
		if len(x) == 1 {
			return float64(x[0]), true
		}
	case []int16:
		if len(x) == 1 {
			return float64(x[0]), true
		}
	}
	return 0, false
}

// scaling captures the CF packing attributes of a variable. Raw values equal
// to fill are masked to NaN before scale and offset are applied.
type scaling struct {
	scale   float64
	offset  float64
	fill    float64
	hasFill bool
}

func newScaling(am api.AttributeMap) scaling {
	s := scaling{scale: 1}
	if v, ok := AttrFloat(am, "scale_factor"); ok {
		s.scale = v
	}
	if v, ok := AttrFloat(am, "add_offset"); ok {
		s.offset = v
	}
	if v, ok := AttrFloat(am, "_FillValue"); ok {
		s.fill = v
		s.hasFill = true
	}
	return s
}

func (s scaling) apply(raw float64) float64 {
	if s.hasFill && raw == s.fill {
		return math.NaN()
	}
	return raw*s.scale + s.offset
}

// Unpack1D decodes a one-dimensional variable to float64, applying CF
// packing attributes.
func Unpack1D(v *api.Variable) ([]float64, error) {
	sc := newScaling(v.Attributes)
	var out []float64
	switch raw := v.Values.(type) {
	case []float64:
		out = make([]float64, len(raw))
		for i, r := range raw {
			out[i] = sc.apply(r)
		}
	case []float32:
		out = make([]float64, len(raw))
		for i, r := range raw {
			out[i] = sc.apply(float64(r))
		}
	case []int32:
		out = make([]float64, len(raw))
		for i, r := range raw {
			out[i] = sc.apply(float64(r))
		}
	case []int16:
		out = make([]float64, len(raw))
		for i, r := range raw {
			out[i] = sc.apply(float64(r))
		}
	default:
		return nil, fmt.Errorf("ncutil: unsupported 1-D value type %T", v.Values)
	}
	return out, nil
}

// Unpack2D decodes a two-dimensional variable to row-major float64 rows,
// applying CF packing attributes.
func Unpack2D(v *api.Variable) ([][]float64, error) {
	sc := newScaling(v.Attributes)
	var out [][]float64
	switch raw := v.Values.(type) {
	case [][]float64:
		out = make([][]float64, len(raw))
		for i, row := range raw {
			o := make([]float64, len(row))
			for j, r := range row {
				o[j] = sc.apply(r)
			}
			out[i] = o
		}
	case [][]float32:
		out = make([][]float64, len(raw))
		for i, row := range raw {
			o := make([]float64, len(row))
			for j, r := range row {
				o[j] = sc.apply(float64(r))
			}
			out[i] = o
		}
	case [][]int32:
		out = make([][]float64, len(raw))
		for i, row := range raw {
			o := make([]float64, len(row))
			for j, r := range row {
				o[j] = sc.apply(float64(r))
			}
			out[i] = o
		}
	case [][]int16:
		out = make([][]float64, len(raw))
		for i, row := range raw {
			o := make([]float64, len(row))
			for j, r := range row {
				o[j] = sc.apply(float64(r))
			}
			out[i] = o
		}
	default:
		return nil, fmt.Errorf("ncutil: unsupported 2-D value type %T", v.Values)
	}
	return out, nil
}

// Int2DStep unwraps a single-timestep slice of a (time, row, col)
// integer variable, as returned by VarGetter.GetSlice(t, t+1), into
// int32 rows.
func Int2DStep(v interface{}) ([][]int32, error) {
	switch raw := v.(type) {
	case [][][]int32:
		if len(raw) != 1 {
			return nil, fmt.Errorf("ncutil: expected 1 timestep, got %d", len(raw))
		}
		return raw[0], nil
	case [][][]int16:
		if len(raw) != 1 {
			return nil, fmt.Errorf("ncutil: expected 1 timestep, got %d", len(raw))
		}
		return Int2D(raw[0])
	case [][][]int64:
		if len(raw) != 1 {
			return nil, fmt.Errorf("ncutil: expected 1 timestep, got %d", len(raw))
		}
		return Int2D(raw[0])
	default:
		return nil, fmt.Errorf("ncutil: unsupported timestep value type %T", v)
	}
}

// Int2D coerces a two-dimensional count slice to int32 rows.
func Int2D(v interface{}) ([][]int32, error) {
	switch raw := v.(type) {
	case [][]int32:
		return raw, nil
	case [][]int16:
		out := make([][]int32, len(raw))
		for i, row := range raw {
			o := make([]int32, len(row))
			for j, r := range row {
				o[j] = int32(r)
			}
			out[i] = o
		}
		return out, nil
	case [][]int64:
		out := make([][]int32, len(raw))
		for i, row := range raw {
			o := make([]int32, len(row))
			for j, r := range row {
				o[j] = int32(r)
			}
			out[i] = o
		}
		return out, nil
	default:
		return nil, fmt.Errorf("ncutil: unsupported count value type %T", v)
	}
}
