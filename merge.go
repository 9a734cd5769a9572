package nifti

import "fmt"

// setHeaderField assigns value to the header field with the given on-disk
// name. Values are coerced from the loosely-typed forms produced by YAML
// and JSON decoding (int, int64, float64, string, []any). Unknown names
// and uncoercible values fail with ErrField.
func setHeaderField(h *Header, name string, value any) error {
	switch name {
	case "dim_info":
		return setByteField(&h.DimInfo, name, value)
	case "dim":
		v, err := int16sField(name, value, len(h.Dim))
		if err != nil {
			return err
		}
		copy(h.Dim[:], v)
		return nil
	case "intent_p1":
		return setFloatField(&h.IntentP1, name, value)
	case "intent_p2":
		return setFloatField(&h.IntentP2, name, value)
	case "intent_p3":
		return setFloatField(&h.IntentP3, name, value)
	case "intent_code":
		return setInt16Field(&h.IntentCode, name, value)
	case "datatype":
		n, err := intField(name, value)
		if err != nil {
			return err
		}
		return h.SetDatatype(Datatype(n))
	case "slice_start":
		return setInt16Field(&h.SliceStart, name, value)
	case "pixdim":
		v, err := float32sField(name, value, len(h.Pixdim))
		if err != nil {
			return err
		}
		copy(h.Pixdim[:], v)
		return nil
	case "scl_slope":
		return setFloatField(&h.SclSlope, name, value)
	case "scl_inter":
		return setFloatField(&h.SclInter, name, value)
	case "slice_end":
		return setInt16Field(&h.SliceEnd, name, value)
	case "slice_code":
		return setByteField(&h.SliceCode, name, value)
	case "xyzt_units":
		return setByteField(&h.XyztUnits, name, value)
	case "cal_max":
		return setFloatField(&h.CalMax, name, value)
	case "cal_min":
		return setFloatField(&h.CalMin, name, value)
	case "slice_duration":
		return setFloatField(&h.SliceDuration, name, value)
	case "toffset":
		return setFloatField(&h.Toffset, name, value)
	case "descrip":
		s, err := stringField(name, value)
		if err != nil {
			return err
		}
		h.SetDescrip(s)
		return nil
	case "aux_file":
		s, err := stringField(name, value)
		if err != nil {
			return err
		}
		h.AuxFile = [24]byte{}
		copy(h.AuxFile[:], s)
		return nil
	case "qform_code":
		var code int16
		if err := setInt16Field(&code, name, value); err != nil {
			return err
		}
		h.QformCode = XformCode(code)
		return nil
	case "sform_code":
		var code int16
		if err := setInt16Field(&code, name, value); err != nil {
			return err
		}
		h.SformCode = XformCode(code)
		return nil
	case "quatern_b":
		return setFloatField(&h.QuaternB, name, value)
	case "quatern_c":
		return setFloatField(&h.QuaternC, name, value)
	case "quatern_d":
		return setFloatField(&h.QuaternD, name, value)
	case "qoffset_x":
		return setFloatField(&h.QoffsetX, name, value)
	case "qoffset_y":
		return setFloatField(&h.QoffsetY, name, value)
	case "qoffset_z":
		return setFloatField(&h.QoffsetZ, name, value)
	case "srow_x":
		return setRowField(&h.SrowX, name, value)
	case "srow_y":
		return setRowField(&h.SrowY, name, value)
	case "srow_z":
		return setRowField(&h.SrowZ, name, value)
	case "intent_name":
		s, err := stringField(name, value)
		if err != nil {
			return err
		}
		h.IntentName = [16]byte{}
		copy(h.IntentName[:], s)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrField, name)
	}
}

func floatField(name string, value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %s wants a number, got %T", ErrField, name, value)
	}
}

func intField(name string, value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("%w: %s wants an integer, got %v", ErrField, name, v)
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%w: %s wants an integer, got %T", ErrField, name, value)
	}
}

func stringField(name string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s wants a string, got %T", ErrField, name, value)
	}
	return s, nil
}

func setFloatField(dst *float32, name string, value any) error {
	v, err := floatField(name, value)
	if err != nil {
		return err
	}
	*dst = float32(v)
	return nil
}

func setInt16Field(dst *int16, name string, value any) error {
	v, err := intField(name, value)
	if err != nil {
		return err
	}
	if v < -32768 || v > 32767 {
		return fmt.Errorf("%w: %s value %d out of range", ErrField, name, v)
	}
	*dst = int16(v)
	return nil
}

func setByteField(dst *byte, name string, value any) error {
	v, err := intField(name, value)
	if err != nil {
		return err
	}
	if v < 0 || v > 255 {
		return fmt.Errorf("%w: %s value %d out of range", ErrField, name, v)
	}
	*dst = byte(v)
	return nil
}

func setRowField(dst *[4]float32, name string, value any) error {
	v, err := float32sField(name, value, 4)
	if err != nil {
		return err
	}
	copy(dst[:], v)
	return nil
}

// elements normalizes slice-shaped values: []any from YAML/JSON, or the
// typed slices callers pass directly.
func elements(name string, value any) ([]any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case []float64:
		out := make([]any, len(v))
		for i, x := range v {
			out[i] = x
		}
		return out, nil
	case []int:
		out := make([]any, len(v))
		for i, x := range v {
			out[i] = x
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s wants a sequence, got %T", ErrField, name, value)
	}
}

func float32sField(name string, value any, max int) ([]float32, error) {
	elems, err := elements(name, value)
	if err != nil {
		return nil, err
	}
	if len(elems) > max {
		return nil, fmt.Errorf("%w: %s wants at most %d values, got %d", ErrField, name, max, len(elems))
	}
	out := make([]float32, len(elems))
	for i, e := range elems {
		f, err := floatField(name, e)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

func int16sField(name string, value any, max int) ([]int16, error) {
	elems, err := elements(name, value)
	if err != nil {
		return nil, err
	}
	if len(elems) > max {
		return nil, fmt.Errorf("%w: %s wants at most %d values, got %d", ErrField, name, max, len(elems))
	}
	out := make([]int16, len(elems))
	for i, e := range elems {
		if err := setInt16Field(&out[i], name, e); err != nil {
			return nil, err
		}
	}
	return out, nil
}
