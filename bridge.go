package nifti

import "fmt"

// Array is the host-side view of an image: the voxel buffer shared without
// copying, the shape and element encoding, mirrored metadata attributes,
// and one opaque slot carrying a weak back-reference to the image it came
// from. The back-reference is a lookup token, never an ownership edge: the
// image it names may be released at any time, after which [FromArray]
// rebuilds an image from the array's own metadata.
type Array struct {
	Shape      []int
	Datatype   Datatype
	Data       []byte
	Attributes map[string]any

	// backref is the opaque capability slot. Host attribute stripping is
	// modeled by StripAttributes, which clears it.
	backref uint64
}

// StripAttributes models host-side attribute loss: the mirrored metadata
// and the weak back-reference are discarded, leaving only shape, element
// type, and raw data.
func (a *Array) StripAttributes() {
	a.Attributes = nil
	a.backref = 0
}

// ToArray exposes the handle's image as a host array. The voxel buffer is
// shared, not copied; dim, pixdim, and units are mirrored into Attributes;
// and the array's opaque slot receives a weak back-reference to the image.
// The array does not keep the image alive.
func ToArray(h *Handle) (*Array, error) {
	img := h.Image()
	if img == nil {
		return nil, ErrReleased
	}
	space, time := img.hdr.Units()
	return &Array{
		Shape:    img.Dims(),
		Datatype: img.Datatype(),
		Data:     img.Data(),
		Attributes: map[string]any{
			"dim":      img.Dims(),
			"pixdim":   img.PixDims(),
			"pixunits": []string{space.String(), time.String()},
		},
		backref: h.ID(),
	}, nil
}

// FromArray turns a host array back into an image handle.
//
// If the array's back-reference still resolves to a live image, the
// returned handle shares that image; only a shape or element-type drift
// forces a rebuild around the array's buffer. Otherwise the image is
// reconstructed from the array's shape and element type: the template's
// extended header fields are merged in when a template is given, else
// defaults apply (unit spacing, transform codes unset). The reconstructed
// return value is true exactly when this recovery path ran, so callers can
// detect that the original metadata was lost.
func FromArray(arr *Array, template *Header) (h *Handle, reconstructed bool, err error) {
	if arr == nil {
		return nil, false, fmt.Errorf("%w: nil array", ErrValidation)
	}
	if live, ok := resolve(arr.backref); ok {
		img := live.Image()
		if img != nil && sameShape(img.Dims(), arr.Shape) && img.Datatype() == arr.Datatype {
			return live, false, nil
		}
		// The host reshaped or retyped the array: keep the image's
		// metadata but rebuild around the array's buffer.
		var hdr Header
		if img != nil {
			hdr = img.Header()
		} else {
			hdr = NewHeader()
		}
		live.Release()
		rebuilt, err := FromTemplate(&hdr, arr.Data, arr.Shape, arr.Datatype)
		if err != nil {
			return nil, false, err
		}
		return NewHandle(rebuilt), false, nil
	}

	hdr := NewHeader()
	if template != nil {
		hdr = *template
	}
	img, err := FromTemplate(&hdr, arr.Data, arr.Shape, arr.Datatype)
	if err != nil {
		return nil, false, err
	}
	if err := applyArrayAttributes(img, arr); err != nil {
		return nil, false, err
	}
	return NewHandle(img), true, nil
}

// applyArrayAttributes folds surviving mirrored attributes back into a
// reconstructed image. Only pixdim is structural; anything else the host
// kept is already covered by the template or defaults.
func applyArrayAttributes(img *Image, arr *Array) error {
	pd, ok := arr.Attributes["pixdim"]
	if !ok {
		return nil
	}
	spacing, err := float32sField("pixdim", pd, MaxDims)
	if err != nil {
		return err
	}
	for i, s := range spacing {
		if i+1 < len(img.hdr.Pixdim) {
			img.hdr.Pixdim[i+1] = s
		}
	}
	img.recompute()
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
