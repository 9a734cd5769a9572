package nifti

import (
	"errors"
	"reflect"
	"testing"
)

func TestToArraySharesBuffer(t *testing.T) {
	img, err := NewImage([]int{4, 4}, Int16)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandle(img)
	defer h.Release()

	arr, err := ToArray(h)
	if err != nil {
		t.Fatal(err)
	}
	if &arr.Data[0] != &img.Data()[0] {
		t.Fatal("array must share the voxel buffer, not copy it")
	}
	if !reflect.DeepEqual(arr.Shape, []int{4, 4}) || arr.Datatype != Int16 {
		t.Fatalf("shape %v datatype %v", arr.Shape, arr.Datatype)
	}
	if _, ok := arr.Attributes["pixdim"]; !ok {
		t.Fatal("pixdim attribute missing")
	}
	if arr.backref != h.ID() {
		t.Fatal("back-reference not embedded")
	}
}

func TestToArrayReleasedHandle(t *testing.T) {
	h := newTestHandle(t)
	h.Release()
	if _, err := ToArray(h); !errors.Is(err, ErrReleased) {
		t.Fatalf("expected ErrReleased, got %v", err)
	}
}

func TestFromArrayLiveBackReference(t *testing.T) {
	img, err := NewImage([]int{4, 4}, Int16)
	if err != nil {
		t.Fatal(err)
	}
	img.SetScaling(3, 1)
	h := NewHandle(img)
	defer h.Release()

	arr, err := ToArray(h)
	if err != nil {
		t.Fatal(err)
	}
	got, reconstructed, err := FromArray(arr, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer got.Release()
	if reconstructed {
		t.Fatal("live back-reference must not trigger reconstruction")
	}
	if got.Image() != img {
		t.Fatal("must share the original native image")
	}
	if got.Image().Header().SclSlope != 3 {
		t.Fatal("shared image lost its metadata")
	}
}

func TestFromArrayAfterAttributeLoss(t *testing.T) {
	img, err := NewImage([]int{4, 4}, Int16)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandle(img)
	arr, err := ToArray(h)
	if err != nil {
		t.Fatal(err)
	}
	arr.StripAttributes()

	got, reconstructed, err := FromArray(arr, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer got.Release()
	if !reconstructed {
		t.Fatal("attribute loss must be observable")
	}
	hdr := got.Image().Header()
	if hdr.QformCode != 0 || hdr.SformCode != 0 {
		t.Fatal("defaults must leave transform codes unset")
	}
	if got.Image().PixDims()[0] != 1 {
		t.Fatalf("default pixdim %v", got.Image().PixDims())
	}
	h.Release()
}

func TestFromArrayStaleBackReference(t *testing.T) {
	h := newTestHandle(t)
	arr, err := ToArray(h)
	if err != nil {
		t.Fatal(err)
	}
	h.Release() // image gone; arr's back-reference is now stale

	got, reconstructed, err := FromArray(arr, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer got.Release()
	if !reconstructed {
		t.Fatal("stale back-reference must dereference-as-empty and reconstruct")
	}
}

func TestFromArrayWithTemplate(t *testing.T) {
	tmpl := sampleHeader()
	arr := &Array{
		Shape:    []int{16, 16, 8},
		Datatype: Int16,
		Data:     make([]byte, 16*16*8*2),
	}
	got, reconstructed, err := FromArray(arr, &tmpl)
	if err != nil {
		t.Fatal(err)
	}
	defer got.Release()
	if !reconstructed {
		t.Fatal("no back-reference: reconstruction flag must be set")
	}
	hdr := got.Image().Header()
	if hdr.DescripString() != tmpl.DescripString() || hdr.QformCode != tmpl.QformCode {
		t.Fatal("template metadata not merged")
	}
}

func TestFromArraySurvivingPixdimAttribute(t *testing.T) {
	arr := &Array{
		Shape:    []int{4, 4},
		Datatype: Uint8,
		Data:     make([]byte, 16),
		Attributes: map[string]any{
			"pixdim": []float64{2.5, 2.5},
		},
	}
	got, reconstructed, err := FromArray(arr, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer got.Release()
	if !reconstructed {
		t.Fatal("expected reconstruction")
	}
	if pd := got.Image().PixDims(); pd[0] != 2.5 || pd[1] != 2.5 {
		t.Fatalf("pixdim attribute not applied: %v", pd)
	}
}

func TestFromArrayShapeDrift(t *testing.T) {
	img, err := NewImage([]int{4, 4}, Uint8)
	if err != nil {
		t.Fatal(err)
	}
	img.SetScaling(2, 0)
	h := NewHandle(img)
	defer h.Release()

	arr, err := ToArray(h)
	if err != nil {
		t.Fatal(err)
	}
	// The host reshaped the array in place.
	arr.Shape = []int{2, 8}

	got, reconstructed, err := FromArray(arr, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer got.Release()
	if reconstructed {
		t.Fatal("shape drift with a live image is not the recovery path")
	}
	if got.Image() == img {
		t.Fatal("drifted shape needs a rebuilt image")
	}
	if !reflect.DeepEqual(got.Image().Dims(), []int{2, 8}) {
		t.Fatalf("dims %v", got.Image().Dims())
	}
	if got.Image().Header().SclSlope != 2 {
		t.Fatal("rebuilt image must keep the original metadata")
	}
}

func TestFromArrayNil(t *testing.T) {
	if _, _, err := FromArray(nil, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
