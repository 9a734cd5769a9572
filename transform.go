package nifti

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// QuaternionToMatrix expands the unit quaternion (a,b,c,d) with
// a = sqrt(max(0, 1-b²-c²-d²)) into a 4x4 affine. The rotation columns are
// scaled by the voxel spacings dx, dy, dz; the third column is sign-flipped
// when qfac is -1; the translation comes from the offsets.
func QuaternionToMatrix(b, c, d, qfac float64, dx, dy, dz float64, ox, oy, oz float64) *mat.Dense {
	a := 1 - (b*b + c*c + d*d)
	if a < 1e-7 {
		// Degenerate: (b,c,d) is (almost) a full unit vector, so treat it
		// as an exact 180-degree rotation.
		norm := math.Sqrt(b*b + c*c + d*d)
		b /= norm
		c /= norm
		d /= norm
		a = 0
	} else {
		a = math.Sqrt(a)
	}

	if dx <= 0 {
		dx = 1
	}
	if dy <= 0 {
		dy = 1
	}
	if dz <= 0 {
		dz = 1
	}
	zfac := dz
	if qfac < 0 {
		zfac = -dz
	}

	m := mat.NewDense(4, 4, nil)
	m.Set(0, 0, (a*a+b*b-c*c-d*d)*dx)
	m.Set(0, 1, 2*(b*c-a*d)*dy)
	m.Set(0, 2, 2*(b*d+a*c)*zfac)
	m.Set(1, 0, 2*(b*c+a*d)*dx)
	m.Set(1, 1, (a*a+c*c-b*b-d*d)*dy)
	m.Set(1, 2, 2*(c*d-a*b)*zfac)
	m.Set(2, 0, 2*(b*d-a*c)*dx)
	m.Set(2, 1, 2*(c*d+a*b)*dy)
	m.Set(2, 2, (a*a+d*d-b*b-c*c)*zfac)
	m.Set(0, 3, ox)
	m.Set(1, 3, oy)
	m.Set(2, 3, oz)
	m.Set(3, 3, 1)
	return m
}

// MatrixToQuaternion decomposes the rotation part of a 4x4 affine into the
// quaternion vector part (b,c,d) and the handedness flag qfac. The scalar
// part is normalized non-negative, so the returned quaternion reconstructs
// the input rotation exactly but may differ from a source quaternion by an
// overall sign when its scalar part was negative. The affine's columns may
// carry voxel scaling; they are normalized first. A singular rotation part
// is an error.
func MatrixToQuaternion(m *mat.Dense) (b, c, d, qfac float64, err error) {
	r, cl := m.Dims()
	if r != 4 || cl != 4 {
		return 0, 0, 0, 0, fmt.Errorf("%w: affine must be 4x4, got %dx%d", ErrValidation, r, cl)
	}

	var rot [3][3]float64
	for j := 0; j < 3; j++ {
		norm := math.Sqrt(m.At(0, j)*m.At(0, j) + m.At(1, j)*m.At(1, j) + m.At(2, j)*m.At(2, j))
		if norm == 0 {
			return 0, 0, 0, 0, fmt.Errorf("%w: affine column %d is zero", ErrValidation, j)
		}
		for i := 0; i < 3; i++ {
			rot[i][j] = m.At(i, j) / norm
		}
	}

	det := mat.Det(mat.NewDense(3, 3, []float64{
		rot[0][0], rot[0][1], rot[0][2],
		rot[1][0], rot[1][1], rot[1][2],
		rot[2][0], rot[2][1], rot[2][2],
	}))
	qfac = 1
	if det < 0 {
		qfac = -1
		rot[0][2] = -rot[0][2]
		rot[1][2] = -rot[1][2]
		rot[2][2] = -rot[2][2]
	}

	a := rot[0][0] + rot[1][1] + rot[2][2] + 1
	if a > 0.5 {
		a = 0.5 * math.Sqrt(a)
		b = 0.25 * (rot[2][1] - rot[1][2]) / a
		c = 0.25 * (rot[0][2] - rot[2][0]) / a
		d = 0.25 * (rot[1][0] - rot[0][1]) / a
	} else {
		xd := 1 + rot[0][0] - (rot[1][1] + rot[2][2])
		yd := 1 + rot[1][1] - (rot[0][0] + rot[2][2])
		zd := 1 + rot[2][2] - (rot[0][0] + rot[1][1])
		switch {
		case xd > 1:
			b = 0.5 * math.Sqrt(xd)
			c = 0.25 * (rot[0][1] + rot[1][0]) / b
			d = 0.25 * (rot[0][2] + rot[2][0]) / b
			a = 0.25 * (rot[2][1] - rot[1][2]) / b
		case yd > 1:
			c = 0.5 * math.Sqrt(yd)
			b = 0.25 * (rot[0][1] + rot[1][0]) / c
			d = 0.25 * (rot[1][2] + rot[2][1]) / c
			a = 0.25 * (rot[0][2] - rot[2][0]) / c
		default:
			d = 0.5 * math.Sqrt(zd)
			b = 0.25 * (rot[0][2] + rot[2][0]) / d
			c = 0.25 * (rot[1][2] + rot[2][1]) / d
			a = 0.25 * (rot[1][0] - rot[0][1]) / d
		}
		if a < 0 {
			b, c, d = -b, -c, -d
		}
	}
	return b, c, d, qfac, nil
}

// qformMatrix derives qto_xyz per the authority rule: the quaternion fields
// when qform_code > 0, else a pixdim-scaled identity.
func qformMatrix(h *Header) *mat.Dense {
	if h.QformCode > 0 {
		return QuaternionToMatrix(
			float64(h.QuaternB), float64(h.QuaternC), float64(h.QuaternD), h.QFac(),
			float64(h.Pixdim[1]), float64(h.Pixdim[2]), float64(h.Pixdim[3]),
			float64(h.QoffsetX), float64(h.QoffsetY), float64(h.QoffsetZ),
		)
	}
	return scaledIdentity(h)
}

// sformMatrix derives sto_xyz per the authority rule: the srow fields when
// sform_code > 0, else a pixdim-scaled identity. The last row is the
// implicit [0 0 0 1].
func sformMatrix(h *Header) *mat.Dense {
	if h.SformCode > 0 {
		m := mat.NewDense(4, 4, nil)
		for j := 0; j < 4; j++ {
			m.Set(0, j, float64(h.SrowX[j]))
			m.Set(1, j, float64(h.SrowY[j]))
			m.Set(2, j, float64(h.SrowZ[j]))
		}
		m.Set(3, 3, 1)
		return m
	}
	return scaledIdentity(h)
}

func scaledIdentity(h *Header) *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	spacing := [3]float64{1, 1, 1}
	for i := 0; i < 3; i++ {
		if pd := float64(h.Pixdim[i+1]); pd > 0 {
			spacing[i] = pd
		}
		m.Set(i, i, spacing[i])
	}
	m.Set(3, 3, 1)
	return m
}
