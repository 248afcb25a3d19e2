package spirv

import "github.com/gogpu/shaderc/types"

// sizeAndAlign computes a std140-like size and alignment, in bytes, for t:
// a vec3 takes three components but aligns like a vec4, array strides and
// struct alignments round up to 16 bytes, matrix columns are 16-byte
// aligned, and scalars narrower than 32 bits are padded to 4 bytes. It is
// not a std430 implementation.
func sizeAndAlign(t types.Type) (size, align uint32) {
	switch inner := t.Inner.(type) {
	case types.Scalar:
		w := uint32(inner.Width) / 8
		if w < 4 {
			w = 4
		}
		return w, w
	case types.Bool:
		return 4, 4
	case types.Vector:
		elemSize, _ := sizeAndAlign(types.Type{Inner: *inner.Element})
		switch inner.Length {
		case 2:
			return elemSize * 2, elemSize * 2
		case 3:
			return elemSize * 3, elemSize * 4
		default:
			return elemSize * 4, elemSize * 4
		}
	case types.Matrix:
		_, colAlign := sizeAndAlign(types.Type{Inner: types.Vector{Length: inner.Rows, Element: &inner.Element}})
		rowAlign := colAlign
		if rowAlign < 16 {
			rowAlign = 16
		}
		return rowAlign * uint32(inner.Cols), rowAlign
	case types.Array:
		elemSize, _ := sizeAndAlign(inner.Element)
		stride := align16(elemSize)
		n := inner.Size.N
		return stride * n, 16
	case types.Struct:
		offset := uint32(0)
		maxAlign := uint32(16)
		for _, f := range inner.Fields {
			_, fAlign := sizeAndAlign(f.Type)
			if fAlign > maxAlign {
				maxAlign = fAlign
			}
			offset = roundUp(offset, fAlign)
			fSize, _ := sizeAndAlign(f.Type)
			offset += fSize
		}
		return roundUp(offset, maxAlign), maxAlign
	default:
		return 4, 4
	}
}

func align16(n uint32) uint32 { return roundUp(n, 16) }

func roundUp(n, align uint32) uint32 {
	if align == 0 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}

// decorateOffsets attaches Offset member decorations (and MatrixStride/
// ColMajor for matrix members) to every field of the struct type already
// interned as structID.
func decorateOffsets(pool *Pool, structID uint32, structTy types.Type) {
	fields, ok := types.FieldsOf(structTy)
	if !ok {
		return
	}
	offset := uint32(0)
	for i, f := range fields {
		size, align := sizeAndAlign(f.Type)
		offset = roundUp(offset, align)
		pool.AddMemberDecorate(structID, uint32(i), DecorationOffset, offset)
		if mat, isMat := f.Type.Inner.(types.Matrix); isMat {
			_, colAlign := sizeAndAlign(types.Type{Inner: types.Vector{Length: mat.Rows, Element: &mat.Element}})
			stride := colAlign
			if stride < 16 {
				stride = 16
			}
			pool.AddMemberDecorate(structID, uint32(i), DecorationColMajor)
			pool.AddMemberDecorate(structID, uint32(i), DecorationMatrixStride, stride)
		}
		offset += size
	}
}
