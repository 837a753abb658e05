package ai

import (
	"fmt"

	"gocv.io/x/gocv"
)

// MatFrame wraps a gocv.Mat as a stream frame. Close is idempotent.
type MatFrame struct {
	mat    gocv.Mat
	closed bool
}

// NewMatFrame takes ownership of mat.
func NewMatFrame(mat gocv.Mat) *MatFrame {
	return &MatFrame{mat: mat}
}

// Mat exposes the underlying matrix. It must not be closed by the caller.
func (f *MatFrame) Mat() gocv.Mat {
	return f.mat
}

func (f *MatFrame) Size() (int, int) {
	return f.mat.Cols(), f.mat.Rows()
}

// Encode returns the frame as JPEG.
func (f *MatFrame) Encode() ([]byte, error) {
	if f.closed || f.mat.Empty() {
		return nil, fmt.Errorf("cannot encode empty frame")
	}
	buf, err := gocv.IMEncode(".jpg", f.mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %v", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}

func (f *MatFrame) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.mat.Close()
}
