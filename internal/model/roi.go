package model

import "image"

// DefaultROI covers a full 640x480 frame.
var DefaultROI = ROI{X: 0, Y: 0, Width: 640, Height: 480}

// ROI is the rectangular region of a frame in which detection is evaluated.
type ROI struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect returns the ROI as an image.Rectangle.
func (r ROI) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Clamp returns the intersection of the ROI with a frame of the given size.
// The result is empty when the ROI lies completely outside the frame.
func (r ROI) Clamp(frameWidth, frameHeight int) image.Rectangle {
	if r.Width <= 0 || r.Height <= 0 || frameWidth <= 0 || frameHeight <= 0 {
		return image.Rectangle{}
	}
	return r.Rect().Intersect(image.Rect(0, 0, frameWidth, frameHeight))
}

// FitWidth scales (width, height) down so width does not exceed maxWidth,
// keeping the aspect ratio. Sizes already within bounds are returned unchanged.
func FitWidth(width, height, maxWidth int) (int, int) {
	if maxWidth <= 0 || width <= maxWidth {
		return width, height
	}
	newHeight := int(float64(height) * float64(maxWidth) / float64(width))
	if newHeight < 1 {
		newHeight = 1
	}
	return maxWidth, newHeight
}
