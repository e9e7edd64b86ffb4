// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

// Category classifies a single detection.
type Category string

const (
	CategoryNone     Category = "none"
	CategoryFace     Category = "face"
	CategoryDocument Category = "document"
)

// Rect is a bounding region in frame pixel coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Detection is one classified observation from the frame analyzer.
type Detection struct {
	Category     Category `json:"category"`
	Bounds       Rect     `json:"bounds"`
	Confidence   float64  `json:"confidence"`
	HasLandmarks bool     `json:"hasLandmarks,omitempty"`
	FrontScore   float64  `json:"frontScore,omitempty"`
	BackScore    float64  `json:"backScore,omitempty"`
}

// DocumentSide returns the side with the higher discriminating score.
// Equal scores are ambiguous and yield SideNone.
func (d Detection) DocumentSide() Side {
	switch {
	case d.FrontScore > d.BackScore:
		return SideFront
	case d.BackScore > d.FrontScore:
		return SideBack
	default:
		return SideNone
	}
}

// DetectionBatch is everything the analyzer found in one processed frame.
// Seq starts at 1 and must increase per frame; Thumbnail is an opaque preview reference.
type DetectionBatch struct {
	Seq       uint64      `json:"seq"`
	Results   []Detection `json:"results"`
	Thumbnail string      `json:"thumbnail,omitempty"`
}
