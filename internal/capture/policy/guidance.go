// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package policy

import (
	"strings"

	"github.com/ManuGH/capflow/internal/capture/model"
)

// Rejection reasons reported by the evaluation server.
const (
	ReasonFaceNotFound = "FACE_NOT_FOUND"
	ReasonBlurryImage  = "BLURRY_IMAGE"
	ReasonLowLight     = "LOW_LIGHT"
	ReasonReflection   = "REFLECTION"
)

var guidanceByReason = map[string]model.Guidance{
	ReasonFaceNotFound: model.GuidanceFaceNotFound,
	ReasonBlurryImage:  model.GuidanceBlurryImage,
	ReasonLowLight:     model.GuidanceLowLight,
	ReasonReflection:   model.GuidanceReflection,
}

// GuidanceFor maps a rejection reason to user guidance. Unknown reasons fall
// back to the not-found guidance of the side; face flows carry no side and
// get face-not-found.
func GuidanceFor(reason string, side model.Side) model.Guidance {
	if g, ok := guidanceByReason[strings.ToUpper(strings.TrimSpace(reason))]; ok {
		return g
	}
	switch side {
	case model.SideBack:
		return model.GuidanceBackDocumentNotFound
	case model.SideNone:
		return model.GuidanceFaceNotFound
	default:
		return model.GuidanceFrontDocumentNotFound
	}
}
