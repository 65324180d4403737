package usecase

import (
	"genstudio-backend/internal/domain/ports/vendor"
)

// maxEditImages is the image list limit of the nano-banana edit endpoint.
const maxEditImages = 2

// ImageRoute is the effective vendor/endpoint plus the image inputs it
// should receive. The nominal model a caller names and the endpoint actually
// invoked may differ.
type ImageRoute struct {
	Model        vendor.ImageModel
	ReferenceURL string
	ImageURLs    []string
}

// RouteImage computes the effective route from the nominal model and the
// presence of reference/attachment images. It is a pure function: no
// side effects, deterministic for the same inputs.
//
//   - nano-banana with any image present goes to its edit endpoint with
//     [reference] + attachments clamped to the first two entries
//   - nano-banana with no images goes to the gemini-3-pro text-to-image
//     sibling
//   - kling takes a single reference, never a list; the first attachment
//     stands in for a missing reference
//   - every other model passes its inputs through unchanged
func RouteImage(nominal vendor.ImageModel, referenceURL string, attachments []string) ImageRoute {
	urls := make([]string, 0, len(attachments))
	for _, u := range attachments {
		if u != "" {
			urls = append(urls, u)
		}
	}

	switch nominal {
	case vendor.ModelNanoBanana:
		if referenceURL == "" && len(urls) == 0 {
			return ImageRoute{Model: vendor.ModelGemini3Pro}
		}
		edit := make([]string, 0, maxEditImages)
		if referenceURL != "" {
			edit = append(edit, referenceURL)
		}
		edit = append(edit, urls...)
		if len(edit) > maxEditImages {
			edit = edit[:maxEditImages]
		}
		return ImageRoute{Model: vendor.ModelNanoBananaEdit, ImageURLs: edit}

	case vendor.ModelKling:
		if referenceURL == "" && len(urls) > 0 {
			referenceURL = urls[0]
		}
		return ImageRoute{Model: vendor.ModelKling, ReferenceURL: referenceURL}

	default:
		return ImageRoute{Model: nominal, ReferenceURL: referenceURL, ImageURLs: urls}
	}
}
