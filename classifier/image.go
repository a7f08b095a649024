package classifier

import "context"

// ImageResult is the verdict for one image moderation job, mirroring
// Result but carrying the text (if any) that OCR extracted from the image.
type ImageResult struct {
	Action        Action
	Labels        []Label
	Confidence    float64
	ExtractedText string
	Reasoning     string
}

// NSFWClassifier flags sexually explicit imagery ahead of OCR, matching
// spec.md §4.2's image path step 1.
type NSFWClassifier interface {
	ClassifyNSFW(ctx context.Context, image []byte) (isNSFW bool, confidence float64, err error)
}

// OCREngine extracts text from an image. Implementations are expected to
// try multiple preprocessing variants (original, high-contrast, sharpened,
// upscaled, inverted) and return the union of text found, since spec.md
// §4.2 requires unioning OCR-variant results before classification.
type OCREngine interface {
	ExtractText(ctx context.Context, image []byte) ([]string, error)
}

// ImagePipeline implements spec.md §4.2's image path: an NSFW pre-filter,
// followed by OCR whose extracted text is fed into the same text
// Pipeline used for plain text jobs, with an OCR-triggered reject winning
// over an NSFW-pass verdict.
type ImagePipeline struct {
	NSFW NSFWClassifier
	OCR  OCREngine
	Text *Pipeline
}

const nsfwRejectThreshold = 0.85

func (ip *ImagePipeline) Classify(ctx context.Context, image []byte) (ImageResult, error) {
	if ip.NSFW != nil {
		isNSFW, confidence, err := ip.NSFW.ClassifyNSFW(ctx, image)
		if err != nil {
			return ImageResult{}, err
		}
		if isNSFW && confidence >= nsfwRejectThreshold {
			return ImageResult{
				Action:     ActionReject,
				Labels:     []Label{LabelSexual},
				Confidence: confidence,
				Reasoning:  "nsfw classifier rejected image",
			}, nil
		}
	}

	if ip.OCR == nil {
		return ImageResult{Action: ActionAllowed, Reasoning: "no ocr engine configured"}, nil
	}

	variants, err := ip.OCR.ExtractText(ctx, image)
	if err != nil {
		return ImageResult{}, err
	}

	merged := ImageResult{Action: ActionAllowed, Reasoning: "no violations detected"}
	seenText := make(map[string]bool)
	for _, text := range variants {
		if text == "" || seenText[text] {
			continue
		}
		seenText[text] = true

		textResult, err := ip.Text.Classify(ctx, text)
		if err != nil {
			return ImageResult{}, err
		}
		if merged.ExtractedText == "" {
			merged.ExtractedText = text
		} else {
			merged.ExtractedText += " " + text
		}
		for _, l := range textResult.Labels {
			merged.Labels = addLabel(merged.Labels, l)
		}
		if actionRank(textResult.Action) > actionRank(merged.Action) {
			merged.Action = textResult.Action
			merged.Confidence = textResult.Confidence
			merged.Reasoning = textResult.Reasoning
		}
	}

	return merged, nil
}

func actionRank(a Action) int {
	switch a {
	case ActionReject:
		return 2
	case ActionReview:
		return 1
	default:
		return 0
	}
}
