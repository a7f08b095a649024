package classifier

import "context"

type fakeNSFW struct {
	isNSFW     bool
	confidence float64
}

func (f fakeNSFW) ClassifyNSFW(context.Context, []byte) (bool, float64, error) {
	return f.isNSFW, f.confidence, nil
}

type fakeOCR struct {
	variants []string
}

func (f fakeOCR) ExtractText(context.Context, []byte) ([]string, error) {
	return f.variants, nil
}
