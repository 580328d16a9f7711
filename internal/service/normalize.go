package service

import (
	"github.com/iconidentify/linkgrabba/internal/domain"
)

// Normalize turns an extractor's raw format list into client-ready
// candidates. Entries without a direct URL or without any stream are
// dropped, video-only entries are kept once per known height (first wins),
// and the input order of retained entries is preserved.
func Normalize(raw []domain.RawFormat) []domain.NormalizedFormat {
	seenHeights := make(map[int]struct{})
	out := make([]domain.NormalizedFormat, 0, len(raw))

	for _, f := range raw {
		if f.DirectURL == "" {
			continue
		}
		kind, ok := domain.ClassifyKind(f)
		if !ok {
			continue
		}

		nf := domain.NormalizedFormat{
			FormatID:  f.FormatID,
			Kind:      kind,
			Ext:       f.Ext,
			DirectURL: f.DirectURL,
		}

		switch kind {
		case domain.KindVideoAudio:
			nf.ResolutionLabel = muxedLabel(f)
		case domain.KindVideoOnly:
			if f.Height <= 0 {
				continue
			}
			if _, dup := seenHeights[f.Height]; dup {
				continue
			}
			seenHeights[f.Height] = struct{}{}
			nf.ResolutionLabel = domain.HeightLabel(f.Height)
		case domain.KindAudioOnly:
			if f.AverageBitrate != nil {
				kbps := *f.AverageBitrate
				nf.Bitrate = &kbps
				nf.ResolutionLabel = domain.BitrateLabel(kbps)
			}
		}

		out = append(out, nf)
	}

	return out
}

func muxedLabel(f domain.RawFormat) string {
	switch {
	case f.Height > 0:
		return domain.HeightLabel(f.Height)
	case f.ResolutionHint != "":
		return f.ResolutionHint
	default:
		return "unknown"
	}
}
