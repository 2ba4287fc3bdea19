package subtitles

import "dialogue-shorts/types"

// AttributionSource records which evidence the speaker track was built from
type AttributionSource string

const (
	AttributionClips      AttributionSource = "clips"
	AttributionTranscript AttributionSource = "transcript"
	AttributionEstimated  AttributionSource = "estimated"
)

// FromClips lays turns end to end using their clip durations. This mirrors
// exactly how the master audio was concatenated.
func FromClips(turns []types.DialogueTurn, durations []float64) []types.CharacterSegment {
	out := make([]types.CharacterSegment, 0, len(turns))
	clock := 0.0
	for i, t := range turns {
		d := durations[i]
		out = append(out, types.CharacterSegment{
			Start:   clock,
			End:     clock + d,
			Speaker: t.Speaker,
			Text:    t.Text,
		})
		clock += d
	}
	return out
}

// FromSegments pairs the i-th transcript segment with the i-th turn. The
// caller must have checked that the counts match.
func FromSegments(turns []types.DialogueTurn, segs []types.TranscriptSegment) []types.CharacterSegment {
	out := make([]types.CharacterSegment, 0, len(turns))
	for i, t := range turns {
		out = append(out, types.CharacterSegment{
			Start:   segs[i].Start,
			End:     segs[i].End,
			Speaker: t.Speaker,
			Text:    t.Text,
		})
	}
	return out
}

// Apportion spreads total across turns weighted by their estimated
// durations.
func Apportion(turns []types.DialogueTurn, total float64) []types.CharacterSegment {
	weights := make([]float64, len(turns))
	var sum float64
	for i, t := range turns {
		weights[i] = t.EstimatedDuration()
		sum += weights[i]
	}
	if total <= 0 {
		total = sum
	}
	durations := make([]float64, len(turns))
	for i, w := range weights {
		durations[i] = total * w / sum
	}
	return FromClips(turns, durations)
}

// Attribute builds the speaker track from the best evidence available:
// clip durations when every turn has one, then a positional match against
// transcript segments when the counts agree, then an estimate.
func Attribute(turns []types.DialogueTurn, clips []float64, segs []types.TranscriptSegment, total float64) ([]types.CharacterSegment, AttributionSource) {
	if len(turns) == 0 {
		return nil, AttributionEstimated
	}
	if len(clips) == len(turns) && allPositive(clips) {
		return FromClips(turns, clips), AttributionClips
	}
	if len(segs) == len(turns) {
		return FromSegments(turns, segs), AttributionTranscript
	}
	if total <= 0 && len(segs) > 0 {
		total = segs[len(segs)-1].End
	}
	return Apportion(turns, total), AttributionEstimated
}

func allPositive(ds []float64) bool {
	for _, d := range ds {
		if d <= 0 {
			return false
		}
	}
	return true
}

// CharacterCues turns the speaker track into subtitle cues whose text is
// the speaker name. Ends are kept within total and spans that round to an
// empty range at millisecond precision are dropped.
func CharacterCues(segs []types.CharacterSegment, total float64) []types.SubtitleCue {
	var cues []types.SubtitleCue
	for _, s := range segs {
		end := s.End
		if total > 0 && end > total {
			end = total
		}
		if truncate(end, 1000) <= truncate(s.Start, 1000) {
			continue
		}
		cues = append(cues, types.SubtitleCue{
			Index: len(cues) + 1,
			Start: s.Start,
			End:   end,
			Text:  s.Speaker,
		})
	}
	return cues
}
