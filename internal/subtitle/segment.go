package subtitle

// Segment turns every cue's end into the start of the cue that follows it,
// shifted by startOffsetMs. A cue's own start is only shifted when it lies
// past minThreshold so the opening cue cannot be pushed negative. The final
// cue has no successor and is returned unchanged.
func Segment(subs []Subtitle, startOffsetMs int64, minThreshold int64) []Subtitle {
	if len(subs) == 0 {
		return nil
	}

	out := make([]Subtitle, 0, len(subs))
	for i := 0; i < len(subs)-1; i++ {
		cur, next := subs[i], subs[i+1]

		seg := cur
		if cur.Start.Millis() > minThreshold {
			seg.Start = cur.Start.Add(startOffsetMs)
		}
		seg.End = next.Start.Add(startOffsetMs)
		out = append(out, seg)
	}
	out = append(out, subs[len(subs)-1])

	return out
}
