package urgency

// occurrence is one evaluated keyword hit positioned in the original text.
type occurrence struct {
	eval       EvaluatedKeyword
	start, end int    // byte range in the original text
	unit       string // sentence or subject line the hit was evaluated in
}

// evaluateText is the single evaluation core behind CollectMatches and
// Highlight. Subject hits come first, then body units in text order. Within a
// unit hits are grouped by dictionary order.
func evaluateText(text string) []occurrence {
	var out []occurrence

	body := text
	toOriginal := func(o int) int { return o }

	if subj, ok := DetectSubject(text); ok {
		for _, kw := range dictionary {
			for _, loc := range kw.find(subj.Text) {
				out = append(out, occurrence{
					eval:  evaluateSubjectAt(kw, subj.Text, loc[0], loc[1], subj.Body),
					start: subj.Offset + loc[0],
					end:   subj.Offset + loc[1],
					unit:  subj.Text,
				})
			}
		}
		body = subj.Body
		toOriginal = subj.bodyOffset
	}

	for u := range units(body) {
		for _, kw := range dictionary {
			for _, loc := range kw.find(u.Text) {
				// Keywords never span a line break, so a hit never straddles the
				// removed subject line and its length is preserved.
				start := toOriginal(u.Offset + loc[0])
				out = append(out, occurrence{
					eval:  evaluateAt(u.Text, kw, loc[0], loc[1]),
					start: start,
					end:   start + loc[1] - loc[0],
					unit:  u.Text,
				})
			}
		}
	}
	return out
}

// CollectMatches evaluates every dictionary keyword occurrence in text. The
// same keyword may appear several times with different verdicts.
func CollectMatches(text string) []EvaluatedKeyword {
	occs := evaluateText(text)
	out := make([]EvaluatedKeyword, 0, len(occs))
	for _, o := range occs {
		out = append(out, o.eval)
	}
	return out
}
