package urgency

import "regexp"

// PatternKind says what a context pattern does to a keyword.
type PatternKind string

const (
	KindStrongNegation PatternKind = "strong_negation"
	KindCancellation   PatternKind = "cancellation"
	KindRejection      PatternKind = "rejection"
	KindInformational  PatternKind = "informational"
	KindConditional    PatternKind = "conditional"
	KindExclusion      PatternKind = "exclusion"
)

// Neutralizes reports whether the kind zeroes a keyword instead of discounting it.
func (k PatternKind) Neutralizes() bool {
	switch k {
	case KindStrongNegation, KindCancellation, KindRejection:
		return true
	default:
		return false
	}
}

// Scope is the stretch of text a rule is tested against.
type Scope int

const (
	ScopeWindow   Scope = iota // ±windowRadius tokens around the keyword
	ScopeSentence              // the whole sentence
	ScopeBody                  // the whole letter body (subject-line rules only)
)

// Pattern is a single context marker. Reduction is 1.0 for neutralizing kinds
// and strictly below 1.0 for mitigations.
type Pattern struct {
	Name      string
	Kind      PatternKind
	Reduction float64
	re        *regexp.Regexp
}

// MatchString reports whether the marker occurs in s.
func (p Pattern) MatchString(s string) bool {
	return p.re.MatchString(s)
}

// Rule is one step of an evaluation order. Patterns are tried in order and
// the first hit decides.
type Rule struct {
	Kind     PatternKind
	Scope    Scope
	Patterns []Pattern
}

// firstMatch returns the first pattern of the rule that matches s.
func (r Rule) firstMatch(s string) (Pattern, bool) {
	for _, p := range r.Patterns {
		if p.MatchString(s) {
			return p, true
		}
	}
	return Pattern{}, false
}

func neutralizer(kind PatternKind, name, expr string) Pattern {
	return Pattern{Name: name, Kind: kind, Reduction: 1.0, re: regexp.MustCompile(`(?i)` + expr)}
}

func mitigation(kind PatternKind, name, expr string, reduction float64) Pattern {
	return Pattern{Name: name, Kind: kind, Reduction: reduction, re: regexp.MustCompile(`(?i)` + expr)}
}

// Word boundaries are ASCII (RE2). Every marker starts and ends with an ASCII
// letter, so \b is safe here.
var (
	strongNegators = []Pattern{
		neutralizer(KindStrongNegation, "nicht mehr", `\bnicht\s+mehr\b`),
		neutralizer(KindStrongNegation, "nicht", `\bnicht\b`),
		neutralizer(KindStrongNegation, "keine", `\bkeine[nmrs]?\b`),
		neutralizer(KindStrongNegation, "keinerlei", `\bkeinerlei\b`),
		neutralizer(KindStrongNegation, "niemals", `\bniemals\b`),
		neutralizer(KindStrongNegation, "weder", `\bweder\b`),
		neutralizer(KindStrongNegation, "ohne", `\bohne\b`),
	}

	cancellationVerbs = []Pattern{
		neutralizer(KindCancellation, "aufgehoben", `\baufgehoben\b`),
		neutralizer(KindCancellation, "widerrufen", `\bwiderrufen\b`),
		neutralizer(KindCancellation, "zurückgenommen", `\bzurückgenommen\b`),
		neutralizer(KindCancellation, "eingestellt", `\beingestellt\b`),
		neutralizer(KindCancellation, "erledigt", `\berledigt\b`),
		neutralizer(KindCancellation, "beendet", `\bbeendet\b`),
		neutralizer(KindCancellation, "abgeschlossen", `\babgeschlossen\b`),
	}

	rejectionPatterns = []Pattern{
		neutralizer(KindRejection, "abgelehnt", `\babgelehnt\b`),
		neutralizer(KindRejection, "nicht erteilt", `\bnicht\s+erteilt\b`),
		neutralizer(KindRejection, "wird nicht", `\bwird\s+nicht\b`),
		neutralizer(KindRejection, "nicht vorgesehen", `\bnicht\s+vorgesehen\b`),
		neutralizer(KindRejection, "entfällt", `\bentfällt\b`),
		neutralizer(KindRejection, "nicht erforderlich", `\bnicht\s+erforderlich\b`),
	}

	informationalMarkers = []Pattern{
		mitigation(KindInformational, "zur Kenntnis", `\bzur\s+kenntnis`, 0.5),
		mitigation(KindInformational, "zur Information", `\bzur\s+information`, 0.5),
		mitigation(KindInformational, "Hinweis", `\bhinweis`, 0.3),
		mitigation(KindInformational, "Mitteilung", `\bmitteilung`, 0.3),
		mitigation(KindInformational, "kein Handlungsbedarf", `\bkein\s+handlungsbedarf\b`, 0.9),
		mitigation(KindInformational, "keine weiteren Schritte", `\bkeine\s+weiteren\s+schritte\b`, 0.9),
		mitigation(KindInformational, "ohne weitere Maßnahmen", `\bohne\s+weitere\s+maßnahmen\b`, 0.7),
	}

	conditionalMarkers = []Pattern{
		mitigation(KindConditional, "falls", `\bfalls\b`, 0.4),
		mitigation(KindConditional, "sofern", `\bsofern\b`, 0.4),
		mitigation(KindConditional, "wenn nicht", `\bwenn\s+nicht\b`, 0.3),
		mitigation(KindConditional, "würde", `\bwürde[nst]*\b`, 0.5),
		mitigation(KindConditional, "könnte", `\bkönnte[nst]*\b`, 0.5),
	}

	// Ordered strongest first; the first hit decides.
	exclusionPatterns = []Pattern{
		mitigation(KindExclusion, "Aktennotiz", `\baktennotiz`, 0.7),
		mitigation(KindExclusion, "Beschluss", `\bbeschluss`, 0.6),
		mitigation(KindExclusion, "Anordnung", `\banordnung`, 0.6),
		mitigation(KindExclusion, "Weisung", `\bweisung`, 0.6),
		mitigation(KindExclusion, "Verfahrenskoordination", `\bverfahrenskoordination`, 0.6),
		mitigation(KindExclusion, "Verwaltungsakt", `\bverwaltungsakt`, 0.5),
	}

	// Negators the subject-line handler looks for right next to the keyword in the body.
	adjacentNegators = `nicht|kein(?:e[nmrs]?)?|niemals|wird\s+nicht|nicht\s+erteilt|nicht\s+vorgesehen|entfällt|abgelehnt`
)

// sentenceRules is the evaluation order for keywords inside a sentence.
var sentenceRules = []Rule{
	{Kind: KindStrongNegation, Scope: ScopeWindow, Patterns: strongNegators},
	{Kind: KindCancellation, Scope: ScopeSentence, Patterns: cancellationVerbs},
	{Kind: KindRejection, Scope: ScopeWindow, Patterns: rejectionPatterns},
	{Kind: KindInformational, Scope: ScopeSentence, Patterns: informationalMarkers},
	{Kind: KindConditional, Scope: ScopeWindow, Patterns: conditionalMarkers},
}

// subjectBodyRules follow the keyword-adjacent negation check for subject-line
// keywords. Sentence scope here means "a body sentence that also contains the keyword".
var subjectBodyRules = []Rule{
	{Kind: KindCancellation, Scope: ScopeSentence, Patterns: cancellationVerbs},
	{Kind: KindStrongNegation, Scope: ScopeSentence, Patterns: strongNegators},
	{Kind: KindRejection, Scope: ScopeSentence, Patterns: rejectionPatterns},
	{Kind: KindExclusion, Scope: ScopeBody, Patterns: exclusionPatterns},
	{Kind: KindInformational, Scope: ScopeBody, Patterns: informationalMarkers},
}
