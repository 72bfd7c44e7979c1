package dialog

import (
	"regexp"
	"sort"
	"strings"
)

// Intent names produced by the classifier.
const (
	IntentGreeting      = "greeting"
	IntentBudget        = "budget_inquiry"
	IntentTimeline      = "timeline_inquiry"
	IntentLocation      = "location_preference"
	IntentPropertyType  = "property_inquiry"
	IntentObjection     = "objection"
	IntentClosingSignal = "closing_signal"
	IntentGeneral       = "general_inquiry"
)

// intentRule is one row of the classification decision table.
type intentRule struct {
	name       string
	pattern    *regexp.Regexp
	priority   int
	confidence float64
	domain     string
}

// The table is evaluated against normalized text; the highest-priority
// match wins. Budget outranks location so a combined phrase resolves to
// the budget intent.
var intentRules = []intentRule{
	{
		name:       IntentBudget,
		pattern:    regexp.MustCompile(`\$\s*\d|budget|afford|price range|pre.?approved|spend|financing|mortgage`),
		priority:   100,
		confidence: 0.9,
		domain:     "qualification",
	},
	{
		name:       IntentTimeline,
		pattern:    regexp.MustCompile(`how soon|timeline|time frame|asap|immediately|right away|this (?:week|month|year)|next (?:week|month|year)|\d+\s*(?:weeks?|months?)|move in|closing date`),
		priority:   90,
		confidence: 0.85,
		domain:     "qualification",
	},
	{
		name:       IntentPropertyType,
		pattern:    regexp.MustCompile(`condo|townhouse|town home|single.?family|house|apartment|duplex|loft|\d+\s*(?:bed|bath)`),
		priority:   80,
		confidence: 0.85,
		domain:     "qualification",
	},
	{
		name:       IntentLocation,
		pattern:    regexp.MustCompile(`neighborhood|area|location|near|close to|school district|commute|downtown|capitol hill|ballard|fremont|queen anne|west seattle|bellevue|kirkland|redmond|green lake|wallingford`),
		priority:   70,
		confidence: 0.8,
		domain:     "qualification",
	},
	{
		name:       IntentObjection,
		pattern:    regexp.MustCompile(`too expensive|can'?t afford|not sure|not ready|need to think|have to ask|talk to my|worried|concern|hesitant|not interested|maybe later`),
		priority:   60,
		confidence: 0.8,
		domain:     "objection",
	},
	{
		name:       IntentClosingSignal,
		pattern:    regexp.MustCompile(`schedule|book|tour|viewing|visit|see it|send me|sign|offer|let'?s do it|sounds good|when can`),
		priority:   50,
		confidence: 0.85,
		domain:     "closing",
	},
	{
		name:       IntentGreeting,
		pattern:    regexp.MustCompile(`^(?:hi|hey|hello|good (?:morning|afternoon|evening)|howdy)\b`),
		priority:   10,
		confidence: 0.95,
		domain:     "social",
	},
}

func init() {
	sort.SliceStable(intentRules, func(i, j int) bool {
		return intentRules[i].priority > intentRules[j].priority
	})
}

// ClassifyIntent evaluates the decision table against normalized text.
// No match yields general_inquiry at confidence 0.5.
func ClassifyIntent(text string) Intent {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized != "" {
		for _, r := range intentRules {
			if r.pattern.MatchString(normalized) {
				return Intent{
					Name:       r.name,
					Confidence: r.confidence,
					Entities:   ExtractEntities(text),
					Domain:     r.domain,
				}
			}
		}
	}
	return Intent{
		Name:       IntentGeneral,
		Confidence: 0.5,
		Entities:   ExtractEntities(text),
		Domain:     "general",
	}
}
