package dialog

import (
	"regexp"
	"strconv"
	"strings"
)

// Entity map keys.
const (
	EntityBudget       = "budget"
	EntityLocation     = "location"
	EntityPropertyType = "property_type"
	EntityRooms        = "rooms"
	EntityTimeline     = "timeline"
)

var (
	moneyPattern     = regexp.MustCompile(`\$\s*(\d+(?:,\d{3})*(?:\.\d+)?)\s*([kKmM])?`)
	bareMoneyPattern = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*([kKmM])\b`)
	roomsPattern     = regexp.MustCompile(`(\d+)\s*(bed(?:room)?s?|bath(?:room)?s?)`)

	locationKeywords = []string{
		"Capitol Hill", "Queen Anne", "West Seattle", "Green Lake",
		"Ballard", "Fremont", "Wallingford", "Bellevue", "Kirkland",
		"Redmond", "Downtown",
	}

	propertyTypeKeywords = []string{
		"condo", "townhouse", "single-family", "house", "apartment",
		"duplex", "loft",
	}

	timelineKeywords = []string{
		"asap", "immediately", "right away", "this week", "this month",
		"next month", "this year", "next year", "3 months", "6 months",
		"six months",
	}
)

// ExtractEntities pulls structured values out of utterance text: monetary
// amounts (a trailing "k" shorthand expands x1000), location keywords,
// property-type keywords, bedroom/bathroom counts, and timeline keywords.
func ExtractEntities(text string) map[string][]string {
	entities := make(map[string][]string)
	lower := strings.ToLower(text)

	for _, m := range moneyPattern.FindAllStringSubmatch(text, -1) {
		if amount, ok := parseMoney(m[1], m[2]); ok {
			entities[EntityBudget] = appendUnique(entities[EntityBudget], strconv.FormatInt(amount, 10))
		}
	}
	for _, m := range bareMoneyPattern.FindAllStringSubmatch(text, -1) {
		if amount, ok := parseMoney(m[1], m[2]); ok {
			entities[EntityBudget] = appendUnique(entities[EntityBudget], strconv.FormatInt(amount, 10))
		}
	}

	for _, loc := range locationKeywords {
		if strings.Contains(lower, strings.ToLower(loc)) {
			entities[EntityLocation] = append(entities[EntityLocation], loc)
		}
	}

	for _, pt := range propertyTypeKeywords {
		if containsWord(lower, pt) {
			entities[EntityPropertyType] = append(entities[EntityPropertyType], pt)
		}
	}

	for _, m := range roomsPattern.FindAllStringSubmatch(lower, -1) {
		kind := "bed"
		if strings.HasPrefix(m[2], "bath") {
			kind = "bath"
		}
		entities[EntityRooms] = append(entities[EntityRooms], m[1]+" "+kind)
	}

	for _, tl := range timelineKeywords {
		if strings.Contains(lower, tl) {
			entities[EntityTimeline] = append(entities[EntityTimeline], tl)
		}
	}

	if len(entities) == 0 {
		return nil
	}
	return entities
}

// parseMoney converts a matched amount and optional k/m suffix to a whole
// dollar figure.
func parseMoney(raw, suffix string) (int64, bool) {
	raw = strings.ReplaceAll(raw, ",", "")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(suffix) {
	case "k":
		v *= 1_000
	case "m":
		v *= 1_000_000
	}
	if v < 0 {
		return 0, false
	}
	return int64(v), true
}

// containsWord matches keyword at word boundaries so "house" does not
// fire inside "townhouse" or "household".
func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = end
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
