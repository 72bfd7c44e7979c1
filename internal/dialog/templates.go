package dialog

import (
	"math/rand"
	"strings"
)

// Response pools keyed by intent. Placeholders are substituted with
// extracted entity values before the line is spoken.
var responseTemplates = map[string][]string{
	IntentGreeting: {
		"Hi there! I'd love to help you find your next home. What are you looking for?",
		"Hello! Great to hear from you. Tell me a bit about what you have in mind.",
		"Hey! Thanks for reaching out. What kind of place are you hoping to find?",
	},
	IntentBudget: {
		"Got it, around {budget} works with quite a few listings. Is that a firm ceiling or is there some flexibility?",
		"Thanks, {budget} gives us a good range to work with. Have you spoken with a lender about pre-approval yet?",
		"Perfect, I'll keep {budget} in mind. Are you including closing costs in that number?",
	},
	IntentTimeline: {
		"Good to know you're thinking {timeline}. Are you currently renting or do you have a home to sell first?",
		"A {timeline} timeline is very workable. What's driving the move?",
	},
	IntentLocation: {
		"{location} is a great choice. Are you set on that area or open to nearby neighborhoods too?",
		"I know {location} well. What draws you there - commute, schools, the vibe?",
	},
	IntentPropertyType: {
		"A {property_type} sounds like a good fit. How many bedrooms do you need?",
		"Nice, I have several {property_type} listings in mind. Any must-have features?",
	},
	IntentObjection: {
		"I completely understand. What would need to change for this to feel right?",
		"That's fair. Would it help if I put together some options with no commitment on your side?",
	},
	IntentClosingSignal: {
		"Wonderful! I can set that up. What day works best for you this week?",
		"Let's make it happen. Morning or afternoon usually better for you?",
	},
}

// clarificationTemplates is the fallback pool when no intent pool matches.
var clarificationTemplates = []string{
	"Could you tell me a little more about that?",
	"Just so I get this right - can you say more about what you're looking for?",
	"I want to make sure I understand. Could you expand on that a bit?",
}

// pickResponse selects a line from the intent's pool and substitutes
// extracted entities into its placeholders.
func pickResponse(rng *rand.Rand, intent string, entities map[string][]string) string {
	pool, ok := responseTemplates[intent]
	if !ok || len(pool) == 0 {
		pool = clarificationTemplates
	}
	line := pool[rng.Intn(len(pool))]
	return substitutePlaceholders(line, entities)
}

func substitutePlaceholders(line string, entities map[string][]string) string {
	replace := func(placeholder, key, fallback string) {
		if !strings.Contains(line, placeholder) {
			return
		}
		value := fallback
		if vals := entities[key]; len(vals) > 0 {
			value = vals[0]
			if key == EntityBudget {
				value = "$" + value
			}
		}
		line = strings.ReplaceAll(line, placeholder, value)
	}

	replace("{budget}", EntityBudget, "that budget")
	replace("{location}", EntityLocation, "that area")
	replace("{property_type}", EntityPropertyType, "home")
	replace("{rooms}", EntityRooms, "the right size")
	replace("{timeline}", EntityTimeline, "that timeframe")
	return line
}

// openingLines is the template pool for the first agent turn.
var openingLines = []string{
	"Hi {lead}, thanks for taking the time today! I'm {agent} - what kind of home are you looking for?",
	"Hello {lead}! This is {agent}. I'd love to learn what you're hoping to find - where should we start?",
	"Hi {lead}, {agent} here. Tell me about your ideal place and I'll see what I can line up.",
}

func pickOpeningLine(rng *rand.Rand, leadName, agentName string) string {
	line := openingLines[rng.Intn(len(openingLines))]
	if leadName == "" {
		leadName = "there"
	}
	if agentName == "" {
		agentName = "your agent"
	}
	line = strings.ReplaceAll(line, "{lead}", leadName)
	return strings.ReplaceAll(line, "{agent}", agentName)
}
