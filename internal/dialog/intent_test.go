package dialog

import "testing"

func TestClassifyIntentTable(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"Hi there!", IntentGreeting},
		{"My budget is $450k", IntentBudget},
		{"We are pre-approved for financing", IntentBudget},
		{"We need to move in the next 3 months", IntentTimeline},
		{"Looking for a condo", IntentPropertyType},
		{"Somewhere near downtown with a short commute", IntentLocation},
		{"That's too expensive for us", IntentObjection},
		{"Can we schedule a tour?", IntentClosingSignal},
		{"Tell me more", IntentGeneral},
		{"", IntentGeneral},
	}
	for _, tc := range cases {
		got := ClassifyIntent(tc.text)
		if got.Name != tc.want {
			t.Errorf("ClassifyIntent(%q) = %s, want %s", tc.text, got.Name, tc.want)
		}
	}
}

func TestClassifyIntentPriorityResolvesDeterministically(t *testing.T) {
	// Matches both the budget and location rules; budget has the higher
	// priority and must win every time.
	text := "My budget is $450k for something in Capitol Hill"
	for i := 0; i < 10; i++ {
		got := ClassifyIntent(text)
		if got.Name != IntentBudget {
			t.Fatalf("iteration %d: intent = %s, want %s", i, got.Name, IntentBudget)
		}
	}
}

func TestClassifyIntentFallbackConfidence(t *testing.T) {
	got := ClassifyIntent("mmm hmm okay")
	if got.Name != IntentGeneral || got.Confidence != 0.5 {
		t.Fatalf("fallback = %s@%v, want %s@0.5", got.Name, got.Confidence, IntentGeneral)
	}
}

func TestClassifyIntentCarriesEntities(t *testing.T) {
	got := ClassifyIntent("I want a 3 bedroom house in Ballard under $700k")
	if got.Name != IntentBudget {
		t.Fatalf("intent = %s, want %s", got.Name, IntentBudget)
	}
	if len(got.Entities[EntityBudget]) == 0 || got.Entities[EntityBudget][0] != "700000" {
		t.Fatalf("budget entities = %v, want [700000]", got.Entities[EntityBudget])
	}
	if len(got.Entities[EntityLocation]) == 0 || got.Entities[EntityLocation][0] != "Ballard" {
		t.Fatalf("location entities = %v, want [Ballard]", got.Entities[EntityLocation])
	}
}
