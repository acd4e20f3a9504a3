package conflict

// Strategy names a resolution approach for a conflicting field.
type Strategy string

const (
	// StrategySourceWins keeps the local value.
	StrategySourceWins Strategy = "source_wins"
	// StrategyTargetWins keeps the remote value.
	StrategyTargetWins Strategy = "target_wins"
	// StrategyLatestWins keeps whichever side changed most recently. With no
	// remote timestamp to compare against, the local value wins.
	StrategyLatestWins Strategy = "latest_wins"
	// StrategyManualReview defers to a human; the conflict stays pending.
	StrategyManualReview Strategy = "manual_review"
	// StrategyMerge combines both values where the type allows it.
	StrategyMerge Strategy = "merge"
)

// Rule binds a field to a resolution strategy. Field may be a literal field
// name or "*" as a catch-all. Lower priority values win among candidates.
type Rule struct {
	Field    string   `json:"field"`
	Strategy Strategy `json:"strategy"`
	Priority int      `json:"priority"`
}

// DefaultRules is the built-in rule table. Identity fields keep their
// authoritative side, volatile fields follow recency, and relationship
// fields always go to a human.
func DefaultRules() []Rule {
	return []Rule{
		{Field: "id", Strategy: StrategySourceWins, Priority: 0},
		{Field: "externalId", Strategy: StrategyTargetWins, Priority: 0},
		{Field: "timeSpent", Strategy: StrategyLatestWins, Priority: 1},
		{Field: "description", Strategy: StrategyLatestWins, Priority: 1},
		{Field: "hourlyRate", Strategy: StrategySourceWins, Priority: 2},
		{Field: "client", Strategy: StrategyManualReview, Priority: 3},
		{Field: "matter", Strategy: StrategyManualReview, Priority: 3},
	}
}

// selectRule picks the rule governing a field: an exact field match always
// beats a wildcard, and ties break toward the lowest priority value.
func selectRule(rules []Rule, field string) (Rule, bool) {
	var best Rule
	var found, bestExact bool

	for _, rule := range rules {
		exact := rule.Field == field
		if !exact && rule.Field != "*" {
			continue
		}
		switch {
		case !found,
			exact && !bestExact,
			exact == bestExact && rule.Priority < best.Priority:
			best = rule
			found = true
			bestExact = exact
		}
	}
	return best, found
}
