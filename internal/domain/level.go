package domain

// Level is a coarse engagement rank derived from UserStats.
type Level string

const (
	LevelNewcomer   Level = "newcomer"
	LevelReader     Level = "reader"
	LevelEnthusiast Level = "enthusiast"
	LevelExpert     Level = "expert"
)

// Badge identifiers.
const (
	BadgeFirstLike   = "first_like"
	BadgeCollector   = "collector"
	BadgeCommentator = "commentator"
	BadgeAmbassador  = "ambassador"
	BadgeMarathon    = "marathon"
)

// ComputeLevel returns the highest level whose thresholds s meets.
func ComputeLevel(s UserStats) Level {
	switch {
	case s.Viewed >= 200 && s.Saved >= 20:
		return LevelExpert
	case s.Viewed >= 50 && s.Liked >= 10:
		return LevelEnthusiast
	case s.Viewed >= 10:
		return LevelReader
	}
	return LevelNewcomer
}

type badgeRule struct {
	name string
	ok   func(UserStats) bool
}

var badgeRules = []badgeRule{
	{BadgeFirstLike, func(s UserStats) bool { return s.Liked >= 1 }},
	{BadgeCollector, func(s UserStats) bool { return s.Saved >= 10 }},
	{BadgeCommentator, func(s UserStats) bool { return s.Comments >= 5 }},
	{BadgeAmbassador, func(s UserStats) bool { return s.Invited >= 1 }},
	{BadgeMarathon, func(s UserStats) bool { return s.Viewed >= 100 }},
}

// AwardBadges returns existing plus newly earned badges. Badges are never revoked.
func AwardBadges(existing []string, s UserStats) []string {
	have := make(map[string]struct{}, len(existing))
	out := make([]string, 0, len(existing)+len(badgeRules))
	for _, b := range existing {
		if _, dup := have[b]; dup {
			continue
		}
		have[b] = struct{}{}
		out = append(out, b)
	}
	for _, r := range badgeRules {
		if _, ok := have[r.name]; ok || !r.ok(s) {
			continue
		}
		out = append(out, r.name)
	}
	return out
}
