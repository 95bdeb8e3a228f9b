package agents

import "time"

// Apply folds one interaction into the memory. Sentiment stays in [-1,1],
// familiarity in [0,1], and the interaction count only ever grows.
func (m SocialMemory) Apply(sentimentDelta, familiarityDelta float64, topic string, now time.Time) SocialMemory {
	m.Sentiment = clamp(m.Sentiment+finite(sentimentDelta), -1, 1)
	m.Familiarity = clamp01(m.Familiarity + finite(familiarityDelta))
	m.InteractionCount++
	t := now
	m.LastInteraction = &t
	if topic != "" {
		m.LastTopic = topic
	}
	return m
}

// Since returns how long ago the last interaction happened. ok is false when
// the pair has never interacted.
func (m SocialMemory) Since(now time.Time) (d time.Duration, ok bool) {
	if m.LastInteraction == nil {
		return 0, false
	}
	return now.Sub(*m.LastInteraction), true
}
