package analysis

import "github.com/matthewjhunter/veille/internal/storage"

// UnknownTopicLabel is shown for cards whose topic no longer exists.
const UnknownTopicLabel = "Unknown topic"

// Group is the cards of one topic.
type Group struct {
	TopicID string         `json:"topic_id"`
	Cards   []storage.Card `json:"cards"`
}

// Label returns the topic's name, or UnknownTopicLabel when no topic in
// topics has the group's id.
func (g Group) Label(topics []storage.Topic) string {
	for _, t := range topics {
		if t.ID == g.TopicID {
			return t.Name
		}
	}
	return UnknownTopicLabel
}

// Groups is an ordered topic-to-cards mapping.
type Groups []Group

// Get returns the cards grouped under topicID.
func (gs Groups) Get(topicID string) ([]storage.Card, bool) {
	for _, g := range gs {
		if g.TopicID == topicID {
			return g.Cards, true
		}
	}
	return nil, false
}

// GroupByTopic groups cards by topic id. Groups appear in the order their
// first card appears, and cards keep their relative order within a group.
// Cards failing Card.Valid are left out.
func GroupByTopic(cards []storage.Card) Groups {
	index := make(map[string]int)
	var groups Groups
	for _, c := range cards {
		if !c.Valid() {
			continue
		}
		i, ok := index[c.TopicID]
		if !ok {
			i = len(groups)
			index[c.TopicID] = i
			groups = append(groups, Group{TopicID: c.TopicID})
		}
		groups[i].Cards = append(groups[i].Cards, c)
	}
	return groups
}
