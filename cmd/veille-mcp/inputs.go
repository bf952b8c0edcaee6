package main

// Input types for MCP tools. The SDK infers JSON Schema from these structs.
// Pointer types and omitempty fields are optional; the rest are required.

type topicCreateInput struct {
	Name       string   `json:"name"                 jsonschema:"Display name of the topic"`
	Keywords   []string `json:"keywords,omitempty"   jsonschema:"Keywords the analysis should watch for"`
	Sentiments []string `json:"sentiments,omitempty" jsonschema:"Sentiment categories articles are classified into (e.g. positif, négatif, neutre)"`
}

type sourcesListInput struct {
	TopicID *string `json:"topic_id,omitempty" jsonschema:"Optional topic ID. If omitted returns the sources of every topic."`
}

type sourceAddInput struct {
	TopicID     string  `json:"topic_id"              jsonschema:"The topic the source feeds"`
	URL         string  `json:"url"                   jsonschema:"Absolute http(s) URL of the feed or page"`
	Kind        *string `json:"kind,omitempty"        jsonschema:"Source kind: rss, web, blog, forum or manual (default rss)"`
	Title       *string `json:"title,omitempty"       jsonschema:"Optional display title"`
	Description *string `json:"description,omitempty" jsonschema:"Optional short description"`
}

type topicIDInput struct {
	TopicID string `json:"topic_id" jsonschema:"The topic ID"`
}

// Dates are calendar days in the server's local time zone; date_to includes
// the whole day.
type cardsFilterInput struct {
	TopicID    *string  `json:"topic_id,omitempty"   jsonschema:"Only cards of this topic"`
	Sentiments []string `json:"sentiments,omitempty" jsonschema:"Only cards with one of these sentiments"`
	Entities   []string `json:"entities,omitempty"   jsonschema:"Only cards naming at least one of these entities"`
	DateFrom   *string  `json:"date_from,omitempty"  jsonschema:"First day included (YYYY-MM-DD)"`
	DateTo     *string  `json:"date_to,omitempty"    jsonschema:"Last day included (YYYY-MM-DD)"`
	Search     *string  `json:"search,omitempty"     jsonschema:"Case-insensitive text matched against title and summary"`
	Limit      *int     `json:"limit,omitempty"      jsonschema:"Maximum number of cards per topic (default all)"`
}

type cardsStatsInput struct {
	TopicID    *string  `json:"topic_id,omitempty"   jsonschema:"Only cards of this topic"`
	Sentiments []string `json:"sentiments,omitempty" jsonschema:"Only cards with one of these sentiments"`
	Entities   []string `json:"entities,omitempty"   jsonschema:"Only cards naming at least one of these entities"`
	DateFrom   *string  `json:"date_from,omitempty"  jsonschema:"First day included (YYYY-MM-DD)"`
	DateTo     *string  `json:"date_to,omitempty"    jsonschema:"Last day included (YYYY-MM-DD)"`
	Search     *string  `json:"search,omitempty"     jsonschema:"Case-insensitive text matched against title and summary"`
	Top        *int     `json:"top,omitempty"        jsonschema:"Number of entities in the ranking (default 10)"`
}

// timelineInput selects the period by days or by an explicit from/to range.
type timelineInput struct {
	TopicID    *string  `json:"topic_id,omitempty"   jsonschema:"Only cards of this topic"`
	Sentiments []string `json:"sentiments,omitempty" jsonschema:"Only these sentiments; each gets a series even when empty"`
	Entities   []string `json:"entities,omitempty"   jsonschema:"Only cards naming at least one of these entities"`
	Search     *string  `json:"search,omitempty"     jsonschema:"Case-insensitive text matched against title and summary"`
	Days       *int     `json:"days,omitempty"       jsonschema:"Trailing window in days ending today (default from config)"`
	From       *string  `json:"from,omitempty"       jsonschema:"First day of an explicit range (YYYY-MM-DD); requires to"`
	To         *string  `json:"to,omitempty"         jsonschema:"Last day of an explicit range (YYYY-MM-DD); requires from"`
}
