package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/matthewjhunter/veille"
	"github.com/matthewjhunter/veille/internal/analysis"
)

const serverVersion = "0.3.0"

// server is the veille MCP server.
type server struct {
	engine *veille.Engine
	logger *slog.Logger
	poller *poller
}

func newServer(engine *veille.Engine, logger *slog.Logger, p *poller) *server {
	return &server{engine: engine, logger: logger, poller: p}
}

// mcpServer builds the SDK server with every tool registered.
func (s *server) mcpServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "veille",
		Version: serverVersion,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "topics_list",
		Description: "List monitoring topics with their keywords and sentiment categories",
	}, s.topicsList)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "topic_create",
		Description: "Create a monitoring topic",
	}, s.topicCreate)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "sources_list",
		Description: "List the sources scanned for one topic, or for all topics",
	}, s.sourcesList)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "source_add",
		Description: "Attach a feed or page URL to a topic. Re-adding a known URL replaces it.",
	}, s.sourceAdd)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "scan_topic",
		Description: "Fetch a topic's sources and analyze articles that have no card yet",
	}, s.scanTopic)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "cards_filter",
		Description: "Return analysis cards matching a filter, grouped by topic",
	}, s.cardsFilter)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "cards_stats",
		Description: "Count filtered cards by sentiment, entity and day",
	}, s.cardsStats)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "timeline",
		Description: "Cards per day and sentiment over a period, with zero-filled days",
	}, s.timeline)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "timeline_csv",
		Description: "The timeline as CSV: a date column then one column per sentiment",
	}, s.timelineCSV)

	return srv
}

// run serves MCP over stdin/stdout until ctx is done or the client leaves.
func (s *server) run(ctx context.Context) error {
	s.logger.Info("veille-mcp starting")
	return s.mcpServer().Run(ctx, &mcp.StdioTransport{})
}

func (s *server) topicsList(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	topics, err := s.engine.ListTopics(ctx)
	if err != nil {
		return mcpError("failed to list topics: %v", err), nil, nil
	}
	if topics == nil {
		topics = []veille.Topic{}
	}
	return mcpJSON(topics)
}

func (s *server) topicCreate(ctx context.Context, _ *mcp.CallToolRequest, in topicCreateInput) (*mcp.CallToolResult, any, error) {
	topic, err := s.engine.CreateTopic(ctx, in.Name, in.Keywords, in.Sentiments)
	if err != nil {
		return mcpError("failed to create topic: %v", err), nil, nil
	}
	return mcpJSON(topic)
}

func (s *server) sourcesList(ctx context.Context, _ *mcp.CallToolRequest, in sourcesListInput) (*mcp.CallToolResult, any, error) {
	topicID := deref(in.TopicID)
	if topicID != "" {
		if _, err := s.engine.GetTopic(ctx, topicID); err != nil {
			return mcpError("%v", err), nil, nil
		}
	}
	sources, err := s.engine.ListSources(ctx, topicID)
	if err != nil {
		return mcpError("failed to list sources: %v", err), nil, nil
	}
	if sources == nil {
		sources = []veille.Source{}
	}
	return mcpJSON(sources)
}

func (s *server) sourceAdd(ctx context.Context, _ *mcp.CallToolRequest, in sourceAddInput) (*mcp.CallToolResult, any, error) {
	kind := deref(in.Kind)
	if kind == "" {
		kind = "rss"
	}
	src, err := s.engine.AddSource(ctx, in.TopicID, in.URL, veille.SourceKind(kind), deref(in.Title), deref(in.Description))
	if err != nil {
		return mcpError("failed to add source: %v", err), nil, nil
	}
	return mcpJSON(src)
}

func (s *server) scanTopic(ctx context.Context, _ *mcp.CallToolRequest, in topicIDInput) (*mcp.CallToolResult, any, error) {
	var (
		result *veille.ScanResult
		err    error
	)
	if s.poller != nil {
		result, err = s.poller.scanTopic(ctx, in.TopicID)
	} else {
		result, err = s.engine.Scan(ctx, in.TopicID)
	}
	if errors.Is(err, veille.ErrTopicNotFound) {
		return mcpError("%v", err), nil, nil
	}
	if err != nil {
		if result != nil {
			return mcpError("scan stopped after %d new cards: %v", result.CardsCreated, err), nil, nil
		}
		return mcpError("scan failed: %v", err), nil, nil
	}
	return mcpJSON(result)
}

// cardGroup is a topic's cards with the topic's display label.
type cardGroup struct {
	TopicID string        `json:"topic_id"`
	Label   string        `json:"label"`
	Total   int           `json:"total"`
	Cards   []veille.Card `json:"cards"`
}

func (s *server) cardsFilter(ctx context.Context, _ *mcp.CallToolRequest, in cardsFilterInput) (*mcp.CallToolResult, any, error) {
	f, err := buildFilter(in.TopicID, in.Search, in.DateFrom, in.DateTo, in.Sentiments, in.Entities)
	if err != nil {
		return mcpError("%v", err), nil, nil
	}
	dash, err := s.engine.Dashboard(ctx)
	if err != nil {
		return mcpError("failed to load cards: %v", err), nil, nil
	}

	topics := dash.Topics()
	groups := []cardGroup{}
	for _, g := range dash.View(f).Groups {
		cards := g.Cards
		if in.Limit != nil && *in.Limit >= 0 && len(cards) > *in.Limit {
			cards = cards[:*in.Limit]
		}
		groups = append(groups, cardGroup{
			TopicID: g.TopicID,
			Label:   g.Label(topics),
			Total:   len(g.Cards),
			Cards:   cards,
		})
	}
	return mcpJSON(groups)
}

// statsResult is Stats plus the entity ranking.
type statsResult struct {
	analysis.Stats
	TopEntities []analysis.EntityCount `json:"top_entities"`
}

func (s *server) cardsStats(ctx context.Context, _ *mcp.CallToolRequest, in cardsStatsInput) (*mcp.CallToolResult, any, error) {
	f, err := buildFilter(in.TopicID, in.Search, in.DateFrom, in.DateTo, in.Sentiments, in.Entities)
	if err != nil {
		return mcpError("%v", err), nil, nil
	}
	dash, err := s.engine.Dashboard(ctx)
	if err != nil {
		return mcpError("failed to load cards: %v", err), nil, nil
	}

	top := 10
	if in.Top != nil {
		top = *in.Top
	}
	stats := dash.View(f).Stats
	return mcpJSON(statsResult{Stats: stats, TopEntities: stats.TopEntities(top)})
}

func (s *server) timeline(ctx context.Context, _ *mcp.CallToolRequest, in timelineInput) (*mcp.CallToolResult, any, error) {
	tl, err := s.buildTimeline(ctx, in)
	if err != nil {
		return mcpError("%v", err), nil, nil
	}
	return mcpJSON(tl)
}

func (s *server) timelineCSV(ctx context.Context, _ *mcp.CallToolRequest, in timelineInput) (*mcp.CallToolResult, any, error) {
	tl, err := s.buildTimeline(ctx, in)
	if err != nil {
		return mcpError("%v", err), nil, nil
	}
	return mcpText("%s", analysis.ToCSV(tl)), nil, nil
}

func (s *server) buildTimeline(ctx context.Context, in timelineInput) (analysis.Timeline, error) {
	f, err := buildFilter(in.TopicID, in.Search, nil, nil, in.Sentiments, in.Entities)
	if err != nil {
		return analysis.Timeline{}, err
	}

	period := s.engine.DefaultPeriod()
	if in.Days != nil {
		if *in.Days < 1 {
			return analysis.Timeline{}, fmt.Errorf("days must be at least 1, got %d", *in.Days)
		}
		period = analysis.LastDays(*in.Days)
	}
	if in.From != nil || in.To != nil {
		if in.From == nil || in.To == nil {
			return analysis.Timeline{}, errors.New("from and to must be given together")
		}
		from, err := parseDay(*in.From)
		if err != nil {
			return analysis.Timeline{}, err
		}
		to, err := parseDay(*in.To)
		if err != nil {
			return analysis.Timeline{}, err
		}
		if to.Before(from) {
			return analysis.Timeline{}, fmt.Errorf("to %s is before from %s", *in.To, *in.From)
		}
		period = analysis.Between(from, to)
	}

	dash, err := s.engine.Dashboard(ctx)
	if err != nil {
		return analysis.Timeline{}, fmt.Errorf("failed to load cards: %w", err)
	}
	return dash.Timeline(f, period), nil
}

// buildFilter assembles a dashboard filter from optional tool arguments.
func buildFilter(topicID, search, dateFrom, dateTo *string, sentiments, entities []string) (analysis.Filter, error) {
	f := analysis.Filter{
		TopicID:    deref(topicID),
		Sentiments: sentiments,
		Entities:   entities,
		Search:     deref(search),
	}
	if v := deref(dateFrom); v != "" {
		day, err := parseDay(v)
		if err != nil {
			return f, err
		}
		f.DateFrom = day
	}
	if v := deref(dateTo); v != "" {
		day, err := parseDay(v)
		if err != nil {
			return f, err
		}
		f.DateTo = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return f, nil
}

func parseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(analysis.DayLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// MCP response helpers

func mcpText(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

func mcpJSON(data any) (*mcp.CallToolResult, any, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return mcpError("marshal error: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}, nil, nil
}

func mcpError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}
