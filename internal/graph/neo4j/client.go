// Package neo4j projects judgments and resolved citation links into a
// Neo4j graph and answers multi-hop citation queries over it. The
// relational store stays authoritative; the graph can be rebuilt from it.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/qanoonai/backend/internal/storage/models"
	"github.com/qanoonai/backend/pkg/circuitbreaker"
	"github.com/qanoonai/backend/pkg/logger"
	"github.com/qanoonai/backend/pkg/retry"
)

// MaxChainDepth bounds variable-length CITES traversals.
const MaxChainDepth = 3

const chainLimit = 500

type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(ctx context.Context, uri, username, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.NewCircuitBreaker("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		ShouldRetry:    neo4j.IsRetryable,
		Logger:         logger.GetLogger(),
	}

	if database == "" {
		database = "neo4j"
	}

	logger.Info("Neo4j client initialized", zap.String("uri", uri), zap.String("database", database))

	return &Client{
		driver:      driver,
		database:    database,
		timeout:     10 * time.Second,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) executeWithRetry(ctx context.Context, operation func(context.Context, neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.cb.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, c.retryConfig, func(ctx context.Context) error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
			defer session.Close(ctx)
			return operation(ctx, session)
		})
	})
}

func (c *Client) run(ctx context.Context, what, query string, params map[string]any) error {
	return c.executeWithRetry(ctx, func(ctx context.Context, session neo4j.SessionWithContext) error {
		result, err := session.Run(ctx, query, params)
		if err != nil {
			return fmt.Errorf("failed to %s: %w", what, err)
		}
		if _, err := result.Consume(ctx); err != nil {
			return fmt.Errorf("failed to %s: %w", what, err)
		}
		return nil
	})
}

// EnsureConstraints creates the uniqueness constraint on judgment ids.
func (c *Client) EnsureConstraints(ctx context.Context) error {
	return c.run(ctx, "create judgment constraint",
		`CREATE CONSTRAINT judgment_id IF NOT EXISTS FOR (j:Judgment) REQUIRE j.id IS UNIQUE`, nil)
}

func (c *Client) UpsertJudgment(ctx context.Context, j models.JudgmentSummary) error {
	query := `
		MERGE (j:Judgment {id: $id})
		SET j.citation = $citation,
		    j.normalized_citation = $normalized_citation,
		    j.case_name = $case_name,
		    j.court = $court,
		    j.court_tier = $court_tier,
		    j.jurisdiction = $jurisdiction,
		    j.year = $year,
		    j.updated_at = timestamp()
	`
	err := c.run(ctx, "upsert judgment node", query, map[string]any{
		"id":                  j.ID.String(),
		"citation":            j.Citation,
		"normalized_citation": j.NormalizedCitation,
		"case_name":           j.CaseName,
		"court":               j.Court,
		"court_tier":          string(j.CourtTier),
		"jurisdiction":        string(j.Jurisdiction),
		"year":                j.Year,
	})
	if err != nil {
		return err
	}

	logger.Debug("Judgment projected to graph", zap.String("judgment_id", j.ID.String()))
	return nil
}

// ReplaceCitations drops the judgment's outgoing CITES edges and recreates
// one per resolved link.
func (c *Client) ReplaceCitations(ctx context.Context, citingID uuid.UUID, links []models.CitationLink) error {
	query := `
		MATCH (a:Judgment {id: $citing_id})
		OPTIONAL MATCH (a)-[old:CITES]->()
		DELETE old
		WITH DISTINCT a
		UNWIND $links AS link
		MERGE (b:Judgment {id: link.target_id})
		MERGE (a)-[r:CITES]->(b)
		SET r.citation = link.citation,
		    r.mention_count = link.mention_count
	`
	return c.run(ctx, "replace citation edges", query, map[string]any{
		"citing_id": citingID.String(),
		"links":     citationParams(links),
	})
}

// AddCitation records one newly resolved link.
func (c *Client) AddCitation(ctx context.Context, link models.CitationLink) error {
	params := citationParams([]models.CitationLink{link})
	if len(params) == 0 {
		return nil
	}
	query := `
		MERGE (a:Judgment {id: $citing_id})
		MERGE (b:Judgment {id: $link.target_id})
		MERGE (a)-[r:CITES]->(b)
		SET r.citation = $link.citation,
		    r.mention_count = $link.mention_count
	`
	return c.run(ctx, "add citation edge", query, map[string]any{
		"citing_id": link.CitingJudgmentID.String(),
		"link":      params[0],
	})
}

// citationParams converts resolved links to driver parameters; unresolved
// links have no edge.
func citationParams(links []models.CitationLink) []any {
	out := make([]any, 0, len(links))
	for _, l := range links {
		if l.TargetJudgmentID == nil {
			continue
		}
		out = append(out, map[string]any{
			"target_id":     l.TargetJudgmentID.String(),
			"citation":      l.RawCitation,
			"mention_count": int64(max(l.MentionCount, 1)),
		})
	}
	return out
}

// chainQuery builds the traversal for a direction. Cypher cannot bind a
// path length, so depth is clamped and inlined.
func chainQuery(direction models.ChainDirection, depth int) string {
	depth = min(max(depth, 1), MaxChainDepth)
	pattern := "(root)-[:CITES*1..%d]->(:Judgment)"
	if direction == models.ChainInbound {
		pattern = "(root)<-[:CITES*1..%d]-(:Judgment)"
	}
	return fmt.Sprintf(`
		MATCH (root:Judgment {id: $id})
		MATCH p = `+pattern+`
		UNWIND relationships(p) AS r
		WITH DISTINCT r
		WITH startNode(r) AS a, r, endNode(r) AS b
		RETURN a.id AS from_id, coalesce(a.citation, '') AS from_citation,
		       b.id AS to_id, coalesce(b.citation, '') AS to_citation,
		       coalesce(b.case_name, '') AS to_case_name,
		       coalesce(r.citation, '') AS citation,
		       coalesce(r.mention_count, 1) AS mention_count
		ORDER BY from_id, to_id
		LIMIT $limit
	`, depth)
}

// CitationChain returns the CITES edges reachable from id within depth
// hops, following citations made (outbound) or received (inbound).
func (c *Client) CitationChain(ctx context.Context, id uuid.UUID, direction models.ChainDirection, depth int) ([]models.ChainEdge, error) {
	var edges []models.ChainEdge

	err := c.executeWithRetry(ctx, func(ctx context.Context, session neo4j.SessionWithContext) error {
		edges = edges[:0]
		result, err := session.Run(ctx, chainQuery(direction, depth), map[string]any{
			"id":    id.String(),
			"limit": chainLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to query citation chain: %w", err)
		}

		for result.Next(ctx) {
			edge, err := chainEdge(result.Record())
			if err != nil {
				return err
			}
			edges = append(edges, edge)
		}

		if err = result.Err(); err != nil {
			return fmt.Errorf("error iterating results: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Citation chain query completed",
		zap.String("judgment_id", id.String()),
		zap.String("direction", string(direction)),
		zap.Int("depth", depth),
		zap.Int("edges", len(edges)),
	)
	return edges, nil
}

func chainEdge(record *neo4j.Record) (models.ChainEdge, error) {
	var e models.ChainEdge

	fromID, _ := record.Get("from_id")
	toID, _ := record.Get("to_id")
	from, err := parseID(fromID)
	if err != nil {
		return e, err
	}
	to, err := parseID(toID)
	if err != nil {
		return e, err
	}

	fromCitation, _ := record.Get("from_citation")
	toCitation, _ := record.Get("to_citation")
	toCaseName, _ := record.Get("to_case_name")
	cited, _ := record.Get("citation")
	mentions, _ := record.Get("mention_count")

	e.FromID = from
	e.ToID = to
	e.FromCitation, _ = fromCitation.(string)
	e.ToCitation, _ = toCitation.(string)
	e.ToCaseName, _ = toCaseName.(string)
	e.Citation, _ = cited.(string)
	if n, ok := mentions.(int64); ok {
		e.MentionCount = int(n)
	}
	return e, nil
}

func parseID(v any) (uuid.UUID, error) {
	s, ok := v.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("unexpected judgment id %v", v)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid judgment id %q: %w", s, err)
	}
	return id, nil
}
