package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/soundprediction/careergraph/pkg/types"
)

// Neo4jConfig configures a Neo4jDriver.
type Neo4jConfig struct {
	URI            string
	Username       string
	Password       string
	Database       string
	MaxPoolSize    int
	ConnectTimeout time.Duration
}

// Neo4jDriver implements GraphDriver on a pooled, long-lived Neo4j driver.
// Sessions are acquired per call and always closed.
type Neo4jDriver struct {
	client   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewNeo4jDriver creates the pooled driver and verifies connectivity.
// A failed verification is reported as *types.ConnectionError.
func NewNeo4jDriver(ctx context.Context, cfg Neo4jConfig, logger *slog.Logger) (*Neo4jDriver, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j: uri required")
	}
	if cfg.Database == "" {
		cfg.Database = "neo4j"
	}
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = 50
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.MaxPoolSize
		c.SocketConnectTimeout = cfg.ConnectTimeout
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.VerifyConnectivity(verifyCtx); err != nil {
		_ = client.Close(ctx)
		return nil, &types.ConnectionError{Op: "connect", Err: err}
	}

	return &Neo4jDriver{
		client:   client,
		database: cfg.Database,
		logger:   logger.With("driver", "neo4j"),
	}, nil
}

func (n *Neo4jDriver) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database, AccessMode: mode})
}

// classify turns driver connectivity failures into *types.ConnectionError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var cerr *types.ConnectionError
	if errors.As(err, &cerr) {
		return err
	}
	if neo4j.IsConnectivityError(err) {
		return &types.ConnectionError{Op: op, Err: err}
	}
	return err
}

// ExecuteWrite implements GraphDriver.
func (n *Neo4jDriver) ExecuteWrite(ctx context.Context, fn func(ctx context.Context, tx WriteTx) error) error {
	session := n.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(ctx, &neo4jWriteTx{tx: tx})
	})
	return classify("write", err)
}

type neo4jWriteTx struct {
	tx neo4j.ManagedTransaction
}

func (t *neo4jWriteTx) UpsertNode(ctx context.Context, u Upsert) error {
	if err := validateRef(u.Ref); err != nil {
		return err
	}
	if err := validateProperties(u.OnCreate, u.FillMissing); err != nil {
		return err
	}

	var q strings.Builder
	fmt.Fprintf(&q, "MERGE (n:%s {%s: $key})\n", u.Ref.Label, u.Ref.Label.KeyProperty())
	q.WriteString("ON CREATE SET n += $onCreate\n")

	params := map[string]any{
		"key":      u.Ref.Key,
		"onCreate": map[string]any(u.OnCreate.Compact()),
	}
	fill := u.FillMissing.Compact()
	if len(fill) > 0 {
		sets := make([]string, 0, len(fill))
		for k := range fill {
			sets = append(sets, fmt.Sprintf("n.%s = coalesce(n.%s, $fill.%s)", k, k, k))
		}
		q.WriteString("ON MATCH SET " + strings.Join(sets, ", ") + "\n")
		params["fill"] = map[string]any(fill)
	}

	res, err := t.tx.Run(ctx, q.String(), params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

func (t *neo4jWriteTx) MergeRecord(ctx context.Context, ref types.NodeRef, props types.Properties) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	if err := validateProperties(props); err != nil {
		return err
	}
	query := fmt.Sprintf("MERGE (n:%s {%s: $key})\nSET n += $props", ref.Label, ref.Label.KeyProperty())
	res, err := t.tx.Run(ctx, query, map[string]any{
		"key":   ref.Key,
		"props": map[string]any(props.Compact()),
	})
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

func (t *neo4jWriteTx) Relate(ctx context.Context, r Relation) error {
	if err := validateRelation(r); err != nil {
		return err
	}
	verb := "CREATE"
	if r.Mode == EdgeMerge {
		verb = "MERGE"
	}
	pattern := string(r.Type)
	if r.Entry != "" {
		pattern += " {" + PropEntry + ": $entry}"
	}
	query := fmt.Sprintf(`
		MATCH (a:%s {%s: $from})
		MATCH (b:%s {%s: $to})
		%s (a)-[r:%s]->(b)
		SET r += $props
		RETURN count(r) AS c
	`, r.From.Label, r.From.Label.KeyProperty(), r.To.Label, r.To.Label.KeyProperty(), verb, pattern)

	res, err := t.tx.Run(ctx, query, map[string]any{
		"from":  r.From.Key,
		"to":    r.To.Key,
		"entry": r.Entry,
		"props": map[string]any(r.Properties.Compact()),
	})
	if err != nil {
		return err
	}
	record, err := res.Single(ctx)
	if err != nil {
		return err
	}
	c, err := recordInt64(record, "c")
	if err != nil {
		return err
	}
	if c == 0 {
		return fmt.Errorf("%s %s -> %s: %w", r.Type, r.From, r.To, ErrNodeNotFound)
	}
	return nil
}

func (n *Neo4jDriver) read(ctx context.Context, op string, query string, params map[string]any) ([]*db.Record, error) {
	session := n.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, classify(op, err)
	}
	records, ok := result.([]*db.Record)
	if !ok {
		return nil, NewTypeConversionError("[]*db.Record", fmt.Sprintf("%T", result), op)
	}
	return records, nil
}

// ResumeSummary implements GraphReader.
func (n *Neo4jDriver) ResumeSummary(ctx context.Context, resumeID string) (*types.ResumeSummary, error) {
	query := `
		MATCH (r:Resume {id: $id})
		OPTIONAL MATCH (r)-[:HAS_EDUCATION]->(i:Institute)
		WITH r, collect(DISTINCT coalesce(i.display_name, i.name)) AS institutes
		OPTIONAL MATCH (r)-[:HAS_EXPERIENCE]->(c:Company)
		WITH r, institutes, collect(DISTINCT coalesce(c.display_name, c.name)) AS companies
		OPTIONAL MATCH (r)-[:HAS_SKILL]->(s:Skill)
		RETURN r, institutes, companies, collect(DISTINCT coalesce(s.display_name, s.name)) AS skills
	`
	records, err := n.read(ctx, "ResumeSummary", query, map[string]any{"id": resumeID})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	record := records[0]
	props, err := recordNode(record, "r")
	if err != nil {
		return nil, err
	}
	return &types.ResumeSummary{
		Resume:     types.ProfileFromProperties(props),
		Institutes: recordStrings(record, "institutes"),
		Companies:  recordStrings(record, "companies"),
		Skills:     recordStrings(record, "skills"),
	}, nil
}

// ListResumes implements GraphReader.
func (n *Neo4jDriver) ListResumes(ctx context.Context) ([]types.ResumeListing, error) {
	records, err := n.read(ctx, "ListResumes", `
		MATCH (r:Resume)
		RETURN r.id AS id, r.name AS name, r.email AS email
	`, nil)
	if err != nil {
		return nil, err
	}

	out := make([]types.ResumeListing, 0, len(records))
	for _, record := range records {
		out = append(out, types.ResumeListing{
			ID:    recordString(record, "id"),
			Name:  recordString(record, "name"),
			Email: recordString(record, "email"),
		})
	}
	return out, nil
}

// ResumeSkills implements GraphReader.
func (n *Neo4jDriver) ResumeSkills(ctx context.Context, resumeID string) ([]string, error) {
	query := `
		MATCH (r:Resume)-[:HAS_SKILL]->(s:Skill)
		WHERE $id = '' OR r.id = $id
		RETURN DISTINCT coalesce(s.display_name, s.name) AS skill
	`
	records, err := n.read(ctx, "ResumeSkills", query, map[string]any{"id": resumeID})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(records))
	for _, record := range records {
		out = append(out, recordString(record, "skill"))
	}
	return out, nil
}

// SkillDemand implements GraphReader.
func (n *Neo4jDriver) SkillDemand(ctx context.Context) ([]types.SkillDemand, error) {
	edgeTypes := make([]string, 0, len(types.DemandEdgeTypes))
	for _, t := range types.DemandEdgeTypes {
		edgeTypes = append(edgeTypes, string(t))
	}

	records, err := n.read(ctx, "SkillDemand", `
		MATCH (s:Skill)<-[r]-()
		WHERE type(r) IN $types
		RETURN s.name AS key, coalesce(s.display_name, s.name) AS skill, count(r) AS demand
	`, map[string]any{"types": edgeTypes})
	if err != nil {
		return nil, err
	}

	out := make([]types.SkillDemand, 0, len(records))
	for _, record := range records {
		demand, err := recordInt64(record, "demand")
		if err != nil {
			return nil, err
		}
		out = append(out, types.SkillDemand{
			Skill:  recordString(record, "skill"),
			Key:    recordString(record, "key"),
			Demand: demand,
		})
	}
	return out, nil
}

// JobListings implements GraphReader.
func (n *Neo4jDriver) JobListings(ctx context.Context) ([]types.JobListing, error) {
	records, err := n.read(ctx, "JobListings", `
		MATCH (j:Job)
		OPTIONAL MATCH (j)-[:REQUIRES_SKILL]->(s:Skill)
		WITH DISTINCT j, s
		ORDER BY s.name
		RETURN j,
		       collect(s.name) AS keys,
		       collect(coalesce(s.display_name, s.name)) AS skills
	`, nil)
	if err != nil {
		return nil, err
	}

	out := make([]types.JobListing, 0, len(records))
	for _, record := range records {
		props, err := recordNode(record, "j")
		if err != nil {
			return nil, err
		}
		job := types.JobFromProperties(props)
		job.SkillKeys = recordStrings(record, "keys")
		job.Skills = recordStrings(record, "skills")
		out = append(out, job)
	}
	return out, nil
}

// Stats implements GraphReader.
func (n *Neo4jDriver) Stats(ctx context.Context) (*types.GraphStats, error) {
	labels := make([]string, 0, len(types.AllLabels))
	for _, l := range types.AllLabels {
		labels = append(labels, string(l))
	}

	nodeRecords, err := n.read(ctx, "Stats", `
		MATCH (n)
		UNWIND labels(n) AS label
		WITH label, count(n) AS node_count
		WHERE label IN $labels
		RETURN label, node_count
	`, map[string]any{"labels": labels})
	if err != nil {
		return nil, err
	}
	edgeRecords, err := n.read(ctx, "Stats", `
		MATCH ()-[r]->()
		RETURN type(r) AS edge_type, count(r) AS edge_count
	`, nil)
	if err != nil {
		return nil, err
	}

	stats := &types.GraphStats{
		Nodes: make(map[string]int64, len(types.AllLabels)),
		Edges: make(map[string]int64, len(types.AllEdgeTypes)),
	}
	for _, l := range types.AllLabels {
		stats.Nodes[string(l)] = 0
	}
	for _, record := range nodeRecords {
		c, err := recordInt64(record, "node_count")
		if err != nil {
			return nil, err
		}
		stats.Nodes[recordString(record, "label")] = c
	}
	for _, record := range edgeRecords {
		c, err := recordInt64(record, "edge_count")
		if err != nil {
			return nil, err
		}
		stats.Edges[recordString(record, "edge_type")] = c
	}
	return stats, nil
}

// CreateIndices creates a uniqueness constraint on the key of every label.
// Failures are logged and skipped so that editions without constraint
// support still start.
func (n *Neo4jDriver) CreateIndices(ctx context.Context) error {
	session := n.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, label := range types.AllLabels {
		key := label.KeyProperty()
		stmt := fmt.Sprintf(
			"CREATE CONSTRAINT %s_%s_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
			strings.ToLower(string(label)), key, label, key,
		)
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, stmt, nil)
			if err != nil {
				return nil, err
			}
			return res.Consume(ctx)
		})
		if err != nil {
			var cerr *types.ConnectionError
			if errors.As(classify("CreateIndices", err), &cerr) {
				return cerr
			}
			n.logger.Warn("failed to create constraint", "label", label, "error", err)
		}
	}
	return nil
}

// VerifyConnectivity checks if the driver can connect to the database.
func (n *Neo4jDriver) VerifyConnectivity(ctx context.Context) error {
	if err := n.client.VerifyConnectivity(ctx); err != nil {
		return &types.ConnectionError{Op: "VerifyConnectivity", Err: err}
	}
	return nil
}

// Provider implements GraphDriver.
func (n *Neo4jDriver) Provider() GraphProvider {
	return GraphProviderNeo4j
}

// Close closes the Neo4j driver and its connection pool.
func (n *Neo4jDriver) Close(ctx context.Context) error {
	return n.client.Close(ctx)
}
