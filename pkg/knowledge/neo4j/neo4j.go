package neo4j

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/barekit/dossier/pkg/knowledge"
	"github.com/barekit/dossier/pkg/knowledge/consts"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const sequenceName = "qa_pair"

// Neo4jStore keeps pairs as (:QAPair) nodes. Ids come from a counter on a
// (:Sequence) node so they increase with insertion order.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
	dbName string
}

// New creates a new Neo4jStore and ensures its schema.
func New(ctx context.Context, uri, username, password, dbName string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, err
	}

	s := &Neo4jStore{
		driver: driver,
		dbName: dbName,
	}
	if err := s.ensureSchema(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Neo4jStore) ensureSchema(ctx context.Context) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	stmts := []string{
		fmt.Sprintf("CREATE CONSTRAINT qa_pair_id IF NOT EXISTS FOR (p:%s) REQUIRE p.%s IS UNIQUE",
			consts.LabelPair, consts.ColID),
		fmt.Sprintf("CREATE INDEX qa_pair_source IF NOT EXISTS FOR (p:%s) ON (p.%s)",
			consts.LabelPair, consts.ColSourceFile),
	}
	for _, stmt := range stmts {
		res, err := session.Run(ctx, stmt, nil)
		if err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.dbName})
}

// Add implements knowledge.Store.
func (s *Neo4jStore) Add(ctx context.Context, pair knowledge.Pair, fingerprint []float32) (*knowledge.Record, error) {
	recs, err := s.AddBatch(ctx, []knowledge.Pair{pair}, [][]float32{fingerprint})
	if err != nil {
		return nil, err
	}
	return &recs[0], nil
}

// AddBatch reserves a block of ids and creates every node in one transaction.
func (s *Neo4jStore) AddBatch(ctx context.Context, pairs []knowledge.Pair, fingerprints [][]float32) ([]knowledge.Record, error) {
	if err := knowledge.ValidateBatch(pairs, fingerprints); err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	now := time.Now().UTC().Truncate(time.Millisecond)
	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		querySeq := fmt.Sprintf(`
		MERGE (s:%s {name: $name})
		ON CREATE SET s.value = 0
		SET s.value = s.value + $count
		RETURN s.value AS last
		`, consts.LabelSequence)
		res, err := tx.Run(ctx, querySeq, map[string]any{"name": sequenceName, "count": int64(len(pairs))})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		last, _ := rec.Get("last")
		first := last.(int64) - int64(len(pairs)) + 1

		rows := make([]map[string]any, len(pairs))
		out := make([]knowledge.Record, len(pairs))
		for i, p := range pairs {
			id := first + int64(i)
			fp := knowledge.FingerprintAt(fingerprints, i)
			rows[i] = map[string]any{
				"id":          id,
				"question":    p.Question,
				"answer":      p.Answer,
				"source_file": p.SourceFile,
				"category":    p.Category,
				"fingerprint": fingerprintParam(fp),
			}
			out[i] = knowledge.Record{
				ID:          strconv.FormatInt(id, 10),
				Pair:        p,
				Fingerprint: knowledge.CloneFingerprint(fp),
				CreatedAt:   now,
			}
		}

		queryCreate := fmt.Sprintf(`
		UNWIND $rows AS row
		CREATE (p:%s {
			%s: row.id,
			%s: row.question,
			%s: row.answer,
			%s: row.source_file,
			%s: row.category,
			%s: row.fingerprint,
			%s: $createdAt
		})
		`, consts.LabelPair,
			consts.ColID, consts.ColQuestion, consts.ColAnswer, consts.ColSourceFile,
			consts.ColCategory, consts.ColFingerprint, consts.ColCreatedAt)
		if _, err := tx.Run(ctx, queryCreate, map[string]any{"rows": rows, "createdAt": now}); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert pairs: %w", err)
	}
	return result.([]knowledge.Record), nil
}

// SetFingerprint implements knowledge.Store.
func (s *Neo4jStore) SetFingerprint(ctx context.Context, id string, fingerprint []float32) error {
	nid, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return knowledge.ErrNotFound
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	found, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
		MATCH (p:%s {%s: $id})
		SET p.%s = $fingerprint
		RETURN p.%s
		`, consts.LabelPair, consts.ColID, consts.ColFingerprint, consts.ColID)
		res, err := tx.Run(ctx, query, map[string]any{"id": nid, "fingerprint": fingerprintParam(fingerprint)})
		if err != nil {
			return nil, err
		}
		return res.Next(ctx), res.Err()
	})
	if err != nil {
		return err
	}
	if !found.(bool) {
		return knowledge.ErrNotFound
	}
	return nil
}

// All implements knowledge.Store.
func (s *Neo4jStore) All(ctx context.Context) ([]knowledge.Record, error) {
	query := fmt.Sprintf(`MATCH (p:%s) RETURN p ORDER BY p.%s ASC`, consts.LabelPair, consts.ColID)
	return s.find(ctx, query, nil)
}

// BySource implements knowledge.Store.
func (s *Neo4jStore) BySource(ctx context.Context, source string) ([]knowledge.Record, error) {
	query := fmt.Sprintf(`MATCH (p:%s {%s: $source}) RETURN p ORDER BY p.%s ASC`,
		consts.LabelPair, consts.ColSourceFile, consts.ColID)
	return s.find(ctx, query, map[string]any{"source": source})
}

func (s *Neo4jStore) find(ctx context.Context, query string, params map[string]any) ([]knowledge.Record, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}

		records := []knowledge.Record{}
		for res.Next(ctx) {
			value, _ := res.Record().Get("p")
			node, ok := value.(neo4j.Node)
			if !ok {
				return nil, fmt.Errorf("unexpected row type %T", value)
			}
			records = append(records, nodeRecord(node))
		}
		return records, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]knowledge.Record), nil
}

// Sources implements knowledge.Store.
func (s *Neo4jStore) Sources(ctx context.Context) ([]string, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
		MATCH (p:%s) WHERE p.%s <> ''
		RETURN DISTINCT p.%s AS source
		ORDER BY source
		`, consts.LabelPair, consts.ColSourceFile, consts.ColSourceFile)
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}

		sources := []string{}
		for res.Next(ctx) {
			v, _ := res.Record().Get("source")
			if str, ok := v.(string); ok {
				sources = append(sources, str)
			}
		}
		return sources, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// Stats implements knowledge.Store.
func (s *Neo4jStore) Stats(ctx context.Context) (knowledge.Stats, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
		MATCH (p:%s)
		RETURN count(p) AS total,
			count(DISTINCT CASE WHEN p.%s <> '' THEN p.%s END) AS sources,
			count(p.%s) AS fingerprints
		`, consts.LabelPair, consts.ColSourceFile, consts.ColSourceFile, consts.ColFingerprint)
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}

		total, _ := rec.Get("total")
		sources, _ := rec.Get("sources")
		fps, _ := rec.Get("fingerprints")
		return knowledge.Stats{
			TotalPairs:       total.(int64),
			SourceFiles:      sources.(int64),
			WithFingerprints: fps.(int64),
		}, nil
	})
	if err != nil {
		return knowledge.Stats{}, err
	}
	return result.(knowledge.Stats), nil
}

// DeleteBySource implements knowledge.Store.
func (s *Neo4jStore) DeleteBySource(ctx context.Context, source string) (int64, error) {
	query := fmt.Sprintf(`MATCH (p:%s {%s: $source}) DETACH DELETE p`, consts.LabelPair, consts.ColSourceFile)
	return s.delete(ctx, query, map[string]any{"source": source})
}

// Clear removes every pair. The id sequence is kept.
func (s *Neo4jStore) Clear(ctx context.Context) error {
	query := fmt.Sprintf(`MATCH (p:%s) DETACH DELETE p`, consts.LabelPair)
	_, err := s.delete(ctx, query, nil)
	return err
}

func (s *Neo4jStore) delete(ctx context.Context, query string, params map[string]any) (int64, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		return int64(summary.Counters().NodesDeleted()), nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

// Close closes the driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func nodeRecord(node neo4j.Node) knowledge.Record {
	props := node.Props
	rec := knowledge.Record{
		Pair: knowledge.Pair{
			Question:   stringProp(props, consts.ColQuestion),
			Answer:     stringProp(props, consts.ColAnswer),
			SourceFile: stringProp(props, consts.ColSourceFile),
			Category:   stringProp(props, consts.ColCategory),
		},
	}
	if id, ok := props[consts.ColID].(int64); ok {
		rec.ID = strconv.FormatInt(id, 10)
	}
	if t, ok := props[consts.ColCreatedAt].(time.Time); ok {
		rec.CreatedAt = t
	}
	if list, ok := props[consts.ColFingerprint].([]any); ok && len(list) > 0 {
		rec.Fingerprint = make([]float32, 0, len(list))
		for _, x := range list {
			if f, ok := x.(float64); ok {
				rec.Fingerprint = append(rec.Fingerprint, float32(f))
			}
		}
	}
	return rec
}

func stringProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

// fingerprintParam converts a fingerprint to a Neo4j list parameter. Empty
// input maps to an untyped nil, which removes the property.
func fingerprintParam(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
