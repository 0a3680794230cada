package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/quire/internal/graph"
	"github.com/roach88/quire/internal/ir"
)

// Run describes a successful compilation run.
type Run struct {
	ID            string
	Seq           int64
	EngineVersion string
	SchemaVersion string
	Compiled      int
	Cached        int
}

// Snapshots is the compiled content of one representation by snapshot name.
type Snapshots map[string]ir.Content

// Session is the state of one run. Reads see the previous run; writes are
// staged in memory and reach the database only through Commit.
//
// Thread-safety: not safe for concurrent use. A run owns its session.
type Session struct {
	store *Store

	Checksums    *Checksums
	Content      *ContentCache
	Plans        *Plans
	Dependencies *Dependencies

	committed bool
}

// Commit writes every staged change and the run record in one transaction.
// A session commits at most once.
func (sess *Session) Commit(ctx context.Context, run Run) error {
	if sess.committed {
		return fmt.Errorf("commit run %s: session already committed", run.ID)
	}

	tx, err := sess.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback()

	steps := []func(context.Context, *sql.Tx) error{
		sess.Checksums.flush,
		sess.Content.flush,
		sess.Plans.flush,
		sess.Dependencies.flush,
	}
	for _, step := range steps {
		if err := step(ctx, tx); err != nil {
			return fmt.Errorf("commit run %s: %w", run.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, seq, engine_version, schema_version, compiled, cached)
		VALUES (?, COALESCE((SELECT MAX(seq) FROM runs), 0) + 1, ?, ?, ?, ?)
	`, run.ID, run.EngineVersion, run.SchemaVersion, run.Compiled, run.Cached); err != nil {
		return fmt.Errorf("commit run %s: insert run: %w", run.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	sess.committed = true
	return nil
}

// Checksums holds object checksums keyed by reference.
type Checksums struct {
	old  map[string]string
	next map[string]string
}

// Get returns the checksum stored by the previous run.
func (c *Checksums) Get(reference string) (string, bool) {
	sum, ok := c.old[reference]
	return sum, ok
}

// References returns the references checksummed by the previous run, sorted.
func (c *Checksums) References() []string {
	return slices.Sorted(maps.Keys(c.old))
}

// Set stages a checksum for the next run.
func (c *Checksums) Set(reference, checksum string) {
	c.next[reference] = checksum
}

func (c *Checksums) flush(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM checksums`); err != nil {
		return fmt.Errorf("clear checksums: %w", err)
	}
	for _, ref := range slices.Sorted(maps.Keys(c.next)) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO checksums (reference, checksum) VALUES (?, ?)`,
			ref, c.next[ref],
		); err != nil {
			return fmt.Errorf("write checksum %s: %w", ref, err)
		}
	}
	return nil
}

// ContentCache holds compiled snapshots per representation reference.
type ContentCache struct {
	old    map[string]Snapshots
	next   map[string]Snapshots
	forget []string
}

// Get returns the cached snapshots of a representation.
func (c *ContentCache) Get(rep string) (Snapshots, bool) {
	if s, ok := c.next[rep]; ok {
		return maps.Clone(s), true
	}
	s, ok := c.old[rep]
	if !ok {
		return nil, false
	}
	return maps.Clone(s), true
}

// Set stages a representation's snapshots, replacing any cached ones.
func (c *ContentCache) Set(rep string, snapshots Snapshots) {
	c.next[rep] = maps.Clone(snapshots)
}

// Reps returns the references of every cached or staged representation,
// sorted.
func (c *ContentCache) Reps() []string {
	seen := make(map[string]bool, len(c.old)+len(c.next))
	for rep := range c.old {
		seen[rep] = true
	}
	for rep := range c.next {
		seen[rep] = true
	}
	return slices.Sorted(maps.Keys(seen))
}

// Forget drops a representation from the cache on commit.
func (c *ContentCache) Forget(rep string) {
	delete(c.next, rep)
	c.forget = append(c.forget, rep)
}

func (c *ContentCache) flush(ctx context.Context, tx *sql.Tx) error {
	for _, rep := range c.forget {
		if _, err := tx.ExecContext(ctx, `DELETE FROM compiled_content WHERE rep = ?`, rep); err != nil {
			return fmt.Errorf("forget content %s: %w", rep, err)
		}
	}
	for _, rep := range slices.Sorted(maps.Keys(c.next)) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM compiled_content WHERE rep = ?`, rep); err != nil {
			return fmt.Errorf("replace content %s: %w", rep, err)
		}
		snaps := c.next[rep]
		for _, name := range slices.Sorted(maps.Keys(snaps)) {
			content := snaps[name]
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO compiled_content (rep, snapshot, binary, body, filename)
				VALUES (?, ?, ?, ?, ?)
			`, rep, name, content.Binary, content.Bytes(), content.Filename); err != nil {
				return fmt.Errorf("write content %s@%s: %w", rep, name, err)
			}
		}
	}
	return nil
}

type storedPlan struct {
	plan   *ir.Plan
	digest string
}

// Plans holds the recorded plan of every representation, and the layout
// rule of every layout.
type Plans struct {
	old  map[string]storedPlan
	next map[string]storedPlan
}

// Get returns the plan recorded by the previous run.
func (p *Plans) Get(rep string) (*ir.Plan, bool) {
	sp, ok := p.old[rep]
	if !ok {
		return nil, false
	}
	return sp.plan, true
}

// References lists every reference with a plan from the previous run,
// sorted.
func (p *Plans) References() []string {
	return slices.Sorted(maps.Keys(p.old))
}

// Digest returns the digest of the plan recorded by the previous run.
func (p *Plans) Digest(rep string) (string, bool) {
	sp, ok := p.old[rep]
	return sp.digest, ok
}

// Set stages a representation's plan.
func (p *Plans) Set(rep string, plan *ir.Plan) error {
	digest, err := ir.PlanDigest(plan)
	if err != nil {
		return fmt.Errorf("set plan %s: %w", rep, err)
	}
	p.next[rep] = storedPlan{plan: plan, digest: digest}
	return nil
}

func (p *Plans) flush(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM plans`); err != nil {
		return fmt.Errorf("clear plans: %w", err)
	}
	for _, rep := range slices.Sorted(maps.Keys(p.next)) {
		sp := p.next[rep]
		actions, err := ir.MarshalCanonical(sp.plan.Serialize())
		if err != nil {
			return fmt.Errorf("marshal plan %s: %w", rep, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO plans (rep, actions, digest) VALUES (?, ?, ?)`,
			rep, string(actions), sp.digest,
		); err != nil {
			return fmt.Errorf("write plan %s: %w", rep, err)
		}
	}
	return nil
}

// Dependencies holds the serialized dependency graph.
type Dependencies struct {
	old  graph.Serialized[string]
	next *graph.Serialized[string]
}

// Get returns the graph stored by the previous run. An empty database
// yields an empty graph.
func (d *Dependencies) Get() graph.Serialized[string] {
	return graph.Serialized[string]{
		Vertices: slices.Clone(d.old.Vertices),
		Edges:    slices.Clone(d.old.Edges),
	}
}

// Set stages the graph for the next run.
func (d *Dependencies) Set(g graph.Serialized[string]) {
	d.next = &g
}

func (d *Dependencies) flush(ctx context.Context, tx *sql.Tx) error {
	if d.next == nil {
		return nil
	}
	data, err := json.Marshal(d.next)
	if err != nil {
		return fmt.Errorf("marshal dependencies: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO dependencies (id, graph) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET graph = excluded.graph
	`, string(data)); err != nil {
		return fmt.Errorf("write dependencies: %w", err)
	}
	return nil
}

func (s *Store) loadChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT reference, checksum FROM checksums`)
	if err != nil {
		return nil, fmt.Errorf("query checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var ref, sum string
		if err := rows.Scan(&ref, &sum); err != nil {
			return nil, fmt.Errorf("scan checksum: %w", err)
		}
		out[ref] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checksums: %w", err)
	}
	return out, nil
}

func (s *Store) loadCompiledContent(ctx context.Context) (map[string]Snapshots, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rep, snapshot, binary, body, filename
		FROM compiled_content
		ORDER BY rep COLLATE BINARY ASC, snapshot COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query compiled content: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Snapshots)
	for rows.Next() {
		var (
			rep, name, filename string
			binary              bool
			body                []byte
		)
		if err := rows.Scan(&rep, &name, &binary, &body, &filename); err != nil {
			return nil, fmt.Errorf("scan compiled content: %w", err)
		}
		var c ir.Content
		if binary {
			c = ir.BinaryContent(body, filename)
		} else {
			c = ir.TextContent(string(body), filename)
		}
		if out[rep] == nil {
			out[rep] = make(Snapshots)
		}
		out[rep][name] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compiled content: %w", err)
	}
	return out, nil
}

func (s *Store) loadPlans(ctx context.Context) (map[string]storedPlan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT rep, actions, digest FROM plans`)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	out := make(map[string]storedPlan)
	for rows.Next() {
		var rep, actions, digest string
		if err := rows.Scan(&rep, &actions, &digest); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		v, err := ir.UnmarshalIRValue([]byte(actions))
		if err != nil {
			return nil, fmt.Errorf("decode plan %s: %w", rep, err)
		}
		arr, ok := v.(ir.IRArray)
		if !ok {
			return nil, fmt.Errorf("decode plan %s: not an array", rep)
		}
		plan, err := ir.ParsePlan(rep, arr)
		if err != nil {
			return nil, fmt.Errorf("decode plan %s: %w", rep, err)
		}
		out[rep] = storedPlan{plan: plan, digest: digest}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return out, nil
}

func (s *Store) loadDependencies(ctx context.Context) (graph.Serialized[string], error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT graph FROM dependencies WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return graph.Serialized[string]{Vertices: []string{}, Edges: [][2]int{}}, nil
	}
	if err != nil {
		return graph.Serialized[string]{}, fmt.Errorf("query dependencies: %w", err)
	}
	var g graph.Serialized[string]
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return graph.Serialized[string]{}, fmt.Errorf("decode dependencies: %w", err)
	}
	return g, nil
}
