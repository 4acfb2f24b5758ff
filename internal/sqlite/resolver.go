package sqlite

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/dbstarter/internal/schema"
	"github.com/mesh-intelligence/dbstarter/pkg/types"
)

// TableOutcome is what ResolveSchema did with one table.
type TableOutcome string

const (
	TableCreated  TableOutcome = "created"
	TableExisting TableOutcome = "existing"
	TableDegraded TableOutcome = "degraded"
)

// ResolveReport summarises one ResolveSchema run. Table entries are
// "database.table" keys in creation order.
type ResolveReport struct {
	Order     []string
	Created   []string
	Existing  []string
	Degraded  []string
	BackEdges []schema.Edge
}

// Outcomes counts tables per outcome.
func (r *ResolveReport) Outcomes() map[TableOutcome]int {
	return map[TableOutcome]int{
		TableCreated:  len(r.Created),
		TableExisting: len(r.Existing),
		TableDegraded: len(r.Degraded),
	}
}

// Plan groups column definitions into tables and orders them for creation.
// Database names are mapped onto attached schemas, so the main database's
// configured name becomes "main".
func (b *Backend) Plan(cols []types.ColumnSpec) (*schema.Graph, schema.Ordering, error) {
	dbs := b.DatabaseList()
	canon := func(name string) string {
		s, _ := dbs.SchemaFor(name)
		return s
	}

	tables, err := schema.Group(cols, canon)
	if err != nil {
		return nil, schema.Ordering{}, err
	}
	for _, t := range tables {
		if _, ok := dbs.SchemaFor(t.Database); !ok {
			return nil, schema.Ordering{}, fmt.Errorf("%w: table %s in %s", types.ErrUnknownDatabase, t.Table, t.Database)
		}
	}

	g := schema.NewGraph(tables)
	return g, g.Sort(), nil
}

// ResolveSchema creates every table that does not exist yet, dependencies
// first. Existing tables are never altered. A table whose constrained create
// fails is retried once with plain foreign key columns; a second failure, or
// a failure on a table with nothing to demote, aborts the run.
func (b *Backend) ResolveSchema(ctx context.Context, cols []types.ColumnSpec, policy types.CyclePolicy) (*ResolveReport, error) {
	g, ord, err := b.Plan(cols)
	if err != nil {
		return nil, err
	}

	report := &ResolveReport{BackEdges: ord.BackEdges}
	if ord.Cyclic() {
		if policy == types.CycleReject {
			return report, fmt.Errorf("%w: %v", types.ErrCyclicSchema, ord.CyclicTables())
		}
		for _, e := range ord.BackEdges {
			b.logger.Warn("table links form a cycle, constraint may be dropped",
				zap.String("from", e.From), zap.String("to", e.To))
		}
	}

	dbs := b.DatabaseList()
	for _, t := range ord.Tables {
		key := t.Key()
		report.Order = append(report.Order, key)

		def := schema.Define(t)
		outcome, err := b.createTable(ctx, def)
		if err != nil {
			return report, err
		}
		if outcome != TableExisting {
			b.warnLinks(g, dbs, def)
		}
		switch outcome {
		case TableCreated:
			report.Created = append(report.Created, key)
		case TableExisting:
			report.Existing = append(report.Existing, key)
		case TableDegraded:
			report.Degraded = append(report.Degraded, key)
		}
	}

	b.logger.Info("schema resolved",
		zap.Int("tables", len(report.Order)),
		zap.Int("created", len(report.Created)),
		zap.Int("existing", len(report.Existing)),
		zap.Int("degraded", len(report.Degraded)))
	return report, nil
}

// warnLinks reports the links of a newly created table that carry no
// constraint or point outside the definitions.
func (b *Backend) warnLinks(g *schema.Graph, dbs types.DatabaseList, def schema.TableDef) {
	key := def.Spec.Key()
	for _, fk := range def.ForeignKeys {
		if !fk.Constrained {
			b.logger.Warn("cross-database link created without constraint",
				zap.String("table", key), zap.String("column", fk.Column), zap.String("target", fk.Link.Key()))
		}
		if _, ok := dbs.SchemaFor(fk.Link.Database); !ok {
			b.logger.Warn("link target database is not attached",
				zap.String("table", key), zap.String("target", fk.Link.Key()))
		} else if _, defined := g.Node(fk.Link.Key()); !defined && fk.Link.CrossDatabase {
			b.logger.Warn("link target table is not defined",
				zap.String("table", key), zap.String("target", fk.Link.Key()))
		}
	}
}

func (b *Backend) createTable(ctx context.Context, def schema.TableDef) (TableOutcome, error) {
	schemaName, table := def.Spec.Database, def.Spec.Table

	exists, err := b.TableExists(ctx, schemaName, table)
	if err != nil {
		return "", err
	}
	if exists {
		b.logger.Debug("table exists", zap.String("table", def.Spec.Key()))
		return TableExisting, nil
	}

	err = b.execCreate(ctx, def, true)
	if err == nil {
		b.logger.Debug("table created", zap.String("table", def.Spec.Key()))
		return TableCreated, nil
	}
	if !def.HasConstraints() {
		return "", fmt.Errorf("creating table %s: %w", def.Spec.Key(), err)
	}

	fields := []zap.Field{zap.String("table", def.Spec.Key()), zap.Error(err)}
	if errors.Is(err, types.ErrMissingReference) {
		fields = append(fields, zap.Strings("references", def.References()))
	}
	b.logger.Warn("creating table without foreign key constraints", fields...)

	if err := b.execCreate(ctx, def, false); err != nil {
		return "", fmt.Errorf("creating table %s without constraints: %w", def.Spec.Key(), err)
	}
	return TableDegraded, nil
}

// execCreate runs CREATE TABLE. SQLite resolves REFERENCES lazily, so with
// constraints on the referenced tables are checked first.
func (b *Backend) execCreate(ctx context.Context, def schema.TableDef, constrained bool) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	schemaName := def.Spec.Database

	if constrained {
		for _, ref := range def.References() {
			ok, err := b.TableExists(ctx, schemaName, ref)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s.%s", types.ErrMissingReference, schemaName, ref)
			}
		}
	}

	_, err = db.ExecContext(ctx, def.CreateSQL(schemaName, constrained))
	return err
}
