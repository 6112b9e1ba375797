package flowinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/storex"
	"github.com/converzap/converzap/flow"
	"github.com/converzap/converzap/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

type PostgresFlowRepository struct {
	db *sqlx.DB
}

var _ flow.Repository = (*PostgresFlowRepository)(nil)

func NewPostgresFlowRepository(db *sqlx.DB) *PostgresFlowRepository {
	return &PostgresFlowRepository{db: db}
}

// dbFlow is an intermediate struct for database operations
type dbFlow struct {
	ID             string          `db:"id"`
	Name           string          `db:"name"`
	Description    string          `db:"description"`
	Nodes          json.RawMessage `db:"nodes"`
	Edges          json.RawMessage `db:"edges"`
	TriggerType    string          `db:"trigger_type"`
	TriggerKeyword string          `db:"trigger_keyword"`
	Priority       int             `db:"priority"`
	IsActive       bool            `db:"is_active"`
	Version        int             `db:"version"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func toDBFlow(f flow.Flow) (*dbFlow, error) {
	nodesJSON, err := json.Marshal(f.Nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal nodes: %w", err)
	}
	edgesJSON, err := json.Marshal(f.Edges)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal edges: %w", err)
	}

	return &dbFlow{
		ID:             f.ID.String(),
		Name:           f.Name,
		Description:    f.Description,
		Nodes:          nodesJSON,
		Edges:          edgesJSON,
		TriggerType:    string(f.TriggerType),
		TriggerKeyword: f.TriggerKeyword,
		Priority:       f.Priority,
		IsActive:       f.IsActive,
		Version:        f.Version,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}, nil
}

func toDomainFlow(dbF *dbFlow) (*flow.Flow, error) {
	var nodes []flow.Node
	if len(dbF.Nodes) > 0 && string(dbF.Nodes) != "null" {
		if err := json.Unmarshal(dbF.Nodes, &nodes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
		}
	}

	var edges []flow.Edge
	if len(dbF.Edges) > 0 && string(dbF.Edges) != "null" {
		if err := json.Unmarshal(dbF.Edges, &edges); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
		}
	}

	return &flow.Flow{
		ID:             kernel.FlowID(dbF.ID),
		Name:           dbF.Name,
		Description:    dbF.Description,
		Nodes:          nodes,
		Edges:          edges,
		TriggerType:    flow.TriggerType(dbF.TriggerType),
		TriggerKeyword: dbF.TriggerKeyword,
		Priority:       dbF.Priority,
		IsActive:       dbF.IsActive,
		Version:        dbF.Version,
		CreatedAt:      dbF.CreatedAt,
		UpdatedAt:      dbF.UpdatedAt,
	}, nil
}

func (r *PostgresFlowRepository) Save(ctx context.Context, f flow.Flow) error {
	dbF, err := toDBFlow(f)
	if err != nil {
		return errx.Wrap(err, "failed to convert flow", errx.TypeInternal).
			WithDetail("flow_id", f.ID)
	}

	query := `
		INSERT INTO flows (
			id, name, description, nodes, edges, trigger_type,
			trigger_keyword, priority, is_active, version, created_at, updated_at
		) VALUES (
			:id, :name, :description, :nodes, :edges, :trigger_type,
			:trigger_keyword, :priority, :is_active, :version, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			trigger_type = EXCLUDED.trigger_type,
			trigger_keyword = EXCLUDED.trigger_keyword,
			priority = EXCLUDED.priority,
			is_active = EXCLUDED.is_active,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, dbF); err != nil {
		return errx.Wrap(err, "failed to save flow", errx.TypeInternal).
			WithDetail("flow_id", f.ID)
	}
	return nil
}

func (r *PostgresFlowRepository) FindByID(ctx context.Context, id kernel.FlowID) (*flow.Flow, error) {
	query := `
		SELECT
			id, name, description, nodes, edges, trigger_type,
			trigger_keyword, priority, is_active, version, created_at, updated_at
		FROM flows
		WHERE id = $1`

	var dbF dbFlow
	err := r.db.GetContext(ctx, &dbF, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, flow.ErrFlowNotFound().WithDetail("flow_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find flow by id", errx.TypeInternal).
			WithDetail("flow_id", id.String())
	}

	return toDomainFlow(&dbF)
}

func (r *PostgresFlowRepository) FindActive(ctx context.Context) ([]*flow.Flow, error) {
	query := `
		SELECT
			id, name, description, nodes, edges, trigger_type,
			trigger_keyword, priority, is_active, version, created_at, updated_at
		FROM flows
		WHERE is_active = true
		ORDER BY priority DESC, created_at ASC`

	var dbFlows []dbFlow
	if err := r.db.SelectContext(ctx, &dbFlows, query); err != nil {
		return nil, errx.Wrap(err, "failed to find active flows", errx.TypeInternal)
	}

	flows := make([]*flow.Flow, 0, len(dbFlows))
	for i := range dbFlows {
		f, err := toDomainFlow(&dbFlows[i])
		if err != nil {
			return nil, errx.Wrap(err, "failed to convert flow", errx.TypeInternal)
		}
		flows = append(flows, f)
	}
	return flows, nil
}

func (r *PostgresFlowRepository) List(ctx context.Context, req flow.ListRequest) (flow.ListResponse, error) {
	conditions := []string{}
	args := map[string]any{
		"limit":  req.PageSize,
		"offset": req.GetOffset(),
	}

	if req.IsActive != nil {
		conditions = append(conditions, "is_active = :is_active")
		args["is_active"] = *req.IsActive
	}
	if req.Search != "" {
		conditions = append(conditions, "(name ILIKE :search OR description ILIKE :search)")
		args["search"] = "%" + req.Search + "%"
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM flows %s", whereClause)
	countRows, err := r.db.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return flow.ListResponse{}, errx.Wrap(err, "failed to count flows", errx.TypeInternal)
	}
	var total int
	if countRows.Next() {
		if err := countRows.Scan(&total); err != nil {
			countRows.Close()
			return flow.ListResponse{}, errx.Wrap(err, "failed to scan flow count", errx.TypeInternal)
		}
	}
	countRows.Close()

	listQuery := fmt.Sprintf(`
		SELECT
			id, name, description, nodes, edges, trigger_type,
			trigger_keyword, priority, is_active, version, created_at, updated_at
		FROM flows %s
		ORDER BY updated_at DESC
		LIMIT :limit OFFSET :offset`, whereClause)

	rows, err := r.db.NamedQueryContext(ctx, listQuery, args)
	if err != nil {
		return flow.ListResponse{}, errx.Wrap(err, "failed to list flows", errx.TypeInternal)
	}
	defer rows.Close()

	flows := []flow.Flow{}
	for rows.Next() {
		var dbF dbFlow
		if err := rows.StructScan(&dbF); err != nil {
			return flow.ListResponse{}, errx.Wrap(err, "failed to scan flow", errx.TypeInternal)
		}
		f, err := toDomainFlow(&dbF)
		if err != nil {
			return flow.ListResponse{}, errx.Wrap(err, "failed to convert flow", errx.TypeInternal)
		}
		flows = append(flows, *f)
	}

	return storex.NewPaginated(flows, total, req.Page, req.PageSize), nil
}

func (r *PostgresFlowRepository) Delete(ctx context.Context, id kernel.FlowID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM flows WHERE id = $1`, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete flow", errx.TypeInternal).
			WithDetail("flow_id", id.String())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if rowsAffected == 0 {
		return flow.ErrFlowNotFound().WithDetail("flow_id", id.String())
	}
	return nil
}
