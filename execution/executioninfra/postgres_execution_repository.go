package executioninfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/storex"
	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// uniqueViolation es el código de pq para el índice único parcial que
// garantiza una sola ejecución activa por contacto
const uniqueViolation = "23505"

type PostgresExecutionRepository struct {
	db *sqlx.DB
}

var _ execution.Repository = (*PostgresExecutionRepository)(nil)

func NewPostgresExecutionRepository(db *sqlx.DB) *PostgresExecutionRepository {
	return &PostgresExecutionRepository{db: db}
}

// dbExecution is an intermediate struct for database operations
type dbExecution struct {
	ID            string          `db:"id"`
	FlowID        string          `db:"flow_id"`
	ContactID     string          `db:"contact_id"`
	Status        string          `db:"status"`
	CurrentNodeID string          `db:"current_node_id"`
	ContextData   json.RawMessage `db:"context_data"`
	Version       int             `db:"version"`
	StartedAt     time.Time       `db:"started_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
	CompletedAt   *time.Time      `db:"completed_at"`
}

func toDBExecution(exec *execution.FlowExecution) (*dbExecution, error) {
	contextJSON, err := json.Marshal(exec.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal context data: %w", err)
	}

	return &dbExecution{
		ID:            exec.ID.String(),
		FlowID:        exec.FlowID.String(),
		ContactID:     exec.ContactID.String(),
		Status:        string(exec.Status),
		CurrentNodeID: exec.CurrentNodeID,
		ContextData:   contextJSON,
		Version:       exec.Version,
		StartedAt:     exec.StartedAt,
		UpdatedAt:     exec.UpdatedAt,
		CompletedAt:   exec.CompletedAt,
	}, nil
}

func toDomainExecution(dbE *dbExecution) (*execution.FlowExecution, error) {
	contextData := execution.NewContextData()
	if len(dbE.ContextData) > 0 && string(dbE.ContextData) != "null" {
		if err := json.Unmarshal(dbE.ContextData, &contextData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal context data: %w", err)
		}
	}

	return &execution.FlowExecution{
		ID:            kernel.ExecutionID(dbE.ID),
		FlowID:        kernel.FlowID(dbE.FlowID),
		ContactID:     kernel.ContactID(dbE.ContactID),
		Status:        execution.Status(dbE.Status),
		CurrentNodeID: dbE.CurrentNodeID,
		Context:       contextData,
		Version:       dbE.Version,
		StartedAt:     dbE.StartedAt,
		UpdatedAt:     dbE.UpdatedAt,
		CompletedAt:   dbE.CompletedAt,
	}, nil
}

func (r *PostgresExecutionRepository) Create(ctx context.Context, exec *execution.FlowExecution) error {
	dbE, err := toDBExecution(exec)
	if err != nil {
		return errx.Wrap(err, "failed to convert execution", errx.TypeInternal).
			WithDetail("execution_id", exec.ID)
	}

	query := `
		INSERT INTO flow_executions (
			id, flow_id, contact_id, status, current_node_id,
			context_data, version, started_at, updated_at, completed_at
		) VALUES (
			:id, :flow_id, :contact_id, :status, :current_node_id,
			:context_data, :version, :started_at, :updated_at, :completed_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, dbE); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return execution.ErrDuplicateExecution().
				WithDetail("contact_id", exec.ContactID.String())
		}
		return errx.Wrap(err, "failed to create execution", errx.TypeInternal).
			WithDetail("execution_id", exec.ID)
	}
	return nil
}

// Update persiste el estado con compare-and-set sobre version. Si ninguna
// fila matchea, otro escritor modificó la ejecución y este avance pierde.
func (r *PostgresExecutionRepository) Update(ctx context.Context, exec *execution.FlowExecution) error {
	dbE, err := toDBExecution(exec)
	if err != nil {
		return errx.Wrap(err, "failed to convert execution", errx.TypeInternal).
			WithDetail("execution_id", exec.ID)
	}

	query := `
		UPDATE flow_executions SET
			status = :status,
			current_node_id = :current_node_id,
			context_data = :context_data,
			version = version + 1,
			updated_at = :updated_at,
			completed_at = :completed_at
		WHERE id = :id AND version = :version`

	result, err := r.db.NamedExecContext(ctx, query, dbE)
	if err != nil {
		return errx.Wrap(err, "failed to update execution", errx.TypeInternal).
			WithDetail("execution_id", exec.ID)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if rowsAffected == 0 {
		// Distinguir conflicto de inexistencia
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM flow_executions WHERE id = $1)`, exec.ID.String()); err != nil {
			return errx.Wrap(err, "failed to check execution existence", errx.TypeInternal)
		}
		if !exists {
			return execution.ErrExecutionNotFound().WithDetail("execution_id", exec.ID.String())
		}
		return execution.ErrExecutionConflict().
			WithDetail("execution_id", exec.ID.String()).
			WithDetail("expected_version", exec.Version)
	}

	exec.Version++
	return nil
}

func (r *PostgresExecutionRepository) FindByID(ctx context.Context, id kernel.ExecutionID) (*execution.FlowExecution, error) {
	query := `
		SELECT
			id, flow_id, contact_id, status, current_node_id,
			context_data, version, started_at, updated_at, completed_at
		FROM flow_executions
		WHERE id = $1`

	var dbE dbExecution
	err := r.db.GetContext(ctx, &dbE, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, execution.ErrExecutionNotFound().WithDetail("execution_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find execution by id", errx.TypeInternal).
			WithDetail("execution_id", id.String())
	}

	return toDomainExecution(&dbE)
}

func (r *PostgresExecutionRepository) FindActiveByContact(ctx context.Context, contactID kernel.ContactID) (*execution.FlowExecution, error) {
	query := `
		SELECT
			id, flow_id, contact_id, status, current_node_id,
			context_data, version, started_at, updated_at, completed_at
		FROM flow_executions
		WHERE contact_id = $1 AND status IN ('PROCESSING', 'WAITING')
		ORDER BY updated_at DESC
		LIMIT 1`

	var dbE dbExecution
	err := r.db.GetContext(ctx, &dbE, query, contactID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, execution.ErrExecutionNotFound().
				WithDetail("contact_id", contactID.String())
		}
		return nil, errx.Wrap(err, "failed to find active execution", errx.TypeInternal).
			WithDetail("contact_id", contactID.String())
	}

	return toDomainExecution(&dbE)
}

func (r *PostgresExecutionRepository) List(ctx context.Context, req execution.ListRequest) (execution.ListResponse, error) {
	conditions := []string{}
	args := map[string]any{
		"limit":  req.PageSize,
		"offset": req.GetOffset(),
	}

	if !req.FlowID.IsEmpty() {
		conditions = append(conditions, "flow_id = :flow_id")
		args["flow_id"] = req.FlowID.String()
	}
	if !req.ContactID.IsEmpty() {
		conditions = append(conditions, "contact_id = :contact_id")
		args["contact_id"] = req.ContactID.String()
	}
	if req.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = string(req.Status)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM flow_executions %s", whereClause)
	countRows, err := r.db.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return execution.ListResponse{}, errx.Wrap(err, "failed to count executions", errx.TypeInternal)
	}
	var total int
	if countRows.Next() {
		if err := countRows.Scan(&total); err != nil {
			countRows.Close()
			return execution.ListResponse{}, errx.Wrap(err, "failed to scan execution count", errx.TypeInternal)
		}
	}
	countRows.Close()

	listQuery := fmt.Sprintf(`
		SELECT
			id, flow_id, contact_id, status, current_node_id,
			context_data, version, started_at, updated_at, completed_at
		FROM flow_executions %s
		ORDER BY updated_at DESC
		LIMIT :limit OFFSET :offset`, whereClause)

	rows, err := r.db.NamedQueryContext(ctx, listQuery, args)
	if err != nil {
		return execution.ListResponse{}, errx.Wrap(err, "failed to list executions", errx.TypeInternal)
	}
	defer rows.Close()

	executions := []execution.FlowExecution{}
	for rows.Next() {
		var dbE dbExecution
		if err := rows.StructScan(&dbE); err != nil {
			return execution.ListResponse{}, errx.Wrap(err, "failed to scan execution", errx.TypeInternal)
		}
		exec, err := toDomainExecution(&dbE)
		if err != nil {
			return execution.ListResponse{}, errx.Wrap(err, "failed to convert execution", errx.TypeInternal)
		}
		executions = append(executions, *exec)
	}

	return storex.NewPaginated(executions, total, req.Page, req.PageSize), nil
}

// AppendMetadata escribe una entrada dentro de context_data->metadata sin
// pasar por el CAS de version. Lo usan los workers de salida para registrar
// fallos de entrega sin competir con el loop del Runner.
func (r *PostgresExecutionRepository) AppendMetadata(ctx context.Context, id kernel.ExecutionID, key string, value any) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return errx.Wrap(err, "failed to marshal metadata value", errx.TypeInternal)
	}

	query := `
		UPDATE flow_executions SET
			context_data = jsonb_set(
				context_data,
				ARRAY['metadata', $2],
				$3::jsonb,
				true
			),
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id.String(), key, string(valueJSON))
	if err != nil {
		return errx.Wrap(err, "failed to append execution metadata", errx.TypeInternal).
			WithDetail("execution_id", id.String())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if rowsAffected == 0 {
		return execution.ErrExecutionNotFound().WithDetail("execution_id", id.String())
	}
	return nil
}
