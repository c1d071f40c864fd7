package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/varzeaprime/go-hub-server/audit"
)

var _ audit.Repo = (*AuditRepo)(nil)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func (r *AuditRepo) Append(event *audit.Event) error {
	_, err := r.pool.Exec(context.Background(), `
		INSERT INTO hub_audit_events (id, at, actor_id, action, target, request_id, fields)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.At, event.ActorID, event.Action, event.Target, event.RequestID, event.Fields)
	return errors.Wrap(err, "[AuditRepo.Append] exec")
}

func (r *AuditRepo) List(filter audit.ListFilter) ([]*audit.Event, int, error) {
	ctx := context.Background()

	where := ` WHERE ($1 = '' OR actor_id = $1) AND ($2 = '' OR action = $2)`
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM hub_audit_events`+where, filter.ActorID, filter.Action).
		Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "[AuditRepo.List] count")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, at, actor_id, action, target, request_id, fields
		FROM hub_audit_events`+where+`
		ORDER BY at DESC, id OFFSET $3 LIMIT $4`,
		filter.ActorID, filter.Action, filter.Offset, filter.Limit)
	if err != nil {
		return nil, 0, errors.Wrap(err, "[AuditRepo.List] query")
	}
	defer rows.Close()

	var events []*audit.Event
	for rows.Next() {
		var e audit.Event
		if err := rows.Scan(&e.ID, &e.At, &e.ActorID, &e.Action, &e.Target, &e.RequestID, &e.Fields); err != nil {
			return nil, 0, errors.Wrap(err, "[AuditRepo.List] scan")
		}
		events = append(events, &e)
	}
	return events, total, errors.Wrap(rows.Err(), "[AuditRepo.List] rows")
}
