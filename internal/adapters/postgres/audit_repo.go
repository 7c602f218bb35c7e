package postgres

import (
	"context"

	"github.com/samirrijal/nearbus/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	db *DB
}

func NewAuditRepo(db *DB) *AuditRepo { return &AuditRepo{db: db} }

func (r *AuditRepo) Insert(ctx context.Context, audit *domain.ProximityAudit) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO proximity_audit (at, client_ip, contact, query, lat, lon, radius_meters, matches)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, audit.At, audit.ClientIP, audit.Contact, audit.Query,
		audit.Origin.Lat, audit.Origin.Lon, audit.RadiusMeters, audit.Matches)
	return err
}

func (r *AuditRepo) ListRecent(ctx context.Context, limit int) ([]domain.ProximityAudit, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT at, client_ip, contact, query, lat, lon, radius_meters, matches
		FROM proximity_audit ORDER BY at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var audits []domain.ProximityAudit
	for rows.Next() {
		var a domain.ProximityAudit
		if err := rows.Scan(&a.At, &a.ClientIP, &a.Contact, &a.Query,
			&a.Origin.Lat, &a.Origin.Lon, &a.RadiusMeters, &a.Matches); err != nil {
			return nil, err
		}
		audits = append(audits, a)
	}
	return audits, rows.Err()
}
