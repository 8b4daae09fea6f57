package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/unclebandit/phishguard-backend/internal/db"
	appErrors "github.com/unclebandit/phishguard-backend/internal/errors"
	"github.com/unclebandit/phishguard-backend/internal/model"
)

type TargetRepositoryInterface interface {
	ClaimPendingRecipients(ctx context.Context, campaignID uuid.UUID, now, staleBefore time.Time) ([]model.TargetRecipient, error)
	SaveDispatchResults(ctx context.Context, campaignID uuid.UUID, updates []model.TargetUpdate) (int, error)
	RecordEvent(ctx context.Context, token string, stage model.Stage, at time.Time) (bool, error)
	ListTargets(ctx context.Context, campaignID uuid.UUID, offset, limit int) ([]model.CampaignTarget, int, error)
	GetCampaignStats(ctx context.Context, campaignID uuid.UUID) (map[string]int, error)
}

type TargetRepository struct {
	DB *sql.DB
}

// ClaimPendingRecipients marks the campaign's pending targets as sending and returns them joined
// with their users, oldest first. Targets left in sending since before staleBefore are claimed
// again so a crashed dispatch does not strand them. Row locks make concurrent claims disjoint.
func (r *TargetRepository) ClaimPendingRecipients(ctx context.Context, campaignID uuid.UUID, now, staleBefore time.Time) ([]model.TargetRecipient, error) {
	rows, err := r.DB.QueryContext(ctx, `
        UPDATE campaign_targets t
        SET status = $2, claimed_at = $3
        FROM users u
        WHERE u.id = t.user_id AND t.campaign_id = $1
          AND (t.status = $4 OR (t.status = $2 AND t.claimed_at < $5))
        RETURNING t.id, t.created_at, t.tracking_token, u.id, u.email, u.name`,
		campaignID, model.TargetSending, now, model.TargetPending, staleBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TargetRecipient
	for rows.Next() {
		var tr model.TargetRecipient
		if err := rows.Scan(&tr.TargetID, &tr.CreatedAt, &tr.TrackingToken, &tr.UserID, &tr.Email, &tr.Name); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING has no order
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].TargetID.String() < out[j].TargetID.String()
	})
	return out, nil
}

// SaveDispatchResults writes the per-target outcomes of claimed targets and adds the number of
// targets that actually moved to sent to emails_sent, all in one transaction. Targets no longer
// in sending are left alone and not counted. It returns the counted sends.
func (r *TargetRepository) SaveDispatchResults(ctx context.Context, campaignID uuid.UUID, updates []model.TargetUpdate) (int, error) {
	sent := 0
	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
            UPDATE campaign_targets SET status = $1, sent_at = $2, last_error = $3
            WHERE id = $4 AND campaign_id = $5 AND status = 'sending'`)
		if err != nil {
			return fmt.Errorf("prepare target update: %w", err)
		}
		defer stmt.Close()

		for _, u := range updates {
			res, err := stmt.ExecContext(ctx, u.Status, u.SentAt, u.LastError, u.TargetID, campaignID)
			if err != nil {
				return fmt.Errorf("update target %s: %w", u.TargetID, err)
			}
			if u.Status != model.TargetSent {
				continue
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			sent += int(n)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE campaigns SET emails_sent = emails_sent + $1, updated_at = NOW() WHERE id = $2`,
			sent, campaignID,
		)
		return err
	})
	if err != nil {
		return 0, err
	}
	return sent, nil
}

// RecordEvent stamps the stage on the target owning token if it has not been stamped yet,
// and increments the matching campaign counter in the same transaction. It reports whether
// anything changed; an unknown token yields a NotFoundError.
func (r *TargetRepository) RecordEvent(ctx context.Context, token string, stage model.Stage, at time.Time) (bool, error) {
	recorded := false
	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		// column names come from model.Stage, never from the request
		var campaignID uuid.UUID
		err := tx.QueryRowContext(ctx, fmt.Sprintf(`
            UPDATE campaign_targets
            SET %[1]s = $2,
                status = CASE WHEN status = ANY($3) THEN $4 ELSE status END
            WHERE tracking_token = $1 AND %[1]s IS NULL AND sent_at IS NOT NULL
            RETURNING campaign_id`, stage.TimestampField),
			token, at, pq.Array(stage.StatusesBehind()), stage.Name,
		).Scan(&campaignID)

		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM campaign_targets WHERE tracking_token = $1)`, token,
			).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return appErrors.NewNotFound("tracking token", "")
			}
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`UPDATE campaigns SET %[1]s = %[1]s + 1, updated_at = NOW() WHERE id = $1`, stage.CounterField),
			campaignID,
		); err != nil {
			return err
		}
		recorded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return recorded, nil
}

func (r *TargetRepository) ListTargets(ctx context.Context, campaignID uuid.UUID, offset, limit int) ([]model.CampaignTarget, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaign_targets WHERE campaign_id = $1`, campaignID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(ctx, `
        SELECT id, campaign_id, user_id, tracking_token, status, sent_at, opened_at, clicked_at,
               submitted_at, reported_at, last_error, created_at
        FROM campaign_targets
        WHERE campaign_id = $1
        ORDER BY created_at, id
        LIMIT $2 OFFSET $3`, campaignID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	targets := []model.CampaignTarget{}
	for rows.Next() {
		var t model.CampaignTarget
		if err := rows.Scan(
			&t.ID, &t.CampaignID, &t.UserID, &t.TrackingToken, &t.Status, &t.SentAt, &t.OpenedAt, &t.ClickedAt,
			&t.SubmittedAt, &t.ReportedAt, &t.LastError, &t.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		targets = append(targets, t)
	}
	return targets, total, rows.Err()
}

// GetCampaignStats counts targets per status.
func (r *TargetRepository) GetCampaignStats(ctx context.Context, campaignID uuid.UUID) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM campaign_targets WHERE campaign_id = $1 GROUP BY status`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		model.TargetPending:   0,
		model.TargetSent:      0,
		model.TargetFailed:    0,
		model.TargetOpened:    0,
		model.TargetClicked:   0,
		model.TargetSubmitted: 0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ TargetRepositoryInterface = (*TargetRepository)(nil)
