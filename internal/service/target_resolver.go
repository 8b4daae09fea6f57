package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/phishguard-backend/internal/errors"
	"github.com/unclebandit/phishguard-backend/internal/model"
	"github.com/unclebandit/phishguard-backend/internal/repository"
)

// TargetConfig is the JSON payload attached to a campaign's targeting rule.
type TargetConfig struct {
	Departments []string `json:"departments,omitempty"`
	UserIDs     []string `json:"user_ids,omitempty"`
}

// TargetResolver expands a targeting rule into the recipients of one organization.
type TargetResolver struct {
	Users repository.UserRepositoryInterface
}

// Resolve returns the deduplicated recipient ids for rule, in first-seen order.
// An empty result is not an error.
func (r *TargetResolver) Resolve(ctx context.Context, orgID uuid.UUID, rule string, raw json.RawMessage) ([]uuid.UUID, error) {
	switch rule {
	case model.TargetAll:
		ids, err := r.Users.ListActiveIDs(ctx, orgID)
		if err != nil {
			return nil, err
		}
		return dedupe(ids), nil

	case model.TargetDepartment:
		cfg, err := parseTargetConfig(raw)
		if err != nil {
			return nil, err
		}
		departments := uniqueStrings(cfg.Departments)
		if len(departments) == 0 {
			return nil, appErrors.NewValidation("target_config.departments", "at least one department is required")
		}
		ids, err := r.Users.ListIDsByDepartments(ctx, orgID, departments)
		if err != nil {
			return nil, err
		}
		return dedupe(ids), nil

	case model.TargetCustom:
		cfg, err := parseTargetConfig(raw)
		if err != nil {
			return nil, err
		}
		if len(cfg.UserIDs) == 0 {
			return nil, appErrors.NewValidation("target_config.user_ids", "at least one user id is required")
		}
		requested := make([]uuid.UUID, 0, len(cfg.UserIDs))
		for _, s := range cfg.UserIDs {
			id, err := uuid.Parse(strings.TrimSpace(s))
			if err != nil {
				return nil, appErrors.NewValidation("target_config.user_ids", "invalid user id "+s)
			}
			requested = append(requested, id)
		}
		requested = dedupe(requested)

		owned, err := r.Users.FilterIDs(ctx, orgID, requested)
		if err != nil {
			return nil, err
		}
		inOrg := make(map[uuid.UUID]struct{}, len(owned))
		for _, id := range owned {
			inOrg[id] = struct{}{}
		}
		// keep the caller's order, drop ids from other organizations
		out := make([]uuid.UUID, 0, len(owned))
		for _, id := range requested {
			if _, ok := inOrg[id]; ok {
				out = append(out, id)
			}
		}
		return out, nil

	default:
		return nil, appErrors.NewValidation("target_type", "unknown targeting rule "+rule)
	}
}

func parseTargetConfig(raw json.RawMessage) (TargetConfig, error) {
	var cfg TargetConfig
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, appErrors.NewValidation("target_config", "malformed targeting configuration")
	}
	return cfg, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
