// Package repotest provides in-memory repositories for tests.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/phishguard-backend/internal/errors"
	"github.com/unclebandit/phishguard-backend/internal/model"
	"github.com/unclebandit/phishguard-backend/internal/repository"
)

// ====================== Users ======================

type UserRepo struct {
	Users []model.User
}

func (m *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range m.Users {
		if u.ID == id {
			u := u
			return &u, nil
		}
	}
	return nil, appErrors.NewNotFound("user", id.String())
}

func (m *UserRepo) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]model.User, error) {
	var out []model.User
	for _, u := range m.Users {
		if u.OrgID == orgID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.ID = uuid.New()
	m.Users = append(m.Users, *u)
	return nil
}

func (m *UserRepo) ListByEmail(ctx context.Context, email string) ([]model.User, error) {
	var out []model.User
	for _, u := range m.Users {
		if u.Email == email && u.PasswordHash != "" {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *UserRepo) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	for i := range m.Users {
		if m.Users[i].ID == id {
			m.Users[i].LastLoginAt = &at
		}
	}
	return nil
}

func (m *UserRepo) ListActiveIDs(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	return m.ids(func(u model.User) bool { return u.OrgID == orgID && u.IsActive }), nil
}

func (m *UserRepo) ListIDsByDepartments(ctx context.Context, orgID uuid.UUID, departments []string) ([]uuid.UUID, error) {
	return m.ids(func(u model.User) bool {
		if u.OrgID != orgID || !u.IsActive {
			return false
		}
		for _, d := range departments {
			if u.Department == d {
				return true
			}
		}
		return false
	}), nil
}

func (m *UserRepo) FilterIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return m.ids(func(u model.User) bool { return u.OrgID == orgID && want[u.ID] }), nil
}

func (m *UserRepo) ids(keep func(model.User) bool) []uuid.UUID {
	out := []uuid.UUID{}
	for _, u := range m.Users {
		if keep(u) {
			out = append(out, u.ID)
		}
	}
	return out
}

var _ repository.UserRepositoryInterface = (*UserRepo)(nil)

// ====================== Templates ======================

type TemplateRepo struct {
	Templates map[uuid.UUID]*model.Template
}

func (m *TemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	t, ok := m.Templates[id]
	if !ok {
		return nil, appErrors.NewNotFound("template", id.String())
	}
	cp := *t
	return &cp, nil
}

func (m *TemplateRepo) List(ctx context.Context, orgID uuid.UUID, country, category string) ([]model.Template, error) {
	out := []model.Template{}
	for _, t := range m.Templates {
		if t.OrgID == nil || *t.OrgID == orgID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *TemplateRepo) Create(ctx context.Context, t *model.Template) error {
	t.ID = uuid.New()
	t.IsActive = true
	if m.Templates == nil {
		m.Templates = map[uuid.UUID]*model.Template{}
	}
	m.Templates[t.ID] = t
	return nil
}

var _ repository.TemplateRepositoryInterface = (*TemplateRepo)(nil)

// ====================== Campaigns and targets ======================

// MemStore keeps campaigns and targets in memory with the same conditional
// update rules as the SQL repositories.
type MemStore struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]*model.Campaign
	targets   []*model.CampaignTarget
	users     *UserRepo
	saveCalls int
}

func NewMemStore(users *UserRepo) *MemStore {
	return &MemStore{campaigns: map[uuid.UUID]*model.Campaign{}, users: users}
}

func (m *MemStore) Create(ctx context.Context, c *model.Campaign, targets []model.CampaignTarget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c.ID = uuid.New()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	c.TotalTargets = len(targets)
	c.CreatedAt = time.Now().Add(time.Duration(len(m.campaigns)) * time.Second)
	cp := *c
	m.campaigns[c.ID] = &cp

	for i := range targets {
		targets[i].ID = uuid.New()
		targets[i].CampaignID = c.ID
		targets[i].Status = model.TargetPending
		t := targets[i]
		m.targets = append(m.targets, &t)
	}
	return nil
}

func (m *MemStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewNotFound("campaign", id.String())
	}
	cp := *c
	return &cp, nil
}

func (m *MemStore) ListCampaigns(ctx context.Context, orgID uuid.UUID, offset, limit int, status string) ([]*model.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []*model.Campaign
	for _, c := range m.campaigns {
		if c.OrgID == orgID && (status == "" || c.Status == status) {
			cp := *c
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []*model.Campaign{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *MemStore) Transition(ctx context.Context, id uuid.UUID, from []string, to string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if c.Status == s {
			c.Status = to
			switch to {
			case model.CampaignRunning:
				c.StartedAt = &at
			case model.CampaignCompleted, model.CampaignCancelled:
				c.CompletedAt = &at
			}
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []uuid.UUID
	for _, c := range m.campaigns {
		if c.Status == model.CampaignScheduled && c.ScheduledStart != nil && !c.ScheduledStart.After(now) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

// ListStalledRunning mirrors the SQL lookup used by the scheduler's recovery pass.
func (m *MemStore) ListStalledRunning(ctx context.Context, startedBefore, staleBefore time.Time, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []uuid.UUID
	for _, c := range m.campaigns {
		if c.Status != model.CampaignRunning || c.StartedAt == nil || c.StartedAt.After(startedBefore) {
			continue
		}
		for _, t := range m.targets {
			if t.CampaignID == c.ID && claimable(t, staleBefore) {
				ids = append(ids, c.ID)
				break
			}
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func claimable(t *model.CampaignTarget, staleBefore time.Time) bool {
	if t.Status == model.TargetPending {
		return true
	}
	return t.Status == model.TargetSending && t.ClaimedAt != nil && t.ClaimedAt.Before(staleBefore)
}

func (m *MemStore) ClaimPendingRecipients(ctx context.Context, campaignID uuid.UUID, now, staleBefore time.Time) ([]model.TargetRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.TargetRecipient
	for _, t := range m.targets {
		if t.CampaignID != campaignID || !claimable(t, staleBefore) {
			continue
		}
		u, err := m.users.GetByID(ctx, t.UserID)
		if err != nil {
			return nil, err
		}
		at := now
		t.Status = model.TargetSending
		t.ClaimedAt = &at
		out = append(out, model.TargetRecipient{
			TargetID: t.ID, CreatedAt: t.CreatedAt, TrackingToken: t.TrackingToken,
			UserID: u.ID, Email: u.Email, Name: u.Name,
		})
	}
	return out, nil
}

func (m *MemStore) SaveDispatchResults(ctx context.Context, campaignID uuid.UUID, updates []model.TargetUpdate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saveCalls++
	sent := 0
	for _, u := range updates {
		for _, t := range m.targets {
			if t.ID != u.TargetID || t.CampaignID != campaignID || t.Status != model.TargetSending {
				continue
			}
			t.Status = u.Status
			t.SentAt = u.SentAt
			t.LastError = u.LastError
			if u.Status == model.TargetSent {
				sent++
			}
		}
	}
	m.campaigns[campaignID].EmailsSent += sent
	return sent, nil
}

// MarkSent moves the pending target at position i to sent, as a completed dispatch would.
func (m *MemStore) MarkSent(i int, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.targets[i]
	if t.Status != model.TargetPending {
		return
	}
	t.Status = model.TargetSent
	t.SentAt = &at
	m.campaigns[t.CampaignID].EmailsSent++
}

func (m *MemStore) RecordEvent(ctx context.Context, token string, stage model.Stage, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var target *model.CampaignTarget
	for _, t := range m.targets {
		if t.TrackingToken == token {
			target = t
		}
	}
	if target == nil {
		return false, appErrors.NewNotFound("tracking token", "")
	}
	if target.SentAt == nil {
		return false, nil
	}

	c := m.campaigns[target.CampaignID]
	var ts **time.Time
	var counter *int
	switch stage.Name {
	case model.StageOpened:
		ts, counter = &target.OpenedAt, &c.EmailsOpened
	case model.StageClicked:
		ts, counter = &target.ClickedAt, &c.LinksClicked
	case model.StageSubmitted:
		ts, counter = &target.SubmittedAt, &c.CredentialsSubmitted
	case model.StageReported:
		ts, counter = &target.ReportedAt, &c.EmailsReported
	}
	if *ts != nil {
		return false, nil
	}
	*ts = &at
	for _, s := range stage.StatusesBehind() {
		if target.Status == s {
			target.Status = stage.Name
			break
		}
	}
	*counter++
	return true, nil
}

func (m *MemStore) ListTargets(ctx context.Context, campaignID uuid.UUID, offset, limit int) ([]model.CampaignTarget, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.CampaignTarget{}
	for _, t := range m.targets {
		if t.CampaignID == campaignID {
			out = append(out, *t)
		}
	}
	total := len(out)
	if offset >= total {
		return []model.CampaignTarget{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (m *MemStore) GetCampaignStats(ctx context.Context, campaignID uuid.UUID) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := map[string]int{}
	for _, t := range m.targets {
		if t.CampaignID == campaignID {
			stats[t.Status]++
		}
	}
	return stats, nil
}

// Target returns a copy of the target at position i in insertion order.
func (m *MemStore) Target(i int) model.CampaignTarget {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.targets[i]
}

var (
	_ repository.CampaignRepositoryInterface = (*MemStore)(nil)
	_ repository.TargetRepositoryInterface   = (*MemStore)(nil)
)

// SaveCalls reports how many times SaveDispatchResults ran.
func (m *MemStore) SaveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCalls
}

// ====================== Analytics ======================

// AnalyticsRepo returns canned aggregates and records the trend window it was asked for.
type AnalyticsRepo struct {
	Totals      model.OrgTotals
	Recent      []*model.Campaign
	Departments []model.DepartmentCounts
	Daily       []model.DailyCount
	Since       time.Time
	Calls       int
}

func (m *AnalyticsRepo) OrgTotals(ctx context.Context, orgID uuid.UUID) (*model.OrgTotals, error) {
	m.Calls++
	t := m.Totals
	return &t, nil
}

func (m *AnalyticsRepo) RecentCampaigns(ctx context.Context, orgID uuid.UUID, limit int) ([]*model.Campaign, error) {
	if len(m.Recent) > limit {
		return m.Recent[:limit], nil
	}
	return m.Recent, nil
}

func (m *AnalyticsRepo) DepartmentCounts(ctx context.Context, orgID uuid.UUID) ([]model.DepartmentCounts, error) {
	return m.Departments, nil
}

func (m *AnalyticsRepo) DailyClicks(ctx context.Context, orgID uuid.UUID, since time.Time) ([]model.DailyCount, error) {
	m.Since = since
	return m.Daily, nil
}

var _ repository.AnalyticsRepositoryInterface = (*AnalyticsRepo)(nil)

// ====================== Organizations ======================

// OrgRepo records registrations. With Users set, the admin is added there too.
type OrgRepo struct {
	Orgs  []model.Organization
	Users *UserRepo
}

func (m *OrgRepo) CreateWithAdmin(ctx context.Context, org *model.Organization, admin *model.User) error {
	org.ID = uuid.New()
	org.IsActive = true
	admin.ID = uuid.New()
	admin.Role = "admin"
	admin.OrgID = org.ID
	admin.IsActive = true
	m.Orgs = append(m.Orgs, *org)
	if m.Users != nil {
		m.Users.Users = append(m.Users.Users, *admin)
	}
	return nil
}

var _ repository.OrganizationRepositoryInterface = (*OrgRepo)(nil)
