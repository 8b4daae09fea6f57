package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/unclebandit/phishguard-backend/internal/config"
	"github.com/unclebandit/phishguard-backend/internal/mailer/mailertest"
	"github.com/unclebandit/phishguard-backend/internal/model"
	"github.com/unclebandit/phishguard-backend/internal/queue"
	"github.com/unclebandit/phishguard-backend/internal/repository/repotest"
	"github.com/unclebandit/phishguard-backend/internal/service"
)

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0))
	assert.Nil(t, NewLimiter(-1))

	l := NewLimiter(0.5)
	require.NotNil(t, l)
	assert.Equal(t, rate.Limit(0.5), l.Limit())
	assert.Equal(t, 1, l.Burst())

	assert.Equal(t, 10, NewLimiter(10).Burst())
}

func TestNewDispatcherUsesMailConfig(t *testing.T) {
	cfg := &config.Config{
		App:  config.AppConfig{TrackingBaseURL: "https://t.example/track"},
		Mail: config.MailConfig{Provider: "log", FromAddress: "a@example.com", SendTimeout: 3 * time.Second, RatePerSec: 2, ClaimTTL: 20 * time.Minute},
	}
	d, err := NewDispatcher(context.Background(), cfg, NewRepositories(nil), zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "https://t.example/track", d.BaseURL)
	assert.Equal(t, "a@example.com", d.FromAddress)
	assert.Equal(t, 3*time.Second, d.SendTimeout)
	assert.Equal(t, 20*time.Minute, d.ClaimTTL)
	require.NotNil(t, d.Limiter)
	assert.Equal(t, rate.Limit(2), d.Limiter.Limit())
}

func TestNewDispatchQueueModes(t *testing.T) {
	inline, err := NewDispatchQueue(config.QueueConfig{Mode: "inline"}, &service.Dispatcher{}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &service.InlineDispatch{}, inline.DispatchQueue)

	mem, err := NewDispatchQueue(config.QueueConfig{Mode: "memory"}, &service.Dispatcher{}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &queue.Publisher{}, mem.DispatchQueue)
	mem.Close()
}

func TestMemoryQueueDispatchesLaunchedCampaign(t *testing.T) {
	orgID := uuid.New()
	users := &repotest.UserRepo{Users: []model.User{{ID: uuid.New(), OrgID: orgID, Email: "a@acme.test", IsActive: true}}}
	tmpl := &model.Template{ID: uuid.New(), BodyHTML: "{{link}}", IsActive: true}
	templates := &repotest.TemplateRepo{Templates: map[uuid.UUID]*model.Template{tmpl.ID: tmpl}}
	store := repotest.NewMemStore(users)
	rec := &mailertest.Recorder{}

	d := &service.Dispatcher{Campaigns: store, Targets: store, Templates: templates, Mailer: rec, SendTimeout: time.Second, Log: zerolog.Nop()}
	q, err := NewDispatchQueue(config.QueueConfig{Mode: "memory"}, d, zerolog.Nop())
	require.NoError(t, err)

	svc := &service.CampaignService{
		Campaigns: store, Targets: store, Templates: templates, Users: users,
		Resolver: &service.TargetResolver{Users: users}, Queue: q, Log: zerolog.Nop(),
	}
	c, err := svc.CreateCampaign(context.Background(), orgID, users.Users[0].ID, service.CreateCampaignInput{Name: "m", TemplateID: tmpl.ID})
	require.NoError(t, err)
	_, err = svc.LaunchCampaign(context.Background(), orgID, c.ID)
	require.NoError(t, err)

	q.Close()
	got, _ := store.GetByID(context.Background(), c.ID)
	assert.Equal(t, 1, got.EmailsSent)
	assert.Len(t, rec.Attempts, 1)
}
