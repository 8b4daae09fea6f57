package service_test

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/unclebandit/phishguard-backend/internal/mailer/mailertest"
	"github.com/unclebandit/phishguard-backend/internal/model"
	"github.com/unclebandit/phishguard-backend/internal/repository/repotest"
	"github.com/unclebandit/phishguard-backend/internal/service"
)

type fixture struct {
	OrgID     uuid.UUID
	AdminID   uuid.UUID
	Template  *model.Template
	Users     *repotest.UserRepo
	Templates *repotest.TemplateRepo
	Store     *repotest.MemStore
	Mailer    *mailertest.Recorder
	Queue     *RecordingQueue
	Now       time.Time
}

// newFixture builds an organization with 3 IT and 2 HR employees and one system template.
func newFixture() *fixture {
	f := &fixture{
		OrgID:  uuid.New(),
		Mailer: &mailertest.Recorder{FailFor: map[string]error{}},
		Queue:  &RecordingQueue{},
		Now:    time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	f.Users = &repotest.UserRepo{}
	departments := []string{"IT", "IT", "HR", "IT", "HR"}
	for i, dep := range departments {
		f.Users.Users = append(f.Users.Users, model.User{
			ID:         uuid.New(),
			OrgID:      f.OrgID,
			Email:      fmt.Sprintf("user%d@acme.test", i+1),
			Name:       fmt.Sprintf("User %d", i+1),
			Department: dep,
			Role:       service.RoleEmployee,
			IsActive:   true,
		})
	}
	f.AdminID = f.Users.Users[0].ID

	text := "Hi {{name}}, track at {{link}}"
	f.Template = &model.Template{
		ID:        uuid.New(),
		Name:      "Parcel",
		Subject:   "{{name}}, your parcel is waiting",
		BodyHTML:  `<p>Dear {{name}},</p><a href="{{link}}">Track</a>`,
		BodyText:  &text,
		BrandName: "Pos Express",
		IsActive:  true,
	}
	f.Templates = &repotest.TemplateRepo{Templates: map[uuid.UUID]*model.Template{f.Template.ID: f.Template}}
	f.Store = repotest.NewMemStore(f.Users)
	return f
}

func (f *fixture) clock() time.Time { return f.Now }

func (f *fixture) dispatcher() *service.Dispatcher {
	return &service.Dispatcher{
		Campaigns:   f.Store,
		Targets:     f.Store,
		Templates:   f.Templates,
		Mailer:      f.Mailer,
		SendTimeout: time.Second,
		FromAddress: "awareness@phishguard.test",
		BaseURL:     "https://t.phishguard.test/track",
		Log:         zerolog.Nop(),
		Now:         f.clock,
	}
}

func (f *fixture) campaignService(queue service.DispatchQueue) *service.CampaignService {
	return &service.CampaignService{
		Campaigns: f.Store,
		Targets:   f.Store,
		Templates: f.Templates,
		Users:     f.Users,
		Resolver:  &service.TargetResolver{Users: f.Users},
		Queue:     queue,
		BaseURL:   "https://t.phishguard.test/track",
		Log:       zerolog.Nop(),
		Now:       f.clock,
	}
}
