package partnership

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/enrollment"
)

// notify emails both members of every created partnership,
// and the admin when a student was left without a partner.
func (svc *Service) notify(ctx context.Context, in AutoPairInput, res Result) {
	if svc.mailSvc == nil {
		return
	}

	ids := make([]string, 0, 2*len(res.Created)+len(res.Unpaired))
	for _, p := range res.Created {
		ids = append(ids, p.StudentAID, p.StudentBID)
	}
	ids = append(ids, res.Unpaired...)
	students, err := svc.roster.StudentsByID(ctx, ids...)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("partnership: loading students to notify: %v", err), err)
		return
	}

	var msgs []*core.EmailMessage
	for _, p := range res.Created {
		for _, id := range []string{p.StudentAID, p.StudentBID} {
			msgs = append(msgs, partnerMessage(students[id], students[p.Partner(id)]))
		}
	}

	if len(res.Unpaired) > 0 && svc.opts.AdminEmail != "" {
		names := make([]string, 0, len(res.Unpaired))
		for _, id := range res.Unpaired {
			if s, ok := students[id]; ok {
				names = append(names, fmt.Sprintf("%s <%s>", s.DisplayName(), s.Email))
			} else {
				names = append(names, id)
			}
		}
		track, cohort := svc.names(ctx, in.TrackID, in.CohortID)
		msgs = append(msgs, core.NewTemplateMessage(
			mail.Address{Address: svc.opts.AdminEmail},
			"Students left without a partner",
			core.TemplateUnpairedStudents,
			struct {
				Track, Cohort string
				Created       int
				Students      []string
			}{track, cohort, len(res.Created), names},
		))
	}

	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}

func partnerMessage(to, partner enrollment.Student) *core.EmailMessage {
	return core.NewTemplateMessage(
		mail.Address{Name: to.FullName, Address: to.Email},
		"Meet your accountability partner",
		core.TemplatePartnershipCreated,
		struct{ Name, PartnerName, PartnerEmail string }{to.DisplayName(), partner.DisplayName(), partner.Email},
	)
}

func (svc *Service) names(ctx context.Context, trackID, cohortID string) (track, cohort string) {
	track, cohort = trackID, cohortID
	for _, t := range svc.catalog.QueryTracks(ctx) {
		if t.ID == trackID {
			track = t.Name
		}
	}
	for _, c := range svc.catalog.QueryCohorts(ctx) {
		if c.ID == cohortID {
			cohort = c.Name
		}
	}
	return track, cohort
}
