package partnership_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/enrollment"
	"github.com/cohortly/lms/core/partnership"
	"github.com/cohortly/lms/tests"
)

type fixture struct {
	env    *testutil.Env
	track  string
	cohort string
}

func newFixture(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	return fixture{
		env:    env,
		track:  testutil.CreateTrack(t, env.CurriculumRepo, "Backend").ID,
		cohort: testutil.CreateCohort(t, env.CurriculumRepo, "2024-A").ID,
	}
}

func (f fixture) autoPair() (partnership.Result, error) {
	return f.env.Partnership.AutoPair(context.Background(), partnership.AutoPairInput{TrackID: f.track, CohortID: f.cohort})
}

func (f fixture) stored(t *testing.T) []partnership.Partnership {
	ps, err := f.env.PartnershipRepo.QueryPartnerships(context.Background(), partnership.Filter{TrackID: f.track, CohortID: f.cohort})
	require.NoError(t, err)
	return ps
}

func ids(students []enrollment.Student) []string {
	out := make([]string, 0, len(students))
	for _, s := range students {
		out = append(out, s.ID)
	}
	return out
}

// flakyRepo fails to create any partnership whose first member is in failFor.
type flakyRepo struct {
	partnership.Repository
	failFor map[string]bool
}

func (r flakyRepo) CreatePartnership(ctx context.Context, p partnership.Partnership) (partnership.Partnership, error) {
	if r.failFor[p.StudentAID] {
		return partnership.Partnership{}, errors.New("store unavailable")
	}
	return r.Repository.CreatePartnership(ctx, p)
}

// slowRepo answers partnership queries after delay, or when ctx is done.
type slowRepo struct {
	partnership.Repository
	delay time.Duration
}

func (r slowRepo) QueryPartnerships(ctx context.Context, filter partnership.Filter) ([]partnership.Partnership, error) {
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.Repository.QueryPartnerships(ctx, filter)
}

func TestAutoPair_RequiresTrackAndCohort(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   partnership.AutoPairInput
	}{
		{name: "no track", in: partnership.AutoPairInput{CohortID: f.cohort}},
		{name: "no cohort", in: partnership.AutoPairInput{TrackID: f.track}},
		{name: "blank", in: partnership.AutoPairInput{TrackID: "  ", CohortID: " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.env.Partnership.AutoPair(context.Background(), tt.in)
			assert.ErrorIs(t, err, partnership.ErrTrackCohortRequired)
			var verr *core.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestAutoPair_InsufficientStudents(t *testing.T) {
	for _, n := range []int{0, 1} {
		f := newFixture(t)
		testutil.EnrollMany(t, f.env.EnrollmentRepo, n, f.track, f.cohort)

		res, err := f.autoPair()
		assert.ErrorIs(t, err, partnership.ErrInsufficientStudents, "n=%d", n)
		assert.Empty(t, res.Created)
		assert.Empty(t, f.stored(t))
	}
}

func TestAutoPair_Exhaustive(t *testing.T) {
	tests := []struct {
		n            int
		wantCreated  int
		wantUnpaired int
	}{
		{n: 2, wantCreated: 1},
		{n: 3, wantCreated: 1, wantUnpaired: 1},
		{n: 4, wantCreated: 2},
		{n: 7, wantCreated: 3, wantUnpaired: 1},
		{n: 10, wantCreated: 5},
	}
	for _, tt := range tests {
		f := newFixture(t)
		students := testutil.EnrollMany(t, f.env.EnrollmentRepo, tt.n, f.track, f.cohort)

		res, err := f.autoPair()
		require.NoError(t, err, "n=%d", tt.n)
		assert.Len(t, res.Created, tt.wantCreated, "n=%d", tt.n)
		assert.Len(t, res.Unpaired, tt.wantUnpaired, "n=%d", tt.n)

		seen := make(map[string]int)
		for _, p := range res.Created {
			assert.NotEqual(t, p.StudentAID, p.StudentBID)
			assert.Equal(t, f.track, p.TrackID)
			assert.Equal(t, f.cohort, p.CohortID)
			seen[p.StudentAID]++
			seen[p.StudentBID]++
		}
		for _, id := range res.Unpaired {
			seen[id]++
		}
		assert.Len(t, seen, tt.n, "every student is accounted for")
		for _, id := range ids(students) {
			assert.Equal(t, 1, seen[id], "student appears exactly once")
		}
		assert.Len(t, f.stored(t), tt.wantCreated)
	}
}

func TestAutoPair_FiveStudents(t *testing.T) {
	f := newFixture(t)
	s := testutil.EnrollMany(t, f.env.EnrollmentRepo, 5, f.track, f.cohort)

	res, err := f.autoPair()
	require.NoError(t, err)
	require.Len(t, res.Created, 2)
	assert.Equal(t, s[0].ID, res.Created[0].StudentAID)
	assert.Equal(t, s[1].ID, res.Created[0].StudentBID)
	assert.Equal(t, s[2].ID, res.Created[1].StudentAID)
	assert.Equal(t, s[3].ID, res.Created[1].StudentBID)
	assert.Equal(t, []string{s[4].ID}, res.Unpaired)

	// both members of each partnership, then the admin about S5
	sent := f.env.Mail.Sent()
	require.Len(t, sent, 5)
	admin := sent[4]
	assert.Equal(t, f.env.Conf.AdminEmail, admin.To[0].Address)
	assert.Equal(t, core.TemplateUnpairedStudents, admin.TemplateName)
	assert.Contains(t, admin.TextContent, "S5")
}

func TestAutoPair_ExcludesPairedStudents(t *testing.T) {
	f := newFixture(t)
	s := testutil.EnrollMany(t, f.env.EnrollmentRepo, 5, f.track, f.cohort)
	_, err := f.env.PartnershipRepo.CreatePartnership(context.Background(), partnership.Partnership{
		ID: "existing", StudentAID: s[0].ID, StudentBID: s[2].ID, TrackID: f.track, CohortID: f.cohort,
	})
	require.NoError(t, err)

	res, err := f.autoPair()
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, s[1].ID, res.Created[0].StudentAID)
	assert.Equal(t, s[3].ID, res.Created[0].StudentBID)
	assert.Equal(t, []string{s[4].ID}, res.Unpaired)
	for _, p := range res.Created {
		assert.False(t, p.Has(s[0].ID) || p.Has(s[2].ID), "already paired student re-paired")
	}
}

func TestAutoPair_OtherCohortsDoNotCount(t *testing.T) {
	f := newFixture(t)
	other := testutil.CreateCohort(t, f.env.CurriculumRepo, "2024-B")
	s := testutil.EnrollMany(t, f.env.EnrollmentRepo, 2, f.track, f.cohort)
	testutil.Enroll(t, f.env.EnrollmentRepo, s[0].ID, f.track, other.ID)
	testutil.Enroll(t, f.env.EnrollmentRepo, s[1].ID, f.track, other.ID)
	_, err := f.env.PartnershipRepo.CreatePartnership(context.Background(), partnership.Partnership{
		ID: "other", StudentAID: s[0].ID, StudentBID: s[1].ID, TrackID: f.track, CohortID: other.ID,
	})
	require.NoError(t, err)

	res, err := f.autoPair()
	require.NoError(t, err)
	assert.Len(t, res.Created, 1)
}

func TestAutoPair_NotEnoughUnpaired(t *testing.T) {
	f := newFixture(t)
	testutil.EnrollMany(t, f.env.EnrollmentRepo, 3, f.track, f.cohort)
	_, err := f.autoPair()
	require.NoError(t, err)

	// only S3 is left
	_, err = f.autoPair()
	assert.ErrorIs(t, err, partnership.ErrNotEnoughUnpaired)
	assert.Len(t, f.stored(t), 1)
}

func TestAutoPair_PartialSuccess(t *testing.T) {
	f := newFixture(t)
	s := testutil.EnrollMany(t, f.env.EnrollmentRepo, 6, f.track, f.cohort)
	f.env.PartnershipRepo = flakyRepo{Repository: f.env.PartnershipRepo, failFor: map[string]bool{s[2].ID: true}}
	f.env.Wire()

	res, err := f.autoPair()
	require.NoError(t, err)
	require.Len(t, res.Created, 2)
	assert.Equal(t, s[0].ID, res.Created[0].StudentAID)
	assert.Equal(t, s[4].ID, res.Created[1].StudentAID)
	assert.Empty(t, res.Unpaired)
}

func TestAutoPair_NothingCreated(t *testing.T) {
	f := newFixture(t)
	s := testutil.EnrollMany(t, f.env.EnrollmentRepo, 4, f.track, f.cohort)
	f.env.PartnershipRepo = flakyRepo{Repository: f.env.PartnershipRepo, failFor: map[string]bool{s[0].ID: true, s[2].ID: true}}
	f.env.Wire()

	_, err := f.autoPair()
	assert.ErrorIs(t, err, partnership.ErrNoPartnershipsCreated)
	assert.Empty(t, f.stored(t))
	assert.Empty(t, f.env.Mail.Sent())
}

func TestAutoPair_Timeout(t *testing.T) {
	f := newFixture(t)
	testutil.EnrollMany(t, f.env.EnrollmentRepo, 4, f.track, f.cohort)
	f.env.PartnershipRepo = slowRepo{Repository: f.env.PartnershipRepo, delay: time.Second}
	f.env.Conf.Pairing.Timeout = 20 * time.Millisecond
	f.env.Wire()

	start := time.Now()
	_, err := f.autoPair()
	assert.ErrorIs(t, err, partnership.ErrPairingTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestAutoPair_InvalidatesListing(t *testing.T) {
	f := newFixture(t)
	testutil.EnrollMany(t, f.env.EnrollmentRepo, 2, f.track, f.cohort)
	filter := partnership.Filter{TrackID: f.track, CohortID: f.cohort}
	assert.Empty(t, f.env.Partnership.Query(context.Background(), filter))

	_, err := f.autoPair()
	require.NoError(t, err)

	views := f.env.Partnership.Query(context.Background(), filter)
	require.Len(t, views, 1)
	assert.Equal(t, "S1", views[0].StudentA.FullName)
	assert.Equal(t, "S2", views[0].StudentB.FullName)
	assert.Equal(t, "Backend", views[0].Track)
	assert.Equal(t, "2024-A", views[0].Cohort)
}

func TestReassign(t *testing.T) {
	f := newFixture(t)
	s := testutil.EnrollMany(t, f.env.EnrollmentRepo, 4, f.track, f.cohort)
	outsider := testutil.CreateStudent(t, f.env.EnrollmentRepo, "Outsider", "out@test.test")

	tests := []struct {
		name    string
		in      partnership.ReassignInput
		wantA   string
		wantB   string
		wantErr error
	}{
		{name: "replace a", in: partnership.ReassignInput{StudentAID: s[2].ID}, wantA: s[2].ID, wantB: s[1].ID},
		{name: "replace b", in: partnership.ReassignInput{StudentBID: s[3].ID}, wantA: s[0].ID, wantB: s[3].ID},
		{name: "replace both", in: partnership.ReassignInput{StudentAID: s[2].ID, StudentBID: s[3].ID}, wantA: s[2].ID, wantB: s[3].ID},
		{name: "unchanged", in: partnership.ReassignInput{StudentAID: s[0].ID}, wantA: s[0].ID, wantB: s[1].ID},
		{name: "current member", in: partnership.ReassignInput{StudentAID: s[1].ID}, wantErr: partnership.ErrSameStudent},
		{name: "swap members", in: partnership.ReassignInput{StudentAID: s[1].ID, StudentBID: s[0].ID}, wantErr: partnership.ErrAlreadyMember},
		{name: "not enrolled", in: partnership.ReassignInput{StudentBID: outsider.ID}, wantErr: partnership.ErrNotEnrolled},
		{name: "same student twice", in: partnership.ReassignInput{StudentAID: s[2].ID, StudentBID: s[2].ID}, wantErr: partnership.ErrSameStudent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.env.DB.Reset()
			for _, st := range s {
				_, _ = f.env.EnrollmentRepo.CreateStudent(context.Background(), st)
				testutil.Enroll(t, f.env.EnrollmentRepo, st.ID, f.track, f.cohort)
			}
			p, err := f.env.PartnershipRepo.CreatePartnership(context.Background(), partnership.Partnership{
				ID: "p1", StudentAID: s[0].ID, StudentBID: s[1].ID, TrackID: f.track, CohortID: f.cohort,
			})
			require.NoError(t, err)

			got, err := f.env.Partnership.Reassign(context.Background(), p.ID, tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantA, got.StudentAID)
			assert.Equal(t, tt.wantB, got.StudentBID)
		})
	}
}

func TestReassign_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.env.Partnership.Reassign(context.Background(), "nope", partnership.ReassignInput{StudentAID: "x"})
	assert.True(t, core.IsNotFound(err))
}

func TestCandidates(t *testing.T) {
	f := newFixture(t)
	s := testutil.EnrollMany(t, f.env.EnrollmentRepo, 5, f.track, f.cohort)
	res, err := f.autoPair()
	require.NoError(t, err)

	candidates, err := f.env.Partnership.Candidates(context.Background(), res.Created[0].ID)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, s[2].ID, candidates[0].ID)
	assert.True(t, candidates[0].Paired)
	assert.True(t, candidates[1].Paired)
	assert.Equal(t, s[4].ID, candidates[2].ID)
	assert.False(t, candidates[2].Paired)
	for _, c := range candidates {
		assert.False(t, res.Created[0].Has(c.ID))
	}
}

func TestCreateManual(t *testing.T) {
	f := newFixture(t)
	s := testutil.EnrollMany(t, f.env.EnrollmentRepo, 3, f.track, f.cohort)
	outsider := testutil.CreateStudent(t, f.env.EnrollmentRepo, "Outsider", "out@test.test")

	p, err := f.env.Partnership.CreateManual(context.Background(), partnership.ManualInput{
		StudentAID: s[0].ID, StudentBID: s[2].ID, TrackID: f.track, CohortID: f.cohort,
	})
	require.NoError(t, err)
	assert.Equal(t, s[0].ID, p.StudentAID)
	assert.Len(t, f.env.Mail.Sent(), 2)

	_, err = f.env.Partnership.CreateManual(context.Background(), partnership.ManualInput{
		StudentAID: s[1].ID, StudentBID: s[2].ID, TrackID: f.track, CohortID: f.cohort,
	})
	assert.ErrorIs(t, err, partnership.ErrAlreadyPaired)

	_, err = f.env.Partnership.CreateManual(context.Background(), partnership.ManualInput{
		StudentAID: s[1].ID, StudentBID: outsider.ID, TrackID: f.track, CohortID: f.cohort,
	})
	assert.ErrorIs(t, err, partnership.ErrNotEnrolled)
}

func TestPartnership_Partner(t *testing.T) {
	p := partnership.Partnership{StudentAID: "a", StudentBID: "b"}
	assert.Equal(t, "b", p.Partner("a"))
	assert.Equal(t, "a", p.Partner("b"))
	assert.Equal(t, "", p.Partner("c"))
}
