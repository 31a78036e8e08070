package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/enrollment"
	"github.com/cohortly/lms/core/partnership"
	emailsvc "github.com/cohortly/lms/services/email"
	"github.com/cohortly/lms/storage"
	inmemdb "github.com/cohortly/lms/storage/database/inmem"
	"github.com/cohortly/lms/tests"
)

func setup(t *testing.T) (*commandLine, *storage.Repositories, *bytes.Buffer) {
	conf := core.NewConfig()
	repos := storage.NewInMem(inmemdb.Open())

	cli := newCommandLine(conf, repos, emailsvc.NewConsoleServiceMock(conf), core.NopLogger())
	out := new(bytes.Buffer)
	cli.out = out
	return cli, repos, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    string
}

func runCLITests(t *testing.T, cli *commandLine, out *bytes.Buffer, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrStr)
			default:
				require.NoError(t, err)
			}
			if tt.wantOut != "" {
				assert.Contains(t, out.String(), tt.wantOut)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _, out := setup(t)

	runCLITests(t, cli, out, []cliTest{
		{name: "no command", wantErr: errHelp, wantOut: "Usage:"},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "migrate: no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "migrate: not a sql store", args: []string{"migrate", "up"}, wantErr: errNotSQLStore},
	})
}

func Test_commandLine_autoPair(t *testing.T) {
	cli, repos, out := setup(t)

	track := testutil.CreateTrack(t, repos.Curriculum, "Backend")
	cohort := testutil.CreateCohort(t, repos.Curriculum, "2024-A")
	lonely := testutil.CreateCohort(t, repos.Curriculum, "2024-B")
	testutil.EnrollMany(t, repos.Enrollment, 5, track.ID, cohort.ID)
	testutil.EnrollMany(t, repos.Enrollment, 1, track.ID, lonely.ID)

	runCLITests(t, cli, out, []cliTest{
		{name: "no args", args: []string{"autopair"}, wantErr: errHelp},
		{name: "no cohort", args: []string{"autopair", "-track", track.ID}, wantErr: errHelp},
		{
			name:    "insufficient students",
			args:    []string{"autopair", "-track", track.ID, "-cohort", lonely.ID},
			wantErr: partnership.ErrInsufficientStudents,
		},
		{
			name:    "pairs and reports the odd student",
			args:    []string{"autopair", "-track", track.ID, "-cohort", cohort.ID},
			wantOut: "2 partnership(s) created",
		},
		{
			name:    "everyone already paired",
			args:    []string{"autopair", "-track", track.ID, "-cohort", cohort.ID},
			wantErr: partnership.ErrNotEnoughUnpaired,
		},
	})
}

func Test_commandLine_whitelist(t *testing.T) {
	cli, repos, out := setup(t)

	track := testutil.CreateTrack(t, repos.Curriculum, "Frontend")
	cohort := testutil.CreateCohort(t, repos.Curriculum, "2024-A")

	runCLITests(t, cli, out, []cliTest{
		{name: "no args", args: []string{"whitelist"}, wantErr: errHelp},
		{
			name:    "whitelists",
			args:    []string{"whitelist", "-email", " Awe@Test.cd ", "-track", track.ID, "-cohort", cohort.ID},
			wantOut: "whitelisted awe@test.cd (active)",
		},
		{
			name:    "already whitelisted",
			args:    []string{"whitelist", "-email", "awe@test.cd", "-track", track.ID, "-cohort", cohort.ID},
			wantErr: enrollment.ErrAlreadyWhitelisted,
		},
		{
			name:       "bad status",
			args:       []string{"whitelist", "-email", "lol@test.cd", "-track", track.ID, "-cohort", cohort.ID, "-status", "lol"},
			wantErrStr: "status",
		},
	})

	t.Run("invalid email", func(t *testing.T) {
		err := cli.run([]string{"admin", "whitelist", "-email", "lol", "-track", track.ID, "-cohort", cohort.ID})
		var verrs validator.ValidationErrors
		assert.ErrorAs(t, err, &verrs)
	})
}

func Test_commandLine_export(t *testing.T) {
	cli, repos, out := setup(t)

	track := testutil.CreateTrack(t, repos.Curriculum, "Backend")
	cohort := testutil.CreateCohort(t, repos.Curriculum, "2024-A")
	testutil.EnrollMany(t, repos.Enrollment, 2, track.ID, cohort.ID)

	runCLITests(t, cli, out, []cliTest{
		{name: "no kind", args: []string{"export"}, wantErr: errHelp},
		{name: "unknown kind", args: []string{"export", "-kind", "lol"}, wantErr: errHelp},
		{name: "students", args: []string{"export", "-kind", "students"}, wantOut: "Name,Email,Track,Cohort,Enrolled Date\nS1,"},
		{name: "submissions", args: []string{"export", "-kind", "submissions"}, wantOut: "Student,Email,Track,Assignment,Status,Submitted Date,GitHub,Demo\n"},
	})

	t.Run("to file", func(t *testing.T) {
		fp := filepath.Join(t.TempDir(), "students.csv")
		require.NoError(t, cli.run([]string{"admin", "export", "-kind", "students", "-track", track.ID, "-out", fp}))

		data, err := os.ReadFile(fp)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		assert.Len(t, lines, 3)
	})
}
