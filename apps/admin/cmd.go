package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/cohortly/lms/core/enrollment"
	"github.com/cohortly/lms/core/partnership"
	"github.com/cohortly/lms/core/submission"
	"github.com/cohortly/lms/storage"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	repos    *storage.Repositories
	validate *validator.Validate
	out      io.Writer

	enrSvc  *enrollment.Service
	subSvc  *submission.Service
	pairSvc *partnership.Service
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command on the postgres store (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  autopair -track TRACK_ID -cohort COHORT_ID - pair the unpaired students of a track and cohort")
	fmt.Fprintln(cli.out, "  whitelist -email EMAIL -track TRACK_ID -cohort COHORT_ID [-status active|inactive] - approve an email for sign-up")
	fmt.Fprintln(cli.out, "  export -kind submissions|students [-track TRACK_ID] [-cohort COHORT_ID] [-out FILE] - export as CSV")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	ctx := context.Background()

	autoPairCmd := flag.NewFlagSet("autopair", flag.ContinueOnError)
	autoPairCmd.SetOutput(cli.out)
	autoPairTrack := autoPairCmd.String("track", "", "The track id.")
	autoPairCohort := autoPairCmd.String("cohort", "", "The cohort id.")

	whitelistCmd := flag.NewFlagSet("whitelist", flag.ContinueOnError)
	whitelistCmd.SetOutput(cli.out)
	whitelistEmail := whitelistCmd.String("email", "", "The email to approve.")
	whitelistTrack := whitelistCmd.String("track", "", "The track id.")
	whitelistCohort := whitelistCmd.String("cohort", "", "The cohort id.")
	whitelistStatus := whitelistCmd.String("status", enrollment.WhitelistActive, "active or inactive.")

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportCmd.SetOutput(cli.out)
	exportKind := exportCmd.String("kind", "", "What to export: submissions or students.")
	exportTrack := exportCmd.String("track", "", "Only this track.")
	exportCohort := exportCmd.String("cohort", "", "Only this cohort (students only).")
	exportOut := exportCmd.String("out", "", "Output file; stdout when empty.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	case "autopair":
		if err := autoPairCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *autoPairTrack == "" || *autoPairCohort == "" {
			autoPairCmd.Usage()
			return errHelp
		}
		return cli.autoPair(ctx, *autoPairTrack, *autoPairCohort)

	case "whitelist":
		if err := whitelistCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *whitelistEmail == "" || *whitelistTrack == "" || *whitelistCohort == "" {
			whitelistCmd.Usage()
			return errHelp
		}
		return cli.whitelist(ctx, enrollment.WhitelistInput{
			Email:    *whitelistEmail,
			TrackID:  *whitelistTrack,
			CohortID: *whitelistCohort,
			Status:   *whitelistStatus,
		})

	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *exportKind != exportSubmissions && *exportKind != exportStudents {
			exportCmd.Usage()
			return errHelp
		}
		return cli.export(ctx, *exportKind, *exportTrack, *exportCohort, *exportOut)

	default:
		cli.printUsage()
		return errHelp
	}
}
