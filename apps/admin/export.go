package main

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/cohortly/lms/core/enrollment"
	"github.com/cohortly/lms/core/submission"
)

const (
	exportSubmissions = "submissions"
	exportStudents    = "students"
)

func (cli *commandLine) export(ctx context.Context, kind, trackID, cohortID, out string) (err error) {
	var w io.Writer = cli.out
	if out != "" {
		f, ferr := os.Create(out)
		if ferr != nil {
			return errors.Wrap(ferr, "creating export file")
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	if kind == exportStudents {
		filter := enrollment.StudentFilter{TrackID: trackID, CohortID: cohortID}
		filter.Clean()
		return cli.enrSvc.ExportStudentsCSV(ctx, w, filter)
	}
	filter := submission.Filter{TrackID: trackID}
	filter.Clean()
	return cli.subSvc.ExportCSV(ctx, w, filter)
}
