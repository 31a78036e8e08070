package main

import (
	"context"
	"fmt"

	"github.com/cohortly/lms/core/partnership"
)

func (cli *commandLine) autoPair(ctx context.Context, trackID, cohortID string) error {
	res, err := cli.pairSvc.AutoPair(ctx, partnership.AutoPairInput{TrackID: trackID, CohortID: cohortID})
	if err != nil {
		return err
	}
	for _, p := range res.Created {
		fmt.Fprintf(cli.out, "paired %s with %s\n", p.StudentAID, p.StudentBID)
	}
	for _, id := range res.Unpaired {
		fmt.Fprintf(cli.out, "left unpaired: %s\n", id)
	}
	fmt.Fprintf(cli.out, "%d partnership(s) created\n", len(res.Created))
	return nil
}
