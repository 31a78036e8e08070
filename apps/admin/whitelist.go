package main

import (
	"context"
	"fmt"

	"github.com/cohortly/lms/core/enrollment"
)

func (cli *commandLine) whitelist(ctx context.Context, wi enrollment.WhitelistInput) error {
	if err := wi.Validate(cli.validate); err != nil {
		return err
	}
	we, err := cli.enrSvc.AddWhitelistEntry(ctx, wi)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "whitelisted %s (%s)\n", we.Email, we.Status)
	return nil
}
