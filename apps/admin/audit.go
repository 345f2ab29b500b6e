package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"
)

func (cli *commandLine) auditLog(email string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	logs, err := cli.usrSvc.AuditTrail(ctx, usr)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	for _, entry := range logs {
		actor := entry.ActorID.String
		if !entry.ActorID.Valid {
			actor = "system"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%v\n",
			entry.CreatedAt.Format(time.RFC3339), entry.Action, entry.EntityType, actor, entry.OldData, entry.NewData)
	}
	return w.Flush()
}
