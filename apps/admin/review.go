package main

import (
	"context"
	"fmt"

	"github.com/trezcool/darasa/core/change"
)

func (cli *commandLine) list(status, modelType string) error {
	ctx := context.Background()

	st := change.Status(status)
	switch st {
	case change.StatusPending, change.StatusApproved, change.StatusRejected:
	default:
		return fmt.Errorf("unknown status %q", status)
	}

	var types []change.ModelType
	if modelType != "" {
		mt := change.ModelType(modelType)
		if !mt.Valid() {
			return fmt.Errorf("unknown model type %q", modelType)
		}
		types = append(types, mt)
	}

	reqs, err := cli.reviewSvc.ListByStatus(ctx, st, change.Cursor{}, types...)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		fmt.Fprintf(cli.out, "no %s change requests\n", st)
		return nil
	}
	for _, req := range reqs {
		fmt.Fprintf(cli.out, "#%d\t%s\t%s\tby %s at %s\n",
			req.ID, req.Status, req.Summary(), req.RequestedBy, req.RequestedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func (cli *commandLine) show(id int) error {
	req, err := cli.reviewSvc.Get(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "#%d %s %s on %s #%s\n", req.ID, req.Status, req.ChangeType, req.ModelType, req.ObjectID)
	fmt.Fprintf(cli.out, "requested by %s at %s\n", req.RequestedBy, req.RequestedAt.Format("2006-01-02 15:04"))
	if req.ReviewedAt != nil {
		fmt.Fprintf(cli.out, "reviewed by %s at %s\n", req.ReviewedBy, req.ReviewedAt.Format("2006-01-02 15:04"))
	}
	if req.Notes != "" {
		fmt.Fprintf(cli.out, "notes: %s\n", req.Notes)
	}
	fmt.Fprintln(cli.out)
	fmt.Fprint(cli.out, change.DiffSummary(req.OldData, req.NewData))
	return nil
}

func (cli *commandLine) review(id int, status change.Status, notes string) error {
	ctx := context.Background()

	var req change.ChangeRequest
	var err error
	if status == change.StatusApproved {
		req, err = cli.reviewSvc.Approve(ctx, cli.sess, id, notes)
	} else {
		req, err = cli.reviewSvc.Reject(ctx, cli.sess, id, notes)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "#%d %s\n", req.ID, req.Status)
	return nil
}
