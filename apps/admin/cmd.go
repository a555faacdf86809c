package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/change"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sqlx.DB
	reviewSvc *change.ReviewService
	sess      core.Session
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  list [-status pending|approved|rejected] [-type MODEL_TYPE] - list change requests")
	fmt.Fprintln(cli.out, "  show -id ID                                                 - show a change request with its diff")
	fmt.Fprintln(cli.out, "  approve -id ID [-notes NOTES]                               - approve a pending change request")
	fmt.Fprintln(cli.out, "  reject -id ID [-notes NOTES]                                - reject a pending change request")
	fmt.Fprintln(cli.out, "  hashpassword                                                - hash the admin password for config")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                                      - run database migrations")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	listStatus := listCmd.String("status", "pending", "Filter by status.")
	listType := listCmd.String("type", "", "Filter by model type.")

	showCmd := flag.NewFlagSet("show", flag.ExitOnError)
	showID := showCmd.Int("id", 0, "The change request id.")

	approveCmd := flag.NewFlagSet("approve", flag.ExitOnError)
	approveID := approveCmd.Int("id", 0, "The change request id.")
	approveNotes := approveCmd.String("notes", "", "Reviewer notes.")

	rejectCmd := flag.NewFlagSet("reject", flag.ExitOnError)
	rejectID := rejectCmd.Int("id", 0, "The change request id.")
	rejectNotes := rejectCmd.String("notes", "", "Reviewer notes.")

	switch args[1] {
	case "list":
		if err := listCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.list(*listStatus, *listType)
	case "show":
		if err := showCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *showID == 0 {
			showCmd.Usage()
			return errHelp
		}
		return cli.show(*showID)
	case "approve":
		if err := approveCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *approveID == 0 {
			approveCmd.Usage()
			return errHelp
		}
		return cli.review(*approveID, change.StatusApproved, *approveNotes)
	case "reject":
		if err := rejectCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *rejectID == 0 {
			rejectCmd.Usage()
			return errHelp
		}
		return cli.review(*rejectID, change.StatusRejected, *rejectNotes)
	case "hashpassword":
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			cli.printUsage()
			return errHelp
		}
		hash, err := bcrypt.GenerateFromPassword(pwd, bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cli.out, string(hash))
		return nil
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}
