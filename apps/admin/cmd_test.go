package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/change"
	"github.com/trezcool/darasa/core/record"
	"github.com/trezcool/darasa/storage/database/dummy"
	"github.com/trezcool/darasa/tests"
)

var (
	crRepo  change.Repository
	recRepo record.Repository
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	crRepo = dummydb.NewChangeRequestRepository(db)
	recRepo = dummydb.NewRecordRepository(db)

	out := new(bytes.Buffer)
	cli := &commandLine{
		db:        new(sqlx.DB),
		reviewSvc: change.NewReviewService(crRepo, record.NewWriter(recRepo), testutil.NopLogger{}),
		sess:      core.Session{Username: "admin", IsAdmin: true},
		out:       out,
	}
	return cli, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    string
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_hashpassword(t *testing.T) {
	cli, out := setup(t)

	t.Run("empty password", func(t *testing.T) {
		readPasswordFunc = func(fd int) ([]byte, error) { return nil, nil }
		if err := cli.run([]string{"admin", "hashpassword"}); err != errHelp {
			t.Errorf("cli.run() error = %v, wantErr %v", err, errHelp)
		}
	})

	t.Run("hashes", func(t *testing.T) {
		out.Reset()
		readPasswordFunc = func(fd int) ([]byte, error) { return []byte("LocalMemories"), nil }
		if err := cli.run([]string{"admin", "hashpassword"}); err != nil {
			t.Fatalf("cli.run() error = %v", err)
		}
		if !strings.Contains(out.String(), "$2a$") {
			t.Errorf("output has no bcrypt hash:\n%s", out.String())
		}
	})
}

func Test_commandLine_list(t *testing.T) {
	cli, out := setup(t)

	testutil.SubmitChange(t, crRepo, change.Marks, "s1", change.Update,
		change.FieldSet{"marks": 60.0}, change.FieldSet{"marks": 75.0}, "mwalimu")
	testutil.SubmitChange(t, crRepo, change.Attendance, "a1", change.Update,
		change.FieldSet{"present": true}, change.FieldSet{"present": false}, "mwalimu")

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "unknown status", args: []string{"list", "-status", "lol"}, wantErrStr: `unknown status "lol"`},
		{name: "unknown type", args: []string{"list", "-type", "spaceship"}, wantErrStr: `unknown model type "spaceship"`},
		{name: "pending", args: []string{"list"}, wantOut: "by mwalimu at"},
		{name: "filter by type", args: []string{"list", "-type", "attendance"}, wantOut: "attendance"},
		{name: "empty approved", args: []string{"list", "-status", "approved"}, wantOut: "no approved change requests"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			case tt.wantErrStr != "":
				if err == nil || err.Error() != tt.wantErrStr {
					t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
				}
			default:
				if err != nil {
					t.Fatalf("cli.run() error = %v", err)
				}
				if !strings.Contains(out.String(), tt.wantOut) {
					t.Errorf("output missing %q:\n%s", tt.wantOut, out.String())
				}
			}
		})
	}
}

func Test_commandLine_review(t *testing.T) {
	cli, out := setup(t)

	testutil.CreateEntity(t, recRepo, change.Marks, "s1", change.FieldSet{"marks": 60.0})
	approveMe := testutil.SubmitChange(t, crRepo, change.Marks, "s1", change.Update,
		change.FieldSet{"marks": 60.0}, change.FieldSet{"marks": 75.0}, "mwalimu")
	rejectMe := testutil.SubmitChange(t, crRepo, change.Marks, "s2", change.Create,
		change.FieldSet{}, change.FieldSet{"marks": 50.0}, "mwalimu")

	t.Run("missing id", func(t *testing.T) {
		if err := cli.run([]string{"admin", "approve"}); err != errHelp {
			t.Errorf("cli.run() error = %v, wantErr %v", err, errHelp)
		}
	})

	t.Run("approve applies the data", func(t *testing.T) {
		out.Reset()
		if err := cli.run([]string{"admin", "approve", "-id", strconv.Itoa(approveMe.ID), "-notes", "checked"}); err != nil {
			t.Fatalf("cli.run() error = %v", err)
		}
		if want := fmt.Sprintf("#%d approved", approveMe.ID); !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}

		ent, err := recRepo.GetRecord(context.Background(), change.Marks, "s1")
		if err != nil {
			t.Fatalf("GetRecord(): %v", err)
		}
		if marks, _ := ent.Fields.Float("marks"); marks != 75 {
			t.Errorf("committed marks = %v, want 75", marks)
		}
	})

	t.Run("reject leaves records alone", func(t *testing.T) {
		out.Reset()
		if err := cli.run([]string{"admin", "reject", "-id", strconv.Itoa(rejectMe.ID)}); err != nil {
			t.Fatalf("cli.run() error = %v", err)
		}
		if _, err := recRepo.GetRecord(context.Background(), change.Marks, "s2"); err != record.ErrNotFound {
			t.Errorf("GetRecord() error = %v, want %v", err, record.ErrNotFound)
		}
	})

	t.Run("show prints the diff", func(t *testing.T) {
		out.Reset()
		if err := cli.run([]string{"admin", "show", "-id", strconv.Itoa(approveMe.ID)}); err != nil {
			t.Fatalf("cli.run() error = %v", err)
		}
		for _, want := range []string{"approved", "marks", "requested by mwalimu"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("output missing %q:\n%s", want, out.String())
			}
		}
	})
}
