package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mwalimu/core/student"
	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/core/user"
	inmemdb "github.com/trezcool/mwalimu/storage/database/inmem"
	"github.com/trezcool/mwalimu/testutil"
)

type env struct {
	cli      *commandLine
	users    user.Repository
	tutors   tutor.Repository
	students student.Repository
}

func setup(t *testing.T) *env {
	t.Helper()
	// sql.Open does not connect: the migrations runner is mocked
	sqlDB, err := sql.Open("postgres", "postgres://mwalimu@localhost/mwalimu_test?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := inmemdb.Open()
	e := &env{
		users:    inmemdb.NewUserRepository(db),
		tutors:   inmemdb.NewTutorRepository(db),
		students: inmemdb.NewStudentRepository(db),
	}
	e.cli = &commandLine{
		db:         sqlDB,
		usrRepo:    e.users,
		tutorSvc:   tutor.NewService(e.tutors),
		studentSvc: student.NewService(e.students),
	}
	return e
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

func Test_commandLine_migrate(t *testing.T) {
	e := setup(t)

	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })
	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
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
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, e.cli.run(args))
		})
	}

	t.Run("no database", func(t *testing.T) {
		cli := *e.cli
		cli.db = nil
		assert.Equal(t, errNoDatabase, cli.run([]string{"admin", "migrate", "up"}))
	})
}

func Test_commandLine_addUser(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	existing := testutil.CreateUser(t, e.users, "Juma Ali", "juma@test.com", user.RoleStudent)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "name required", args: []string{"adduser", "-email", "x@test.com"}, extra: extra{pwd: "p@ss"}, wantErr: errHelp},
		{name: "password required", args: []string{"adduser", "-email", "x@test.com", "-name", "X"}, wantErr: errHelp},
		{
			name: "unknown role", args: []string{"adduser", "-email", "x@test.com", "-name", "X", "-role", "lol"}, extra: extra{pwd: "p@ss"},
			wantErrStr: "role must be one of: student, tutor, admin",
		},
		{name: "admin by default", args: []string{"adduser", "-email", " Admin@Test.com ", "-name", "Admin"}, extra: extra{pwd: "p@ss"}},
		{name: "tutor", args: []string{"adduser", "-email", "neema@test.com", "-name", "Neema Mushi", "-role", "tutor"}, extra: extra{pwd: "p@ss"}},
		{name: "update existing", args: []string{"adduser", "-email", existing.Email, "-name", "Juma A.", "-role", "student"}, extra: extra{pwd: "n3w-p@ss"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd := ""
		if ex, ok := tt.extra.(extra); ok {
			pwd = ex.pwd
		}
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, pwd)
			tt.check(t, e.cli.run(args))
		})
	}

	admin, err := e.users.GetUserByEmail(ctx, "admin@test.com")
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, admin.Role)
	assert.NoError(t, admin.CheckPassword("p@ss"))

	tutUsr, err := e.users.GetUserByEmail(ctx, "neema@test.com")
	require.NoError(t, err)
	tut, err := e.tutors.GetTutorByUserID(ctx, tutUsr.ID)
	require.NoError(t, err)
	assert.Equal(t, "Neema Mushi", tut.Name)

	updated, err := e.users.GetUserByEmail(ctx, existing.Email)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, updated.ID)
	assert.Equal(t, "Juma A.", updated.Name)
	assert.NoError(t, updated.CheckPassword("n3w-p@ss"))
	// the missing student profile is created
	_, err = e.students.GetStudentByUserID(ctx, existing.ID)
	assert.NoError(t, err)
}

func Test_commandLine_resetPassword(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.users, "Amina Said", "amina@test.com", user.RoleStudent)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", "AMINA@test.com"}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd := ""
		if ex, ok := tt.extra.(extra); ok {
			pwd = ex.pwd
		}
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, pwd)
			err := e.cli.run(args)
			tt.check(t, err)
			if err != nil {
				return
			}
			refreshed, err := e.users.GetUser(context.Background(), usr.ID)
			require.NoError(t, err)
			assert.False(t, bytes.Equal(refreshed.PasswordHash, usr.PasswordHash), "failed to update new password")
			assert.NoError(t, refreshed.CheckPassword(pwd))
		})
	}
}

func Test_commandLine_seed(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	testutil.CreateUser(t, e.users, "Someone Else", "amina@test.com", user.RoleStudent)

	require.NoError(t, e.cli.run([]string{"admin", "seed"}))

	count, err := e.users.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(seedUsers()), count)

	// existing users are left untouched
	amina, err := e.users.GetUserByEmail(ctx, "amina@test.com")
	require.NoError(t, err)
	assert.Equal(t, "Someone Else", amina.Name)

	neema, err := e.users.GetUserByEmail(ctx, "neema@test.com")
	require.NoError(t, err)
	assert.NoError(t, neema.CheckPassword(seedPassword))
	tut, err := e.tutors.GetTutorByUserID(ctx, neema.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.9, tut.Rating)
	assert.Equal(t, 143, tut.ReviewsCount)
	assert.Len(t, tut.Availability, 21)

	juma, err := e.users.GetUserByEmail(ctx, "juma@test.com")
	require.NoError(t, err)
	_, err = e.students.GetStudentByUserID(ctx, juma.ID)
	assert.NoError(t, err)

	// seeding twice is a no-op
	require.NoError(t, e.cli.run([]string{"admin", "seed"}))
	count, err = e.users.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(seedUsers()), count)
}

func Test_seedSlots(t *testing.T) {
	now := time.Date(2024, 3, 4, 16, 30, 0, 0, time.UTC)
	slots := seedSlots(now)
	require.Len(t, slots, 21)
	assert.Equal(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), slots[0])
	assert.Equal(t, time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC), slots[1])
	assert.Equal(t, time.Date(2024, 3, 11, 18, 0, 0, 0, time.UTC), slots[20])
}
