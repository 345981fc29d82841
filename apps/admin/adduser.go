package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/student"
	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/core/user"
)

// addUser updates or creates a user.User, along with the profile of their role.
func (cli *commandLine) addUser(name, email, role, pwd string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)
	role = core.CleanString(role, true /* lower */)
	if !core.Contains(user.AllRoles, role) {
		return fmt.Errorf("role must be one of: student, tutor, admin")
	}

	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		usr.Name = name
		usr.Role = role
		usr.UpdatedAt = now
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		if usr, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
			return errors.Wrap(err, "updating user")
		}
	case errors.Cause(err) == user.ErrNotFound:
		usr = user.User{Name: name, Email: email, Role: role, CreatedAt: now, UpdatedAt: now}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		if usr, err = cli.usrRepo.CreateUser(ctx, usr); err != nil {
			return errors.Wrap(err, "creating user")
		}
	default:
		return err
	}
	return cli.ensureProfile(ctx, usr, tutor.NewTutor{})
}

// ensureProfile creates the tutor or student profile of usr when missing.
func (cli *commandLine) ensureProfile(ctx context.Context, usr user.User, nt tutor.NewTutor) error {
	switch usr.Role {
	case user.RoleTutor:
		_, err := cli.tutorSvc.GetByUserID(ctx, usr.ID)
		if errors.Cause(err) != tutor.ErrNotFound {
			return err
		}
		nt.UserID = usr.ID
		nt.Name = usr.Name
		if _, err = cli.tutorSvc.CreateProfile(ctx, nt); err != nil {
			return errors.Wrap(err, "creating tutor profile")
		}
	case user.RoleStudent:
		_, err := cli.studentSvc.GetByUserID(ctx, usr.ID)
		if errors.Cause(err) != student.ErrNotFound {
			return err
		}
		if _, err = cli.studentSvc.CreateProfile(ctx, usr.ID); err != nil {
			return errors.Wrap(err, "creating student profile")
		}
	}
	return nil
}
