package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/core/user"
)

const seedPassword = "password123"

type seedUser struct {
	name, email, role string
	tutor             tutor.NewTutor
}

var seedSlotHours = []int{10, 14, 18}

func seedUsers() []seedUser {
	return []seedUser{
		{name: "Amina Said", email: "amina@test.com", role: user.RoleStudent},
		{name: "Juma Ali", email: "juma@test.com", role: user.RoleStudent},
		{
			name: "Dr. Neema Mushi", email: "neema@test.com", role: user.RoleTutor,
			tutor: tutor.NewTutor{
				Subject:      "Mathematics",
				Experience:   "12 years",
				Bio:          "University of Dar es Salaam lecturer with 12+ years teaching Mathematics and Calculus",
				ProfilePic:   "https://api.dicebear.com/7.x/avataaars/svg?seed=neema",
				Subjects:     []string{"Mathematics", "Algebra", "Calculus"},
				Languages:    []string{"English", "Swahili"},
				HourlyRate:   25,
				Rating:       4.9,
				ReviewsCount: 143,
			},
		},
		{
			name: "Prof. Baraka Otieno", email: "baraka@test.com", role: user.RoleTutor,
			tutor: tutor.NewTutor{
				Subject:      "Physics",
				Experience:   "15 years",
				Bio:          "Former University of Nairobi professor, passionate about making Physics intuitive",
				ProfilePic:   "https://api.dicebear.com/7.x/avataaars/svg?seed=baraka",
				Subjects:     []string{"Physics", "Mathematics", "Science"},
				Languages:    []string{"English", "Swahili", "Luo"},
				HourlyRate:   22,
				Rating:       4.8,
				ReviewsCount: 98,
			},
		},
		{
			name: "Zawadi Kimaro", email: "zawadi@test.com", role: user.RoleTutor,
			tutor: tutor.NewTutor{
				Subject:      "Chemistry",
				Experience:   "6 years",
				Bio:          "Chemistry specialist with industry experience",
				ProfilePic:   "https://api.dicebear.com/7.x/avataaars/svg?seed=zawadi",
				Subjects:     []string{"Chemistry", "Biology", "Science"},
				Languages:    []string{"English", "Swahili"},
				HourlyRate:   18,
				Rating:       4.7,
				ReviewsCount: 76,
			},
		},
		{name: "Admin", email: "admin@test.com", role: user.RoleAdmin},
	}
}

// seedSlots returns the 10:00, 14:00 & 18:00 slots of the 7 days following now.
func seedSlots(now time.Time) []time.Time {
	slots := make([]time.Time, 0, 7*len(seedSlotHours))
	y, m, d := now.Date()
	for day := 1; day <= 7; day++ {
		for _, hour := range seedSlotHours {
			slots = append(slots, time.Date(y, m, d+day, hour, 0, 0, 0, now.Location()).UTC())
		}
	}
	return slots
}

// seed inserts the sample users & tutors. Existing users are left untouched.
func (cli *commandLine) seed() error {
	ctx := context.Background()
	slots := seedSlots(time.Now())

	for _, su := range seedUsers() {
		_, err := cli.usrRepo.GetUserByEmail(ctx, su.email)
		if err == nil {
			fmt.Printf("skipping %s: already exists\n", su.email)
			continue
		}
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}

		now := time.Now().UTC()
		usr := user.User{Name: su.name, Email: su.email, Role: su.role, CreatedAt: now, UpdatedAt: now}
		if err = usr.SetPassword(seedPassword); err != nil {
			return err
		}
		if usr, err = cli.usrRepo.CreateUser(ctx, usr); err != nil {
			return errors.Wrapf(err, "creating user %s", su.email)
		}

		nt := su.tutor
		nt.Slots = slots
		if err = cli.ensureProfile(ctx, usr, nt); err != nil {
			return err
		}
		fmt.Printf("created %s %s\n", su.role, su.email)
	}
	return nil
}
