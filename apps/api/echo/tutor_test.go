package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/mwalimu/apps/api/echo"
	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/testutil"
)

func Test_tutorApi_search(t *testing.T) {
	e := setup(t)
	slot := time.Now().Add(72 * time.Hour).Truncate(time.Hour).UTC()

	_, cheap := testutil.CreateTutor(t, e.users, e.tutors, "Baraka Otieno", "baraka@test.com", testutil.TutorOpts{
		Subjects: []string{"Mathematics", "Physics"}, HourlyRate: 20, Rating: 4.2, Slots: []time.Time{slot},
	})
	_, rated := testutil.CreateTutor(t, e.users, e.tutors, "Neema Mushi", "neema@test.com", testutil.TutorOpts{
		Subjects: []string{"Mathematics"}, HourlyRate: 40, Rating: 4.9, ReviewsCount: 60,
	})
	testutil.CreateTutor(t, e.users, e.tutors, "Expensive", "expensive@test.com", testutil.TutorOpts{
		Subjects: []string{"Mathematics"}, HourlyRate: 90, Rating: 5,
	})
	testutil.CreateTutor(t, e.users, e.tutors, "Inactive", "inactive@test.com", testutil.TutorOpts{
		Subjects: []string{"Mathematics"}, HourlyRate: 10, Inactive: true,
	})
	testutil.CreateTutor(t, e.users, e.tutors, "Chemist", "chemist@test.com", testutil.TutorOpts{
		Subjects: []string{"Chemistry"}, HourlyRate: 10,
	})

	e.run(t, []httpTest{
		{
			name: "subject & budget required", method: http.MethodPost, path: "/api/tutors/search", body: []byte("{}"),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "budget must be positive", method: http.MethodPost, path: "/api/tutors/search",
			body: []byte(`{"subject": "Mathematics", "budget_per_hour": -5}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "no match", method: http.MethodPost, path: "/api/tutors/search",
			body:     []byte(`{"subject": "History", "budget_per_hour": 50}`),
			wantData: marchallObj(t, tutor.SearchResult{Tutors: []tutor.Match{}}),
		},
	})

	t.Run("ranked matches", func(t *testing.T) {
		rec := e.do(http.MethodPost, "/api/tutors/search", "", []byte(`{"subject": " Mathematics ", "budget_per_hour": 50}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res tutor.SearchResult
		decode(t, rec, &res)
		assert.Equal(t, 2, res.TotalFound)
		require.Len(t, res.Tutors, 2)

		ids := []string{res.Tutors[0].ID, res.Tutors[1].ID}
		assert.ElementsMatch(t, []string{cheap.ID, rated.ID}, ids)
		assert.GreaterOrEqual(t, res.Tutors[0].MatchScore, res.Tutors[1].MatchScore)
		for _, m := range res.Tutors {
			if m.ID == cheap.ID {
				require.Len(t, m.AvailableSlots, 1)
				assert.True(t, slot.Equal(m.AvailableSlots[0].Slot))
			}
		}
	})
}

func Test_tutorApi_list(t *testing.T) {
	e := setup(t)
	_, bronze := testutil.CreateTutor(t, e.users, e.tutors, "Baraka Otieno", "baraka@test.com", testutil.TutorOpts{Rating: 4.1, ReviewsCount: 5})
	_, gold := testutil.CreateTutor(t, e.users, e.tutors, "Neema Mushi", "neema@test.com", testutil.TutorOpts{Rating: 4.9, ReviewsCount: 60})
	testutil.CreateTutor(t, e.users, e.tutors, "Inactive", "inactive@test.com", testutil.TutorOpts{Inactive: true})

	rec := e.do(http.MethodGet, "/api/tutors", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res TutorListResponse
	decode(t, rec, &res)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Tutors, 2)

	// best rated first
	assert.Equal(t, gold.ID, res.Tutors[0].ID)
	require.NotNil(t, res.Tutors[0].Badge)
	assert.Equal(t, tutor.BadgeGold, *res.Tutors[0].Badge)
	assert.Equal(t, bronze.ID, res.Tutors[1].ID)
	require.NotNil(t, res.Tutors[1].Badge)
	assert.Equal(t, tutor.BadgeBronze, *res.Tutors[1].Badge)
}

func Test_tutorApi_retrieve(t *testing.T) {
	e := setup(t)
	past := time.Now().Add(-48 * time.Hour).Truncate(time.Hour).UTC()
	future := time.Now().Add(48 * time.Hour).Truncate(time.Hour).UTC()
	_, tut := testutil.CreateTutor(t, e.users, e.tutors, "Baraka Otieno", "baraka@test.com", testutil.TutorOpts{
		HourlyRate: 25, Slots: []time.Time{past, future},
	})

	e.run(t, []httpTest{
		{
			name: "unknown tutor", path: "/api/tutors/lol",
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "tutor not found"}),
		},
	})

	rec := e.do(http.MethodGet, "/api/tutors/"+tut.ID, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res tutor.Detail
	decode(t, rec, &res)
	assert.Equal(t, tut.ID, res.ID)
	assert.Equal(t, 25.0, res.HourlyRate)
	require.Len(t, res.AvailableSlots, 1)
	assert.True(t, future.Equal(res.AvailableSlots[0].Slot))
}

func Test_tutorApi_addAvailability(t *testing.T) {
	e := setup(t)
	student := testutil.CreateStudent(t, e.users, e.students, "Amina Said", "amina@test.com")
	tutUsr, tut := testutil.CreateTutor(t, e.users, e.tutors, "Baraka Otieno", "baraka@test.com", testutil.TutorOpts{})
	token := e.getToken(t, tutUsr, tut.ID)

	s1 := time.Now().Add(24 * time.Hour).Truncate(time.Hour).UTC()
	s2 := s1.Add(2 * time.Hour)

	e.run(t, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/api/tutors/me/availability", wantCode: http.StatusUnauthorized},
		{
			name: "tutors only", method: http.MethodPost, path: "/api/tutors/me/availability", token: e.getToken(t, student),
			body: marchallObj(t, tutor.NewSlots{TimeSlots: []time.Time{s1}}), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "insufficient permissions"}),
		},
		{
			name: "slots required", method: http.MethodPost, path: "/api/tutors/me/availability", token: token,
			body: []byte(`{"time_slots": []}`), wantCode: http.StatusBadRequest,
		},
	})

	rec := e.do(http.MethodPost, "/api/tutors/me/availability", token, marchallObj(t, tutor.NewSlots{TimeSlots: []time.Time{s1, s2}}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res tutor.Detail
	decode(t, rec, &res)
	require.Len(t, res.AvailableSlots, 2)
	assert.True(t, s1.Equal(res.AvailableSlots[0].Slot))
	assert.True(t, s2.Equal(res.AvailableSlots[1].Slot))
}
