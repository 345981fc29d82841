package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/mwalimu/apps/api/echo"
	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/booking"
	"github.com/trezcool/mwalimu/core/chat"
	"github.com/trezcool/mwalimu/core/feedback"
	"github.com/trezcool/mwalimu/core/resource"
	"github.com/trezcool/mwalimu/core/stats"
	"github.com/trezcool/mwalimu/core/student"
	"github.com/trezcool/mwalimu/core/tutor"
	"github.com/trezcool/mwalimu/core/user"
	emailsvc "github.com/trezcool/mwalimu/services/email"
	logsvc "github.com/trezcool/mwalimu/services/logger"
	metricsvc "github.com/trezcool/mwalimu/services/metrics"
	realtimesvc "github.com/trezcool/mwalimu/services/realtime"
	"github.com/trezcool/mwalimu/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// env is a Server wired to a fresh in-memory database.
type env struct {
	app      Server
	conf     *core.Config
	db       *inmemdb.DB
	users    user.Repository
	tutors   tutor.Repository
	students student.Repository
	bookings booking.Repository
	mailbox  *emailsvc.ConsoleService
	hub      *realtimesvc.Hub
	metrics  *metricsvc.Metrics
}

func setup(t *testing.T, configure ...func(conf *core.Config)) *env {
	t.Helper()
	conf := core.NewTestConfig()
	conf.UploadDir = t.TempDir()
	for _, fn := range configure {
		fn(conf)
	}
	logger := logsvc.NewTestLogger()
	core.ParseEmailTemplates(conf, logger)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up DB & repos
	db := inmemdb.Open()
	e := &env{
		conf:     conf,
		db:       db,
		users:    inmemdb.NewUserRepository(db),
		tutors:   inmemdb.NewTutorRepository(db),
		students: inmemdb.NewStudentRepository(db),
		bookings: inmemdb.NewBookingRepository(db),
		mailbox:  emailsvc.NewConsoleServiceMock(conf, logger),
		metrics:  metricsvc.New(),
	}
	e.hub = realtimesvc.NewHub(logger, e.metrics)

	// set up services
	usrSvc := user.NewServiceMock(e.users, e.mailbox, conf)
	tutorSvc := tutor.NewService(e.tutors)
	studentSvc := student.NewService(e.students)
	bookingSvc := booking.NewService(booking.Deps{
		Repo:        e.bookings,
		Tutors:      tutorSvc,
		Users:       usrSvc,
		Broadcaster: e.hub,
		MailSvc:     e.mailbox,
		Logger:      logger,
		Recorder:    e.metrics,
	})
	chatSvc := chat.NewService(inmemdb.NewMessageRepository(db), bookingSvc, e.hub)
	feedbackSvc := feedback.NewService(inmemdb.NewFeedbackRepository(db), bookingSvc, tutorSvc, usrSvc)

	// set up server
	e.app = NewServer(ServerDeps{
		Conf:        conf,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
		UserSvc:     usrSvc,
		TutorSvc:    tutorSvc,
		StudentSvc:  studentSvc,
		BookingSvc:  bookingSvc,
		ChatSvc:     chatSvc,
		FeedbackSvc: feedbackSvc,
		ResourceSvc: resource.NewService(inmemdb.NewResourceRepository(db), tutorSvc),
		StatsSvc: stats.NewService(stats.Deps{
			Bookings: bookingSvc,
			Tutors:   tutorSvc,
			Students: studentSvc,
			Users:    usrSvc,
			Outcomes: feedbackSvc,
		}),
		Hub:           e.hub,
		BookingEvents: realtimesvc.NewBookingEvents(e.hub, bookingSvc, chatSvc, logger),
		Metrics:       e.metrics,
	})
	t.Cleanup(func() { _ = e.app.Close() })
	return e
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// do serves one request and returns its recorder.
func (e *env) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	e.app.ServeHTTP(rec, req)
	return rec
}

// run serves every httpTest, in order, and checks their code & data.
func (e *env) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.method == "" {
				tt.method = http.MethodGet
			}
			if tt.wantCode == 0 {
				tt.wantCode = http.StatusOK
			}
			rec := e.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func (e *env) getToken(t *testing.T, usr user.User, tutorID ...string) string {
	t.Helper()
	var tid string
	if len(tutorID) > 0 {
		tid = tutorID[0]
	}
	token, err := GenerateToken(e.conf, GetUserClaims(e.conf, usr, tid))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

// decode unmarshals the body of rec into obj.
func decode(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), obj), rec.Body.String())
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	if _, ok := j2.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %v", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
