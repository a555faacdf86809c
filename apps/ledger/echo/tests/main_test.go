package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/trezcool/darasa/apps/ledger/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/change"
	"github.com/trezcool/darasa/core/record"
	"github.com/trezcool/darasa/storage/database/dummy"
	"github.com/trezcool/darasa/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	app     Server
	conf    *core.Config
	crRepo  change.Repository
	recRepo record.Repository
}

func setup(t *testing.T) *testApp {
	t.Helper()

	conf := &core.Config{
		AppName:  "Darasa",
		TestMode: true,
		SecretKey: "s3cr3t-t3st-k3y",
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
		Ledger:    core.LedgerConfig{AdminUsername: "admin"},
	}

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	crRepo := dummydb.NewChangeRequestRepository(db)
	recRepo := dummydb.NewRecordRepository(db)

	logger := testutil.NopLogger{}
	reviewSvc := change.NewReviewService(crRepo, record.NewWriter(recRepo), logger)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	change.InitValidators(validate, translator)

	submitSvc := change.NewService(
		reviewSvc,
		record.NewObjectSource(record.NewRepositoryStore(recRepo)),
		validate,
		logger,
	)

	app := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		ReviewSvc:      reviewSvc,
		SubmitSvc:      submitSvc,
		RecordRepo:     recRepo,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	return &testApp{app: app, conf: conf, crRepo: crRepo, recRepo: recRepo}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func (ta *testApp) adminToken(t *testing.T) string {
	return ta.token(t, "admin", true)
}

func (ta *testApp) editorToken(t *testing.T) string {
	return ta.token(t, "mwalimu", false)
}

func (ta *testApp) token(t *testing.T, username string, isAdmin bool) string {
	t.Helper()
	token, err := core.GenerateToken(username, "", isAdmin, ta.conf)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}
	return token
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

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
