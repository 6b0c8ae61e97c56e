package httpapi_test

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libraryops/lending-core-go/lending"
	"github.com/libraryops/lending-core-go/lending/httpapi"
	"github.com/libraryops/lending-core-go/lending/memoryengine"
)

func Test_CreateLoan_Created_AndCopyBecomesLoaned(t *testing.T) {
	// arrange
	server, _ := givenServer(t, time.Now)
	copyID := givenCopyViaAPI(t, server)
	borrowerID := uuid.New()

	// act
	status, body := doJSON(t, server, http.MethodPost, "/loans", map[string]any{
		"copyId":     copyID,
		"borrowerId": borrowerID.String(),
	})

	// assert
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, copyID, body["copyId"])
	assert.Equal(t, borrowerID.String(), body["borrowerId"])
	assert.NotEmpty(t, body["loanId"])

	statusCode, statusBody := doJSON(t, server, http.MethodGet, "/copies/"+copyID, nil)
	assert.Equal(t, http.StatusOK, statusCode)
	assert.Equal(t, string(lending.CopyStatusLoaned), statusBody["status"])
}

func Test_CreateLoan_Conflict_WhenCopyAlreadyLoaned(t *testing.T) {
	// arrange
	server, _ := givenServer(t, time.Now)
	copyID := givenCopyViaAPI(t, server)
	givenLoanViaAPI(t, server, copyID)

	// act
	status, body := doJSON(t, server, http.MethodPost, "/loans", map[string]any{
		"copyId":     copyID,
		"borrowerId": uuid.New().String(),
	})

	// assert
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, lending.ErrCopyUnavailable.Error(), body["error"])
}

func Test_CreateLoan_NotFound_WhenCopyUnknown(t *testing.T) {
	// arrange
	server, _ := givenServer(t, time.Now)

	// act
	status, body := doJSON(t, server, http.MethodPost, "/loans", map[string]any{
		"copyId":     uuid.New().String(),
		"borrowerId": uuid.New().String(),
	})

	// assert
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, lending.ErrCopyNotFound.Error(), body["error"])
}

func Test_CreateLoan_Forbidden_WhenBorrowerSanctioned(t *testing.T) {
	// arrange
	server, _ := givenServer(t, time.Now)
	copyID := givenCopyViaAPI(t, server)
	borrowerID := uuid.New()

	sanctionStatus, _ := doJSON(t, server, http.MethodPost, "/sanctions", map[string]any{
		"borrowerId":   borrowerID.String(),
		"reason":       "damaged returns",
		"durationDays": 14,
		"issuedBy":     uuid.New().String(),
	})
	require.Equal(t, http.StatusCreated, sanctionStatus)

	// act
	status, body := doJSON(t, server, http.MethodPost, "/loans", map[string]any{
		"copyId":     copyID,
		"borrowerId": borrowerID.String(),
	})

	// assert
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, lending.ErrBorrowerSanctioned.Error(), body["error"])

	// arrange - lifting the sanction unblocks the borrower
	removeStatus, _ := doJSON(t, server, http.MethodDelete, "/sanctions/"+borrowerID.String(), nil)
	require.Equal(t, http.StatusOK, removeStatus)

	// act
	status, _ = doJSON(t, server, http.MethodPost, "/loans", map[string]any{
		"copyId":     copyID,
		"borrowerId": borrowerID.String(),
	})

	// assert
	assert.Equal(t, http.StatusCreated, status)
}

func Test_CreateLoan_BadRequest_OnMalformedInput(t *testing.T) {
	// arrange
	server, _ := givenServer(t, time.Now)

	cases := []struct {
		name string
		body string
	}{
		{"broken json", `{"copyId":`},
		{"invalid ids", `{"copyId":"not-a-uuid","borrowerId":"also-not"}`},
		{"invalid date", fmt.Sprintf(`{"copyId":%q,"borrowerId":%q,"date":"yesterday"}`, uuid.New(), uuid.New())},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			request := httptest.NewRequest(http.MethodPost, "/loans", bytes.NewBufferString(tc.body))
			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, request)

			// assert
			assert.Equal(t, http.StatusBadRequest, recorder.Code)
		})
	}
}

func Test_ReturnLoan_OK_ThenConflictOnSecondReturn(t *testing.T) {
	// arrange
	server, _ := givenServer(t, time.Now)
	copyID := givenCopyViaAPI(t, server)
	loanID := givenLoanViaAPI(t, server, copyID)

	// act
	status, body := doJSON(t, server, http.MethodPut, "/loans/"+loanID+"/return", nil)

	// assert
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["returnedAt"])

	statusCode, statusBody := doJSON(t, server, http.MethodGet, "/copies/"+copyID, nil)
	assert.Equal(t, http.StatusOK, statusCode)
	assert.Equal(t, string(lending.CopyStatusFree), statusBody["status"])

	// act - a second return is rejected
	status, body = doJSON(t, server, http.MethodPut, "/loans/"+loanID+"/return", nil)

	// assert
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, lending.ErrLoanAlreadyReturned.Error(), body["error"])
}

func Test_ReturnLoan_NotFound_WhenLoanUnknown(t *testing.T) {
	// arrange
	server, _ := givenServer(t, time.Now)

	// act
	status, body := doJSON(t, server, http.MethodPut, "/loans/"+uuid.NewString()+"/return", nil)

	// assert
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, lending.ErrLoanNotFound.Error(), body["error"])
}

func Test_ActiveLoans_CarryDueStatus(t *testing.T) {
	// arrange
	today := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)
	server, _ := givenServer(t, func() time.Time { return today })
	copyID := givenCopyViaAPI(t, server)

	createStatus, _ := doJSON(t, server, http.MethodPost, "/loans", map[string]any{
		"copyId":     copyID,
		"borrowerId": uuid.New().String(),
		"date":       "2024-01-01T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, createStatus)

	// act
	request := httptest.NewRequest(http.MethodGet, "/loans/active", nil)
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, request)

	// assert
	assert.Equal(t, http.StatusOK, recorder.Code)

	var views []map[string]any
	require.NoError(t, jsoniter.ConfigFastest.Unmarshal(recorder.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, float64(6), views[0]["daysRemaining"])
	assert.Equal(t, string(lending.BandWarning), views[0]["band"])
}

func Test_OverdueLoans_ListsOnlyPassedDeadlines(t *testing.T) {
	// arrange
	today := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	server, _ := givenServer(t, func() time.Time { return today })

	overdueCopy := givenCopyViaAPI(t, server)
	freshCopy := givenCopyViaAPI(t, server)

	overdueStatus, overdueBody := doJSON(t, server, http.MethodPost, "/loans", map[string]any{
		"copyId":     overdueCopy,
		"borrowerId": uuid.New().String(),
		"date":       today.AddDate(0, 0, -40).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, overdueStatus)

	freshStatus, _ := doJSON(t, server, http.MethodPost, "/loans", map[string]any{
		"copyId":     freshCopy,
		"borrowerId": uuid.New().String(),
	})
	require.Equal(t, http.StatusCreated, freshStatus)

	// act
	request := httptest.NewRequest(http.MethodGet, "/loans/overdue", nil)
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, request)

	// assert
	assert.Equal(t, http.StatusOK, recorder.Code)

	var views []map[string]any
	require.NoError(t, jsoniter.ConfigFastest.Unmarshal(recorder.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, overdueBody["loanId"], views[0]["loanId"])
	assert.Equal(t, string(lending.BandOverdue), views[0]["band"])
}

func Test_AllLoans_FilterByBorrower(t *testing.T) {
	// arrange
	server, _ := givenServer(t, time.Now)
	borrowerID := uuid.New()

	firstCopy := givenCopyViaAPI(t, server)
	secondCopy := givenCopyViaAPI(t, server)

	firstStatus, _ := doJSON(t, server, http.MethodPost, "/loans", map[string]any{
		"copyId":     firstCopy,
		"borrowerId": borrowerID.String(),
	})
	require.Equal(t, http.StatusCreated, firstStatus)

	secondStatus, _ := doJSON(t, server, http.MethodPost, "/loans", map[string]any{
		"copyId":     secondCopy,
		"borrowerId": uuid.New().String(),
	})
	require.Equal(t, http.StatusCreated, secondStatus)

	// act
	request := httptest.NewRequest(http.MethodGet, "/loans?borrowerId="+borrowerID.String(), nil)
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, request)

	// assert
	assert.Equal(t, http.StatusOK, recorder.Code)

	var loans []map[string]any
	require.NoError(t, jsoniter.ConfigFastest.Unmarshal(recorder.Body.Bytes(), &loans))
	require.Len(t, loans, 1)
	assert.Equal(t, borrowerID.String(), loans[0]["borrowerId"])
}

func Test_CreateSanction_BadRequest_OnNonPositiveDuration(t *testing.T) {
	// arrange
	server, _ := givenServer(t, time.Now)

	// act
	status, _ := doJSON(t, server, http.MethodPost, "/sanctions", map[string]any{
		"borrowerId":   uuid.New().String(),
		"reason":       "late returns",
		"durationDays": 0,
		"issuedBy":     uuid.New().String(),
	})

	// assert
	assert.Equal(t, http.StatusBadRequest, status)
}

func Test_CopyStatus_NotFound_WhenCopyUnknown(t *testing.T) {
	// arrange
	server, _ := givenServer(t, time.Now)

	// act
	status, body := doJSON(t, server, http.MethodGet, "/copies/"+uuid.NewString(), nil)

	// assert
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, lending.ErrCopyNotFound.Error(), body["error"])
}

func Test_HealthEndpoints(t *testing.T) {
	// arrange
	server, _ := givenServer(t, time.Now)

	// act + assert
	for _, route := range []string{"/health/live", "/health/ready"} {
		status, body := doJSON(t, server, http.MethodGet, route, nil)
		assert.Equal(t, http.StatusOK, status, route)
		assert.Equal(t, "ok", body["status"], route)
	}
}

func givenServer(t *testing.T, clock func() time.Time) (http.Handler, *memoryengine.Store) {
	t.Helper()

	store := memoryengine.NewStore()

	service, err := lending.NewService(store, store, store, lending.WithClock(clock))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := httpapi.NewHandler(service, logger)
	health := httpapi.NewHealthHandler(nil)

	return httpapi.NewRouter(handler, health, logger), store
}

func givenCopyViaAPI(t *testing.T, server http.Handler) string {
	t.Helper()

	status, body := doJSON(t, server, http.MethodPost, "/copies", map[string]any{
		"bookId":        uuid.New().String(),
		"shelfLocation": "D-11-2",
	})
	require.Equal(t, http.StatusCreated, status)

	copyID, ok := body["copyId"].(string)
	require.True(t, ok)

	return copyID
}

func givenLoanViaAPI(t *testing.T, server http.Handler, copyID string) string {
	t.Helper()

	status, body := doJSON(t, server, http.MethodPost, "/loans", map[string]any{
		"copyId":     copyID,
		"borrowerId": uuid.New().String(),
	})
	require.Equal(t, http.StatusCreated, status)

	loanID, ok := body["loanId"].(string)
	require.True(t, ok)

	return loanID
}

func doJSON(t *testing.T, server http.Handler, method string, target string, payload map[string]any) (int, map[string]any) {
	t.Helper()

	var requestBody io.Reader

	if payload != nil {
		encoded, err := jsoniter.ConfigFastest.Marshal(payload)
		require.NoError(t, err)
		requestBody = bytes.NewReader(encoded)
	}

	request := httptest.NewRequest(method, target, requestBody)
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, request)

	body := make(map[string]any)
	if recorder.Body.Len() > 0 {
		_ = jsoniter.ConfigFastest.Unmarshal(recorder.Body.Bytes(), &body)
	}

	return recorder.Code, body
}
