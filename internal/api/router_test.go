package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-tracker/internal/artifacts"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/importer"
	"github.com/dvloznov/budget-tracker/internal/jobs"
	"github.com/dvloznov/budget-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/budget-tracker/internal/ledger"
	"github.com/dvloznov/budget-tracker/internal/predictor"
	"github.com/dvloznov/budget-tracker/internal/store"
)

type testServer struct {
	handler http.Handler
	store   *store.MemoryStore
	jobs    *inmemory.Store
	queue   *inmemory.Queue
}

func newTestServer(t *testing.T, autoRetrain bool) *testServer {
	t.Helper()
	log := zerolog.Nop()
	st := store.NewMemoryStore()
	pred := predictor.New(st, artifacts.NewLocalStore(t.TempDir()), predictor.Options{Trees: 10, Seed: 3}, log)

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(8, 1, jobStore, log)
	queue.SetRetryBackoff(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, queue.Start(ctx, pred.HandleTrainJob))
	t.Cleanup(func() {
		cancel()
		_ = queue.Stop(context.Background())
	})

	h := NewRouter(Deps{
		Ledger:      ledger.New(st, log),
		Importer:    importer.New(st, log),
		Predictor:   pred,
		Publisher:   queue,
		JobStore:    jobStore,
		AutoRetrain: autoRetrain,
		Log:         log,
	})
	return &testServer{handler: h, store: st, jobs: jobStore, queue: queue}
}

func (s *testServer) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(t *testing.T, csv string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "transactions.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-transactions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Backend running", decode[map[string]string](t, rec)["status"])
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestPreflightAndUnknownRoutes(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodOptions, "/add-transaction", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/add-transaction", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTransactionLifecycle(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/add-transaction", map[string]interface{}{
		"date": "2024-03-01", "category": "Food", "amount": -12.5, "paymentMethod": "Card",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "success", decode[map[string]string](t, rec)["status"])

	rec = s.do(t, http.MethodGet, "/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ledger.TransactionView](t, rec)
	require.Len(t, list, 1)
	require.Equal(t, 12.5, list[0].Amount)
	require.Equal(t, domain.TypeExpense, list[0].Type)
	id := list[0].ID
	require.NotEmpty(t, id)

	rec = s.do(t, http.MethodGet, "/transactions?contract=v1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "_id")

	rec = s.do(t, http.MethodGet, "/transactions?contract=v9", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/update-transaction", map[string]interface{}{
		"_id": id, "date": "2024-03-02", "category": "Food", "amount": 20,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "updated", decode[map[string]string](t, rec)["status"])

	rec = s.do(t, http.MethodGet, "/transactions", nil)
	list = decode[[]ledger.TransactionView](t, rec)
	require.Equal(t, 20.0, list[0].Amount)
	require.Equal(t, "2024-03-02", list[0].Date)

	rec = s.do(t, http.MethodDelete, "/delete-transaction/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "deleted", decode[map[string]string](t, rec)["status"])

	rec = s.do(t, http.MethodGet, "/transactions", nil)
	require.Empty(t, decode[[]ledger.TransactionView](t, rec))
}

func TestUpdateTransactionErrors(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPut, "/update-transaction", map[string]interface{}{"category": "Food"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, map[string]string{"error": "Transaction ID required"}, decode[map[string]string](t, rec))

	rec = s.do(t, http.MethodPut, "/update-transaction", map[string]interface{}{"_id": "xyz"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/update-transaction", map[string]interface{}{"_id": "65a1b2c3d4e5f60718293a4b"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPut, "/update-transaction", strings.NewReader("{not json"))
	out := httptest.NewRecorder()
	s.handler.ServeHTTP(out, req)
	require.Equal(t, http.StatusBadRequest, out.Code)
}

func TestDeleteUnknownTransaction(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodDelete, "/delete-transaction/65a1b2c3d4e5f60718293a4b", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "deleted", decode[map[string]string](t, rec)["status"])

	rec = s.do(t, http.MethodDelete, "/delete-transaction/not-an-id", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadAndExport(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.upload(t, "Date,Category,Description,PaymentMethod,Amount\n"+
		"2024-01-02,Food,Lunch,Card,£12.50\n"+
		"2024-01-03,Salary,Pay,Transfer,3000\n"+
		"2024-01-04,Transport,Bus,Cash,abc\n")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, decode[map[string]int](t, rec)["inserted"])

	txns, err := s.store.ListTransactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txns, 3)
	require.Equal(t, domain.TypeIncome, txns[1].Type)
	require.Equal(t, 0.0, txns[2].Amount)

	rec = s.do(t, http.MethodGet, "/transactions/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "date,category,description,paymentMethod,amount,type,isFestival", lines[0])
	require.Equal(t, "2024-01-02,Food,Lunch,Card,12.5,expense,false", lines[1])
}

func TestUploadErrors(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/upload-transactions", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.upload(t, "date,category,amount\n2024-01-01,\"Food,10\n")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.upload(t, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, decode[map[string]int](t, rec)["inserted"])
}

func TestUploadEnqueuesRetrain(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.upload(t, "date,category,amount\n2024-01-01,Food,10\n2024-01-06,Food,30\n")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		list, err := s.jobs.ListJobs(context.Background(), jobs.JobFilter{Trigger: jobs.TriggerUpload})
		return err == nil && len(list) == 1 && list[0].Status == jobs.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBudgetFoodExample(t *testing.T) {
	s := newTestServer(t, false)
	future := time.Now().AddDate(1, 0, 0).UTC().Format("2006-01-02")

	rec := s.do(t, http.MethodPost, "/add-transaction", map[string]interface{}{
		"date": "2024-05-01", "category": "Food", "amount": 50, "type": "expense",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, "/add-transaction", map[string]interface{}{
		"date": "2024-05-01", "category": "Rent", "amount": 900, "type": "expense",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/add-budget", map[string]interface{}{
		"category": "Food", "budget": 200, "type": "expense", "validTill": future,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/budgets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	views := decode[[]domain.BudgetView](t, rec)
	require.Len(t, views, 1)
	require.Equal(t, 50.0, views[0].Spent)
	require.False(t, views[0].Expired)
	require.Equal(t, 200.0, views[0].Budget)

	rec = s.do(t, http.MethodPut, "/update-budget", map[string]interface{}{
		"_id": views[0].ID, "category": "Food", "budget": "150", "validTill": "2000-01-01",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/budgets", nil)
	views = decode[[]domain.BudgetView](t, rec)
	require.Equal(t, 150.0, views[0].Budget)
	require.True(t, views[0].Expired)

	rec = s.do(t, http.MethodDelete, "/delete-budget/"+views[0].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/budgets", nil)
	require.Empty(t, decode[[]domain.BudgetView](t, rec))

	txns, err := s.store.ListTransactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txns, 2, "deleting a budget leaves transactions alone")
}

func TestBudgetValidation(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/add-budget", map[string]interface{}{"budget": 10})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "category is required", decode[map[string]string](t, rec)["error"])

	rec = s.do(t, http.MethodPost, "/add-budget", map[string]interface{}{"category": "Food"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/add-budget", map[string]interface{}{"category": "Food", "budget": "lots"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/update-budget", map[string]interface{}{"category": "Food", "budget": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Budget ID required", decode[map[string]string](t, rec)["error"])
}

func TestSummary(t *testing.T) {
	s := newTestServer(t, false)
	for _, body := range []map[string]interface{}{
		{"date": "2024-01-10", "category": "Salary", "amount": 1000, "type": "income"},
		{"date": "2024-01-11", "category": "Food", "amount": 0.1},
		{"date": "2024-02-11", "category": "Food", "amount": 0.2},
	} {
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/add-transaction", body).Code)
	}

	rec := s.do(t, http.MethodGet, "/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sum struct {
		TotalIncome  float64 `json:"totalIncome"`
		TotalExpense float64 `json:"totalExpense"`
		Savings      float64 `json:"savings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	require.Equal(t, 1000.0, sum.TotalIncome)
	require.Equal(t, 0.3, sum.TotalExpense)
	require.Equal(t, 999.7, sum.Savings)
}

func TestTrainAndPredict(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/predict?category_type=Food&day_of_week=0&month=1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/train-model", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]string{"error": "No data in database"}, decode[map[string]string](t, rec))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var txns []*domain.Transaction
	for d := 0; d < 28; d++ {
		txns = append(txns, &domain.Transaction{
			Date: start.AddDate(0, 0, d).Format("2006-01-02"), Category: "Transport", Amount: 5, Type: domain.TypeExpense,
		})
	}
	require.NoError(t, s.store.InsertTransactions(context.Background(), txns))

	rec = s.do(t, http.MethodPost, "/train-model", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Model trained successfully!", decode[map[string]string](t, rec)["message"])

	rec = s.do(t, http.MethodPost, "/predict?category=Transport&day_of_week=2&month=1&is_weekend=0&is_festival=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5.0, decode[map[string]float64](t, rec)["predicted_amount"])

	rec = s.do(t, http.MethodPost, "/predict?category_type=Jewellery&day_of_week=2&month=1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictBadParams(t *testing.T) {
	s := newTestServer(t, false)

	for _, q := range []string{
		"",
		"?category_type=Food&month=1",
		"?category_type=Food&day_of_week=7&month=1",
		"?category_type=Food&day_of_week=1&month=13",
		"?category_type=Food&day_of_week=x&month=2",
	} {
		rec := s.do(t, http.MethodPost, "/predict"+q, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestAsyncTrainConcurrent(t *testing.T) {
	s := newTestServer(t, false)

	const n = 50
	type result struct {
		code int
		body map[string]string
	}
	results := make(chan result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/train-model?async=true", nil)
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)
			var body map[string]string
			_ = json.Unmarshal(rec.Body.Bytes(), &body)
			results <- result{code: rec.Code, body: body}
		}()
	}
	wg.Wait()
	close(results)

	ids := make(map[string]bool, n)
	for r := range results {
		require.Equal(t, http.StatusAccepted, r.code)
		require.Equal(t, string(jobs.JobStatusPending), r.body["status"])
		ids[r.body["job_id"]] = true
	}
	require.Len(t, ids, n)

	require.Eventually(t, func() bool {
		list, err := s.jobs.ListJobs(context.Background(), jobs.JobFilter{Status: jobs.JobStatusFailed})
		return err == nil && len(list) == n
	}, 5*time.Second, 10*time.Millisecond)
}

func TestAsyncTrainAndJobs(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/train-model?async=true", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	accepted := decode[map[string]string](t, rec)
	id := accepted["job_id"]
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		rec := s.do(t, http.MethodGet, "/jobs/"+id, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		return decode[jobs.TrainModelJob](t, rec).Status == jobs.JobStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	rec = s.do(t, http.MethodGet, "/jobs/"+id, nil)
	job := decode[jobs.TrainModelJob](t, rec)
	require.Zero(t, job.RetryCount, "no data is not retried")

	rec = s.do(t, http.MethodGet, "/jobs?trigger=api", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Jobs  []jobs.TrainModelJob `json:"jobs"`
		Count int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)

	rec = s.do(t, http.MethodGet, "/jobs/unknown", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
