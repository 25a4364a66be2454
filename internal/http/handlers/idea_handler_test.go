package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cjdportal/go-ideas-backend/internal/domain"
	"github.com/cjdportal/go-ideas-backend/internal/repo"
	"github.com/cjdportal/go-ideas-backend/internal/services"
)

// ---------- test DB + repo shim ----------

func newIdeaDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:idea_handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(&domain.Idea{}, &domain.Vote{}, &domain.Member{}, &domain.MemberActivity{}, &domain.VoteReceipt{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Minimal shim implementing services.IdeaRepo using repo package (like router.go)
type testIdeaRepo struct{}

func (testIdeaRepo) CreateIdea(ctx context.Context, db *gorm.DB, title, description, proposedBy, proposedByEmail string) (*domain.Idea, error) {
	return repo.CreateIdea(ctx, db, title, description, proposedBy, proposedByEmail)
}

func (testIdeaRepo) GetIdea(ctx context.Context, db *gorm.DB, id string) (*domain.Idea, error) {
	return repo.GetIdea(ctx, db, id)
}

func (testIdeaRepo) CountIdeas(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountIdeas(ctx, db)
}

func (testIdeaRepo) ListIdeasPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Idea, error) {
	return repo.ListIdeasPage(ctx, db, offset, limit)
}

func (testIdeaRepo) UpdateIdeaStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	return repo.UpdateIdeaStatus(ctx, db, id, status)
}

// ---------- tiny stubs for other services ----------

type stubVoteSvc struct {
	cast  func(context.Context, string, string, string, string) (*domain.Vote, bool, error)
	count func(context.Context, string) (int64, error)
}

func (s stubVoteSvc) Cast(ctx context.Context, ideaID, name, email, key string) (*domain.Vote, bool, error) {
	if s.cast != nil {
		return s.cast(ctx, ideaID, name, email, key)
	}
	return &domain.Vote{ID: "v", IdeaID: ideaID}, false, nil
}

func (s stubVoteSvc) Count(ctx context.Context, ideaID string) (int64, error) {
	if s.count != nil {
		return s.count(ctx, ideaID)
	}
	return 0, nil
}

type stubEngSvc struct {
	record func(context.Context, string, string, string, string, int64) (*domain.Member, *domain.MemberActivity, error)
	score  func(context.Context, string) (int64, error)
}

func (s stubEngSvc) Record(ctx context.Context, email, name, typ, ref string, impact int64) (*domain.Member, *domain.MemberActivity, error) {
	if s.record != nil {
		return s.record(ctx, email, name, typ, ref, impact)
	}
	return &domain.Member{Email: email, Score: impact}, &domain.MemberActivity{Type: typ}, nil
}

func (s stubEngSvc) Score(ctx context.Context, email string) (int64, error) {
	if s.score != nil {
		return s.score(ctx, email)
	}
	return 0, nil
}

func (s stubEngSvc) ImpactFor(activityType string) int64 {
	return services.DefaultImpacts()[activityType]
}

// Flexible idea service stub for error-path tests
type stubIdeaSvc struct {
	propose      func(context.Context, string, string, string, string) (*domain.Idea, error)
	get          func(context.Context, string) (*domain.Idea, error)
	listPage     func(context.Context, int, int) ([]domain.Idea, int64, error)
	updateStatus func(context.Context, string, string) error
}

func (s stubIdeaSvc) Propose(ctx context.Context, title, desc, by, email string) (*domain.Idea, error) {
	if s.propose != nil {
		return s.propose(ctx, title, desc, by, email)
	}
	return &domain.Idea{ID: uuid.NewString(), Title: title}, nil
}

func (s stubIdeaSvc) Get(ctx context.Context, id string) (*domain.Idea, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return &domain.Idea{ID: id}, nil
}

func (s stubIdeaSvc) ListPage(ctx context.Context, page, pageSize int) ([]domain.Idea, int64, error) {
	if s.listPage != nil {
		return s.listPage(ctx, page, pageSize)
	}
	return nil, 0, nil
}

func (s stubIdeaSvc) UpdateStatus(ctx context.Context, id, status string) error {
	if s.updateStatus != nil {
		return s.updateStatus(ctx, id, status)
	}
	return nil
}

// ---------- helpers-only tests ----------

func Test_clampPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?page=-5&page_size=9999", nil)
	p, ps := clampPagination(c)
	if p != 1 || ps != 100 {
		t.Fatalf("clamp bounds got p=%d ps=%d", p, ps)
	}

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?page=&page_size=0", nil)
	p, ps = clampPagination(c)
	if p != 1 || ps != 1 {
		t.Fatalf("clamp defaults got p=%d ps=%d", p, ps)
	}

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	p, ps = clampPagination(c)
	if p != 1 || ps != 20 {
		t.Fatalf("clamp empty got p=%d ps=%d", p, ps)
	}
}

// ---------- ProposeIdea ----------

func TestProposeIdea_BadJSON_Success_Internal(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Bad JSON -> 400
	{
		h := New(stubIdeaSvc{}, stubVoteSvc{}, stubEngSvc{})
		r := gin.New()
		r.POST("/ideas", h.ProposeIdea)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/ideas", bytes.NewBufferString("{bad"))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("bad json -> %d", w.Code)
		}
	}

	// Success -> 201 with real service
	{
		db := newIdeaDB(t)
		svc := services.NewIdeaService(db, testIdeaRepo{}, nil)
		h := New(svc, stubVoteSvc{}, stubEngSvc{})
		r := gin.New()
		r.POST("/ideas", h.ProposeIdea)

		// Padded, mixed-case email: trimmed and lowercased before validation.
		body, _ := json.Marshal(ProposeIdeaRequest{
			Title:           "Community garden",
			Description:     "A shared plot",
			ProposedBy:      "jean dupont",
			ProposedByEmail: "  Jean@Test.COM ",
		})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/ideas", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("create -> %d body=%s", w.Code, w.Body.String())
		}
		var created domain.Idea
		if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		if created.Status != domain.StatusPending || created.ProposedByEmail != "jean@test.com" {
			t.Fatalf("unexpected idea: %+v", created)
		}
	}

	// Service error -> 500 with create_failed code
	{
		h := New(stubIdeaSvc{propose: func(context.Context, string, string, string, string) (*domain.Idea, error) {
			return nil, errors.New("db down")
		}}, stubVoteSvc{}, stubEngSvc{})
		r := gin.New()
		r.POST("/ideas", h.ProposeIdea)

		body, _ := json.Marshal(ProposeIdeaRequest{Title: "abc", ProposedBy: "Jean", ProposedByEmail: "j@t.com"})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/ideas", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("internal -> %d", w.Code)
		}
		var er ErrorResponse
		_ = json.Unmarshal(w.Body.Bytes(), &er)
		if er.Code != ErrCodeCreateFailed {
			t.Fatalf("code = %q", er.Code)
		}
	}
}

func TestProposeIdea_ValidationErrorsAre400(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newIdeaDB(t)
	svc := services.NewIdeaService(db, testIdeaRepo{}, nil)
	h := New(svc, stubVoteSvc{}, stubEngSvc{})
	r := gin.New()
	r.POST("/ideas", h.ProposeIdea)

	// Single-label domain: the service rejects it even when the binder does not.
	body := []byte(`{"title":"abc","proposed_by":"Jean","proposed_by_email":"a@b"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ideas", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("validation -> %d", w.Code)
	}
}

// ---------- ListIdeas ----------

func TestListIdeas_Pagination_And_ETag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newIdeaDB(t)
	svc := services.NewIdeaService(db, testIdeaRepo{}, nil)
	h := New(svc, stubVoteSvc{}, stubEngSvc{})
	h.ListStats = func(ctx context.Context) (int64, int64, *time.Time, error) {
		return repo.IdeasStats(ctx, db)
	}
	r := gin.New()
	r.GET("/ideas", h.ListIdeas)

	ctx := context.Background()
	for n := 0; n < 3; n++ {
		if _, err := svc.Propose(ctx, fmt.Sprintf("Idea number %d", n), "", "Ana", fmt.Sprintf("a%d@t.com", n)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ideas?page=1&page_size=2", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d", w.Code)
	}

	var resp ListIdeasResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(resp.Ideas) != 2 || resp.Pagination.Total != 3 || !resp.Pagination.HasNext {
		t.Fatalf("unexpected page: %+v", resp.Pagination)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}

	// Same ETag replayed -> 304
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/ideas?page=1&page_size=2", nil)
	req2.Header.Set("If-None-Match", etag)
	r.ServeHTTP(w2, req2)
	if w2.Code != http.StatusNotModified {
		t.Fatalf("etag replay -> %d", w2.Code)
	}

	// A new vote must invalidate the ETag even though no idea row changed.
	var first domain.Idea
	if err := db.First(&first).Error; err != nil {
		t.Fatalf("load idea: %v", err)
	}
	if _, err := repo.CreateVote(ctx, db, first.ID, "V", "v@t.com"); err != nil {
		t.Fatalf("vote: %v", err)
	}
	w3 := httptest.NewRecorder()
	req3 := httptest.NewRequest(http.MethodGet, "/ideas?page=1&page_size=2", nil)
	req3.Header.Set("If-None-Match", etag)
	r.ServeHTTP(w3, req3)
	if w3.Code != http.StatusOK {
		t.Fatalf("stale etag after vote -> %d; want 200", w3.Code)
	}
}

func TestListIdeas_NoStatsLookup_NoETag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newIdeaDB(t)
	svc := services.NewIdeaService(db, testIdeaRepo{}, nil)
	h := New(svc, stubVoteSvc{}, stubEngSvc{})
	r := gin.New()
	r.GET("/ideas", h.ListIdeas)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ideas", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d", w.Code)
	}
	if etag := w.Header().Get("ETag"); etag != "" {
		t.Fatalf("ETag without a stats lookup: %q", etag)
	}
}

func TestListIdeas_ServiceError500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(stubIdeaSvc{listPage: func(context.Context, int, int) ([]domain.Idea, int64, error) {
		return nil, 0, errors.New("boom")
	}}, stubVoteSvc{}, stubEngSvc{})
	r := gin.New()
	r.GET("/ideas", h.ListIdeas)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ideas", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("list error -> %d", w.Code)
	}
	var er ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &er)
	if er.Code != ErrCodeListFailed {
		t.Fatalf("code = %q", er.Code)
	}
}

// ---------- GetIdea ----------

func TestGetIdea_BadID_NotFound_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newIdeaDB(t)
	svc := services.NewIdeaService(db, testIdeaRepo{}, nil)
	h := New(svc, stubVoteSvc{}, stubEngSvc{})
	r := gin.New()
	r.GET("/ideas/:id", h.GetIdea)

	// Not a UUID -> 400
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ideas/not-a-uuid", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id -> %d", w.Code)
	}

	// Unknown UUID -> 404
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ideas/"+uuid.NewString(), nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing -> %d", w.Code)
	}

	// Existing -> 200 with vote count
	idea, err := svc.Propose(context.Background(), "Valid title", "", "Ana", "ana@t.com")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.CreateVote(context.Background(), db, idea.ID, "V", "v@t.com"); err != nil {
		t.Fatalf("vote: %v", err)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ideas/"+idea.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get -> %d", w.Code)
	}
	var got domain.Idea
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if got.VoteCount != 1 {
		t.Fatalf("vote_count = %d; want 1", got.VoteCount)
	}
}

// ---------- UpdateIdeaStatus ----------

func TestUpdateIdeaStatus_Flows(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newIdeaDB(t)
	svc := services.NewIdeaService(db, testIdeaRepo{}, nil)
	h := New(svc, stubVoteSvc{}, stubEngSvc{})
	r := gin.New()
	r.PUT("/ideas/:id/status", h.UpdateIdeaStatus)

	idea, err := svc.Propose(context.Background(), "Valid title", "", "Ana", "ana@t.com")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	put := func(id, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/ideas/"+id+"/status", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	if w := put("not-a-uuid", `{"status":"approved"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id -> %d", w.Code)
	}
	if w := put(idea.ID, `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing status -> %d", w.Code)
	}
	if w := put(idea.ID, `{"status":"archived"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown status -> %d", w.Code)
	}
	if w := put(uuid.NewString(), `{"status":"approved"}`); w.Code != http.StatusNotFound {
		t.Fatalf("missing idea -> %d", w.Code)
	}
	if w := put(idea.ID, `{"status":"approved"}`); w.Code != http.StatusNoContent {
		t.Fatalf("valid transition -> %d", w.Code)
	}

	got, err := svc.Get(context.Background(), idea.ID)
	if err != nil || got.Status != domain.StatusApproved {
		t.Fatalf("status after PUT = %q err=%v", got.Status, err)
	}
}
