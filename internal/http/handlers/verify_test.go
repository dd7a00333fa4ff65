package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/docshield/docshield-backend/internal/config"
	"github.com/docshield/docshield-backend/internal/domain"
	"github.com/docshield/docshield-backend/internal/platform/logger"
	"github.com/docshield/docshield-backend/internal/services"
	"github.com/docshield/docshield-backend/internal/token"
)

type memRepo struct {
	mu   sync.Mutex
	recs map[string]*domain.DocumentRecord
}

func newMemRepo() *memRepo {
	return &memRepo{recs: map[string]*domain.DocumentRecord{}}
}

func (m *memRepo) Upsert(ctx context.Context, rec *domain.DocumentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.DocID] = rec
	return nil
}

func (m *memRepo) FindByID(ctx context.Context, docID string) (*domain.DocumentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recs[docID], nil
}

func (m *memRepo) ListAll(ctx context.Context) ([]*domain.DocumentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.DocumentRecord, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r)
	}
	return out, nil
}

func (m *memRepo) Backend() string { return "memory" }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newVerifyRouter(t *testing.T, repo *memRepo) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	verifier := services.NewVerifierService(testLogger(t), repo, config.DefaultTuning())
	h := NewVerifyHandler(testLogger(t), verifier)
	r := gin.New()
	r.POST("/api/verify-id", h.VerifyByID)
	r.POST("/api/verify-upload", h.VerifyUpload)
	r.POST("/api/verify-with-image", h.VerifyWithImage)
	return r
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) domain.VerificationResult {
	t.Helper()
	var res domain.VerificationResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return res
}

func TestVerifyByIDEndpoint(t *testing.T) {
	repo := newMemRepo()
	rec := &domain.DocumentRecord{
		DocID: "DOC-1", HolderName: "Ada", DocType: "Diploma", IssueDate: "2026-01-15", FileHash: "f00d",
	}
	rec.BoundHash = token.MakeBoundHash(rec.DocID, rec.HolderName, rec.DocType, rec.IssueDate, rec.FileHash)
	repo.Upsert(context.Background(), rec)
	r := newVerifyRouter(t, repo)

	body := strings.NewReader(`{"doc_id": "DOC-1", "hash": "` + rec.BoundHash + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/verify-id", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	res := decodeResult(t, w)
	if !res.Valid || res.Verdict != domain.VerdictAuthentic {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestVerifyByIDEndpointMissingID(t *testing.T) {
	r := newVerifyRouter(t, newMemRepo())

	req := httptest.NewRequest(http.MethodPost, "/api/verify-id", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
	res := decodeResult(t, w)
	if res.Verdict != domain.VerdictNoID {
		t.Fatalf("unexpected verdict: %+v", res)
	}
}

func TestVerifyUploadEndpointMissingFile(t *testing.T) {
	r := newVerifyRouter(t, newMemRepo())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("physical", "false")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/verify-upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
	res := decodeResult(t, w)
	if res.Verdict != domain.VerdictNoFile {
		t.Fatalf("unexpected verdict: %+v", res)
	}
}

func TestVerifyWithImageEndpointReadsFileField(t *testing.T) {
	repo := newMemRepo()
	r := newVerifyRouter(t, repo)

	img := image.NewRGBA(image.Rect(0, 0, 120, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 120; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "frame.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	fw.Write(pngBuf.Bytes())
	mw.WriteField("doc_id", "DOC-404")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/verify-with-image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	res := decodeResult(t, w)
	if res.Verdict != domain.VerdictNotInRegistry {
		t.Fatalf("unexpected verdict: %+v", res)
	}
}

func TestVerifyWithImageEndpointMissingImage(t *testing.T) {
	r := newVerifyRouter(t, newMemRepo())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("doc_id", "DOC-1")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/verify-with-image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
	res := decodeResult(t, w)
	if res.Verdict != domain.VerdictNoImage {
		t.Fatalf("unexpected verdict: %+v", res)
	}
}

func TestVerifyUploadEndpoint(t *testing.T) {
	repo := newMemRepo()
	r := newVerifyRouter(t, repo)

	img := image.NewRGBA(image.Rect(0, 0, 120, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 120; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "doc.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	fw.Write(pngBuf.Bytes())
	mw.WriteField("doc_id", "DOC-404")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/verify-upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	res := decodeResult(t, w)
	if res.Verdict != domain.VerdictNotInRegistry {
		t.Fatalf("unexpected verdict: %+v", res)
	}
}
