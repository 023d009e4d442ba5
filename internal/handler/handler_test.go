package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/examprint/internal/model"
	"github.com/stemsi/examprint/internal/response"
	"github.com/stemsi/examprint/internal/service"
	"github.com/stemsi/examprint/internal/validator"
	ws "github.com/stemsi/examprint/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	os.Exit(m.Run())
}

// stubPrints answers every call with canned values and records the indexes
// it was asked to answer.
type stubPrints struct {
	mu       sync.Mutex
	print    *model.Print
	err      error
	answered []int
}

func (s *stubPrints) CreatePrint(_ context.Context, _ model.RequestContext, sessionID, userID int64) (*model.Print, error) {
	return s.print, s.err
}

func (s *stubPrints) StartOrResume(_ context.Context, _ model.RequestContext, _ int64) (*model.Print, error) {
	return s.print, s.err
}

func (s *stubPrints) GetOwnPrint(_ context.Context, _ model.RequestContext, _ int64) (*model.Print, error) {
	return s.print, s.err
}

func (s *stubPrints) AnswerQuestion(_ context.Context, _ model.RequestContext, _ int64, index int, answer string) (*service.AnswerResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	s.answered = append(s.answered, index)
	s.mu.Unlock()
	return &service.AnswerResult{
		Question:   model.PrintedQuestion{PrintID: s.print.ID, Index: index, Answer: answer},
		NotBlank:   1,
		Continuity: model.Continuity{SameSession: true, SameUserAgent: true},
	}, nil
}

func (s *stubPrints) Finish(_ context.Context, _ model.RequestContext, _ int64) (*model.Print, error) {
	if s.err != nil {
		return nil, s.err
	}
	p := *s.print
	p.Finished = true
	return &p, nil
}

func (s *stubPrints) Sheet(_ context.Context, p *model.Print) (*model.Sheet, error) {
	return &model.Sheet{PrintID: p.ID, SessionID: p.SessionID, Finished: p.Finished}, nil
}

func (s *stubPrints) indexes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.answered...)
}

func activePrint() *model.Print {
	return &model.Print{ID: 9, SessionID: 3, UserID: 200, StartTime: time.Now().UTC(), NumQsts: 2}
}

func newTestRouter(prints PrintFlow, exams *ExamHandler) *gin.Engine {
	r := gin.New()
	r.Use(response.RequestIDMiddleware())
	ph := NewPrintHandler(prints)
	wh := NewWSHandler(prints, zerolog.Nop(), nil)
	r.GET("/sessions/:sessionID/print", ph.StartOrResume)
	r.PUT("/sessions/:sessionID/print/answers/:index", ph.AnswerQuestion)
	r.POST("/sessions/:sessionID/print/finish", ph.Finish)
	r.GET("/sessions/:sessionID/print/ws", wh.AnswerStream)
	if exams != nil {
		r.POST("/exams", exams.CreateExam)
		r.PUT("/exams/:examID", exams.UpdateExam)
	}
	return r
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   response.ErrCode  `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func serve(t *testing.T, r *gin.Engine, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestAnswerQuestionIndexes(t *testing.T) {
	tests := []struct {
		name   string
		index  string
		status int
		want   []int
	}{
		{"first printed question", "0", http.StatusOK, []int{0}},
		{"later question", "3", http.StatusOK, []int{3}},
		{"negative", "-1", http.StatusBadRequest, nil},
		{"not a number", "first", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prints := &stubPrints{print: activePrint()}
			r := newTestRouter(prints, nil)

			status, env := serve(t, r, http.MethodPut, "/sessions/3/print/answers/"+tt.index, `{"answer":"1"}`)

			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.want, prints.indexes())
			if tt.status == http.StatusBadRequest {
				require.NotNil(t, env.Error)
				assert.Equal(t, response.ErrInvalidID, env.Error.Code)
				return
			}
			var got map[string]any
			require.NoError(t, json.Unmarshal(env.Data, &got))
			assert.EqualValues(t, tt.want[0], got["index"])
			assert.EqualValues(t, 1, got["num_questions_not_blank"])
		})
	}
}

func TestAnswerQuestionRejectsOversizedAnswer(t *testing.T) {
	prints := &stubPrints{print: activePrint()}
	r := newTestRouter(prints, nil)

	body := fmt.Sprintf(`{"answer":%q}`, strings.Repeat("9", 1025))
	status, env := serve(t, r, http.MethodPut, "/sessions/3/print/answers/0", body)

	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.ErrValidation, env.Error.Code)
	assert.Contains(t, env.Error.Fields, "answer")
	assert.Empty(t, prints.indexes())
}

func TestBadSessionIDNeverReachesService(t *testing.T) {
	prints := &stubPrints{err: fmt.Errorf("%w: should not be called", service.ErrInternal)}
	r := newTestRouter(prints, nil)

	status, env := serve(t, r, http.MethodGet, "/sessions/0/print", "")
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.ErrInvalidID, env.Error.Code)
}

func TestCreateExamValidation(t *testing.T) {
	// Binding fails before the catalog is touched.
	r := newTestRouter(&stubPrints{}, NewExamHandler(nil))

	status, env := serve(t, r, http.MethodPost, "/exams", `{"title":"","visibility":64}`)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.ErrValidation, env.Error.Code)
	assert.Contains(t, env.Error.Fields, "title")
	assert.Contains(t, env.Error.Fields, "visibility")

	status, env = serve(t, r, http.MethodPost, "/exams", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Fields, "detail")

	status, env = serve(t, r, http.MethodPut, "/exams/abc", `{"title":"Algebra"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.ErrInvalidID, env.Error.Code)
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   response.ErrCode
	}{
		{"session closed", service.ErrSessionClosed, http.StatusUnprocessableEntity, response.ErrSessionClosed},
		{"print not started", service.ErrPrintNotStarted, http.StatusUnprocessableEntity, response.ErrPrintNotStarted},
		{"group restricted", service.ErrGroupRestricted, http.StatusForbidden, response.ErrGroupRestricted},
		{"missing session", fmt.Errorf("%w: session", service.ErrNotFound), http.StatusNotFound, response.ErrNotFound},
		{"name conflict", &service.NameConflictError{Field: "title", Value: "Algebra"}, http.StatusConflict, response.ErrNameConflict},
		{"storage failure", fmt.Errorf("%w: list printed questions", service.ErrInternal), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&stubPrints{err: tt.err}, nil)

			status, env := serve(t, r, http.MethodGet, "/sessions/3/print", "")
			assert.Equal(t, tt.status, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			if tt.code == response.ErrNameConflict {
				assert.Contains(t, env.Error.Fields, "title")
			}
		})
	}
}

func TestFinishReturnsSheet(t *testing.T) {
	r := newTestRouter(&stubPrints{print: activePrint()}, nil)

	status, env := serve(t, r, http.MethodPost, "/sessions/3/print/finish", "")
	require.Equal(t, http.StatusOK, status)

	var sheet model.Sheet
	require.NoError(t, json.Unmarshal(env.Data, &sheet))
	assert.Equal(t, int64(9), sheet.PrintID)
	assert.True(t, sheet.Finished)
}

func dialAnswerStream(t *testing.T, r *gin.Engine) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/3/print/ws"
	return websocket.DefaultDialer.Dial(url, nil)
}

func TestAnswerStream(t *testing.T) {
	prints := &stubPrints{print: activePrint()}
	conn, _, err := dialAnswerStream(t, newTestRouter(prints, nil))
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(ws.Request{Action: ws.ActionAnswer, Index: 0, Answer: "2"}))
	var answered ws.AnsweredResponse
	require.NoError(t, conn.ReadJSON(&answered))
	assert.Equal(t, ws.EventAnswered, answered.Event)
	assert.Equal(t, 0, answered.Index)
	assert.True(t, answered.SameDevice)

	require.NoError(t, conn.WriteJSON(ws.Request{Action: ws.ActionAnswer, Index: -1}))
	var failed ws.ErrorResponse
	require.NoError(t, conn.ReadJSON(&failed))
	assert.Equal(t, ws.EventError, failed.Event)
	assert.Equal(t, string(response.ErrInvalidID), failed.Code)

	require.NoError(t, conn.WriteJSON(ws.Request{Action: ws.ActionFinish}))
	var finished ws.FinishedResponse
	require.NoError(t, conn.ReadJSON(&finished))
	assert.Equal(t, ws.EventFinished, finished.Event)
	assert.Equal(t, int64(9), finished.PrintID)

	assert.Equal(t, []int{0}, prints.indexes())
}

func TestAnswerStreamRefusesPendingPrint(t *testing.T) {
	pending := activePrint()
	pending.StartTime, pending.EndTime = model.Epoch, model.Epoch

	_, resp, err := dialAnswerStream(t, newTestRouter(&stubPrints{print: pending}, nil))
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), string(response.ErrPrintNotStarted))
}
