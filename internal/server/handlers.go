package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/morozRed/medkb/internal/engine"
	"github.com/morozRed/medkb/internal/ingest"
	"github.com/morozRed/medkb/internal/knowledge"
	"github.com/morozRed/medkb/internal/matcher"
	"github.com/morozRed/medkb/internal/mutator"
	"github.com/morozRed/medkb/internal/normalize"
	"github.com/morozRed/medkb/internal/search"
)

const maxLookupLimit = 100

type Handlers struct {
	engine *engine.Engine
	logger *zap.Logger
}

func NewHandlers(eng *engine.Engine, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{engine: eng, logger: logger}
}

type ErrorResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Evaluator string `json:"evaluator"`
	Diseases  int    `json:"diseases"`
	Symptoms  int    `json:"symptoms"`
	LoadedAt  string `json:"loadedAt"`
}

type SymptomsResponse struct {
	Symptoms []string        `json:"symptoms"`
	Matches  []search.Result `json:"matches,omitempty"`
}

type DiseasesResponse struct {
	Diseases []engine.DiseaseSummary `json:"diseases"`
}

type DiagnoseRequest struct {
	Symptoms []string `json:"symptoms"`
}

type DiagnoseResponse struct {
	Status            string                    `json:"status"`
	Mode              matcher.Mode              `json:"mode"`
	Diseases          []knowledge.DiseaseDetail `json:"diseases"`
	Candidates        []matcher.Candidate       `json:"candidates"`
	IsFinalDiagnosis  bool                      `json:"isFinalDiagnosis"`
	RemainingSymptoms []string                  `json:"remainingSymptoms"`
	UnknownSymptoms   []string                  `json:"unknownSymptoms"`
	Message           string                    `json:"message,omitempty"`
}

type AddSymptomRequest struct {
	Disease string `json:"disease"`
	Symptom string `json:"symptom"`
}

type AddSymptomResponse struct {
	Status  string `json:"status"`
	Disease string `json:"disease"`
	Symptom string `json:"symptom"`
	Changed bool   `json:"changed"`
}

// AddDiseaseRequest accepts precautions and symptoms either as JSON arrays or
// as comma-separated strings.
type AddDiseaseRequest struct {
	Name        string     `json:"diseaseName"`
	Description string     `json:"diseaseDescription"`
	Precautions stringList `json:"diseasePrecautions"`
	Symptoms    stringList `json:"newSymptoms"`
}

type AddDiseaseResponse struct {
	Status  string `json:"status"`
	Disease string `json:"disease"`
}

type FeedbackRequest struct {
	Disease        string     `json:"disease"`
	IsSatisfied    bool       `json:"isSatisfied"`
	MissedSymptoms stringList `json:"missedSymptoms"`
}

type FeedbackResponse struct {
	Status        string   `json:"status"`
	Message       string   `json:"message"`
	AddedSymptoms []string `json:"addedSymptoms"`
}

type UploadResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Details ingest.Result `json:"details"`
}

type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return errors.New("expected a string or a list of strings")
	}
	*l = normalize.SplitList(joined)
	return nil
}

func (h *Handlers) HandleHealth(c *gin.Context) {
	snap := h.engine.Snapshot()
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Evaluator: h.engine.Backend(),
		Diseases:  snap.KB.Len(),
		Symptoms:  len(h.engine.Symptoms()),
		LoadedAt:  snap.LoadedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// HandleSymptoms returns the vocabulary. With ?q= it also ranks symptoms
// against the query.
func (h *Handlers) HandleSymptoms(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusOK, SymptomsResponse{Symptoms: h.engine.Symptoms()})
		return
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.abort(c, &knowledge.Error{Op: "lookup", Kind: knowledge.ErrMalformedInput, Err: errors.New("limit must be a positive integer")})
			return
		}
		limit = min(n, maxLookupLimit)
	}

	matches := h.engine.Search(query, search.KindSymptom, limit)
	symptoms := make([]string, 0, len(matches))
	for _, m := range matches {
		symptoms = append(symptoms, m.Key)
	}
	c.JSON(http.StatusOK, SymptomsResponse{Symptoms: symptoms, Matches: matches})
}

func (h *Handlers) HandleDiseases(c *gin.Context) {
	c.JSON(http.StatusOK, DiseasesResponse{Diseases: h.engine.Diseases()})
}

func (h *Handlers) HandleDiagnose(c *gin.Context) {
	var req DiagnoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abort(c, &knowledge.Error{Op: "diagnose", Kind: knowledge.ErrMalformedInput, Err: err})
		return
	}

	diagnosis, err := h.engine.Diagnose(req.Symptoms)
	if err != nil {
		h.abort(c, err)
		return
	}

	resp := DiagnoseResponse{
		Status:            "success",
		Mode:              diagnosis.Mode,
		Diseases:          diagnosis.Details,
		Candidates:        diagnosis.Candidates,
		IsFinalDiagnosis:  diagnosis.Final,
		RemainingSymptoms: diagnosis.Remaining,
		UnknownSymptoms:   diagnosis.Unknown,
	}
	if diagnosis.Mode == matcher.ModeNone {
		resp.Message = "No diseases detected, please add more symptoms."
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandleAddSymptom(c *gin.Context) {
	var req AddSymptomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abort(c, &knowledge.Error{Op: "add symptom", Kind: knowledge.ErrMalformedInput, Err: err})
		return
	}

	changed, err := h.engine.AddSymptom(req.Disease, req.Symptom)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, AddSymptomResponse{
		Status:  "success",
		Disease: normalize.Key(req.Disease),
		Symptom: normalize.Key(req.Symptom),
		Changed: changed,
	})
}

func (h *Handlers) HandleAddDisease(c *gin.Context) {
	var req AddDiseaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abort(c, &knowledge.Error{Op: "add disease", Kind: knowledge.ErrMalformedInput, Err: err})
		return
	}

	key, err := h.engine.AddDisease(mutator.NewDisease{
		Name:        req.Name,
		Description: req.Description,
		Precautions: req.Precautions,
		Symptoms:    req.Symptoms,
	})
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, AddDiseaseResponse{Status: "success", Disease: key})
}

// HandleFeedback adds the symptoms a dissatisfied user says were missed to the
// disease's rule. Satisfied feedback is only acknowledged.
func (h *Handlers) HandleFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abort(c, &knowledge.Error{Op: "feedback", Kind: knowledge.ErrMalformedInput, Err: err})
		return
	}

	if req.IsSatisfied || len(req.MissedSymptoms) == 0 {
		c.JSON(http.StatusOK, FeedbackResponse{
			Status:        "success",
			Message:       "Feedback recorded successfully",
			AddedSymptoms: []string{},
		})
		return
	}

	added, err := h.engine.AddSymptoms(req.Disease, req.MissedSymptoms)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, FeedbackResponse{
		Status:        "success",
		Message:       "Added " + strconv.Itoa(len(added)) + " symptoms to " + normalize.Display(normalize.Key(req.Disease)),
		AddedSymptoms: added,
	})
}

func (h *Handlers) HandleUploadCSV(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		h.abort(c, &knowledge.Error{Op: "upload", Kind: knowledge.ErrMalformedInput, Err: errors.New("no file part in the request")})
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		h.abort(c, &knowledge.Error{Op: "upload", Kind: knowledge.ErrMalformedInput, Err: errors.New("only CSV files are allowed")})
		return
	}
	if header.Size == 0 {
		h.abort(c, &knowledge.Error{Op: "upload", Kind: knowledge.ErrMalformedInput, Err: errors.New("uploaded file is empty")})
		return
	}

	file, err := header.Open()
	if err != nil {
		h.abort(c, &knowledge.Error{Op: "upload", Kind: knowledge.ErrMalformedInput, Err: err})
		return
	}
	defer file.Close()

	result, err := h.engine.Ingest(file, nil)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, UploadResponse{
		Status: "success",
		Message: "Generated rules for " + strconv.Itoa(result.DiseasesProcessed) +
			" diseases with " + strconv.Itoa(result.SymptomsKnown) + " unique symptoms.",
		Details: result,
	})
}

func (h *Handlers) abort(c *gin.Context, err error) {
	status := StatusFor(err)
	resp := ErrorResponse{
		Status:    "error",
		Message:   err.Error(),
		RequestID: c.GetString(requestIDKey),
	}
	if kind := knowledge.Kind(err); kind != nil {
		resp.Code = strings.ReplaceAll(kind.Error(), " ", "_")
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", resp.RequestID),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, resp)
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(err error) int {
	switch knowledge.Kind(err) {
	case knowledge.ErrMalformedInput:
		return http.StatusBadRequest
	case knowledge.ErrRuleNotFound:
		return http.StatusNotFound
	case knowledge.ErrDuplicateDisease:
		return http.StatusConflict
	case knowledge.ErrArtifactUnavailable:
		return http.StatusServiceUnavailable
	case knowledge.ErrEvaluatorFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
