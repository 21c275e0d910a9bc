package api

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"partquote/core/determinism"
	"partquote/core/finish"
	"partquote/core/quote"
	"partquote/internal/errors"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":  "healthy",
		"version": s.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"version":     s.version,
		"engine":      "partquote",
		"api_version": "v1",
	}, http.StatusOK)
}

func (s *Server) handleCostModels(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	resp := &CostModelsResponse{Default: s.engine.DefaultCostModel()}
	for _, name := range s.engine.CostModels() {
		m, _ := s.engine.CostModel(name)
		resp.CostModels = append(resp.CostModels, m)
	}
	resp.Metadata = s.metadata(r, "", start)
	s.writeJSON(w, resp, http.StatusOK)
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	composer := s.engine.Composer()
	if composer == nil {
		s.writeEngineError(w, r, errors.New(errors.TypeConfig, "no finish catalog is configured"))
		return
	}
	s.writeJSON(w, &OperationsResponse{
		Operations: composer.Validator().Catalog().Operations(),
		Metadata:   s.metadata(r, "", start),
	}, http.StatusOK)
}

func (s *Server) handlePricing(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req quote.PriceRequest
	hash, ok := s.readJSON(w, r, &req)
	if !ok {
		return
	}

	priced, err := quote.Price(r.Context(), &req)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, &PricingResponse{
		Breakdown:   priced.Breakdown,
		PriceBreaks: priced.PriceBreaks,
		Metadata:    s.metadata(r, hash, start),
	}, http.StatusOK)
}

func (s *Server) handleChainValidate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req ChainRequest
	hash, ok := s.readJSON(w, r, &req)
	if !ok {
		return
	}
	composer := s.engine.Composer()
	if composer == nil {
		s.writeEngineError(w, r, errors.New(errors.TypeConfig, "no finish catalog is configured"))
		return
	}

	v := composer.Validator()
	errs := v.ValidateFor(req.Process, req.steps())
	if errs == nil {
		errs = finish.ValidationErrors{}
	}
	s.writeJSON(w, &ChainValidationResponse{
		Valid:    len(errs) == 0,
		Policy:   v.Policy(),
		Errors:   errs,
		Metadata: s.metadata(r, hash, start),
	}, http.StatusOK)
}

func (s *Server) handleChainCompose(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req ChainRequest
	hash, ok := s.readJSON(w, r, &req)
	if !ok {
		return
	}
	composer := s.engine.Composer()
	if composer == nil {
		s.writeEngineError(w, r, errors.New(errors.TypeConfig, "no finish catalog is configured"))
		return
	}

	chain, err := composer.ComposeFor(req.Process, req.steps(), req.Context)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, &ChainResponse{Chain: chain, Metadata: s.metadata(r, hash, start)}, http.StatusOK)
}

func (s *Server) handleFormulaEvaluate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req FormulaRequest
	hash, ok := s.readJSON(w, r, &req)
	if !ok {
		return
	}
	composer := s.engine.Composer()
	if composer == nil {
		s.writeEngineError(w, r, errors.New(errors.TypeConfig, "no finish catalog is configured"))
		return
	}

	res := composer.Evaluator().Test(req.Formula, req.Context)
	s.writeJSON(w, &FormulaResponse{
		OK:       res.OK(),
		Result:   res,
		Metadata: s.metadata(r, hash, start),
	}, http.StatusOK)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req quote.Request
	hash, ok := s.readJSON(w, r, &req)
	if !ok {
		return
	}

	line, err := s.engine.Quote(r.Context(), &req)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, &QuoteResponse{Line: line, Metadata: s.metadata(r, hash, start)}, http.StatusOK)
}

// readJSON strictly decodes the body into dst and returns the body's sha256.
// On failure it has already written the error response.
func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) (string, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.writeError(w, r, "BODY_TOO_LARGE", fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return "", false
		}
		s.writeError(w, r, "INVALID_JSON", err.Error(), http.StatusBadRequest)
		return "", false
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, r, "INVALID_JSON", err.Error(), http.StatusBadRequest)
		return "", false
	}

	return determinism.ComputeHash(body).Hex(), true
}

func (s *Server) metadata(r *http.Request, inputHash string, start time.Time) *Metadata {
	return &Metadata{
		RequestID:     requestIDFrom(r.Context()),
		InputHash:     inputHash,
		EngineVersion: s.version,
		DurationMs:    time.Since(start).Milliseconds(),
	}
}

// statusFor maps an error category to an HTTP status
func statusFor(t errors.Type) int {
	switch t {
	case errors.TypeInput, errors.TypeParse, errors.TypeEval,
		errors.TypeValidation, errors.TypePricing, errors.TypeChain:
		return http.StatusUnprocessableEntity
	case errors.TypeNotFound:
		return http.StatusNotFound
	case errors.TypeConfig:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	t := errors.TypeOf(err)
	status := statusFor(t)
	detail := ErrorDetail{
		Code:      string(t),
		Message:   err.Error(),
		RequestID: requestIDFrom(r.Context()),
	}
	var problems finish.ValidationErrors
	if stderrors.As(err, &problems) {
		detail.Problems = problems
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", detail.RequestID),
			zap.String("code", detail.Code),
			zap.Error(err))
	}
	s.writeJSON(w, &ErrorBody{Error: detail}, status)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, code, message string, status int) {
	s.writeJSON(w, &ErrorBody{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: requestIDFrom(r.Context()),
	}}, status)
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("encoding response failed", zap.Error(err))
	}
}
