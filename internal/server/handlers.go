package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/kr-backtest/internal/domain"
	"github.com/aristath/kr-backtest/internal/modules/backtest"
	"github.com/aristath/kr-backtest/internal/modules/factors"
	"github.com/aristath/kr-backtest/internal/modules/hash"
	"github.com/aristath/kr-backtest/internal/modules/universe"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode json response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	if be, ok := err.(*domain.BacktestError); ok {
		code = be.Code
		switch be.Kind {
		case domain.ErrValidation:
			status = http.StatusBadRequest
		case domain.ErrDataUnavailable:
			status = http.StatusNotFound
		case domain.ErrCancelled:
			status = http.StatusConflict
		case domain.ErrCacheTransient, domain.ErrExternalTransient:
			status = http.StatusServiceUnavailable
		}
	}
	s.writeJSON(w, status, map[string]interface{}{"error": code, "message": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "kr-backtest",
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "kr-backtest",
		"version": "1.0.0",
	})
}

// handleStartBacktest decodes a StrategySpec, validates and hashes it,
// opens a progress session, persists a PENDING session row, and kicks off
// the engine in the background — returning immediately with the session id
// so the caller can subscribe to /stream before the run progresses far.
func (s *Server) handleStartBacktest(w http.ResponseWriter, r *http.Request) {
	var spec domain.StrategySpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		s.writeError(w, domain.WrapError(domain.ErrValidation, "invalid_json", "request body is not valid JSON", err))
		return
	}
	if err := backtest.Validate(spec); err != nil {
		s.writeError(w, err)
		return
	}

	strategyHash := hash.GenerateStrategyHash(spec)
	sessionID, err := s.repo.CreateSession(r.Context(), strategyHash, spec)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.progress.Open(sessionID)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := s.engine.Run(ctx, sessionID, spec); err != nil {
			s.log.Error().Err(err).Str("session_id", sessionID).Msg("backtest run failed")
		}
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"session_id":    sessionID,
		"strategy_hash": strategyHash,
		"status":        string(backtest.StatusPending),
	})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	resp, err := s.repo.LoadResult(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleFactorCatalogue lists every recognized factor as a flat list sorted
// by name, each entry carrying its family, for clients building a
// condition-expression editor.
func (s *Server) handleFactorCatalogue(w http.ResponseWriter, r *http.Request) {
	out := factors.Describe()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"factors": out})
}

// handleUniverse reports, for the requested trade date (today, since
// PriceStore exposes no aggregate "latest populated date" query), the
// stock count of every market-cap tier via modules/universe, the shape
// strategy builders use to populate a target_universes picker.
func (s *Server) handleUniverse(w http.ResponseWriter, r *http.Request) {
	market := domain.Market(r.URL.Query().Get("market"))
	asOf := time.Now().Format("2006-01-02")

	stocks, err := s.priceStore.LoadUniverse(r.Context(), market, asOf)
	if err != nil {
		s.writeError(w, err)
		return
	}

	codes := make([]string, len(stocks))
	marketByCode := make(map[string]domain.Market, len(stocks))
	for i, st := range stocks {
		codes[i] = st.Code
		marketByCode[st.Code] = st.Market
	}

	bars, err := s.priceStore.LoadPrices(r.Context(), codes, asOf, asOf)
	if err != nil {
		s.writeError(w, err)
		return
	}
	marketCapByCode := make(map[string]float64, len(bars))
	for code, series := range bars {
		if len(series) == 0 {
			continue
		}
		marketCapByCode[code] = series[len(series)-1].MarketCap
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trade_date": asOf,
		"universes":  universe.Classify(marketCapByCode, marketByCode),
	})
}
