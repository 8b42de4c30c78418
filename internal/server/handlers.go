package server

import (
	"errors"
	"net/http"

	"github.com/STTM-NSU/fintrack/internal/model"
	"github.com/STTM-NSU/fintrack/internal/portfolio"
	"github.com/STTM-NSU/fintrack/internal/storage"
	"github.com/STTM-NSU/fintrack/internal/tools"
	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
)

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (a *API) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(data); err != nil {
		a.logger.Errorf("%s: can't encode response", err)
	}
}

func (a *API) readJSON(r *http.Request, v any) error {
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(model.ErrInvalidInput, err)
	}
	return nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrConsistencyViolation):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, model.ErrInsufficientData):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, portfolio.ErrJobDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		a.logger.Errorf("%s: %s %s failed", err, r.Method, r.URL.Path)
		a.writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	a.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (a *API) listPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := a.svc.Positions(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, positions)
}

func (a *API) getPosition(w http.ResponseWriter, r *http.Request) {
	p, err := a.svc.Position(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, p)
}

func (a *API) createPosition(w http.ResponseWriter, r *http.Request) {
	var in portfolio.PositionInput
	if err := a.readJSON(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.svc.CreatePosition(r.Context(), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, p)
}

func (a *API) updatePosition(w http.ResponseWriter, r *http.Request) {
	var in portfolio.PositionInput
	if err := a.readJSON(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.svc.UpdatePosition(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, p)
}

func (a *API) deletePosition(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeletePosition(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, messageResponse{Message: "investment deleted"})
}

func (a *API) positionLots(w http.ResponseWriter, r *http.Request) {
	lots, err := a.svc.PositionLots(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, lots)
}

func (a *API) addPositionLot(w http.ResponseWriter, r *http.Request) {
	var in portfolio.LotInput
	if err := a.readJSON(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	lot, err := a.svc.AddPositionLot(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, lot)
}

func (a *API) overview(w http.ResponseWriter, r *http.Request) {
	rows, err := a.svc.Overview(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	for i := range rows {
		roundValuation(&rows[i])
	}
	a.writeJSON(w, http.StatusOK, rows)
}

func (a *API) merged(w http.ResponseWriter, r *http.Request) {
	rows, err := a.svc.MergedByCategory(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	for i := range rows {
		rows[i].InitialTotal = tools.RoundMoney(rows[i].InitialTotal)
		rows[i].CurrentValue = tools.RoundMoney(rows[i].CurrentValue)
		rows[i].Profit = tools.RoundMoney(rows[i].Profit)
		rows[i].ProfitPct = tools.RoundMoney(rows[i].ProfitPct)
	}
	a.writeJSON(w, http.StatusOK, rows)
}

func (a *API) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.svc.Categories(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, categories)
}

func (a *API) createCategory(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := a.readJSON(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	c, err := a.svc.CreateCategory(r.Context(), in.Name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, c)
}

func (a *API) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, messageResponse{Message: "category deleted"})
}

func (a *API) marketPrices(w http.ResponseWriter, r *http.Request) {
	snaps, err := a.svc.MarketPrices(r.Context(), chi.URLParam(r, "assetName"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, snaps)
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.Stats(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	stats.TotalValue = tools.RoundMoney(stats.TotalValue)
	stats.MonthlyGain = tools.RoundMoney(stats.MonthlyGain)
	stats.TotalProfitPct = tools.RoundMoney(stats.TotalProfitPct)
	a.writeJSON(w, http.StatusOK, stats)
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	points, err := a.svc.History(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	for i := range points {
		points[i].TotalValue = tools.RoundMoney(points[i].TotalValue)
	}
	a.writeJSON(w, http.StatusOK, points)
}

func (a *API) change(w http.ResponseWriter, r *http.Request) {
	window, err := model.ParseWindow(r.URL.Query().Get("period"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	change, err := a.svc.Change(r.Context(), window)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	change.TotalBefore = tools.RoundMoney(change.TotalBefore)
	change.TotalNow = tools.RoundMoney(change.TotalNow)
	change.ChangePct = tools.RoundMoney(change.ChangePct)
	a.writeJSON(w, http.StatusOK, change)
}

func (a *API) runRefresh(w http.ResponseWriter, r *http.Request) {
	report, err := a.svc.RunPriceRefreshTick(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, report)
}

func (a *API) runBackfill(w http.ResponseWriter, r *http.Request) {
	report, err := a.svc.RunHistoricalBackfill(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, report)
}

func roundValuation(v *model.PositionValuation) {
	v.InitialTotal = tools.RoundMoney(v.InitialTotal)
	v.CurrentValue = tools.RoundMoneyPtr(v.CurrentValue)
	v.AbsoluteChange = tools.RoundMoneyPtr(v.AbsoluteChange)
	v.PctChange = tools.RoundMoneyPtr(v.PctChange)
	v.MonthsHeld = tools.RoundMoneyPtr(v.MonthsHeld)
	v.MonthsRemaining = tools.RoundMoneyPtr(v.MonthsRemaining)
}
