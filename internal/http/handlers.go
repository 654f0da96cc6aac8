package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/amqp"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/core"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/log"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/services"
)

type transactionResponse struct {
	ID           string  `json:"id"`
	AmountCents  int64   `json:"amountCents"`
	Amount       float64 `json:"amount"`
	Description  string  `json:"description"`
	Category     string  `json:"category"`
	Date         string  `json:"date"`
	Kind         string  `json:"kind"`
	Blocked      bool    `json:"blocked"`
	WarningLevel string  `json:"warningLevel,omitempty"`
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:           tx.ID,
		AmountCents:  tx.Amount.Cents,
		Amount:       tx.Amount.Euros(),
		Description:  tx.Description,
		Category:     tx.Category,
		Date:         tx.Date.Format(time.RFC3339),
		Kind:         string(tx.Kind),
		Blocked:      tx.Blocked,
		WarningLevel: string(tx.WarningLevel),
	}
}

type checkResponse struct {
	Allowed     bool   `json:"allowed"`
	Warning     string `json:"warning,omitempty"`
	BlockReason string `json:"blockReason,omitempty"`
	CanUnlock   bool   `json:"canUnlock,omitempty"`
}

func toCheckResponse(res core.CheckResult) checkResponse {
	return checkResponse{Allowed: res.Allowed, Warning: res.Warning, BlockReason: res.BlockReason}
}

// canUnlock reports whether a blocked purchase could still be forced through.
func (s *Server) canUnlock(ctx context.Context) bool {
	state, err := s.unlocks.Status(ctx)
	return err == nil && state.Remaining > 0
}

type insightResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	AverageCents   int64   `json:"averageAmountCents"`
	LastCents      int64   `json:"lastAmountCents"`
	Frequency      string  `json:"frequency"`
	Confidence     float64 `json:"confidence"`
	LastOccurrence string  `json:"lastOccurrence"`
	NextDueDate    string  `json:"nextDueDate,omitempty"`
	Source         string  `json:"source"`
}

func toInsightResponses(insights []core.FixedCostInsight) []insightResponse {
	out := make([]insightResponse, 0, len(insights))
	for _, in := range insights {
		resp := insightResponse{
			ID:             in.ID,
			Name:           in.Name,
			Category:       in.Category,
			AverageCents:   in.AverageAmount.Cents,
			LastCents:      in.LastAmount.Cents,
			Frequency:      string(in.Frequency),
			Confidence:     in.Confidence,
			LastOccurrence: in.LastOccurrence.Format(time.RFC3339),
			Source:         string(in.Source),
		}
		if !in.NextDueDate.IsZero() {
			resp.NextDueDate = in.NextDueDate.Format(time.RFC3339)
		}
		out = append(out, resp)
	}
	return out
}

type budgetResponse struct {
	ThreeDayLimitCents      int64             `json:"threeDayLimitCents"`
	ThreeDayLimit           float64           `json:"threeDayLimit"`
	MonthlyAvailableCents   int64             `json:"monthlyAvailableCents"`
	UpcomingDeductionsCents int64             `json:"upcomingDeductionsCents"`
	SavingsAllocationCents  int64             `json:"savingsAllocationCents"`
	RiskFactor              float64           `json:"riskFactor"`
	Recommendations         []string          `json:"recommendations"`
	FixedCosts              []insightResponse `json:"fixedCosts"`
}

func toBudgetResponse(calc core.BudgetCalculation) budgetResponse {
	return budgetResponse{
		ThreeDayLimitCents:      calc.DailyAvailable.Cents,
		ThreeDayLimit:           calc.DailyAvailable.Euros(),
		MonthlyAvailableCents:   calc.MonthlyAvailable.Cents,
		UpcomingDeductionsCents: calc.UpcomingDeductions.Cents,
		SavingsAllocationCents:  calc.SavingsAllocation.Cents,
		RiskFactor:              calc.RiskFactor,
		Recommendations:         calc.Recommendations,
		FixedCosts:              toInsightResponses(calc.FixedCostInsights),
	}
}

// handleServiceError maps domain errors onto HTTP status codes.
func (s *Server) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidSavingsGoal):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrNoSetup):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrQuotaExhausted),
		errors.Is(err, services.ErrNoUnlocksLeft):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrBadAccessCode):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "request failed",
			log.FieldPath, r.URL.Path, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Setup ---

type setupRequest struct {
	SavingsGoalCents   int64  `json:"savingsGoalCents"`
	SavingsGoal        string `json:"savingsGoal"`
	MonthlyIncomeCents int64  `json:"monthlyIncomeCents"`
	MonthlyIncome      string `json:"monthlyIncome"`
}

type setupResponse struct {
	SavingsGoalCents    int64  `json:"savingsGoalCents"`
	FixedCostsCents     int64  `json:"fixedCostsCents"`
	MonthlyIncomeCents  int64  `json:"monthlyIncomeCents"`
	VariableBudgetCents int64  `json:"variableBudgetCents"`
	DailyLimitCents     int64  `json:"dailyLimitCents"`
	MonthStartDate      string `json:"monthStartDate"`
	ChangesUsed         int    `json:"changesUsed"`
	ChangesRemaining    int    `json:"changesRemaining"`
	IsNewMonth          bool   `json:"isNewMonth"`
}

func (s *Server) handleGetSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	asOf := parseAsOf(r)

	setup, err := s.setup.Current(ctx)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	quota, err := s.setup.CanChange(ctx, asOf)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	isNew, err := s.setup.IsNewMonth(ctx, asOf)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, setupResponse{
		SavingsGoalCents:    setup.SavingsGoal.Cents,
		FixedCostsCents:     setup.FixedCosts.Cents,
		MonthlyIncomeCents:  setup.MonthlyIncome.Cents,
		VariableBudgetCents: setup.VariableBudget.Cents,
		DailyLimitCents:     setup.DailyLimit.Cents,
		MonthStartDate:      setup.MonthStartDate.Format(time.RFC3339),
		ChangesUsed:         quota.Used,
		ChangesRemaining:    quota.Remaining,
		IsNewMonth:          isNew,
	})
}

func (s *Server) handleSaveSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	asOf := parseAsOf(r)

	var req setupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	goal, err := parseAmount(req.SavingsGoalCents, req.SavingsGoal)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid savings goal")
		return
	}
	income := core.Money{Cents: req.MonthlyIncomeCents}
	if req.MonthlyIncomeCents == 0 && req.MonthlyIncome != "" {
		income, err = parseAmount(0, req.MonthlyIncome)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid monthly income")
			return
		}
	}

	history, err := s.store.ListTransactions(ctx)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	upcoming, err := s.store.ListUpcoming(ctx)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}

	setup, err := s.setup.Save(ctx, goal, income, history, upcoming, asOf)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	s.invalidateBudget()
	s.publishEvent(ctx, amqp.EventSetupChanged, "", setup.SavingsGoal.Cents, false, "monthly setup saved")

	quota, _ := s.setup.CanChange(ctx, asOf)
	writeJSON(w, http.StatusCreated, setupResponse{
		SavingsGoalCents:    setup.SavingsGoal.Cents,
		FixedCostsCents:     setup.FixedCosts.Cents,
		MonthlyIncomeCents:  setup.MonthlyIncome.Cents,
		VariableBudgetCents: setup.VariableBudget.Cents,
		DailyLimitCents:     setup.DailyLimit.Cents,
		MonthStartDate:      setup.MonthStartDate.Format(time.RFC3339),
		ChangesUsed:         quota.Used,
		ChangesRemaining:    quota.Remaining,
	})
}

func (s *Server) handleClearSetup(w http.ResponseWriter, r *http.Request) {
	if err := s.setup.Clear(r.Context()); err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	s.invalidateBudget()
	w.WriteHeader(http.StatusNoContent)
}

// --- Budget ---

func (s *Server) handleCurrentBudget(w http.ResponseWriter, r *http.Request) {
	asOf := parseAsOf(r)
	key := asOf.Format("2006-01-02")

	if calc, ok := s.budgetCache.Get(key); ok {
		writeJSON(w, http.StatusOK, toBudgetResponse(calc))
		return
	}

	calc, err := s.budget.Calculate(r.Context(), asOf)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	s.budgetCache.Set(key, calc)
	writeJSON(w, http.StatusOK, toBudgetResponse(calc))
}

func (s *Server) handleCalculateBudget(w http.ResponseWriter, r *http.Request) {
	asOf := parseAsOf(r)

	calc, err := s.budget.Calculate(r.Context(), asOf)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	s.invalidateBudget()
	s.budgetCache.Set(asOf.Format("2006-01-02"), calc)
	writeJSON(w, http.StatusOK, toBudgetResponse(calc))
}

// --- Transactions ---

type transactionRequest struct {
	AmountCents int64  `json:"amountCents"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Kind        string `json:"kind"`
	Date        string `json:"date"`
	Upcoming    bool   `json:"upcoming"`
	Force       bool   `json:"force"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.store.ListTransactions(r.Context())
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	asOf := parseAsOf(r)

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.AmountCents, req.Amount)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}

	kind := core.TransactionKind(req.Kind)
	if req.Kind == "" {
		kind = core.Expense
	}
	date := asOf
	if req.Date != "" {
		if parsed, perr := time.Parse(time.RFC3339, req.Date); perr == nil {
			date = parsed
		} else if parsed, perr := time.Parse("2006-01-02", req.Date); perr == nil {
			date = parsed
		}
	}

	tx := core.Transaction{
		Amount:      amount,
		Description: sanitizeInput(req.Description),
		Category:    sanitizeInput(req.Category),
		Date:        date,
		Kind:        kind,
	}

	if req.Upcoming {
		stored, err := s.store.AppendUpcoming(ctx, tx)
		if err != nil {
			s.handleServiceError(w, r, err)
			return
		}
		s.invalidateBudget()
		writeJSON(w, http.StatusCreated, map[string]any{
			"transaction": toTransactionResponse(stored),
		})
		return
	}

	// Forcing spends one unlock, but only when the gate would actually
	// block. Validation runs first so a bad payload cannot burn one.
	force := req.Force
	if force && tx.IsExpense() {
		if err := tx.Validate(); err != nil {
			s.handleServiceError(w, r, err)
			return
		}
		gate, err := s.checker.Check(ctx, tx.Amount, asOf)
		if err != nil {
			s.handleServiceError(w, r, err)
			return
		}
		if gate.Allowed {
			force = false
		} else if _, err := s.unlocks.Use(ctx); err != nil {
			s.handleServiceError(w, r, err)
			return
		}
	}

	stored, result, err := s.checker.Record(ctx, tx, asOf, force)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	s.invalidateBudget()

	eventType := amqp.EventTransactionRecorded
	detail := result.Warning
	if stored.Blocked {
		eventType = amqp.EventTransactionBlocked
		detail = result.BlockReason
	}
	s.publishEvent(ctx, eventType, stored.ID, stored.Amount.Cents, stored.Blocked, detail)

	check := toCheckResponse(result)
	if stored.Blocked {
		check.CanUnlock = s.canUnlock(ctx)
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"transaction": toTransactionResponse(stored),
		"check":       check,
	})
}

type checkRequest struct {
	AmountCents int64  `json:"amountCents"`
	Amount      string `json:"amount"`
}

func (s *Server) handleCheckTransaction(w http.ResponseWriter, r *http.Request) {
	asOf := parseAsOf(r)

	var req checkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.AmountCents, req.Amount)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}

	result, err := s.checker.Check(r.Context(), amount, asOf)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	resp := toCheckResponse(result)
	if !result.Allowed {
		resp.CanUnlock = s.canUnlock(r.Context())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearTransactions(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearTransactions(r.Context()); err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	s.invalidateBudget()
	w.WriteHeader(http.StatusNoContent)
}

// --- Accounts ---

type accountResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	BalanceCents int64   `json:"balanceCents"`
	Balance      float64 `json:"balance"`
	Kind         string  `json:"kind"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountResponse{
			ID:           a.ID,
			Name:         a.Name,
			BalanceCents: a.Balance.Cents,
			Balance:      a.Balance.Euros(),
			Kind:         string(a.Kind),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// --- Unlocks ---

type unlockResponse struct {
	Remaining    int  `json:"remaining"`
	Total        int  `json:"total"`
	RequiresCode bool `json:"requiresCode"`
}

func toUnlockResponse(state core.UnlockState) unlockResponse {
	return unlockResponse{
		Remaining:    state.Remaining,
		Total:        state.Total,
		RequiresCode: state.Remaining == 0,
	}
}

func (s *Server) handleUnlockStatus(w http.ResponseWriter, r *http.Request) {
	state, err := s.unlocks.Status(r.Context())
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUnlockResponse(state))
}

func (s *Server) handleUnlockUse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, err := s.unlocks.Use(ctx)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	s.publishEvent(ctx, amqp.EventUnlockUsed, "", 0, false, "unlock spent")
	writeJSON(w, http.StatusOK, toUnlockResponse(state))
}

type unlockResetRequest struct {
	AccessCode string `json:"accessCode"`
}

func (s *Server) handleUnlockReset(w http.ResponseWriter, r *http.Request) {
	var req unlockResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := s.unlocks.Reset(r.Context(), req.AccessCode)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUnlockResponse(state))
}

// --- Insights ---

func (s *Server) handleFixedCosts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	history, err := s.store.ListTransactions(ctx)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	upcoming, err := s.store.ListUpcoming(ctx)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	analysis := s.analyzer.Analyze(history, upcoming)
	writeJSON(w, http.StatusOK, map[string]any{
		"totalCents": analysis.Total.Cents,
		"insights":   toInsightResponses(analysis.Insights),
	})
}

func (s *Server) handleBehavior(w http.ResponseWriter, r *http.Request) {
	behavior, err := s.budget.AnalyzeBehavior(r.Context(), parseAsOf(r))
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, behavior)
}

func (s *Server) handleExplanation(w http.ResponseWriter, r *http.Request) {
	exp, err := s.budget.Explain(r.Context(), parseAsOf(r))
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}
