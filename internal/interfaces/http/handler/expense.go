package handler

import (
	"strconv"

	financeapp "github.com/fieldservice/backend/internal/application/finance"
	"github.com/fieldservice/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// ExpenseHandler handles expense endpoints
type ExpenseHandler struct {
	BaseHandler
	expenses *financeapp.ExpenseService
}

// NewExpenseHandler creates a new ExpenseHandler
func NewExpenseHandler(expenses *financeapp.ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{expenses: expenses}
}

func toExpenseRequest(req dto.ExpenseRequest) financeapp.ExpenseRequest {
	return financeapp.ExpenseRequest{
		Description: req.Description,
		Value:       req.Value,
		DueDate:     req.DueDate.Time,
		Category:    req.Category,
		IsPaid:      req.IsPaid,
		PaidDate:    req.PaidDate.Ptr(),
	}
}

// List lists expenses
// GET /finance/expenses?category=&paid=&from=&to=
func (h *ExpenseHandler) List(c *gin.Context) {
	var filter financeapp.ExpenseFilter
	filter.Category = c.Query("category")
	if raw := c.Query("paid"); raw != "" {
		paid, err := strconv.ParseBool(raw)
		if err != nil {
			h.BadRequest(c, "paid must be true or false")
			return
		}
		filter.Paid = &paid
	}
	var err error
	if filter.From, err = queryDate(c, "from"); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if filter.To, err = queryDate(c, "to"); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	expenses, err := h.expenses.ListExpenses(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	List(&h.BaseHandler, c, expenses)
}

// Create adds an expense
// POST /finance/expenses
func (h *ExpenseHandler) Create(c *gin.Context) {
	var req dto.ExpenseRequest
	if !bindJSON(c, &req) {
		return
	}
	expense, err := h.expenses.AddExpense(c.Request.Context(), toExpenseRequest(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, expense)
}

// Update replaces the editable fields of an expense
// PUT /finance/expenses/:id
func (h *ExpenseHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c, "expense")
	if !ok {
		return
	}
	var req dto.ExpenseRequest
	if !bindJSON(c, &req) {
		return
	}
	expense, err := h.expenses.UpdateExpense(c.Request.Context(), id, toExpenseRequest(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, expense)
}

// Delete removes an expense
// DELETE /finance/expenses/:id
func (h *ExpenseHandler) Delete(c *gin.Context) {
	id, ok := h.pathID(c, "expense")
	if !ok {
		return
	}
	if err := h.expenses.DeleteExpense(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"id": id})
}

// Pay marks an expense paid
// POST /finance/expenses/:id/pay
func (h *ExpenseHandler) Pay(c *gin.Context) {
	id, ok := h.pathID(c, "expense")
	if !ok {
		return
	}
	var req dto.PayRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	expense, err := h.expenses.MarkExpensePaid(c.Request.Context(), id, req.PaidDate.Ptr())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, expense)
}
