// Package custodial exposes the custodial account and card issuing
// operations over HTTP. Every route acts on the caller identified by the JWT.
package custodial

import (
	"context"
	"time"

	"github.com/amirasaad/giftfund/pkg/config"
	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/amirasaad/giftfund/pkg/middleware"
	custodialsvc "github.com/amirasaad/giftfund/pkg/service/custodial"
	"github.com/amirasaad/giftfund/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// Service is the orchestration surface the handlers call.
type Service interface {
	CreateCustodialAccount(ctx context.Context, userID string, info custodial.PersonalInfo) (*custodialsvc.CreateAccountResult, error)
	CreateOnboardingLink(ctx context.Context, userID string) (*custodialsvc.OnboardingLinkResult, error)
	SynchronizeAccountStatus(ctx context.Context, userID string) (*custodialsvc.AccountStatusSnapshot, error)
	GetIssuingBalance(ctx context.Context, userID string) (*custodialsvc.IssuingBalance, error)
	TopUpIssuing(ctx context.Context, userID string, amount int64) (*custodialsvc.TopUpResult, error)
	CreateIssuingCardholder(ctx context.Context, userID string, details custodial.HolderDetails) (*custodialsvc.CardholderResult, error)
	CreateVirtualCard(ctx context.Context, userID string, opts custodial.CardOptions) (*custodialsvc.VirtualCardResult, error)
	CreateTestAuthorization(ctx context.Context, userID string, amount int64) (*custodialsvc.AuthorizationResult, error)
}

var _ Service = (*custodialsvc.Service)(nil)

// Routes registers the custodial endpoints under /v1/custodial.
//
// Routes:
//   - POST /v1/custodial/account                           : create the custodial account
//   - POST /v1/custodial/account/onboarding-link           : mint a hosted onboarding link
//   - GET  /v1/custodial/account/status                    : synchronize and return account status
//   - GET  /v1/custodial/issuing/balance                   : live issuing balance
//   - POST /v1/custodial/issuing/topups                    : fund the issuing balance
//   - POST /v1/custodial/issuing/cardholder                : create the cardholder
//   - POST /v1/custodial/issuing/cards                     : issue the virtual card
//   - POST /v1/custodial/issuing/test-authorizations       : simulate a card authorization
func Routes(app *fiber.App, svc Service, cfg *config.App) {
	h := &handlers{svc: svc, now: time.Now}
	group := app.Group("/v1/custodial", middleware.JwtProtected(cfg.Auth.Jwt))

	group.Post("/account", h.CreateAccount)
	group.Post("/account/onboarding-link", h.CreateOnboardingLink)
	group.Get("/account/status", h.GetAccountStatus)

	group.Get("/issuing/balance", h.GetIssuingBalance)
	group.Post("/issuing/topups", h.TopUpIssuing)
	group.Post("/issuing/cardholder", h.CreateCardholder)
	group.Post("/issuing/cards", h.CreateVirtualCard)
	group.Post("/issuing/test-authorizations", h.CreateTestAuthorization)
}

type handlers struct {
	svc Service
	now func() time.Time
}

// userID returns "" after writing the problem response when the caller has
// no identity.
func userID(c *fiber.Ctx) (string, error) {
	id, err := middleware.CurrentUserID(c)
	if err != nil {
		return "", common.ProblemDetailsJSON(c, "Unauthorized", err, "missing user context")
	}
	return id, nil
}

// CreateAccount creates the caller's custodial account.
// @Summary Create custodial account
// @Description Creates the custom individual account on the payments platform. Safe to retry: an existing account is returned with existing=true.
// @Tags custodial
// @Accept json
// @Produce json
// @Param request body CreateAccountRequest true "Personal info"
// @Success 201 {object} common.Response
// @Success 200 {object} common.Response "Account already existed"
// @Failure 400 {object} common.ProblemDetails
// @Failure 422 {object} common.ProblemDetails "Validation error, see code and field"
// @Failure 409 {object} common.ProblemDetails "Another request for this user is in progress"
// @Failure 502 {object} common.ProblemDetails
// @Failure 503 {object} common.ProblemDetails
// @Router /v1/custodial/account [post]
// @Security BearerAuth
func (h *handlers) CreateAccount(c *fiber.Ctx) error {
	uid, err := userID(c)
	if uid == "" {
		return err // response already written
	}
	input, err := common.BindAndValidate[CreateAccountRequest](c)
	if input == nil {
		return err
	}
	res, err := h.svc.CreateCustodialAccount(c.UserContext(), uid, input.toDomain(c.IP(), h.now().UTC()))
	if err != nil {
		return common.ProblemDetailsJSON(c, "Failed to create custodial account", err)
	}
	if res.Existing {
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Custodial account already exists", res)
	}
	return common.SuccessResponseJSON(c, fiber.StatusCreated, "Custodial account created", res)
}

// CreateOnboardingLink mints a single-use onboarding link.
// @Summary Create onboarding link
// @Tags custodial
// @Produce json
// @Success 200 {object} common.Response
// @Failure 404 {object} common.ProblemDetails "no_account"
// @Router /v1/custodial/account/onboarding-link [post]
// @Security BearerAuth
func (h *handlers) CreateOnboardingLink(c *fiber.Ctx) error {
	uid, err := userID(c)
	if uid == "" {
		return err // response already written
	}
	res, err := h.svc.CreateOnboardingLink(c.UserContext(), uid)
	if err != nil {
		return common.ProblemDetailsJSON(c, "Failed to create onboarding link", err)
	}
	return common.SuccessResponseJSON(c, fiber.StatusOK, "Onboarding link created", res)
}

// GetAccountStatus refreshes the account from the payments platform.
// @Summary Synchronize account status
// @Description Reads the account from the payments platform on every call. Users without an account get exists=false.
// @Tags custodial
// @Produce json
// @Success 200 {object} common.Response
// @Failure 503 {object} common.ProblemDetails
// @Router /v1/custodial/account/status [get]
// @Security BearerAuth
func (h *handlers) GetAccountStatus(c *fiber.Ctx) error {
	uid, err := userID(c)
	if uid == "" {
		return err // response already written
	}
	snap, err := h.svc.SynchronizeAccountStatus(c.UserContext(), uid)
	if err != nil {
		return common.ProblemDetailsJSON(c, "Failed to synchronize account status", err)
	}
	return common.SuccessResponseJSON(c, fiber.StatusOK, "Account status retrieved", snap)
}

// GetIssuingBalance
// @Summary Get issuing balance
// @Tags issuing
// @Produce json
// @Success 200 {object} common.Response{data=BalanceResponse}
// @Failure 404 {object} common.ProblemDetails "no_account"
// @Router /v1/custodial/issuing/balance [get]
// @Security BearerAuth
func (h *handlers) GetIssuingBalance(c *fiber.Ctx) error {
	uid, err := userID(c)
	if uid == "" {
		return err // response already written
	}
	bal, err := h.svc.GetIssuingBalance(c.UserContext(), uid)
	if err != nil {
		return common.ProblemDetailsJSON(c, "Failed to retrieve issuing balance", err)
	}
	return common.SuccessResponseJSON(c, fiber.StatusOK, "Issuing balance retrieved", BalanceResponse{
		AvailableAmount:  bal.AvailableAmount,
		AvailableDisplay: displayAmount(bal.AvailableAmount),
		Currency:         bal.Currency,
		CanCreateCard:    bal.CanCreateCard,
	})
}

// TopUpIssuing
// @Summary Top up issuing balance
// @Tags issuing
// @Accept json
// @Produce json
// @Param request body TopUpRequest true "Amount in minor units"
// @Success 201 {object} common.Response{data=TopUpResponse}
// @Failure 422 {object} common.ProblemDetails
// @Router /v1/custodial/issuing/topups [post]
// @Security BearerAuth
func (h *handlers) TopUpIssuing(c *fiber.Ctx) error {
	uid, err := userID(c)
	if uid == "" {
		return err // response already written
	}
	input, err := common.BindAndValidate[TopUpRequest](c)
	if input == nil {
		return err
	}
	res, err := h.svc.TopUpIssuing(c.UserContext(), uid, input.Amount)
	if err != nil {
		return common.ProblemDetailsJSON(c, "Failed to top up issuing balance", err)
	}
	return common.SuccessResponseJSON(c, fiber.StatusCreated, "Top-up created", TopUpResponse{
		TopupID:       res.TopupID,
		Amount:        res.Amount,
		AmountDisplay: displayAmount(res.Amount),
		Status:        res.Status,
	})
}

// CreateCardholder
// @Summary Create issuing cardholder
// @Description Idempotent: an existing cardholder is returned with existing=true.
// @Tags issuing
// @Accept json
// @Produce json
// @Param request body CardholderRequest true "Cardholder"
// @Success 201 {object} common.Response
// @Success 200 {object} common.Response "Cardholder already existed"
// @Failure 404 {object} common.ProblemDetails "no_account"
// @Router /v1/custodial/issuing/cardholder [post]
// @Security BearerAuth
func (h *handlers) CreateCardholder(c *fiber.Ctx) error {
	uid, err := userID(c)
	if uid == "" {
		return err // response already written
	}
	input, err := common.BindAndValidate[CardholderRequest](c)
	if input == nil {
		return err
	}
	res, err := h.svc.CreateIssuingCardholder(c.UserContext(), uid, input.toDomain())
	if err != nil {
		return common.ProblemDetailsJSON(c, "Failed to create cardholder", err)
	}
	status := fiber.StatusCreated
	if res.Existing {
		status = fiber.StatusOK
	}
	return common.SuccessResponseJSON(c, status, "Cardholder ready", res)
}

// CreateVirtualCard issues the caller's single virtual card.
// @Summary Create virtual card
// @Description Not idempotent. A second call fails with card_exists.
// @Tags issuing
// @Accept json
// @Produce json
// @Param request body CardRequest false "Card options"
// @Success 201 {object} common.Response
// @Failure 409 {object} common.ProblemDetails "card_exists"
// @Failure 412 {object} common.ProblemDetails "cardholder_required or insufficient_funds"
// @Router /v1/custodial/issuing/cards [post]
// @Security BearerAuth
func (h *handlers) CreateVirtualCard(c *fiber.Ctx) error {
	uid, err := userID(c)
	if uid == "" {
		return err // response already written
	}
	input, err := common.BindAndValidateOptional[CardRequest](c)
	if input == nil {
		return err
	}
	res, err := h.svc.CreateVirtualCard(c.UserContext(), uid, custodial.CardOptions{
		Currency:              input.Currency,
		SpendingLimitAmount:   input.SpendingLimitAmount,
		SpendingLimitInterval: input.SpendingLimitInterval,
	})
	if err != nil {
		return common.ProblemDetailsJSON(c, "Failed to create virtual card", err)
	}
	return common.SuccessResponseJSON(c, fiber.StatusCreated, "Virtual card created", res)
}

// CreateTestAuthorization
// @Summary Simulate a card authorization
// @Description Test mode only.
// @Tags issuing
// @Accept json
// @Produce json
// @Param request body TestAuthorizationRequest false "Amount in minor units"
// @Success 201 {object} common.Response
// @Failure 403 {object} common.ProblemDetails "test_mode_only"
// @Failure 412 {object} common.ProblemDetails "no_card"
// @Router /v1/custodial/issuing/test-authorizations [post]
// @Security BearerAuth
func (h *handlers) CreateTestAuthorization(c *fiber.Ctx) error {
	uid, err := userID(c)
	if uid == "" {
		return err // response already written
	}
	input, err := common.BindAndValidateOptional[TestAuthorizationRequest](c)
	if input == nil {
		return err
	}
	res, err := h.svc.CreateTestAuthorization(c.UserContext(), uid, input.Amount)
	if err != nil {
		return common.ProblemDetailsJSON(c, "Failed to create test authorization", err)
	}
	return common.SuccessResponseJSON(c, fiber.StatusCreated, "Test authorization created", res)
}
