package controller

import (
	"github.com/sidhuiwnl/lordminds-sub000/internal/model"
	"github.com/sidhuiwnl/lordminds-sub000/internal/service"
	"github.com/sidhuiwnl/lordminds-sub000/internal/util"

	"github.com/gin-gonic/gin"
)

type IntegrityController struct {
	Sessions  *service.SessionService
	Integrity *service.IntegrityService
}

func NewIntegrityController(sessions *service.SessionService, integrity *service.IntegrityService) *IntegrityController {
	return &IntegrityController{Sessions: sessions, Integrity: integrity}
}

type integrityEventRequest struct {
	Event  model.IntegrityEventType `json:"event" binding:"required"`
	Detail string                   `json:"detail"`
}

// @Summary 上报监考事件
// @Description 失焦/隐藏/退出全屏/快捷键拦截，返回客户端应执行的指令
// @Tags 监考
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "会话ID"
// @Param body body integrityEventRequest true "事件"
// @Success 200 {object} util.Response
// @Router /api/sessions/{sessionId}/integrity/events [post]
func (c *IntegrityController) ReportEvent(ctx *gin.Context) {
	session := loadOwnedSession(ctx, c.Sessions)
	if session == nil {
		return
	}

	var req integrityEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	verdict, err := c.Integrity.ReportEvent(ctx.Request.Context(), session, req.Event, req.Detail)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, verdict)
}

type heartbeatRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

// @Summary 可见性心跳
// @Description 客户端定时上报页面可见性，心跳断流由服务端看门狗计违规
// @Tags 监考
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "会话ID"
// @Param body body heartbeatRequest true "可见性"
// @Success 200 {object} util.Response
// @Router /api/sessions/{sessionId}/integrity/heartbeat [post]
func (c *IntegrityController) Heartbeat(ctx *gin.Context) {
	session := loadOwnedSession(ctx, c.Sessions)
	if session == nil {
		return
	}

	var req heartbeatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	state := c.Integrity.Heartbeat(session, *req.Visible)
	util.Success(ctx, state)
}

// @Summary 会话监考事件审计
// @Tags 监考
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/sessions/{sessionId}/integrity/events [get]
func (c *IntegrityController) ListEvents(ctx *gin.Context) {
	session := loadOwnedSession(ctx, c.Sessions)
	if session == nil {
		return
	}

	events, err := c.Integrity.Events.ListBySession(session.ID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, events)
}
