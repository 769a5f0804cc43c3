package controller

import (
	"errors"
	"net/http"

	"github.com/sidhuiwnl/lordminds-sub000/internal/service"
	"github.com/sidhuiwnl/lordminds-sub000/internal/util"

	"github.com/gin-gonic/gin"
)

type NavigationController struct {
	Sessions   *service.SessionService
	Integrity  *service.IntegrityService
	Navigation *service.NavigationService
}

func NewNavigationController(sessions *service.SessionService, integrity *service.IntegrityService, navigation *service.NavigationService) *NavigationController {
	return &NavigationController{Sessions: sessions, Integrity: integrity, Navigation: navigation}
}

// @Summary 题目导航
// @Description next前进到下一题，prev回退复查；目标题未答对且未揭示答案时拒绝
// @Tags 作答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "会话ID"
// @Param request body object true "{direction: next|prev}"
// @Success 200 {object} util.Response
// @Router /api/sessions/{sessionId}/navigate [post]
func (c *NavigationController) Navigate(ctx *gin.Context) {
	session := loadOwnedSession(ctx, c.Sessions)
	if session == nil || !requireActive(ctx, c.Integrity, session) {
		return
	}

	var req struct {
		Direction string `json:"direction" binding:"required,oneof=next prev"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	var step int
	var err error
	if req.Direction == "prev" {
		step, err = c.Navigation.Retreat(ctx.Request.Context(), session)
	} else {
		step, err = c.Navigation.Advance(ctx.Request.Context(), session)
	}
	if err != nil {
		c.writeNavigationError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"currentStep": step})
}

// @Summary 交卷
// @Description 全部题目到终态后计分并上报主站，上报成功才关闭会话
// @Tags 作答
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/sessions/{sessionId}/submit [post]
func (c *NavigationController) Submit(ctx *gin.Context) {
	session := loadOwnedSession(ctx, c.Sessions)
	if session == nil || !requireActive(ctx, c.Integrity, session) {
		return
	}

	result, err := c.Navigation.Submit(ctx.Request.Context(), session)
	if err != nil {
		c.writeNavigationError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

func (c *NavigationController) writeNavigationError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrQuestionNotTerminal),
		errors.Is(err, util.ErrNotAllTerminal),
		errors.Is(err, util.ErrStepOutOfRange):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrMarksUnavailable), errors.Is(err, util.ErrQuestionsUnavailable):
		util.Error(ctx, http.StatusBadGateway, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
