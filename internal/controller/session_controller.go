package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/sidhuiwnl/lordminds-sub000/internal/model"
	"github.com/sidhuiwnl/lordminds-sub000/internal/service"
	"github.com/sidhuiwnl/lordminds-sub000/internal/util"

	"github.com/gin-gonic/gin"
)

type SessionController struct {
	Sessions  *service.SessionService
	Questions *service.QuestionService
	Integrity *service.IntegrityService
}

func NewSessionController(sessions *service.SessionService, questions *service.QuestionService, integrity *service.IntegrityService) *SessionController {
	return &SessionController{Sessions: sessions, Questions: questions, Integrity: integrity}
}

// @Summary 开启监考会话
// @Description 同一作业已有未结束会话则恢复，已被终止则永久拒绝
// @Tags 会话
// @Produce json
// @Security BearerAuth
// @Param assignmentId path int true "作业ID"
// @Success 201 {object} util.Response
// @Router /api/assignments/{assignmentId}/session [post]
func (c *SessionController) Open(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	assignmentID, err := strconv.Atoi(ctx.Param("assignmentId"))
	if err != nil {
		util.BadRequest(ctx, "invalid assignment id")
		return
	}

	session, resumed, err := c.Sessions.Open(ctx.Request.Context(), user.UserID, uint(assignmentID))
	if err != nil {
		if errors.Is(err, util.ErrSessionTerminated) {
			util.Conflict(ctx, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	questions, err := c.Questions.QuestionsInOrder(ctx.Request.Context(), user.UserID, uint(assignmentID))
	if err != nil {
		util.Error(ctx, http.StatusBadGateway, err.Error())
		return
	}
	if err := c.Questions.InitAttempts(session.ID, questions); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	monitor := c.Integrity.Attach(session)

	views := make([]model.StudentQuestion, len(questions))
	for i, q := range questions {
		views[i] = q.StudentView()
	}

	payload := gin.H{
		"session":   session,
		"resumed":   resumed,
		"questions": views,
		"monitor":   monitor.State(),
	}
	if resumed {
		util.Success(ctx, payload)
		return
	}
	util.Created(ctx, payload)
}

// @Summary 获取本会话的题集
// @Description 按会话固定的出题顺序返回，不含答案
// @Tags 会话
// @Produce json
// @Security BearerAuth
// @Param assignmentId path int true "作业ID"
// @Success 200 {object} util.Response
// @Router /api/assignments/{assignmentId}/questions [get]
func (c *SessionController) GetQuestions(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	assignmentID, err := strconv.Atoi(ctx.Param("assignmentId"))
	if err != nil {
		util.BadRequest(ctx, "invalid assignment id")
		return
	}

	questions, err := c.Questions.QuestionsInOrder(ctx.Request.Context(), user.UserID, uint(assignmentID))
	if err != nil {
		util.Error(ctx, http.StatusBadGateway, err.Error())
		return
	}

	views := make([]model.StudentQuestion, len(questions))
	for i, q := range questions {
		views[i] = q.StudentView()
	}
	util.Success(ctx, views)
}

// @Summary 查询会话状态
// @Tags 会话
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/sessions/{sessionId} [get]
func (c *SessionController) Get(ctx *gin.Context) {
	session := loadOwnedSession(ctx, c.Sessions)
	if session == nil {
		return
	}
	util.Success(ctx, gin.H{
		"session": session,
		"monitor": c.Integrity.State(session),
	})
}

// loadOwnedSession 取路径里的会话并校验归属，失败时已写响应返回 nil。
func loadOwnedSession(ctx *gin.Context, sessions *service.SessionService) *model.ProctorSession {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return nil
	}

	session, err := sessions.Get(ctx.Request.Context(), ctx.Param("sessionId"))
	if err != nil {
		if errors.Is(err, util.ErrSessionNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return nil
	}
	if session.UserID != user.UserID {
		util.Forbidden(ctx)
		return nil
	}
	return session
}

// requireActive 在作答类操作前检查会话未被终止或暂挂。
func requireActive(ctx *gin.Context, integrity *service.IntegrityService, session *model.ProctorSession) bool {
	if err := integrity.Blocked(session); err != nil {
		if errors.Is(err, util.ErrSessionTerminated) {
			ctx.JSON(http.StatusConflict, gin.H{
				"success":      false,
				"message":      err.Error(),
				"redirectHome": true,
			})
		} else {
			util.Error(ctx, http.StatusLocked, err.Error())
		}
		return false
	}
	if session.Ended() {
		util.Conflict(ctx, util.ErrSessionEnded.Error())
		return false
	}
	return true
}
