package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/sidhuiwnl/lordminds-sub000/internal/service"
	"github.com/sidhuiwnl/lordminds-sub000/internal/util"

	"github.com/gin-gonic/gin"
)

type GradingController struct {
	Sessions  *service.SessionService
	Integrity *service.IntegrityService
	Grading   *service.GradingService
}

func NewGradingController(sessions *service.SessionService, integrity *service.IntegrityService, grading *service.GradingService) *GradingController {
	return &GradingController{Sessions: sessions, Integrity: integrity, Grading: grading}
}

type recordingRequest struct {
	QuestionID uint `json:"questionId" binding:"required"`
}

// @Summary 开始录音
// @Tags 作答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "会话ID"
// @Param body body recordingRequest true "题目"
// @Success 200 {object} util.Response
// @Router /api/sessions/{sessionId}/recording/start [post]
func (c *GradingController) StartRecording(ctx *gin.Context) {
	session := loadOwnedSession(ctx, c.Sessions)
	if session == nil || !requireActive(ctx, c.Integrity, session) {
		return
	}

	var req recordingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Grading.StartRecording(ctx.Request.Context(), session, req.QuestionID); err != nil {
		c.writeGradingError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"recording": true})
}

// @Summary 取消录音
// @Description 放弃当前录音段，不消耗作答次数
// @Tags 作答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "会话ID"
// @Param body body recordingRequest true "题目"
// @Success 200 {object} util.Response
// @Router /api/sessions/{sessionId}/recording/cancel [post]
func (c *GradingController) CancelRecording(ctx *gin.Context) {
	session := loadOwnedSession(ctx, c.Sessions)
	if session == nil {
		return
	}

	var req recordingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Grading.CancelRecording(ctx.Request.Context(), session, req.QuestionID); err != nil {
		c.writeGradingError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"recording": false})
}

// @Summary 结束录音并评分
// @Description 上传录音，转码识别后按题型判分，识别成功消耗一次作答次数
// @Tags 作答
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "会话ID"
// @Param questionId formData int true "题目ID"
// @Param audio formData file true "录音文件"
// @Success 200 {object} util.Response
// @Router /api/sessions/{sessionId}/recording/stop [post]
func (c *GradingController) StopRecording(ctx *gin.Context) {
	session := loadOwnedSession(ctx, c.Sessions)
	if session == nil || !requireActive(ctx, c.Integrity, session) {
		return
	}

	questionID, err := strconv.Atoi(ctx.PostForm("questionId"))
	if err != nil {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	file, header, err := ctx.Request.FormFile("audio")
	if err != nil {
		util.BadRequest(ctx, "missing audio file")
		return
	}
	defer file.Close()

	result, err := c.Grading.StopAndAnalyze(ctx.Request.Context(), session, uint(questionID), file, header)
	if err != nil {
		c.writeGradingError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

type speakRequest struct {
	QuestionID  uint `json:"questionId" binding:"required"`
	OptionIndex *int `json:"optionIndex"` // 缺省读题面
}

// @Summary 朗读题面或选项
// @Description 返回客户端TTS应播报的文案，不计监考违规
// @Tags 作答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "会话ID"
// @Param body body speakRequest true "朗读目标"
// @Success 200 {object} util.Response
// @Router /api/sessions/{sessionId}/speak [post]
func (c *GradingController) Speak(ctx *gin.Context) {
	session := loadOwnedSession(ctx, c.Sessions)
	if session == nil || !requireActive(ctx, c.Integrity, session) {
		return
	}

	var req speakRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	idx := -1
	if req.OptionIndex != nil {
		idx = *req.OptionIndex
	}

	speech, err := c.Grading.Speak(ctx.Request.Context(), session, req.QuestionID, idx)
	if err != nil {
		c.writeGradingError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"speech": speech})
}

func (c *GradingController) writeGradingError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrAttemptNotFound), errors.Is(err, util.ErrQuestionNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrAttemptTerminal),
		errors.Is(err, util.ErrAttemptExhausted),
		errors.Is(err, util.ErrAlreadyRecording),
		errors.Is(err, util.ErrAnalysisInFlight),
		errors.Is(err, util.ErrNotRecording):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrVoiceUnavailable), errors.Is(err, util.ErrQuestionsUnavailable):
		util.Error(ctx, http.StatusBadGateway, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
