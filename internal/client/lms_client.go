package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sidhuiwnl/lordminds-sub000/internal/config"
)

// RawQuestion 主站题库返回的异构载荷，不同题型填充不同字段，
// 由 QuestionService 归一化成统一的 model.Question。
type RawQuestion struct {
	QuestionID   uint   `json:"question_id"`
	QuestionType string `json:"question_type"`
	QuestionText string `json:"question_text"`

	// mcq：按字母排布的选项字段
	OptionA string `json:"option_a,omitempty"`
	OptionB string `json:"option_b,omitempty"`
	OptionC string `json:"option_c,omitempty"`
	OptionD string `json:"option_d,omitempty"`
	// mcq：字母（"B"）或完整选项文本
	CorrectOption string `json:"correct_option,omitempty"`

	// true_false / fill_blank / pronunciation 主答案
	Answer string `json:"answer,omitempty"`
	// fill_blank / pronunciation：逗号分隔的其他可接受答案
	AlternateAnswers string `json:"alternate_answers,omitempty"`

	// match
	LeftOptions  []string       `json:"left_options,omitempty"`
	RightOptions []string       `json:"right_options,omitempty"`
	Matches      map[string]int `json:"matches,omitempty"` // 字母 → 右列序号(1起)
}

type StoreMarksRequest struct {
	StudentID     uint `json:"student_id"`
	AssignmentID  uint `json:"assignment_id"`
	MarksObtained int  `json:"marks_obtained"`
	MaxMarks      int  `json:"max_marks"`
}

// LMSClient 主站协作方：题库拉取与成绩上报。
type LMSClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewLMSClient(cfg *config.LMSConfig) *LMSClient {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &LMSClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchQuestions 拉取作业题目，瞬时失败最多重试2次（退避1s起）。
func (c *LMSClient) FetchQuestions(ctx context.Context, assignmentID uint) ([]RawQuestion, error) {
	var questions []RawQuestion

	err := doWithRetry(ctx, "lms.fetch_questions", 3, time.Second, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/api/assignments/%d/questions", c.baseURL, assignmentID), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("lms questions error (status %d): %s", resp.StatusCode, string(body))
		}

		var payload struct {
			Questions []RawQuestion `json:"questions"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return err
		}
		questions = payload.Questions
		return nil
	})

	if err != nil {
		return nil, err
	}
	return questions, nil
}

// StoreMarks 上报最终成绩，失败由上层提示可重试，不关闭会话。
func (c *LMSClient) StoreMarks(ctx context.Context, marks StoreMarksRequest) error {
	jsonData, err := json.Marshal(marks)
	if err != nil {
		return err
	}

	return doWithRetry(ctx, "lms.store_marks", 3, time.Second, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/api/assignment/store-marks", bytes.NewBuffer(jsonData))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("lms store-marks error (status %d): %s", resp.StatusCode, string(body))
		}
		return nil
	})
}
