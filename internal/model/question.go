package model

// QuestionType 闭合的题型集合，评分逻辑按类型分派。
type QuestionType string

const (
	QuestionMCQ           QuestionType = "mcq"
	QuestionTrueFalse     QuestionType = "true_false"
	QuestionFillBlank     QuestionType = "fill_blank"
	QuestionPronunciation QuestionType = "pronunciation"
	QuestionMatch         QuestionType = "match"
)

// Question 题库返回的异构载荷归一化后的统一形态，加载后不可变。
type Question struct {
	ID     uint         `json:"id"`
	Type   QuestionType `json:"type"`
	Prompt string       `json:"prompt"`

	// mcq / fill_blank：展示给学生的选项（fill_blank 的干扰项可能由固定干扰池补齐）
	Options []string `json:"options,omitempty"`
	// mcq：正确选项的完整文本
	CorrectOption string `json:"-"`
	// true_false
	CorrectBool bool `json:"-"`
	// fill_blank / pronunciation：可接受答案集合（已归一化为小写）
	Acceptable []string `json:"-"`
	// match
	Match *MatchSpec `json:"match,omitempty"`
}

// MatchSpec 连线题载荷：左右两列和 字母→序号 的标准配对。
type MatchSpec struct {
	Left  []string       `json:"left"`
	Right []string       `json:"right"`
	Pairs map[string]int `json:"-"` // "A" -> 2 表示左列A项对应右列第2项（1起）
}

// OptionLetter 返回第 i 个选项的字母标号（0 -> "A"）。
func OptionLetter(i int) string {
	return string(rune('A' + i))
}

// StudentQuestion 学生端视图，不携带任何答案信息。
type StudentQuestion struct {
	ID      uint         `json:"id"`
	Type    QuestionType `json:"type"`
	Prompt  string       `json:"prompt"`
	Options []string     `json:"options,omitempty"`
	Left    []string     `json:"left,omitempty"`
	Right   []string     `json:"right,omitempty"`
}

func (q *Question) StudentView() StudentQuestion {
	sq := StudentQuestion{
		ID:      q.ID,
		Type:    q.Type,
		Prompt:  q.Prompt,
		Options: q.Options,
	}
	if q.Match != nil {
		sq.Left = q.Match.Left
		sq.Right = q.Match.Right
	}
	return sq
}
