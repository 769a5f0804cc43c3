package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sidhuiwnl/lordminds-sub000/internal/model"
)

// NormalizeTranscript 识别文本统一小写、去标点、压缩空白后再比对。
func NormalizeTranscript(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// GradeTranscript 按题型比对识别文本与标准答案，题型闭合，未知类型报错。
func GradeTranscript(q *model.Question, transcript string) (bool, error) {
	norm := NormalizeTranscript(transcript)

	switch q.Type {
	case model.QuestionFillBlank:
		return gradeFillBlank(q, norm), nil
	case model.QuestionPronunciation:
		return gradePronunciation(q, norm), nil
	case model.QuestionTrueFalse:
		return gradeTrueFalse(q, norm), nil
	case model.QuestionMCQ:
		return gradeMCQ(q, norm), nil
	case model.QuestionMatch:
		return gradeMatch(q, norm), nil
	default:
		return false, fmt.Errorf("unsupported question type: %s", q.Type)
	}
}

// fill_blank：识别文本包含任一可接受答案即得分。
func gradeFillBlank(q *model.Question, norm string) bool {
	for _, answer := range q.Acceptable {
		a := NormalizeTranscript(answer)
		if a != "" && strings.Contains(norm, a) {
			return true
		}
	}
	return false
}

// pronunciation：发音题放宽到双向包含，或去除空白后完全一致
// （长词常被识别服务拆成多段）。
func gradePronunciation(q *model.Question, norm string) bool {
	compact := strings.ReplaceAll(norm, " ", "")
	for _, answer := range q.Acceptable {
		a := NormalizeTranscript(answer)
		if a == "" {
			continue
		}
		if strings.Contains(norm, a) || strings.Contains(a, norm) && norm != "" {
			return true
		}
		if compact == strings.ReplaceAll(a, " ", "") {
			return true
		}
	}
	return false
}

var (
	trueWords  = []string{"true", "yes", "correct", "right"}
	falseWords = []string{"false", "no", "wrong", "incorrect"}
)

// true_false：扫描肯定/否定指示词。两组都未命中或互相冲突按答错处理，
// 说不清不等于免费重试。
func gradeTrueFalse(q *model.Question, norm string) bool {
	words := strings.Fields(norm)
	saidTrue, saidFalse := false, false
	for _, w := range words {
		for _, t := range trueWords {
			if w == t {
				saidTrue = true
			}
		}
		for _, f := range falseWords {
			if w == f {
				saidFalse = true
			}
		}
	}

	if saidTrue == saidFalse {
		return false
	}
	return saidTrue == q.CorrectBool
}

// mcq：识别文本包含正确选项全文，或包含其位置字母（不区分大小写）。
func gradeMCQ(q *model.Question, norm string) bool {
	correct := NormalizeTranscript(q.CorrectOption)
	if correct != "" && strings.Contains(norm, correct) {
		return true
	}

	for i, opt := range q.Options {
		if NormalizeTranscript(opt) != correct {
			continue
		}
		letter := strings.ToLower(model.OptionLetter(i))
		for _, w := range strings.Fields(norm) {
			if w == letter {
				return true
			}
		}
	}
	return false
}

// match：每个标准配对都必须在同一子句里提到两端（字母/序号或文本，
// 顺序不限），全对才得分，不给部分分。两端之间夹着其它配对端点按
// 未命中处理，完全说反的配对不能靠整段串扰得分。
func gradeMatch(q *model.Question, norm string) bool {
	if q.Match == nil || len(q.Match.Pairs) == 0 {
		return false
	}

	for letter, num := range q.Match.Pairs {
		if !matchPairMentioned(q.Match, letter, num, norm) {
			return false
		}
	}
	return true
}

func matchPairMentioned(spec *model.MatchSpec, letter string, num int, norm string) bool {
	leftIdx := int(strings.ToUpper(letter)[0] - 'A')
	if leftIdx < 0 || leftIdx >= len(spec.Left) || num < 1 || num > len(spec.Right) {
		return false
	}

	for _, seg := range splitMatchSegments(norm) {
		if segmentMentionsPair(spec, leftIdx, num-1, seg) {
			return true
		}
	}
	return false
}

// splitMatchSegments 按连接词把整段转写拆成逐条配对的子句。
func splitMatchSegments(norm string) []string {
	var segs []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			segs = append(segs, strings.Join(cur, " "))
			cur = nil
		}
	}
	for _, w := range strings.Fields(norm) {
		if w == "and" || w == "then" {
			flush()
			continue
		}
		cur = append(cur, w)
	}
	flush()
	return segs
}

// segmentMentionsPair 子句须同时出现配对两端，且两端之间不得夹
// 其它配对的字母、序号或文本。
func segmentMentionsPair(spec *model.MatchSpec, leftIdx, rightIdx int, seg string) bool {
	tokens := strings.Fields(seg)
	lStart, lEnd := findEndpoint(tokens, string(rune('a'+leftIdx)), spec.Left[leftIdx])
	rStart, rEnd := findEndpoint(tokens, strconv.Itoa(rightIdx+1), spec.Right[rightIdx])
	if lStart < 0 || rStart < 0 {
		return false
	}

	lo, hi := lEnd, rStart
	if rEnd <= lStart {
		lo, hi = rEnd, lStart
	}
	if lo > hi {
		return false
	}

	between := tokens[lo:hi]
	for i, text := range spec.Left {
		if i == leftIdx {
			continue
		}
		if s, _ := findEndpoint(between, string(rune('a'+i)), text); s >= 0 {
			return false
		}
	}
	for i, text := range spec.Right {
		if i == rightIdx {
			continue
		}
		if s, _ := findEndpoint(between, strconv.Itoa(i+1), text); s >= 0 {
			return false
		}
	}
	return true
}

// findEndpoint 在词序列里找某个端点的字母/序号词或其文本词组，
// 返回首个命中区间，未命中返回 (-1, -1)。
func findEndpoint(tokens []string, symbol, text string) (int, int) {
	for i, w := range tokens {
		if w == symbol {
			return i, i + 1
		}
	}
	phrase := strings.Fields(NormalizeTranscript(text))
	if len(phrase) == 0 {
		return -1, -1
	}
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		hit := true
		for j, p := range phrase {
			if tokens[i+j] != p {
				hit = false
				break
			}
		}
		if hit {
			return i, i + len(phrase)
		}
	}
	return -1, -1
}
