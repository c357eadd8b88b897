package engine

import "github.com/roasbeef/pagesum/internal/content"

// SystemPrompt is the fixed summarization instruction: a three to four
// sentence objective Korean summary of the key facts.
const SystemPrompt = `당신은 전문 한국어 요약 전문가입니다.

규칙:
1. 정확히 3-4문장으로 작성
2. 핵심 사실과 중요한 정보만 포함
3. 객관적이고 간결한 문체 사용
4. 원문의 주요 결론이나 결과 포함

형식: 각 문장은 완전한 한국어 문장으로 끝나야 하며, 불완전한 문장은 작성하지 마세요.`

// UserPrefix precedes the content in the user turn.
const UserPrefix = "다음 텍스트를 요약해주세요:\n\n"

// buildMessages returns the two turns of a summarization request. The
// content is capped again so callers that skipped truncation stay within
// the model budget.
func buildMessages(systemPrompt, text string) []Message {
	return []Message{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: UserPrefix + content.Truncate(text)},
	}
}
