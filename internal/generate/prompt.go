// Package generate implements the AI generation proxy: it turns
// pedagogical metadata into a prompt, calls the generative model, and
// post-processes the response into a self-contained HTML document.
package generate

import (
	"fmt"
	"strings"
)

// ContentType selects the instruction template.
type ContentType string

const (
	TypeGame       ContentType = "game"
	TypeSimulation ContentType = "simulation"
	TypeWebtoon    ContentType = "webtoon"
)

// Metadata is the user-supplied pedagogical input for one generation.
type Metadata struct {
	Grade      string `json:"grade"`
	Unit       string `json:"unit"`
	GameType   string `json:"gameType"`
	Difficulty string `json:"difficulty"`
	// Description carries free-text notes. Regeneration appends the
	// user's modification request to it and re-issues the call.
	Description string `json:"description"`
}

const promptPreamble = `당신은 교육용 웹 콘텐츠를 만드는 전문가입니다. HTML, CSS, JavaScript를 사용하여 완전한 단일 파일 웹 애플리케이션을 만듭니다.`

const commonConstraints = `

[기술 요구사항]
1. 완전한 단일 HTML 파일로 작성 (외부 파일 참조 없이)
2. HTML, CSS, JavaScript를 모두 하나의 파일에 포함
3. 반응형 디자인 적용 (모바일에서도 작동)
4. 한글로 작성 (설명, 문제, UI 모두)
5. 외부 라이브러리 사용 금지 (순수 JavaScript만 사용)
6. 이미지는 emoji나 CSS로 구현 (외부 이미지 URL 사용 금지)

[중요 제약사항]
- DOCTYPE 선언으로 시작하는 완전한 HTML 문서
- 외부 파일, 외부 라이브러리, 외부 이미지 절대 사용 금지
- 모든 스타일은 <style> 태그 안에
- 모든 스크립트는 <script> 태그 안에

응답은 반드시 완전한 HTML 코드만 작성하고, 설명이나 마크다운 코드 블록(백틱)은 사용하지 마세요.
<!DOCTYPE html>로 시작하는 순수 HTML 코드만 반환하세요.`

// BuildPrompt renders the full instruction for the content type.
func BuildPrompt(t ContentType, m Metadata) string {
	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\n")

	switch t {
	case TypeSimulation:
		b.WriteString(`당신은 초·중·고 수학 교육 전문가이자 웹 개발자입니다.
학생들이 수학 개념을 시각적으로 이해할 수 있는 인터랙티브 시뮬레이션을 HTML, CSS, JavaScript로 만들어주세요.

[시뮬레이션 요구사항]`)
		writeField(&b, "학년", m.Grade)
		writeField(&b, "단원/핵심개념", m.Unit)
		writeField(&b, "형식", m.GameType)
		writeField(&b, "난이도", m.Difficulty)
		writeOptional(&b, "추가 요청사항", m.Description)
		b.WriteString(`

[시뮬레이션 구성요소]
1. 제목과 시뮬레이션 설명
2. 인터랙티브 시각화 영역 (Canvas 또는 HTML/CSS)
3. 조작 패널 (슬라이더, 버튼, 입력 필드 등)
4. 실시간 값 표시
5. 초기화/재설정 버튼
6. 도움말/설명 섹션`)

	case TypeWebtoon:
		b.WriteString(`당신은 초·중·고 수학 교육 전문가이자 웹 개발자입니다.
학생들이 수학 개념을 이야기로 이해할 수 있는 세로 스크롤 수학 웹툰을 HTML, CSS, JavaScript로 만들어주세요.

[웹툰 요구사항]`)
		writeField(&b, "학년", m.Grade)
		writeField(&b, "단원/핵심개념", m.Unit)
		writeOptional(&b, "추가 요청사항", m.Description)
		b.WriteString(`

[웹툰 구성요소]
1. 제목과 도입 장면
2. 세로 스크롤 컷 구성 (CSS로 그린 장면과 말풍선)
3. 개념을 설명하는 등장인물 대화
4. 중간 퀴즈 또는 생각해보기 컷
5. 정리 장면과 마무리 메시지`)

	default: // TypeGame
		b.WriteString(`당신은 초·중·고 수학 교육 전문가이자 웹 개발자입니다.
학생들이 재미있게 배울 수 있는 인터랙티브 수학 게임을 HTML, CSS, JavaScript로 만들어주세요.

[게임 요구사항]`)
		writeField(&b, "학년", m.Grade)
		writeField(&b, "단원/핵심개념", m.Unit)
		writeField(&b, "게임 형식", m.GameType)
		writeField(&b, "난이도", m.Difficulty)
		writeOptional(&b, "추가 요청사항", m.Description)
		b.WriteString(`

[게임 구성요소]
1. 제목과 게임 설명
2. 시작 버튼
3. 게임 진행 화면 (문제/미션 등)
4. 점수/진행도 표시
5. 피드백 시스템 (정답/오답 알림)
6. 완료 화면 (결과, 재시작 버튼)`)
	}

	b.WriteString(commonConstraints)
	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	fmt.Fprintf(b, "\n- %s: %s", name, value)
}

func writeOptional(b *strings.Builder, name, value string) {
	if strings.TrimSpace(value) != "" {
		fmt.Fprintf(b, "\n- %s: %s", name, value)
	}
}
