package chat

import (
	"fmt"
	"strings"

	"github.com/jinford/docchat/internal/core/retrieval"
)

// FallbackAnswer はコンテキストから回答できない場合にモデルへ指示する定型文
// 回答がこの文と一致するかで「未回答」を機械判定できる
const FallbackAnswer = "I'm sorry, I don't have that information right now."

// PromptTemplate はプロンプトの種別と必須スロットの宣言
type PromptTemplate struct {
	Name  string
	Slots []string
}

var (
	// ReformulateTemplate は履歴を使った自己完結クエリへの書き換え
	// 出力契約: クエリ1文のみ（既に明確なら入力をそのまま返す）
	ReformulateTemplate = PromptTemplate{
		Name:  "reformulate",
		Slots: []string{"history", "input"},
	}

	// AnswerTemplate はコンテキストに基づく回答生成
	// 出力契約: 根拠のある回答、またはFallbackAnswerそのもの
	AnswerTemplate = PromptTemplate{
		Name:  "answer",
		Slots: []string{"context", "history", "input"},
	}
)

// BuildReformulatePrompt は履歴とユーザー発話から書き換えプロンプトを構築する
func BuildReformulatePrompt(history []Turn, utterance string) string {
	var sb strings.Builder

	sb.WriteString("You are tasked with improving user queries to ensure they are clear and self-contained. ")
	sb.WriteString("Use the chat history to resolve pronouns and elliptical references so the query can be understood without any prior context. ")
	sb.WriteString("If the query is already clear, return it as is. ")
	sb.WriteString("Respond with the rewritten query only, without explanation.\n\n")

	sb.WriteString("## Chat history\n")
	writeHistory(&sb, history)
	sb.WriteString("\n")

	sb.WriteString("## Query\n")
	sb.WriteString(utterance)
	sb.WriteString("\n\n")

	sb.WriteString("## Rewritten query\n")

	return sb.String()
}

// BuildAnswerPrompt は検索結果・履歴・クエリから回答プロンプトを構築する
func BuildAnswerPrompt(query string, chunks []*retrieval.SearchResult, history []Turn) string {
	var sb strings.Builder

	sb.WriteString("You are an AI assistant specialized in answering questions about the provided document. ")
	sb.WriteString("Provide clear, concise answers based only on the context below. ")
	sb.WriteString("If the information is not available in the context, respond with exactly: ")
	sb.WriteString(fmt.Sprintf("%q\n\n", FallbackAnswer))

	sb.WriteString("## Context\n")
	if len(chunks) > 0 {
		for i, chunk := range chunks {
			sb.WriteString(fmt.Sprintf("### [Excerpt %d] (relevance: %.3f)\n", i+1, chunk.Score))
			sb.WriteString(chunk.Text)
			sb.WriteString("\n\n")
		}
	} else {
		sb.WriteString("(no relevant excerpts found)\n\n")
	}

	sb.WriteString("## Chat history\n")
	writeHistory(&sb, history)
	sb.WriteString("\n")

	sb.WriteString("## Question\n")
	sb.WriteString(query)
	sb.WriteString("\n\n")

	sb.WriteString("## Answer\n")

	return sb.String()
}

// writeHistory はターン履歴を "role: content" 形式で書き出す
func writeHistory(sb *strings.Builder, history []Turn) {
	if len(history) == 0 {
		sb.WriteString("(no prior turns)\n")
		return
	}
	for _, turn := range history {
		sb.WriteString(string(turn.Role))
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
		sb.WriteString("\n")
	}
}
