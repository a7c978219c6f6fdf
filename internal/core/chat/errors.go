package chat

import "errors"

var (
	// ErrExternalModel はLLM呼び出しの失敗・タイムアウトを表す
	ErrExternalModel = errors.New("external model call failed")

	// ErrSession はセッション状態の異常を表す
	// 新しいセッションを作り直すことで回復できる
	ErrSession = errors.New("invalid session state")

	// ErrEmptyUtterance は空の発話を表す
	ErrEmptyUtterance = errors.New("utterance is empty")
)

// ErrorAnswer はターン失敗時にユーザーへ返す定型文
// スタックトレース等の内部情報は決して露出させない
const ErrorAnswer = "I'm sorry, something went wrong while answering your question. Please try again."
