package chat

import (
	"sync"

	"github.com/samber/mo"
)

// Session は単一会話のターン履歴を保持する
// ターンは追記専用で発生順に並ぶ。セッションを跨いだ共有はない
type Session struct {
	id string

	// turnMu は同一セッション内のターンを直列化する
	// 二重送信されたターンが履歴を壊さないよう、1ターンが完了（または中断）
	// するまで次のターンを開始させない
	turnMu sync.Mutex

	mu    sync.RWMutex
	turns []Turn
}

// ID はセッション識別子を返す
func (s *Session) ID() string {
	return s.id
}

// BeginTurn はターン開始を宣言し、同一セッションの並行ターンをブロックする
func (s *Session) BeginTurn() {
	s.turnMu.Lock()
}

// EndTurn はターン終了を宣言する
func (s *Session) EndTurn() {
	s.turnMu.Unlock()
}

// Append はターンを履歴の末尾に追記する
func (s *Session) Append(role Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: role, Content: content})
}

// Turns は全ターンのコピーを返す
func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Recent は直近n件のターンのコピーを返す（n<=0は全件）
// プロンプトの肥大化を抑えるために使う
func (s *Session) Recent(n int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if n > 0 && len(s.turns) > n {
		start = len(s.turns) - n
	}
	out := make([]Turn, len(s.turns)-start)
	copy(out, s.turns[start:])
	return out
}

// Len はターン数を返す
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// SessionStore はセッションIDをキーとするセッションの置き場
// セッションは初回アクセス時に遅延生成され、プロセスの生存期間だけ保持される
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionStore は新しいSessionStoreを作成する
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
	}
}

// Get は既存セッションを返す
func (st *SessionStore) Get(sessionID string) mo.Option[*Session] {
	st.mu.Lock()
	defer st.mu.Unlock()
	if sess, ok := st.sessions[sessionID]; ok {
		return mo.Some(sess)
	}
	return mo.None[*Session]()
}

// GetOrCreate はセッションを取得し、存在しなければ作成する
func (st *SessionStore) GetOrCreate(sessionID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	if sess, ok := st.sessions[sessionID]; ok {
		return sess
	}
	sess := &Session{id: sessionID}
	st.sessions[sessionID] = sess
	return sess
}

// Len はセッション数を返す
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
