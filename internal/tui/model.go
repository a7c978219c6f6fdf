package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jinford/docchat/internal/core/chat"
)

// Greeting は起動直後にアシスタントが表示する挨拶
const Greeting = "Hi, I'm your document assistant! How can I help you today?"

// AskPort はTUIが利用するオーケストレータAPIの部分集合
type AskPort interface {
	Ask(ctx context.Context, params chat.AskParams) (*chat.AskResult, error)
}

// answerMsg は非同期のAsk完了を通知する
type answerMsg struct {
	result *chat.AskResult
	err    error
}

// line は画面上の1発話
type line struct {
	role    chat.Role
	content string
}

// Model は会話画面のBubble Teaモデル
type Model struct {
	service   AskPort
	sessionID string
	input     textinput.Model
	viewport  viewport.Model
	lines     []line
	status    string
	waiting   bool
	ready     bool
}

// New は新しいTUIモデルを作成する
func New(service AskPort, sessionID string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask me anything about the document..."
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:   service,
		sessionID: sessionID,
		input:     ti,
		viewport:  vp,
		lines:     []line{{role: chat.RoleAssistant, content: Greeting}},
		status:    "Ready.",
	}
}

// Init はテキスト入力のカーソル点滅を開始する
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update はキー入力・回答完了・リサイズを処理する
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, frameHeight := chatBoxStyle.GetFrameSize()
		_, inputHeight := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + inputHeight + 2 // header + status + input + spacers
		vh := msg.Height - reserved - frameHeight
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width-4)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderConversation())
		m.viewport.GotoBottom()
		return m, nil

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.lines = append(m.lines, line{role: chat.RoleAssistant, content: msg.result.Answer})
			if msg.result.UsedFallback {
				m.status = "No answer found in the document."
			} else {
				m.status = fmt.Sprintf("Answered with %d supporting excerpts.", len(msg.result.Sources))
			}
		}
		m.viewport.SetContent(m.renderConversation())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			utterance := strings.TrimSpace(m.input.Value())
			if utterance != "" && !m.waiting {
				m.lines = append(m.lines, line{role: chat.RoleUser, content: utterance})
				m.input.Reset()
				m.waiting = true
				m.status = "Thinking..."
				m.viewport.SetContent(m.renderConversation())
				m.viewport.GotoBottom()
				return m, m.askCmd(utterance)
			}
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// askCmd はAskをバックグラウンドで実行するコマンドを返す
func (m Model) askCmd(utterance string) tea.Cmd {
	service := m.service
	sessionID := m.sessionID
	return func() tea.Msg {
		result, err := service.Ask(context.Background(), chat.AskParams{
			SessionID: sessionID,
			Utterance: utterance,
		})
		return answerMsg{result: result, err: err}
	}
}

// View は会話画面を描画する
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document Assistant")
	conversation := chatBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + conversation + "\n" + input + "\n" + status
}

func (m Model) renderConversation() string {
	var sb strings.Builder
	for i, l := range m.lines {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		switch l.role {
		case chat.RoleUser:
			sb.WriteString(userStyle.Render("You: "))
		default:
			sb.WriteString(assistantStyle.Render("Assistant: "))
		}
		sb.WriteString(l.content)
	}
	return sb.String()
}

var (
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
