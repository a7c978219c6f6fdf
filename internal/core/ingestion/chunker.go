package ingestion

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultChunkSize はチャンクの最大トークン数
	DefaultChunkSize = 1000
	// DefaultOverlap は隣接チャンク間で重複させるトークン数
	DefaultOverlap = 100
)

var (
	// 段落区切り（空行）
	paragraphSepRe = regexp.MustCompile(`\n[ \t]*\n+`)
	// 文区切り（終端記号まで）
	sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// Chunker はドキュメントを重複付きのチャンク列に分割します
// チャンクサイズはcl100k_baseトークン数で測り、段落・文の境界を優先します
type Chunker struct {
	encoder   *tiktoken.Tiktoken
	chunkSize int
	overlap   int
}

// ChunkerOption は Chunker のオプション設定
type ChunkerOption func(*Chunker)

// WithChunkSize は最大トークン数を上書きする
func WithChunkSize(size int) ChunkerOption {
	return func(c *Chunker) {
		c.chunkSize = size
	}
}

// WithOverlap はオーバーラップトークン数を上書きする
func WithOverlap(overlap int) ChunkerOption {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

// NewChunker は新しいChunkerを作成します
func NewChunker(opts ...ChunkerOption) (*Chunker, error) {
	// cl100k_baseエンコーダを使用（text-embedding-3-smallと互換）
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoder: %w", err)
	}

	c := &Chunker{
		encoder:   encoder,
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", c.chunkSize)
	}
	if c.overlap < 0 || c.overlap >= c.chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, chunk size), got %d", c.overlap)
	}

	return c, nil
}

// segment はチャンクに取り込む最小単位（段落または文）
type segment struct {
	start  int // contentに対する開始バイトオフセット
	end    int // 終了バイトオフセット（排他的）
	tokens int
}

// Split はテキストをチャンク列に分割します
// 空のドキュメントは空のスライスを返します（エラーにはしない）
func (c *Chunker) Split(content string) ([]*Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	segs := c.segment(content)
	if len(segs) == 0 {
		return nil, nil
	}

	var chunks []*Chunk
	first := 0
	prevFirst := -1
	for first < len(segs) {
		// 無限ループ防止（firstは毎回前進する）
		if first <= prevFirst {
			first = prevFirst + 1
			if first >= len(segs) {
				break
			}
		}
		prevFirst = first

		// chunkSizeに収まる限りセグメントを伸長する
		last := first
		for last+1 < len(segs) {
			span := content[segs[first].start:segs[last+1].end]
			if c.countTokens(span) > c.chunkSize {
				break
			}
			last++
		}

		text := strings.TrimSpace(content[segs[first].start:segs[last].end])
		if text != "" {
			chunks = append(chunks, &Chunk{
				ID:          uuid.New(),
				Ordinal:     len(chunks),
				Text:        text,
				StartOffset: segs[first].start,
				EndOffset:   segs[last].end,
			})
		}

		if last == len(segs)-1 {
			break
		}

		// 次のチャンクの先頭を決める: 末尾からoverlapトークン分だけ遡る
		next := last + 1
		overlapFirst := next
		accumulated := 0
		for j := last; j > first; j-- {
			accumulated += segs[j].tokens
			if accumulated > c.overlap {
				break
			}
			overlapFirst = j
		}
		first = overlapFirst
	}

	return chunks, nil
}

// segment はテキストを段落・文単位のセグメント列に分解します
// 単独でchunkSizeを超えるセグメントはトークン窓で強制分割します
func (c *Chunker) segment(content string) []segment {
	var segs []segment
	for _, span := range paragraphSpans(content) {
		text := content[span[0]:span[1]]
		tokens := c.countTokens(text)
		if tokens <= c.chunkSize {
			segs = append(segs, segment{start: span[0], end: span[1], tokens: tokens})
			continue
		}

		// 段落が大きすぎる場合は文単位に分解
		for _, sSpan := range sentenceSpans(text) {
			start := span[0] + sSpan[0]
			end := span[0] + sSpan[1]
			sTokens := c.countTokens(content[start:end])
			if sTokens <= c.chunkSize {
				segs = append(segs, segment{start: start, end: end, tokens: sTokens})
				continue
			}
			// 文すら収まらない場合はトークン窓で強制分割
			segs = append(segs, c.hardSplit(content, start, end)...)
		}
	}
	return segs
}

// hardSplit は[start,end)の範囲をchunkSizeトークンずつの窓に分割します
func (c *Chunker) hardSplit(content string, start, end int) []segment {
	tokens := c.encoder.Encode(content[start:end], nil, nil)
	var segs []segment
	offset := start
	for i := 0; i < len(tokens); i += c.chunkSize {
		j := i + c.chunkSize
		if j > len(tokens) {
			j = len(tokens)
		}
		// トークン列の連結はバイト列の分割と一致するため、
		// デコード結果の長さからオフセットを復元できる
		decoded := c.encoder.Decode(tokens[i:j])
		segs = append(segs, segment{
			start:  offset,
			end:    offset + len(decoded),
			tokens: j - i,
		})
		offset += len(decoded)
	}
	return segs
}

func (c *Chunker) countTokens(text string) int {
	return len(c.encoder.Encode(text, nil, nil))
}

// paragraphSpans は空行区切りの段落範囲を返します（空白のみの段落は除外）
func paragraphSpans(content string) [][2]int {
	var spans [][2]int
	prev := 0
	for _, sep := range paragraphSepRe.FindAllStringIndex(content, -1) {
		appendTrimmed(&spans, content, prev, sep[0])
		prev = sep[1]
	}
	appendTrimmed(&spans, content, prev, len(content))
	return spans
}

// sentenceSpans は文単位の範囲を返します（text先頭からの相対オフセット）
// 終端記号を持たない末尾部分も1つのセグメントとして含めます
func sentenceSpans(text string) [][2]int {
	matches := sentenceRe.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return [][2]int{{0, len(text)}}
	}

	var spans [][2]int
	tail := 0
	for _, m := range matches {
		spans = append(spans, [2]int{m[0], m[1]})
		tail = m[1]
	}
	if strings.TrimSpace(text[tail:]) != "" {
		spans = append(spans, [2]int{tail, len(text)})
	}
	return spans
}

// appendTrimmed は前後の空白を除いた範囲をspansに追加します
func appendTrimmed(spans *[][2]int, content string, start, end int) {
	text := content[start:end]
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	left := strings.Index(text, trimmed)
	*spans = append(*spans, [2]int{start + left, start + left + len(trimmed)})
}
