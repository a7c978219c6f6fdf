package ingestion

import (
	"fmt"
	"os"
	"strings"
)

// LoadDocument はコーパスとなるドキュメントをファイルから読み込みます
// プレーンテキストとMarkdownを対象とし、改行コードをLFに正規化します
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")

	return &Document{
		Path:    path,
		Content: content,
	}, nil
}
