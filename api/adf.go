package api

import "strings"

// PlainTextToADF はプレーンテキストを Atlassian Document Format に変換します。
// 空白のみの場合は nil を返します (フィールドごと送信しない)。
func PlainTextToADF(text string) map[string]interface{} {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	content := make([]interface{}, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			content = append(content, map[string]interface{}{
				"type":    "paragraph",
				"content": []interface{}{},
			})
			continue
		}
		content = append(content, map[string]interface{}{
			"type": "paragraph",
			"content": []interface{}{
				map[string]interface{}{"type": "text", "text": line},
			},
		})
	}

	return map[string]interface{}{
		"type":    "doc",
		"version": 1,
		"content": content,
	}
}

// CleanFields は nil と空文字のフィールドを取り除いた新しいマップを返します
func CleanFields(fields map[string]interface{}) map[string]interface{} {
	cleaned := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if val == "" {
				continue
			}
		case map[string]interface{}:
			if val == nil {
				continue
			}
		case map[string]string:
			if val == nil {
				continue
			}
		}
		cleaned[k] = v
	}
	return cleaned
}
