package knowledge

import (
	"net/url"
	"strings"
)

// 后端的文档元数据没有契约约定，不同来源会把链接放在不同的键下。
// 这里按固定顺序探测候选键，每个键配一个校验函数，取第一个通过校验的值。
type citationProbe struct {
	key      string
	validate func(string) bool
}

var citationProbes = []citationProbe{
	{"url", anyNonEmpty},
	{"source_url", anyNonEmpty},
	{"sourceUrl", anyNonEmpty},
	{"source", anyNonEmpty},
	// 文件名只有在看起来是绝对 HTTP(S) URL 时才能当作引用链接
	{"file_name", looksLikeHTTPURL},
	{"fileName", looksLikeHTTPURL},
}

func anyNonEmpty(s string) bool {
	return s != ""
}

func looksLikeHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ExtractCitationURL 从一篇后端文档中提取可展示的引用链接。
// 对任何形状的元数据（缺失、数组、数字等）都不会出错，提取不到时返回 false。
func ExtractCitationURL(doc Document) (string, bool) {
	if doc.Metadata == nil {
		return "", false
	}
	for _, probe := range citationProbes {
		raw, ok := doc.Metadata[probe.key]
		if !ok {
			continue
		}
		value, ok := raw.(string)
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if probe.validate(value) {
			return value, true
		}
	}
	return "", false
}

// ExtractCitations 按文档顺序提取所有引用链接，提取不到的文档被跳过。
func ExtractCitations(docs []Document) []string {
	citations := make([]string, 0, len(docs))
	for _, doc := range docs {
		if url, ok := ExtractCitationURL(doc); ok {
			citations = append(citations, url)
		}
	}
	return citations
}

// CitationLabel 从引用链接推导一个适合展示的标签：取主机名并去掉开头的 www.。
// 解析失败时原样返回输入，绝不向调用方抛出错误。
func CitationLabel(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Hostname() == "" {
		return raw
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}
