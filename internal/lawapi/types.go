package lawapi

import (
	"encoding/json"
	"strings"
)

// LawInfo identifies one law as registered in the e-Gov database.
type LawInfo struct {
	LawID            string `json:"law_id"`
	LawNum           string `json:"law_num"`
	LawType          string `json:"law_type,omitempty"`
	PromulgationDate string `json:"promulgation_date,omitempty"`
}

// RevisionInfo describes the revision of a law returned by the API.
type RevisionInfo struct {
	LawRevisionID           string `json:"law_revision_id,omitempty"`
	LawTitle                string `json:"law_title"`
	LawTitleKana            string `json:"law_title_kana,omitempty"`
	AmendmentPromulgateDate string `json:"amendment_promulgate_date,omitempty"`
}

// LawListItem is one entry of a law search result.
type LawListItem struct {
	LawInfo      LawInfo      `json:"law_info"`
	RevisionInfo RevisionInfo `json:"revision_info"`
}

// SearchResult is the response of GET /laws.
type SearchResult struct {
	TotalCount int           `json:"total_count"`
	Count      int           `json:"count"`
	Laws       []LawListItem `json:"laws"`
}

// LawData is the response of GET /law_data/{law_id}, carrying the full law
// body as a tag tree.
type LawData struct {
	LawInfo      LawInfo      `json:"law_info"`
	RevisionInfo RevisionInfo `json:"revision_info"`
	FullText     *Element     `json:"law_full_text"`
}

// Element is one node of the law body tree. The upstream JSON mixes object
// nodes ({"tag":..., "attr":..., "children":[...]}) and bare strings; string
// children become leaf Elements with only Text set.
type Element struct {
	Tag      string
	Attr     map[string]string
	Children []Element
	Text     string
}

func (e *Element) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		return json.Unmarshal(data, &e.Text)
	}
	var node struct {
		Tag      string            `json:"tag"`
		Attr     map[string]string `json:"attr"`
		Children []Element         `json:"children"`
	}
	if err := json.Unmarshal(data, &node); err != nil {
		return err
	}
	e.Tag = node.Tag
	e.Attr = node.Attr
	e.Children = node.Children
	return nil
}

// blockTags are tags that end a logical line when flattening law text.
var blockTags = map[string]bool{
	"LawTitle":        true,
	"ArticleCaption":  true,
	"ArticleTitle":    true,
	"Article":         true,
	"Paragraph":       true,
	"Item":            true,
	"ChapterTitle":    true,
	"PartTitle":       true,
	"SectionTitle":    true,
	"SupplProvision":  true,
	"EnactStatement":  true,
	"TOCChapter":      true,
	"TableRow":        true,
}

// FlattenText renders the subtree as plain text, one logical block per line.
func (e *Element) FlattenText() string {
	var b strings.Builder
	e.flatten(&b)
	return strings.TrimSpace(b.String())
}

func (e *Element) flatten(b *strings.Builder) {
	if e.Text != "" {
		b.WriteString(e.Text)
		return
	}
	for i := range e.Children {
		e.Children[i].flatten(b)
	}
	if blockTags[e.Tag] {
		b.WriteString("\n")
	}
}

// Title returns the text of the first LawTitle node, or "".
func (e *Element) Title() string {
	if n := e.First("LawTitle"); n != nil {
		return strings.TrimSuffix(n.FlattenText(), "\n")
	}
	return ""
}

// First returns the first node with the given tag in document order.
func (e *Element) First(tag string) *Element {
	if e.Tag == tag {
		return e
	}
	for i := range e.Children {
		if n := e.Children[i].First(tag); n != nil {
			return n
		}
	}
	return nil
}

// FindArticle returns the Article node whose Num attribute equals num.
func (e *Element) FindArticle(num string) *Element {
	if e.Tag == "Article" && e.Attr["Num"] == num {
		return e
	}
	for i := range e.Children {
		if n := e.Children[i].FindArticle(num); n != nil {
			return n
		}
	}
	return nil
}

// CountTag counts nodes with the given tag in the subtree.
func (e *Element) CountTag(tag string) int {
	n := 0
	if e.Tag == tag {
		n++
	}
	for i := range e.Children {
		n += e.Children[i].CountTag(tag)
	}
	return n
}

// Articles collects every Article node in document order.
func (e *Element) Articles() []*Element {
	var out []*Element
	e.collect("Article", &out)
	return out
}

func (e *Element) collect(tag string, out *[]*Element) {
	if e.Tag == tag {
		*out = append(*out, e)
		return
	}
	for i := range e.Children {
		e.Children[i].collect(tag, out)
	}
}
