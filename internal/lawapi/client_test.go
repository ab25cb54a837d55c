package lawapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const sampleLawData = `{
	"law_info": {"law_id": "129AC0000000089", "law_num": "明治二十九年法律第八十九号"},
	"revision_info": {"law_title": "民法"},
	"law_full_text": {
		"tag": "Law",
		"attr": {"Era": "Meiji", "Year": "29"},
		"children": [
			{"tag": "LawNum", "children": ["明治二十九年法律第八十九号"]},
			{"tag": "LawBody", "children": [
				{"tag": "LawTitle", "children": ["民法"]},
				{"tag": "MainProvision", "children": [
					{"tag": "Chapter", "attr": {"Num": "1"}, "children": [
						{"tag": "ChapterTitle", "children": ["第一章　通則"]},
						{"tag": "Article", "attr": {"Num": "1"}, "children": [
							{"tag": "ArticleTitle", "children": ["第一条"]},
							{"tag": "Paragraph", "attr": {"Num": "1"}, "children": [
								{"tag": "Sentence", "children": ["私権は、公共の福祉に適合しなければならない。"]}
							]}
						]},
						{"tag": "Article", "attr": {"Num": "2"}, "children": [
							{"tag": "ArticleTitle", "children": ["第二条"]},
							{"tag": "Paragraph", "attr": {"Num": "1"}, "children": [
								{"tag": "Sentence", "children": ["この法律は、個人の尊厳と両性の本質的平等を旨として、解釈しなければならない。"]}
							]}
						]}
					]}
				]}
			]}
		]
	}
}`

func newStubServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /laws", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"total_count": 1,
			"count": 1,
			"laws": [{
				"law_info": {"law_id": "129AC0000000089", "law_num": "明治二十九年法律第八十九号"},
				"revision_info": {"law_title": "民法"}
			}]
		}`))
	})
	mux.HandleFunc("GET /law_data/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleLawData))
	})
	return httptest.NewServer(mux)
}

func TestSearchLaws(t *testing.T) {
	var hits atomic.Int64
	srv := newStubServer(t, &hits)
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	res, err := c.SearchLaws(context.Background(), "民法", 10)
	if err != nil {
		t.Fatalf("SearchLaws: %v", err)
	}
	if res.TotalCount != 1 || len(res.Laws) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Laws[0].RevisionInfo.LawTitle != "民法" {
		t.Errorf("law_title = %q", res.Laws[0].RevisionInfo.LawTitle)
	}
}

func TestGetLawDataCaching(t *testing.T) {
	var hits atomic.Int64
	srv := newStubServer(t, &hits)
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithCacheTTL(time.Minute))
	for i := 0; i < 3; i++ {
		data, err := c.GetLawData(context.Background(), "129AC0000000089")
		if err != nil {
			t.Fatalf("GetLawData: %v", err)
		}
		if got := data.FullText.Title(); got != "民法" {
			t.Errorf("title = %q", got)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("upstream hits = %d, want 1 (cached)", hits.Load())
	}
}

func TestGetLawDataUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if _, err := c.GetLawData(context.Background(), "bogus"); err == nil {
		t.Fatal("expected error on upstream 404")
	}
}

func TestElementNavigation(t *testing.T) {
	var hits atomic.Int64
	srv := newStubServer(t, &hits)
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	data, err := c.GetLawData(context.Background(), "129AC0000000089")
	if err != nil {
		t.Fatal(err)
	}

	root := data.FullText
	if n := root.CountTag("Article"); n != 2 {
		t.Errorf("article count = %d, want 2", n)
	}
	art := root.FindArticle("2")
	if art == nil {
		t.Fatal("article 2 not found")
	}
	text := art.FlattenText()
	if want := "個人の尊厳"; !strings.Contains(text, want) {
		t.Errorf("article 2 text = %q, want substring %q", text, want)
	}
	if root.FindArticle("99") != nil {
		t.Error("expected nil for missing article")
	}
}
