package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestFoldWidth(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"１５分", "15分"},           // full-width digits
		{"Ｊａｐａｎ", "Japan"},       // full-width latin
		{"ｱｲｳ", "アイウ"},            // half-width katakana
		{"ﾀﾞｲﾔ", "ダイヤ"},           // half-width with dakuten, recomposed
		{"事故･遅延", "事故・遅延"},       // half-width middle dot
		{"品川～取手", "品川~取手"},       // fullwidth tilde
		{"1月15日　10時30分", "1月15日 10時30分"}, // ideographic space
		{"plain ascii", "plain ascii"},
	}
	for _, test := range testCases {
		require.Equal(t, test.want, foldWidth(test.in))
	}
}

func TestFlattenTokens(t *testing.T) {
	page := `<html><head>
<title>運行情報 - 常磐線</title>
<style>.err{color:red}</style>
<script>var tracking = true;</script>
</head><body>
<div> 常磐線(快速)[品川～取手] </div>
<div>１月15日　10時30分</div>
<p>平常<b>運転</b></p>
<span>   </span>
<div>事故･遅延に関する情報はありません</div>
</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)

	require.Equal(t, []string{
		"運行情報 - 常磐線",
		"常磐線(快速)[品川~取手]", // tilde folded to its narrow form
		"1月15日 10時30分",
		"平常",
		"運転",
		jobanVocab.NoIncident,
	}, flattenTokens(doc))
}

func TestFetchTokens(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, `<html><body><div>常磐線(各停)</div><div>1月15日 10時30分</div><div>平常運転</div></body></html>`)
	}))
	defer srv.Close()

	tokens, err := fetchTokens(srv.URL)
	require.NoError(t, err)
	require.Equal(t, []string{"常磐線(各停)", "1月15日 10時30分", "平常運転"}, tokens)
	require.Contains(t, gotUA, "Chrome")
}

func TestFetchTokensHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := fetchTokens(srv.URL)
	require.Error(t, err)
	require.Contains(t, err.Error(), "http 503")
	require.Contains(t, err.Error(), "maintenance")
}
