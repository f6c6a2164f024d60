package dart

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const samsungFinstate = `{
  "status": "000",
  "message": "정상",
  "list": [
    {"rcept_no": "20240312000736", "bsns_year": "2023", "corp_code": "00126380", "stock_code": "005930",
     "reprt_code": "11011", "account_nm": "유동자산", "fs_div": "CFS", "fs_nm": "연결재무제표",
     "sj_div": "BS", "sj_nm": "재무상태표", "thstrm_nm": "제 55 기", "thstrm_dt": "2023.12.31 현재",
     "thstrm_amount": "195,936,557,000,000", "frmtrm_amount": "218,470,581,000,000",
     "ord": "1", "currency": "KRW", "extra_field": null},
    {"rcept_no": "20240312000736", "bsns_year": "2023", "corp_code": "00126380", "stock_code": "005930",
     "reprt_code": "11011", "account_nm": "당기순이익", "fs_div": "CFS", "fs_nm": "연결재무제표",
     "sj_div": "IS", "sj_nm": "손익계산서", "thstrm_amount": "△1,000", "ord": "2", "currency": "KRW"}
  ]
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0))
}

func TestFinstate_Success(t *testing.T) {
	var gotQuery map[string]string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != FinstatePath {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotQuery = map[string]string{
			"crtfc_key":  r.URL.Query().Get("crtfc_key"),
			"corp_code":  r.URL.Query().Get("corp_code"),
			"bsns_year":  r.URL.Query().Get("bsns_year"),
			"reprt_code": r.URL.Query().Get("reprt_code"),
		}
		w.Write([]byte(samsungFinstate))
	})

	ds, err := client.Finstate(context.Background(), "00126380", 2023, ReportAnnual)
	if err != nil {
		t.Fatalf("Finstate: %v", err)
	}

	if gotQuery["crtfc_key"] != "test-key" || gotQuery["corp_code"] != "00126380" ||
		gotQuery["bsns_year"] != "2023" || gotQuery["reprt_code"] != "11011" {
		t.Errorf("query = %v", gotQuery)
	}
	if ds.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", ds.Len())
	}

	cols := ds.Columns()
	if cols[0] != "rcept_no" || cols[len(cols)-1] != "extra_field" {
		t.Errorf("column order = %v", cols)
	}
	if got := ds.Get(1, "thstrm_amount").Text; got != "△1,000" {
		t.Errorf("raw amount = %q, want untouched text", got)
	}
	if !ds.Get(0, "extra_field").IsMissing() || !ds.Get(1, "frmtrm_amount").IsMissing() {
		t.Errorf("null and absent fields should be missing")
	}
}

func TestFinstate_ResolvesStockCode(t *testing.T) {
	var gotCorp string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotCorp = r.URL.Query().Get("corp_code")
		w.Write([]byte(samsungFinstate))
	})
	client.SetRegistry(NewCorpRegistry([]Corp{{Code: "00126380", Name: "삼성전자", StockCode: "005930"}}))

	if _, err := client.Finstate(context.Background(), "005930", 2023, ReportAnnual); err != nil {
		t.Fatalf("Finstate: %v", err)
	}
	if gotCorp != "00126380" {
		t.Errorf("corp_code = %q, want 00126380", gotCorp)
	}
}

func TestFinstate_Statuses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr func(error) bool
	}{
		{"No data", 200, `{"status":"013","message":"조회된 데이타가 없습니다."}`, func(err error) bool { return errors.Is(err, ErrNoData) }},
		{"Empty list", 200, `{"status":"000","message":"정상","list":[]}`, func(err error) bool { return errors.Is(err, ErrNoData) }},
		{"Bad key", 200, `{"status":"010","message":"등록되지 않은 키입니다."}`, func(err error) bool {
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.Status == "010"
		}},
		{"HTTP error", 500, `oops`, func(err error) bool { return err != nil && !errors.Is(err, ErrNoData) }},
		{"Garbage", 200, `<<<not json>>>`, func(err error) bool { return err != nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := client.Finstate(context.Background(), "00126380", 2023, ReportAnnual)
			if !tt.wantErr(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestFinstate_InvalidReportType(t *testing.T) {
	client := NewClient("k", WithRateLimit(0))
	if _, err := client.Finstate(context.Background(), "00126380", 2023, ReportType("weekly")); err == nil {
		t.Fatal("expected error for invalid report type")
	}
}

func TestParseReportType(t *testing.T) {
	tests := []struct {
		in   string
		want ReportType
	}{
		{"annual", ReportAnnual},
		{"ANNUAL", ReportAnnual},
		{"11012", ReportSemiAnnual},
		{"3분기보고서", ReportThirdQuarter},
		{" first-quarter ", ReportFirstQuarter},
	}
	for _, tt := range tests {
		got, err := ParseReportType(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseReportType(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseReportType("weekly"); err == nil {
		t.Error("expected error for weekly")
	}
	if ReportFirstQuarter.Code() != "11013" || ReportThirdQuarter.Code() != "11014" {
		t.Error("quarter codes swapped")
	}
}

func corpZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("CORPCODE.xml")
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<result>
  <list><corp_code>00126380</corp_code><corp_name>삼성전자</corp_name><stock_code>005930</stock_code><modify_date>20240101</modify_date></list>
  <list><corp_code>00999999</corp_code><corp_name>삼성전자</corp_name><stock_code> </stock_code><modify_date>20200101</modify_date></list>
  <list><corp_code>01515323</corp_code><corp_name>LG에너지솔루션</corp_name><stock_code>373220</stock_code><modify_date>20240101</modify_date></list>
</result>`))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestParseCorpCodeZip(t *testing.T) {
	reg, err := ParseCorpCodeZip(corpZip(t))
	if err != nil {
		t.Fatalf("ParseCorpCodeZip: %v", err)
	}
	if reg.Len() != 3 {
		t.Errorf("Len() = %d", reg.Len())
	}

	tests := []struct {
		id   string
		code string
	}{
		{"373220", "01515323"},
		{"00126380", "00126380"},
		{"삼성전자", "00126380"}, // listed entry wins the name
	}
	for _, tt := range tests {
		c, ok := reg.Resolve(tt.id)
		if !ok || c.Code != tt.code {
			t.Errorf("Resolve(%q) = %+v, %v; want %s", tt.id, c, ok, tt.code)
		}
	}
	if _, ok := reg.Resolve("000000"); ok {
		t.Error("unknown id resolved")
	}
}

func TestParseCorpCodeZip_ErrorBody(t *testing.T) {
	_, err := ParseCorpCodeZip([]byte(`<result><status>020</status><message>요청 제한을 초과하였습니다.</message></result>`))
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != "020" {
		t.Fatalf("err = %v, want APIError 020", err)
	}
}

func TestLoadRegistry_UsesCacheThenNetwork(t *testing.T) {
	calls := 0
	data := corpZip(t)
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write(data)
	})
	cache := NewCorpCodeCache(t.TempDir(), time.Hour)

	for i := 0; i < 2; i++ {
		reg, err := LoadRegistry(context.Background(), client, cache)
		if err != nil {
			t.Fatalf("LoadRegistry: %v", err)
		}
		if reg.Len() != 3 {
			t.Fatalf("Len() = %d", reg.Len())
		}
	}
	if calls != 1 {
		t.Errorf("downloaded %d times, want 1", calls)
	}
}
