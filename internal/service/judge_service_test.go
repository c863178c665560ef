package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"elevate_backend/internal/config"
	"elevate_backend/internal/model"
)

func testJudge(url string) *JudgeService {
	return NewJudgeService(&config.Judge0Config{
		URL:          url,
		PollInterval: 5 * time.Millisecond,
		MaxWait:      200 * time.Millisecond,
	})
}

// fakeExecutor answers submissions with canned status ids, in order.
func fakeExecutor(t *testing.T, statuses []int) *httptest.Server {
	t.Helper()
	var submissions int64
	mux := http.NewServeMux()

	mux.HandleFunc("/submissions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		n := atomic.AddInt64(&submissions, 1)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"token": fmt.Sprintf("tok-%d", n)})
	})

	mux.HandleFunc("/submissions/", func(w http.ResponseWriter, r *http.Request) {
		var tok int
		fmt.Sscanf(r.URL.Path, "/submissions/tok-%d", &tok)
		status := 3
		if tok >= 1 && tok <= len(statuses) {
			status = statuses[tok-1]
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"stdout": "42\n",
			"time":   "0.02",
			"memory": 2048.0,
			"status": map[string]interface{}{"id": status},
		})
	})

	return httptest.NewServer(mux)
}

func TestLanguageID(t *testing.T) {
	tests := []struct {
		language string
		want     int
	}{
		{"python3", 71},
		{"python", 71},
		{"cpp", 54},
		{"c++", 54},
		{"java", 62},
		{"javascript", 63},
		{"c", 50},
		{"cobol", 71},
		{"", 71},
	}
	for _, tt := range tests {
		if got := LanguageID(tt.language); got != tt.want {
			t.Fatalf("LanguageID(%q) = %d, want %d", tt.language, got, tt.want)
		}
	}
}

func TestSubmitReturnsToken(t *testing.T) {
	srv := fakeExecutor(t, []int{3})
	defer srv.Close()

	token, err := testJudge(srv.URL).Submit(context.Background(), "print(42)", "python3", "", "42")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if token != "tok-1" {
		t.Fatalf("expected tok-1, got %q", token)
	}
}

func TestSubmitUnreachableExecutor(t *testing.T) {
	_, err := testJudge("http://127.0.0.1:1").Submit(context.Background(), "x", "python3", "", "")
	if model.KindOf(err) != model.KindServiceUnavailable {
		t.Fatalf("expected service unavailable, got %v", err)
	}
}

func TestPollStatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		passed    bool
		errorKind string
	}{
		{"accepted", 3, true, ""},
		{"wrong answer", 4, false, ExecWrongAnswer},
		{"time limit", 5, false, ExecTimeLimitExceeded},
		{"compile error", 6, false, ExecCompilationError},
		{"runtime error low", 7, false, ExecRuntimeError},
		{"runtime error high", 12, false, ExecRuntimeError},
		{"internal error", 13, false, ExecUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeExecutor(t, []int{tt.status})
			defer srv.Close()
			judge := testJudge(srv.URL)

			token, err := judge.Submit(context.Background(), "x", "python3", "", "")
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			outcome, err := judge.Poll(context.Background(), token)
			if err != nil {
				t.Fatalf("poll: %v", err)
			}
			if outcome.Processing {
				t.Fatalf("unexpected processing outcome")
			}
			if outcome.Passed != tt.passed {
				t.Fatalf("status %d: passed = %v, want %v", tt.status, outcome.Passed, tt.passed)
			}
			if outcome.ErrorKind != tt.errorKind {
				t.Fatalf("status %d: errorKind = %q, want %q", tt.status, outcome.ErrorKind, tt.errorKind)
			}
		})
	}
}

func TestPollReportsProcessingOnTimeout(t *testing.T) {
	// status 2 forever: never finishes inside MaxWait
	srv := fakeExecutor(t, []int{2})
	defer srv.Close()
	judge := testJudge(srv.URL)

	token, err := judge.Submit(context.Background(), "x", "python3", "", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	outcome, err := judge.Poll(context.Background(), token)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !outcome.Processing {
		t.Fatalf("expected processing outcome, got %+v", outcome)
	}
}

func TestRunTestCasesWeighting(t *testing.T) {
	// case 1 passes (10 pts), case 2 fails (20 pts)
	srv := fakeExecutor(t, []int{3, 4})
	defer srv.Close()

	cases := []model.TestCase{
		{Input: "1", Output: "42", Points: 10},
		{Input: "2", Output: "43", Points: 20, IsHidden: true},
	}
	report, err := testJudge(srv.URL).RunTestCases(context.Background(), "x", "python3", cases)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.TestCasesPassed != 1 || report.TotalTestCases != 2 {
		t.Fatalf("expected 1/2 passed, got %d/%d", report.TestCasesPassed, report.TotalTestCases)
	}
	if report.ScoreFraction != 10.0/30.0 {
		t.Fatalf("expected fraction 1/3, got %v", report.ScoreFraction)
	}
	if len(report.Cases) != 2 {
		t.Fatalf("expected 2 case results, got %d", len(report.Cases))
	}
	if !report.Cases[1].Hidden {
		t.Fatalf("hidden flag must carry through")
	}
	if report.Cases[1].Output != "" {
		t.Fatalf("hidden case must not leak output, got %q", report.Cases[1].Output)
	}
}

func TestRunTestCasesAbortsMidBatch(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			n := atomic.AddInt64(&calls, 1)
			if n > 1 {
				// executor goes down after the first case
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": map[string]interface{}{"id": 3},
		})
	}))
	defer srv.Close()

	cases := []model.TestCase{{Input: "1"}, {Input: "2"}}
	report, err := testJudge(srv.URL).RunTestCases(context.Background(), "x", "python3", cases)
	if model.KindOf(err) != model.KindServiceUnavailable {
		t.Fatalf("expected service unavailable, got %v", err)
	}
	if report != nil {
		t.Fatalf("partial batch must not produce a report")
	}
}
