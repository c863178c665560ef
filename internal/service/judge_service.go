package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"elevate_backend/internal/config"
	"elevate_backend/internal/model"
	"elevate_backend/pkg/logger"
	"elevate_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// LanguageIDs maps contest language names to remote executor language ids.
var LanguageIDs = map[string]int{
	"python3":    71,
	"python":     71,
	"cpp":        54,
	"c++":        54,
	"java":       62,
	"javascript": 63,
	"c":          50,
}

const defaultLanguageID = 71

// LanguageID resolves a language name, falling back to python3 for
// unknown names.
func LanguageID(language string) int {
	if id, ok := LanguageIDs[language]; ok {
		return id
	}
	return defaultLanguageID
}

// Execution error kinds carried on per-case results.
const (
	ExecWrongAnswer       = "WrongAnswer"
	ExecTimeLimitExceeded = "TimeLimitExceeded"
	ExecCompilationError  = "CompilationError"
	ExecRuntimeError      = "RuntimeError"
	ExecUnknown           = "Unknown"
)

// ExecutionOutcome is the polled result of a single submission.
type ExecutionOutcome struct {
	Processing      bool
	Passed          bool
	Output          string
	ErrorKind       string
	Stderr          string
	CompileOutput   string
	ExecutionTimeMS float64
	MemoryUsedMB    float64
}

type JudgeService struct {
	cfg    *config.Judge0Config
	client *http.Client
}

func NewJudgeService(cfg *config.Judge0Config) *JudgeService {
	return &JudgeService{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type judgeSubmission struct {
	SourceCode     string `json:"source_code"`
	LanguageID     int    `json:"language_id"`
	Stdin          string `json:"stdin"`
	ExpectedOutput string `json:"expected_output"`
}

type judgeToken struct {
	Token string `json:"token"`
}

type judgeResult struct {
	Stdout        string  `json:"stdout"`
	Stderr        string  `json:"stderr"`
	CompileOutput string  `json:"compile_output"`
	Time          string  `json:"time"`
	Memory        float64 `json:"memory"`
	Status        struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
}

func (s *JudgeService) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.RapidAPIKey != "" {
		req.Header.Set("X-RapidAPI-Key", s.cfg.RapidAPIKey)
		req.Header.Set("X-RapidAPI-Host", s.cfg.RapidAPIHost)
	} else if s.cfg.APIKey != "" {
		req.Header.Set("X-Auth-Token", s.cfg.APIKey)
	}
}

// Submit sends a single test-case run and returns the polling token.
func (s *JudgeService) Submit(ctx context.Context, code, language, stdin, expectedOutput string) (string, error) {
	payload := judgeSubmission{
		SourceCode:     code,
		LanguageID:     LanguageID(language),
		Stdin:          stdin,
		ExpectedOutput: expectedOutput,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := s.cfg.URL + "/submissions?base64_encoded=false&wait=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	s.setHeaders(req)

	start := time.Now()
	resp, err := s.client.Do(req)
	monitoring.JudgeRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", model.ServiceUnavailable("code executor unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", model.ServiceUnavailable(
			fmt.Sprintf("code executor returned status %d", resp.StatusCode), nil)
	}

	var token judgeToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", model.ServiceUnavailable("code executor returned malformed response", err)
	}
	if token.Token == "" {
		return "", model.ServiceUnavailable("code executor returned no token", nil)
	}
	return token.Token, nil
}

// Poll waits for a submission to finish, up to the configured deadline.
// A submission that is still running when the deadline hits comes back
// with Processing set rather than as an error.
func (s *JudgeService) Poll(ctx context.Context, token string) (*ExecutionOutcome, error) {
	deadline := time.Now().Add(s.cfg.MaxWait)

	for {
		outcome, done, err := s.pollOnce(ctx, token)
		if err != nil {
			return nil, err
		}
		if done {
			return outcome, nil
		}
		if time.Now().After(deadline) {
			return &ExecutionOutcome{Processing: true}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

func (s *JudgeService) pollOnce(ctx context.Context, token string) (*ExecutionOutcome, bool, error) {
	url := s.cfg.URL + "/submissions/" + token + "?base64_encoded=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	s.setHeaders(req)

	start := time.Now()
	resp, err := s.client.Do(req)
	monitoring.JudgeRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, false, model.ServiceUnavailable("code executor unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, model.ServiceUnavailable(
			fmt.Sprintf("code executor returned status %d", resp.StatusCode), nil)
	}

	var result judgeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, false, model.ServiceUnavailable("code executor returned malformed response", err)
	}

	// 1 = in queue, 2 = processing
	if result.Status.ID == 1 || result.Status.ID == 2 {
		return nil, false, nil
	}
	return outcomeFromResult(&result), true, nil
}

func outcomeFromResult(result *judgeResult) *ExecutionOutcome {
	out := &ExecutionOutcome{
		Output:        result.Stdout,
		Stderr:        result.Stderr,
		CompileOutput: result.CompileOutput,
		MemoryUsedMB:  result.Memory / 1024,
	}
	if result.Time != "" {
		var secs float64
		if _, err := fmt.Sscanf(result.Time, "%f", &secs); err == nil {
			out.ExecutionTimeMS = secs * 1000
		}
	}

	switch {
	case result.Status.ID == 3:
		out.Passed = true
	case result.Status.ID == 4:
		out.ErrorKind = ExecWrongAnswer
	case result.Status.ID == 5:
		out.ErrorKind = ExecTimeLimitExceeded
	case result.Status.ID == 6:
		out.ErrorKind = ExecCompilationError
	case result.Status.ID >= 7 && result.Status.ID <= 12:
		out.ErrorKind = ExecRuntimeError
	default:
		out.ErrorKind = ExecUnknown
	}
	return out
}

// RunTestCases executes every case in order and builds the weighted
// report. Any executor outage mid-batch aborts the whole batch so a
// partial run never turns into a score.
func (s *JudgeService) RunTestCases(ctx context.Context, code, language string, cases []model.TestCase) (*model.ExecutionReport, error) {
	report := &model.ExecutionReport{
		TotalTestCases: len(cases),
		Cases:          make([]model.CaseResult, 0, len(cases)),
	}
	passed := make([]bool, len(cases))

	for i, tc := range cases {
		token, err := s.Submit(ctx, code, language, tc.Input, tc.Output)
		if err != nil {
			return nil, err
		}
		outcome, err := s.Poll(ctx, token)
		if err != nil {
			return nil, err
		}
		if outcome.Processing {
			return nil, model.ServiceUnavailable("code executor timed out while processing", nil)
		}

		cr := model.CaseResult{
			Passed:          outcome.Passed,
			ErrorKind:       outcome.ErrorKind,
			Stderr:          outcome.Stderr,
			CompileOutput:   outcome.CompileOutput,
			ExecutionTimeMS: outcome.ExecutionTimeMS,
			MemoryUsedMB:    outcome.MemoryUsedMB,
			Hidden:          tc.IsHidden,
		}
		if !tc.IsHidden {
			cr.Output = outcome.Output
		}
		report.Cases = append(report.Cases, cr)

		passed[i] = outcome.Passed
		if outcome.Passed {
			report.TestCasesPassed++
		}
		if outcome.ExecutionTimeMS > report.ExecutionTimeMS {
			report.ExecutionTimeMS = outcome.ExecutionTimeMS
		}
		if outcome.MemoryUsedMB > report.MemoryUsedMB {
			report.MemoryUsedMB = outcome.MemoryUsedMB
		}
	}

	report.ScoreFraction = model.WeightedScoreFraction(cases, passed)
	logger.Log.Debug("test case batch finished",
		zap.Int("passed", report.TestCasesPassed),
		zap.Int("total", report.TotalTestCases),
		zap.Float64("fraction", report.ScoreFraction))
	return report, nil
}

// RunSample executes candidate code against the visible cases only, for
// the in-session "run" button.
func (s *JudgeService) RunSample(ctx context.Context, code, language string, q *model.Question) (*model.ExecutionReport, error) {
	cases := q.PublicTestCases()
	if len(cases) == 0 {
		return nil, model.Validationf("question has no visible test cases")
	}
	return s.RunTestCases(ctx, code, language, cases)
}
