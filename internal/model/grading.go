package model

// Answer is the tagged union of participant answers. Exactly the variant
// matching Type is populated; everything else stays nil.
type Answer struct {
	Type       QuestionType      `json:"type"`
	MCQ        *MCQAnswer        `json:"mcq,omitempty"`
	Coding     *CodingAnswer     `json:"coding,omitempty"`
	Subjective *SubjectiveAnswer `json:"subjective,omitempty"`
}

type MCQAnswer struct {
	SelectedOption int `json:"selectedOption"`
}

type CodingAnswer struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type SubjectiveAnswer struct {
	Text string `json:"text"`
}

// ValidateAnswer checks the answer shape against the question's type
// contract before it may be persisted.
func ValidateAnswer(q *Question, a *Answer) error {
	if a == nil {
		return Validationf("answer is required")
	}
	if a.Type != q.Type {
		return Validationf("answer type %s does not match question type %s", a.Type, q.Type)
	}

	switch q.Type {
	case QuestionMCQ:
		if a.MCQ == nil {
			return Validationf("mcq answer must carry selectedOption")
		}
		content, err := q.MCQContent()
		if err != nil {
			return DataIntegrityf("question %s has unreadable mcq content", q.ID)
		}
		if a.MCQ.SelectedOption < 0 || a.MCQ.SelectedOption >= len(content.Options) {
			return Validationf("invalid option index, must be 0-%d", len(content.Options)-1)
		}
		return nil

	case QuestionCoding:
		if a.Coding == nil || a.Coding.Code == "" {
			return Validationf("coding answer must carry code")
		}
		if a.Coding.Language == "" {
			return Validationf("coding answer must carry language")
		}
		return nil

	case QuestionSubjective:
		if a.Subjective == nil || a.Subjective.Text == "" {
			return Validationf("subjective answer must carry text")
		}
		return nil
	}
	return Validationf("unknown question type %s", q.Type)
}

// GradeMCQ is the deterministic auto-grader: full marks on the correct
// option, otherwise the negative-marking penalty when configured, else zero.
func GradeMCQ(q *Question, a *MCQAnswer) (float64, error) {
	content, err := q.MCQContent()
	if err != nil {
		return 0, DataIntegrityf("question %s has unreadable mcq content", q.ID)
	}
	if a.SelectedOption == content.CorrectAnswer {
		return q.MaxMarks, nil
	}
	if q.NegativeMarks > 0 {
		return -q.NegativeMarks, nil
	}
	return 0, nil
}

// WeightedScoreFraction sums point weights of passed cases over all weights.
// A case with no explicit weight counts as one point.
func WeightedScoreFraction(cases []TestCase, passed []bool) float64 {
	total := 0
	earned := 0
	for i, tc := range cases {
		points := tc.Points
		if points <= 0 {
			points = 1
		}
		total += points
		if i < len(passed) && passed[i] {
			earned += points
		}
	}
	if total == 0 {
		return 0
	}
	return float64(earned) / float64(total)
}

// CategoryScores holds the aggregator's per-type sums for one attempt.
type CategoryScores struct {
	MCQ        float64
	Code       float64
	Subjective float64
}

func (c CategoryScores) Total() float64 {
	return c.MCQ + c.Code + c.Subjective
}

// SumCategories folds committed response scores into per-category totals.
// Ungraded responses contribute nothing, keeping the fold idempotent under
// interleaved grading completions.
func SumCategories(responses []Response, typeByQuestion map[string]QuestionType) CategoryScores {
	var sums CategoryScores
	for _, r := range responses {
		if !r.IsGraded {
			continue
		}
		switch typeByQuestion[r.QuestionID] {
		case QuestionMCQ:
			sums.MCQ += r.Score
		case QuestionCoding:
			sums.Code += r.Score
		case QuestionSubjective:
			sums.Subjective += r.Score
		}
	}
	return sums
}
