package schedule

// PassResult summarizes one scheduling pass for a single medication.
type PassResult struct {
	MedKey        string `json:"med_key"`
	Desired       int    `json:"desired"`
	Added         int    `json:"added"`
	Cancelled     int    `json:"cancelled"`
	Kept          int    `json:"kept"`
	Failed        int    `json:"failed"`
	WeeklySkipped bool   `json:"weekly_skipped,omitempty"`
}

// ResyncResult summarizes a full pass over a user's stored medications.
type ResyncResult struct {
	RunID       string       `json:"run_id"`
	UserID      string       `json:"user_id"`
	Medications int          `json:"medications"`
	Passes      []PassResult `json:"passes"`
	FailedMeds  int          `json:"failed_medications"`
}
