package fallback

import "testing"

func TestScanDates(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		issue  string
		expiry string
	}{
		{
			name:   "two italian dates",
			text:   "Visita del 15/03/2024 valida fino al 15/03/2026",
			issue:  "2024-03-15",
			expiry: "2026-03-15",
		},
		{
			name:   "mixed formats keep text order",
			text:   "rilascio 2023-06-01, scadenza 01/06/2028",
			issue:  "2023-06-01",
			expiry: "2028-06-01",
		},
		{
			name:  "single date fills only issue",
			text:  "Attestato rilasciato il 10/01/2025",
			issue: "2025-01-10",
		},
		{
			name: "no dates produce nothing",
			text: "Nome: Mario Rossi, mansione: carpentiere",
		},
		{
			name:   "duplicate date is not distinct",
			text:   "10/01/2025 ... copia del 10/01/2025 ... 10/01/2027",
			issue:  "2025-01-10",
			expiry: "2027-01-10",
		},
		{
			name:   "impossible calendar date skipped",
			text:   "42/13/2024 poi 05/02/2024 e 2026-02-05",
			issue:  "2024-02-05",
			expiry: "2026-02-05",
		},
		{
			name:   "third date ignored",
			text:   "01/01/2020 02/02/2021 03/03/2022",
			issue:  "2020-01-01",
			expiry: "2021-02-02",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := ScanDates(tt.text)
			if got.IssueDate != tt.issue || got.ExpiryDate != tt.expiry {
				t.Fatalf("ScanDates(%q) = %+v, want issue=%q expiry=%q", tt.text, got, tt.issue, tt.expiry)
			}
		})
	}
}

func TestScanDatesIsPure(t *testing.T) {
	text := "15/03/2024 e 2026-03-15"
	first := ScanDates(text)
	for i := 0; i < 10; i++ {
		if got := ScanDates(text); got != first {
			t.Fatalf("expected identical output on identical input, got %+v then %+v", first, got)
		}
	}
}
