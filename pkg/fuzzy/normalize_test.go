package fuzzy

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "Simple title",
			input:    "Hey Jude",
			expected: "hey jude",
		},
		{
			name:     "Parenthetical and bracket groups",
			input:    "Hello (World) [Again]",
			expected: "hello",
		},
		{
			name:     "Remaster tag",
			input:    "Bohemian Rhapsody (2011 Remaster)",
			expected: "bohemian rhapsody",
		},
		{
			name:     "Conjunctions",
			input:    "Rock & Roll",
			expected: "rock and roll",
		},
		{
			name:     "Plus conjunction",
			input:    "Me + You",
			expected: "me and you",
		},
		{
			name:     "Feature markers",
			input:    "feat. Artist ft Another",
			expected: "artist another",
		},
		{
			name:     "Featuring spelled out",
			input:    "Song featuring Somebody",
			expected: "song somebody",
		},
		{
			name:     "Punctuation stripped",
			input:    "Don't Stop Me Now!",
			expected: "dont stop me now",
		},
		{
			name:     "Separators become spaces",
			input:    "AC/DC - Back_In\\Black",
			expected: "ac dc back in black",
		},
		{
			name:     "Whitespace collapsed",
			input:    "  too   many    spaces  ",
			expected: "too many spaces",
		},
		{
			name:     "Nested brackets leave inner strip plus residual removal",
			input:    "Song ((Live))",
			expected: "song",
		},
		{
			name:     "Case folding only",
			input:    "MÖTLEY CRÜE",
			expected: "mötley crüe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"Hello (World) [Again]",
		"Rock & Roll",
		"feat. Artist ft Another",
		"The Great Gig in the Sky - 2011 Remastered Version",
		"99 Luftballons",
	}

	for _, input := range inputs {
		once := Normalize(input)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", input, once, twice)
		}
	}
}
