package pdf

import "testing"

func TestDocIDFromPath(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"/data/Kafka Definitive Guide.pdf", "kafka_definitive_guide"},
		{"report.pdf", "report"},
		{"UPPER.PDF", "upper"},
		{"/a/b/no extension", "no_extension"},
		{"dots.in.name.pdf", "dots.in.name"},
	}
	for _, tc := range cases {
		if got := DocIDFromPath(tc.in); got != tc.want {
			t.Errorf("DocIDFromPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractText_MissingFile(t *testing.T) {
	if _, err := ExtractText("/nonexistent/file.pdf"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
