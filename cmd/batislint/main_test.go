package main

import "testing"

func TestLineCol(t *testing.T) {
	content := []byte("<mapper>\n  <select id=\"a\"/>\n</mapper>\n")
	tests := []struct {
		offset    int
		line, col int
	}{
		{0, 1, 1},
		{3, 1, 4},
		{9, 2, 1},
		{13, 2, 5},
		{1000, 4, 1},
	}
	for _, tt := range tests {
		line, col := lineCol(content, tt.offset)
		if line != tt.line || col != tt.col {
			t.Errorf("lineCol(%d) = %d:%d, want %d:%d", tt.offset, line, col, tt.line, tt.col)
		}
	}
}

func TestShortSHA(t *testing.T) {
	if got := shortSHA("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortSHA = %q", got)
	}
	if got := shortSHA("abc"); got != "abc" {
		t.Errorf("shortSHA = %q", got)
	}
}
