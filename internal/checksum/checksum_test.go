package checksum

import "testing"

func TestSum(t *testing.T) {
	// sha256("")
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s", got)
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("different inputs should differ")
	}
}

func TestShort(t *testing.T) {
	if got := Short(nil, 8); got != "e3b0c442" {
		t.Errorf("Short = %s", got)
	}
	if got := Short(nil, 0); len(got) != 64 {
		t.Errorf("Short with n=0 should return full digest, got %d chars", len(got))
	}
}
