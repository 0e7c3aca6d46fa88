package vcf

import "testing"

func TestVariant_InfoValue(t *testing.T) {
	v := &Variant{
		Info: parseInfo("DP=10;SpliceAI=T|GENE|0.01|0.00|0.91|0.02|1|2|3|4;DB"),
	}

	tests := []struct {
		name string
		key  string
		want string
	}{
		{"string value", "DP", "10"},
		{"pipe value", "SpliceAI", "T|GENE|0.01|0.00|0.91|0.02|1|2|3|4"},
		{"flag", "DB", "."},
		{"absent", "CSQ", "."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.InfoValue(tt.key); got != tt.want {
				t.Errorf("InfoValue(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestVariant_InfoValueNilMap(t *testing.T) {
	v := &Variant{}
	if got := v.InfoValue("SpliceAI"); got != Missing {
		t.Errorf("InfoValue on empty variant = %q, want %q", got, Missing)
	}
}

func TestVariant_End(t *testing.T) {
	tests := []struct {
		name string
		pos  int64
		ref  string
		want int64
	}{
		{"SNV", 100, "A", 100},
		{"deletion", 100, "ATG", 102},
		{"empty ref", 100, "", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Variant{Pos: tt.pos, Ref: tt.ref}
			if got := v.End(); got != tt.want {
				t.Errorf("End() = %d, want %d", got, tt.want)
			}
		})
	}
}
