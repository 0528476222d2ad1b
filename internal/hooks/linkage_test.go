package hooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeLinkage(t *testing.T) {
	tests := []struct {
		name        string
		current     DetectorState
		want        DetectorState
		wantChanged bool
	}{
		{
			name:        "Enabled Without URL Bit",
			current:     DetectorState{Enabled: true, Linkage: 0b1011},
			want:        DetectorState{Enabled: true, Linkage: 0b1011 | 512},
			wantChanged: true,
		},
		{
			name:        "Enabled With URL Bit",
			current:     DetectorState{Enabled: true, Linkage: 512 | 4},
			want:        DetectorState{Enabled: true, Linkage: 512 | 4},
			wantChanged: false,
		},
		{
			name:        "Enabled Zero Linkage",
			current:     DetectorState{Enabled: true, Linkage: 0},
			want:        DetectorState{Enabled: true, Linkage: 512},
			wantChanged: true,
		},
		{
			name:        "Disabled Replaces Linkage",
			current:     DetectorState{Enabled: false, Linkage: 0b111},
			want:        DetectorState{Enabled: true, Linkage: 512},
			wantChanged: true,
		},
		{
			name:        "High Bits Preserved",
			current:     DetectorState{Enabled: true, Linkage: 1<<20 | 1<<10 | 1<<8},
			want:        DetectorState{Enabled: true, Linkage: 1<<20 | 1<<10 | 1<<8 | 1<<9},
			wantChanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := MergeLinkage(tt.current, LinkageURL)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}
}

func TestMergeLinkage_OnlyURLBitFlips(t *testing.T) {
	for v := uint32(0); v < 4096; v++ {
		if v&LinkageURL != 0 {
			continue
		}
		got, _ := MergeLinkage(DetectorState{Enabled: true, Linkage: v}, LinkageURL)
		if got.Linkage != v|LinkageURL {
			t.Fatalf("linkage %d: got %d, want %d", v, got.Linkage, v|LinkageURL)
		}
	}
}
