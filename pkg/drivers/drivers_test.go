package drivers

import (
	"slices"
	"testing"
)

func TestFactories(t *testing.T) {
	got := Factories().Names()
	want := []string{"nmeagps", "recorder", "simlaser", "simposition"}
	if !slices.Equal(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}
}
