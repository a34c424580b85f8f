package ultrahdr

import "testing"

func TestFindMinMaxWithoutOutliersEmpty(t *testing.T) {
	if _, _, err := FindMinMaxWithoutOutliers(nil); err == nil {
		t.Fatal("expected error for empty data")
	}
}

func TestFindMinMaxWithoutOutliersUniform(t *testing.T) {
	data := make([]float32, 100)
	for i := range data {
		data[i] = 1
	}
	min, max, err := FindMinMaxWithoutOutliers(data)
	if err != nil {
		t.Fatalf("FindMinMaxWithoutOutliers: %v", err)
	}
	if min != 1 || max != 1 {
		t.Fatalf("uniform data should return min=max=1, got [%v,%v]", min, max)
	}
}

func TestFindMinMaxWithoutOutliersNarrowSpanSkipsTrim(t *testing.T) {
	data := []float32{0, 0.001, 0.002, 0.019}
	min, max, err := FindMinMaxWithoutOutliers(data)
	if err != nil {
		t.Fatalf("FindMinMaxWithoutOutliers: %v", err)
	}
	if min != 0 || max != 0.019 {
		t.Fatalf("span below 2*bucket should return raw min/max, got [%v,%v]", min, max)
	}
}

func TestFindMinMaxWithoutOutliersTrimsTails(t *testing.T) {
	n := 100000
	data := make([]float32, 0, n+2)
	for i := 0; i < n; i++ {
		data = append(data, float32(i)/float32(n)*10)
	}
	// A handful of extreme outliers far outside the dense cluster.
	data = append(data, -1000, 1000)

	min, max, err := FindMinMaxWithoutOutliers(data)
	if err != nil {
		t.Fatalf("FindMinMaxWithoutOutliers: %v", err)
	}
	if min <= -1000 {
		t.Fatalf("expected low outlier to be trimmed, got min=%v", min)
	}
	if max >= 1000 {
		t.Fatalf("expected high outlier to be trimmed, got max=%v", max)
	}
}
