package units

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/forgefit/forge/internal/kv"
	"github.com/forgefit/forge/internal/logging"
)

func TestConvertRoundTrip(t *testing.T) {
	for _, x := range []float64{0.5, 1, 12, 24, 40.25, 53, 88, 106.7, 1000, 123456.789} {
		lbs := Convert(x, KG, LBS)
		back := Convert(lbs, LBS, KG)
		if math.Abs(back-x) > 1e-9*math.Max(1, x) {
			t.Errorf("round trip %v -> %v -> %v", x, lbs, back)
		}
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		w        float64
		from, to Unit
		want     float64
	}{
		{40, KG, KG, 40},
		{40, LBS, LBS, 40},
		{10, KG, LBS, 22.0462},
		{2.20462, LBS, KG, 1},
	}
	for _, tt := range tests {
		got := Convert(tt.w, tt.from, tt.to)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Convert(%v, %s, %s) = %v, want %v", tt.w, tt.from, tt.to, got, tt.want)
		}
	}
}

func TestFormatWeight(t *testing.T) {
	tests := []struct {
		w        float64
		unit     Unit
		decimals int
		want     string
	}{
		{40, KG, 1, "40kg"},
		{40.25, KG, 1, "40.3kg"},
		{40.04, KG, 1, "40kg"},
		{88.18, LBS, 1, "88.2lbs"},
		{88.18, LBS, 0, "88lbs"},
		{22.5, KG, 2, "22.50kg"},
		{0, KG, 1, "0kg"},
	}
	for _, tt := range tests {
		if got := FormatWeightPrec(tt.w, tt.unit, tt.decimals); got != tt.want {
			t.Errorf("FormatWeightPrec(%v, %s, %d) = %q, want %q", tt.w, tt.unit, tt.decimals, got, tt.want)
		}
	}
	if got := FormatWeight(40, KG); got != "40kg" {
		t.Errorf("FormatWeight(40, kg) = %q, want 40kg", got)
	}
}

func TestFormatVolume(t *testing.T) {
	tests := []struct {
		v    float64
		unit Unit
		want string
	}{
		{1500, KG, "1.5k kg"},
		{500, KG, "500 kg"},
		{2000, LBS, "2k lbs"},
		{1250, KG, "1.3k kg"},
		{999.4, KG, "999 kg"},
		{0, KG, "0 kg"},
		{12345, KG, "12.3k kg"},
	}
	for _, tt := range tests {
		if got := FormatVolume(tt.v, tt.unit); got != tt.want {
			t.Errorf("FormatVolume(%v, %s) = %q, want %q", tt.v, tt.unit, got, tt.want)
		}
	}
}

func TestConvertAndFormat(t *testing.T) {
	if got := ConvertAndFormat(40, KG, LBS, 1); got != "88.2lbs" {
		t.Errorf("ConvertAndFormat(40, kg, lbs) = %q, want 88.2lbs", got)
	}
}

func TestUserUnit(t *testing.T) {
	w, u := ToUserUnit(40, KG, LBS)
	if u != LBS || math.Abs(w-88.1848) > 1e-9 {
		t.Errorf("ToUserUnit = (%v, %s), want (88.1848, lbs)", w, u)
	}
	if got := FromUserUnit(40, KG, KG); got != 40 {
		t.Errorf("FromUserUnit same unit = %v, want 40", got)
	}
}

func TestCommonWeights(t *testing.T) {
	kg := CommonWeights(KG)
	if len(kg) != 11 || kg[0] != 12 || kg[10] != 53 {
		t.Errorf("CommonWeights(kg) = %v", kg)
	}
	lbs := CommonWeights(LBS)
	if len(lbs) != 11 || lbs[0] != 26 || lbs[10] != 120 {
		t.Errorf("CommonWeights(lbs) = %v", lbs)
	}
	// Callers must not be able to mutate the ladder.
	kg[0] = 999
	if CommonWeights(KG)[0] != 12 {
		t.Error("CommonWeights returned shared slice")
	}
}

func TestRoundToCommonWeight(t *testing.T) {
	tests := []struct {
		w    float64
		unit Unit
		want float64
	}{
		{23, KG, 24},
		{14, KG, 12}, // tie: lighter wins
		{1, KG, 12},
		{100, KG, 53},
		{50.5, KG, 48},
		{51, KG, 53},
		{66, LBS, 62},
		{66.5, LBS, 70},
	}
	for _, tt := range tests {
		if got := RoundToCommonWeight(tt.w, tt.unit); got != tt.want {
			t.Errorf("RoundToCommonWeight(%v, %s) = %v, want %v", tt.w, tt.unit, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	if u, ok := Parse(" LBS "); !ok || u != LBS {
		t.Errorf("Parse(LBS) = %q, %v", u, ok)
	}
	if _, ok := Parse("stone"); ok {
		t.Error("Parse(stone) ok = true, want false")
	}
}

type brokenStore struct{ kv.Store }

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk gone")
}

func TestPreferenceStore(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	p := NewPreferenceStore(store, KG, logging.Discard())

	if u, degraded := p.Load(ctx); u != KG || degraded {
		t.Errorf("empty Load = (%s, %v), want (kg, false)", u, degraded)
	}

	next, err := p.Toggle(ctx)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if next != LBS {
		t.Errorf("Toggle = %s, want lbs", next)
	}
	if raw, _, _ := store.Get(ctx, kv.KeyPreferredUnit); raw != "lbs" {
		t.Errorf("stored preference = %q, want lbs", raw)
	}
	if next, _ := p.Toggle(ctx); next != KG {
		t.Errorf("second Toggle = %s, want kg", next)
	}

	if err := p.Set(ctx, Unit("stone")); err == nil {
		t.Error("Set(stone) succeeded, want error")
	}
}

func TestPreferenceStoreInvalidValue(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	_ = store.Set(ctx, kv.KeyPreferredUnit, "pounds")
	p := NewPreferenceStore(store, KG, logging.Discard())

	u, degraded := p.Load(ctx)
	if u != KG || !degraded {
		t.Errorf("Load = (%s, %v), want (kg, true)", u, degraded)
	}
}

func TestPreferenceStoreUnavailable(t *testing.T) {
	p := NewPreferenceStore(brokenStore{kv.NewMemory()}, LBS, logging.Discard())
	u, degraded := p.Load(context.Background())
	if u != LBS || !degraded {
		t.Errorf("Load = (%s, %v), want (lbs, true)", u, degraded)
	}
}
