package navref

import (
	"math"
	"sync"
	"testing"

	"navcore/internal/fixmath"
)

func TestReference_NoOriginUsesUnitScale(t *testing.T) {
	r := New()
	if r.HasOrigin() {
		t.Fatalf("expected no origin")
	}
	if got := r.Origin().CosLat; got != fixmath.RMAX {
		t.Fatalf("CosLat=%d want %d", got, fixmath.RMAX)
	}
}

func TestSetOrigin_ScaleFollowsLatitude(t *testing.T) {
	r := New()
	o := r.SetOrigin(-1223000000, 450000000, 12345)
	if !r.HasOrigin() {
		t.Fatalf("expected origin")
	}
	if o.CosLat != fixmath.Cosine(LatToByteCir(450000000)) {
		t.Fatalf("CosLat=%d not derived from lat", o.CosLat)
	}
	// Byte-circle quantisation: 45 degrees lands one step below 32.
	if got := LatToByteCir(450000000); got != 31 {
		t.Fatalf("LatToByteCir=%d want 31", got)
	}
	if got := r.Origin(); got != o {
		t.Fatalf("Origin()=%+v want %+v", got, o)
	}

	o2 := r.SetOrigin(0, 0, 0)
	if o2.CosLat != fixmath.RMAX {
		t.Fatalf("equator CosLat=%d want %d", o2.CosLat, fixmath.RMAX)
	}
}

func TestToRelative_AxesAndAltitude(t *testing.T) {
	r := New()
	r.SetOrigin(0, 0, 0)
	rel := r.ToRelative32(Waypoint{X: 9000, Y: -18000, Z: 321})
	if rel.X != 100 || rel.Y != -200 || rel.Z != 321 {
		t.Fatalf("rel=%+v want {100 -200 321}", rel)
	}
}

func TestToRelative_AltitudeIsAbsoluteMetres(t *testing.T) {
	r := New()
	// Origin altitude is kept in centimetres and does not offset Z.
	r.SetOrigin(0, 0, 54540)
	if rel := r.ToRelative32(Waypoint{Z: 545}); rel.Z != 545 {
		t.Fatalf("z=%d want 545", rel.Z)
	}
	if abs := r.ToAbsolute(Relative32{Z: 545}); abs.Z != 545 {
		t.Fatalf("z=%d want 545", abs.Z)
	}
}

func TestToRelative_LongitudeShrinksAwayFromEquator(t *testing.T) {
	r := New()
	r.SetOrigin(0, 600000000, 0) // 60N
	rel := r.ToRelative32(Waypoint{X: 900000, Y: 600000000})
	// 10000 m of longitude units at cos(60) ~ 0.5.
	if rel.X < 4800 || rel.X > 5200 {
		t.Fatalf("rel.X=%d want ~5000", rel.X)
	}
	if rel.Y != 0 {
		t.Fatalf("rel.Y=%d want 0", rel.Y)
	}
}

func TestToRelative_CompactSaturates(t *testing.T) {
	r := New()
	r.SetOrigin(0, 0, 0)
	rel := r.ToRelative(Waypoint{X: -1000000000, Y: 1000000000, Z: 70000})
	if rel.X != math.MinInt16 || rel.Y != math.MaxInt16 || rel.Z != math.MaxInt16 {
		t.Fatalf("rel=%+v want saturated", rel)
	}
}

func TestRoundTrip_EquatorOrigin(t *testing.T) {
	r := New()
	r.SetOrigin(0, 0, 0)
	for _, d := range []int32{-10000000, -5000000, -1234567, -89, 0, 1, 777777, 9999999, 10000000} {
		abs := Waypoint{X: d, Y: -d / 2, Z: 50}
		got := r.ToAbsolute(r.ToRelative32(abs))
		if diff := got.X - abs.X; diff <= -UnitsPerMeter || diff >= UnitsPerMeter {
			t.Fatalf("d=%d X=%d want %d (+-%d)", d, got.X, abs.X, UnitsPerMeter)
		}
		if diff := got.Y - abs.Y; diff <= -UnitsPerMeter || diff >= UnitsPerMeter {
			t.Fatalf("d=%d Y=%d want %d (+-%d)", d, got.Y, abs.Y, UnitsPerMeter)
		}
		if got.Z != abs.Z {
			t.Fatalf("Z=%d want %d", got.Z, abs.Z)
		}
	}
}

func TestToAbsolute_DoesNotUndoLongitudeScale(t *testing.T) {
	r := New()
	o := r.SetOrigin(0, 450000000, 0)
	abs := Waypoint{X: 900000, Y: 450000000}
	rel := r.ToRelative32(abs)
	got := r.ToAbsolute(rel)
	if got.X != rel.X*UnitsPerMeter+o.Lon {
		t.Fatalf("X=%d want rel.X*90", got.X)
	}
	// The east axis comes back short by roughly cos(lat).
	if got.X >= abs.X-UnitsPerMeter {
		t.Fatalf("X=%d unexpectedly recovered %d", got.X, abs.X)
	}
	if got.Y != abs.Y {
		t.Fatalf("Y=%d want %d", got.Y, abs.Y)
	}
}

func TestToAbsolute_Saturates(t *testing.T) {
	r := New()
	r.SetOrigin(1800000000, 0, 0)
	got := r.ToAbsolute(Relative32{X: math.MaxInt32})
	if got.X != math.MaxInt32 {
		t.Fatalf("X=%d want saturation", got.X)
	}
}

func TestSetOrigin_ReadersSeeConsistentPair(t *testing.T) {
	r := New()
	lats := []int32{0, 300000000, 600000000, -450000000}
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			o := r.Origin()
			if r.HasOrigin() && o.CosLat != fixmath.Cosine(LatToByteCir(o.Lat)) {
				t.Errorf("stale pair: %+v", o)
				return
			}
		}
	}()
	for i := 0; i < 2000; i++ {
		r.SetOrigin(0, lats[i%len(lats)], 0)
	}
	close(stop)
	wg.Wait()
}
