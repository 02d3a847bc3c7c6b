package shadow

import (
	"errors"
	"testing"

	"github.com/songololo/umep-core/internal/raster"
	"github.com/songololo/umep-core/internal/vegetation"
	"gonum.org/v1/gonum/mat"
)

// recordingCaster returns fixed rasters and records which primitive was called.
type recordingCaster struct {
	calls      []string
	building   *mat.Dense
	vegetation *mat.Dense
	facade     *mat.Dense
	vegFacade  *mat.Dense
	err        error

	gotAspect *mat.Dense
	gotAmax   float64
	gotScale  float64
}

func (c *recordingCaster) BuildingOnly(_ *mat.Dense, _, _, scale float64) (*mat.Dense, error) {
	c.calls = append(c.calls, "building")
	c.gotScale = scale
	return c.building, c.err
}

func (c *recordingCaster) BuildingVegetation(_, _, _ *mat.Dense, _, _, scale, amax float64, _ *mat.Dense) (VegetationShadow, error) {
	c.calls = append(c.calls, "building+vegetation")
	c.gotScale, c.gotAmax = scale, amax
	return VegetationShadow{Building: c.building, Vegetation: c.vegetation}, c.err
}

func (c *recordingCaster) WallBuildingOnly(_ *mat.Dense, _, _, scale float64, _, aspect *mat.Dense) (WallShadow, error) {
	c.calls = append(c.calls, "wall+building")
	c.gotScale, c.gotAspect = scale, aspect
	return WallShadow{Ground: c.building, Facade: c.facade}, c.err
}

func (c *recordingCaster) WallBuildingVegetation(_, _, _ *mat.Dense, _, _, scale, amax float64, _, _, aspect *mat.Dense) (WallVegetationShadow, error) {
	c.calls = append(c.calls, "wall+building+vegetation")
	c.gotScale, c.gotAmax, c.gotAspect = scale, amax, aspect
	return WallVegetationShadow{
		Ground:           c.building,
		Vegetation:       c.vegetation,
		Facade:           c.facade,
		VegetationFacade: c.vegFacade,
	}, c.err
}

func newRecordingCaster() *recordingCaster {
	return &recordingCaster{
		building:   mat.NewDense(1, 4, []float64{1, 1, 0, 0.5}),
		vegetation: mat.NewDense(1, 4, []float64{1, 0, 0, 0.4}),
		facade:     mat.NewDense(1, 4, []float64{0, 2, 0, 1}),
		vegFacade:  mat.NewDense(1, 4, []float64{0, 1, 0, 0}),
	}
}

func testGeometry() *vegetation.Geometry {
	return &vegetation.Geometry{
		AmaxValue:  12,
		CanopyTop:  mat.NewDense(1, 4, nil),
		CanopyBase: mat.NewDense(1, 4, nil),
		Bush:       mat.NewDense(1, 4, nil),
	}
}

func testWalls() *Walls {
	return &Walls{Height: mat.NewDense(1, 4, nil), AspectRad: raster.Filled(1, 4, 1.5)}
}

func TestNewMode(t *testing.T) {
	tests := []struct {
		name     string
		geom     *vegetation.Geometry
		walls    *Walls
		expected string
	}{
		{name: "no vegetation no walls", expected: "building"},
		{name: "vegetation only", geom: testGeometry(), expected: "building+vegetation"},
		{name: "walls only", walls: testWalls(), expected: "wall+building"},
		{name: "vegetation and walls", geom: testGeometry(), walls: testWalls(), expected: "wall+building+vegetation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode := NewMode(tt.geom, 0.03, tt.walls)
			if mode.String() != tt.expected {
				t.Errorf("mode = %s, expected %s", mode, tt.expected)
			}

			caster := newRecordingCaster()
			sel := NewSelector(caster, mat.NewDense(1, 4, nil), 2, mode, nil)
			sample, err := sel.Cast(Sun{AltitudeDeg: 30, AzimuthDeg: 180})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(caster.calls) != 1 || caster.calls[0] != tt.expected {
				t.Errorf("caster calls = %v, expected [%s]", caster.calls, tt.expected)
			}
			if caster.gotScale != 2 {
				t.Errorf("scale = %v, expected 2", caster.gotScale)
			}
			if sample.Ground == nil {
				t.Fatal("expected a ground raster")
			}
			if (sample.Facade != nil) != (tt.walls != nil) {
				t.Errorf("facade present = %v, walls active = %v", sample.Facade != nil, tt.walls != nil)
			}
			if (sample.VegetationFacade != nil) != (tt.walls != nil && tt.geom != nil) {
				t.Errorf("vegetation facade present = %v", sample.VegetationFacade != nil)
			}
			if tt.geom != nil && caster.gotAmax != 12 {
				t.Errorf("amaxvalue = %v, expected 12", caster.gotAmax)
			}
			if tt.walls != nil && caster.gotAspect.At(0, 0) != 1.5 {
				t.Errorf("wall aspect not forwarded")
			}
		})
	}
}

func TestCastCombinesVegetation(t *testing.T) {
	tests := []struct {
		name     string
		psi      float64
		expected []float64
	}{
		{name: "opaque canopy", psi: 0, expected: []float64{1, 0, 0, 0}},
		{name: "transparent canopy", psi: 1, expected: []float64{1, 1, 0, 0.5}},
		{name: "half transmissive", psi: 0.5, expected: []float64{1, 0.5, 0, 0.2}},
	}

	for _, tt := range tests {
		for _, walls := range []*Walls{nil, testWalls()} {
			mode := NewMode(testGeometry(), tt.psi, walls)
			t.Run(tt.name+"/"+mode.String(), func(t *testing.T) {
				sel := NewSelector(newRecordingCaster(), mat.NewDense(1, 4, nil), 1, mode, nil)
				sample, err := sel.Cast(Sun{AltitudeDeg: 10, AzimuthDeg: 90})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				want := mat.NewDense(1, 4, tt.expected)
				if !mat.EqualApprox(want, sample.Ground, 1e-12) {
					t.Errorf("ground = %v, expected %v", mat.Formatted(sample.Ground), mat.Formatted(want))
				}
				if err := Verify(sample.Ground); err != nil {
					t.Errorf("combined shadow out of range: %v", err)
				}
			})
		}
	}
}

func TestCombineClamps(t *testing.T) {
	sh, clamped := Combine(
		mat.NewDense(1, 3, []float64{0, 0.2, 1}),
		mat.NewDense(1, 3, []float64{0, 0, 1}),
		0,
	)
	if clamped != 2 {
		t.Errorf("clamped = %d, expected 2", clamped)
	}
	if !mat.Equal(mat.NewDense(1, 3, []float64{0, 0, 1}), sh) {
		t.Errorf("sh = %v", mat.Formatted(sh))
	}
}

func TestCastBelowHorizon(t *testing.T) {
	for _, alt := range []float64{0, -5} {
		caster := newRecordingCaster()
		sel := NewSelector(caster, mat.NewDense(1, 4, nil), 1, BuildingOnly{}, nil)
		if _, err := sel.Cast(Sun{AltitudeDeg: alt}); !errors.Is(err, ErrBelowHorizon) {
			t.Errorf("altitude %v: expected ErrBelowHorizon, got %v", alt, err)
		}
		if len(caster.calls) != 0 {
			t.Errorf("altitude %v: caster invoked %v", alt, caster.calls)
		}
	}
}

func TestCastPropagatesCasterError(t *testing.T) {
	boom := errors.New("boom")
	for _, mode := range []Mode{
		NewMode(nil, 0, nil),
		NewMode(testGeometry(), 0, nil),
		NewMode(nil, 0, testWalls()),
		NewMode(testGeometry(), 0, testWalls()),
	} {
		caster := newRecordingCaster()
		caster.err = boom
		sel := NewSelector(caster, mat.NewDense(1, 4, nil), 1, mode, nil)
		if _, err := sel.Cast(Sun{AltitudeDeg: 45}); !errors.Is(err, boom) {
			t.Errorf("%s: expected caster error, got %v", mode, err)
		}
	}
}

func TestCastRejectsMisbehavingCaster(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		mutate  func(c *recordingCaster)
		wantErr error
	}{
		{
			name:    "short vegetation raster",
			mode:    NewMode(testGeometry(), 0.03, nil),
			mutate:  func(c *recordingCaster) { c.vegetation = mat.NewDense(1, 3, nil) },
			wantErr: raster.ErrShapeMismatch,
		},
		{
			name:    "transposed building raster",
			mode:    NewMode(nil, 0, nil),
			mutate:  func(c *recordingCaster) { c.building = mat.NewDense(4, 1, nil) },
			wantErr: raster.ErrShapeMismatch,
		},
		{
			name:    "nil ground",
			mode:    NewMode(nil, 0, testWalls()),
			mutate:  func(c *recordingCaster) { c.building = nil },
			wantErr: ErrMissingOutput,
		},
		{
			name:    "nil building with vegetation",
			mode:    NewMode(testGeometry(), 0.03, nil),
			mutate:  func(c *recordingCaster) { c.building = nil },
			wantErr: ErrMissingOutput,
		},
		{
			name:    "nil facade",
			mode:    NewMode(nil, 0, testWalls()),
			mutate:  func(c *recordingCaster) { c.facade = nil },
			wantErr: ErrMissingOutput,
		},
		{
			name:    "wide vegetation facade",
			mode:    NewMode(testGeometry(), 0.03, testWalls()),
			mutate:  func(c *recordingCaster) { c.vegFacade = mat.NewDense(1, 5, nil) },
			wantErr: raster.ErrShapeMismatch,
		},
		{
			name:    "short vegetation with walls",
			mode:    NewMode(testGeometry(), 0.03, testWalls()),
			mutate:  func(c *recordingCaster) { c.vegetation = mat.NewDense(1, 2, nil) },
			wantErr: raster.ErrShapeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caster := newRecordingCaster()
			tt.mutate(caster)
			sel := NewSelector(caster, mat.NewDense(1, 4, nil), 1, tt.mode, nil)

			sample, err := sel.Cast(Sun{AltitudeDeg: 30, AzimuthDeg: 180})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if sample.Ground != nil {
				t.Error("expected no sample alongside the error")
			}
		})
	}
}

func TestUnobstructed(t *testing.T) {
	dsm := raster.Filled(3, 3, 10)
	for _, mode := range []Mode{
		NewMode(nil, 0, nil),
		NewMode(&vegetation.Geometry{CanopyTop: dsm, CanopyBase: dsm, Bush: dsm}, 0.03, nil),
		NewMode(nil, 0, &Walls{Height: dsm, AspectRad: dsm}),
		NewMode(&vegetation.Geometry{CanopyTop: dsm, CanopyBase: dsm, Bush: dsm}, 0.03, &Walls{Height: dsm, AspectRad: dsm}),
	} {
		sel := NewSelector(Unobstructed{}, dsm, 1, mode, nil)
		sample, err := sel.Cast(Sun{AltitudeDeg: 40, AzimuthDeg: 200})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", mode, err)
		}
		if !mat.Equal(raster.Filled(3, 3, 1), sample.Ground) {
			t.Errorf("%s: expected an all-sunlit ground raster", mode)
		}
	}
}

func TestRegistry(t *testing.T) {
	if _, err := Lookup("unobstructed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Lookup("raytrace-9000"); err == nil {
		t.Error("expected an error for an unknown caster")
	}

	Register("recording", func() Caster { return newRecordingCaster() })
	c, err := Lookup("recording")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.(*recordingCaster); !ok {
		t.Errorf("Lookup returned %T", c)
	}

	found := false
	for _, name := range Names() {
		if name == "recording" {
			found = true
		}
	}
	if !found {
		t.Errorf("Names() = %v, missing recording", Names())
	}
}

func TestVerify(t *testing.T) {
	if err := Verify(mat.NewDense(1, 3, []float64{0, 0.5, 1})); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Verify(mat.NewDense(1, 2, []float64{0.5, 1.01})); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}
