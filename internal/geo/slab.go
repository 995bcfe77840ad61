package geo

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/magtrack/internal/assert"
	"github.com/san-kum/magtrack/internal/grid"
	"gonum.org/v1/gonum/spatial/r3"
)

// SlabParams is a stack of layers bounded by planes of constant z. Volume i
// lies between Planes[i] and Planes[i+1]; beyond the first and last planes
// is Outside. Transversely the layers are unbounded.
type SlabParams struct {
	planes []float64
	names  []string
}

func NewSlabParams(planes []float64, names []string) (*SlabParams, error) {
	if err := grid.ValidateAxis("planes", planes); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGeometry, err)
	}
	if len(names) != len(planes)-1 {
		return nil, fmt.Errorf("%w: %d volume names for %d layers", ErrInvalidGeometry, len(names), len(planes)-1)
	}
	return &SlabParams{
		planes: append([]float64(nil), planes...),
		names:  append([]string(nil), names...),
	}, nil
}

func (p *SlabParams) NumVolumes() int { return len(p.names) }

func (p *SlabParams) VolumeName(id VolumeID) string {
	if id == Outside {
		return "[OUTSIDE]"
	}
	return p.names[id]
}

func (p *SlabParams) Planes() []float64 { return p.planes }

// FindVolume returns the layer containing z, with a point on an interior
// plane assigned to the layer above it.
func (p *SlabParams) FindVolume(z float64) VolumeID {
	if z < p.planes[0] || z >= p.planes[len(p.planes)-1] {
		return Outside
	}
	i := sort.Search(len(p.planes), func(i int) bool { return p.planes[i] > z })
	return VolumeID(i - 1)
}

// SlabStates holds the navigation state of every track slot.
type SlabStates struct {
	pos      []r3.Vec
	dir      []r3.Vec
	volume   []VolumeID
	boundary []bool
	// plane index the track sits on while on a boundary
	surface []int

	next     []Propagation
	nextDone []bool
}

func NewSlabStates(size int) *SlabStates {
	return &SlabStates{
		pos:      make([]r3.Vec, size),
		dir:      make([]r3.Vec, size),
		volume:   make([]VolumeID, size),
		boundary: make([]bool, size),
		surface:  make([]int, size),
		next:     make([]Propagation, size),
		nextDone: make([]bool, size),
	}
}

func (s *SlabStates) Size() int { return len(s.pos) }

// SlabTrackView is the view of one slot of SlabStates.
type SlabTrackView struct {
	params *SlabParams
	states *SlabStates
	slot   int
}

func NewSlabTrackView(p *SlabParams, s *SlabStates, slot int) SlabTrackView {
	return SlabTrackView{params: p, states: s, slot: slot}
}

// Init places the track at pos heading along dir, which must be a unit
// vector.
func (v SlabTrackView) Init(pos, dir r3.Vec) {
	s, i := v.states, v.slot
	s.pos[i] = pos
	s.dir[i] = dir
	s.volume[i] = v.params.FindVolume(pos.Z)
	s.boundary[i] = false
	s.surface[i] = -1
	s.nextDone[i] = false
}

func (v SlabTrackView) Pos() r3.Vec        { return v.states.pos[v.slot] }
func (v SlabTrackView) Dir() r3.Vec        { return v.states.dir[v.slot] }
func (v SlabTrackView) Volume() VolumeID   { return v.states.volume[v.slot] }
func (v SlabTrackView) IsOnBoundary() bool { return v.states.boundary[v.slot] }
func (v SlabTrackView) IsOutside() bool    { return v.states.volume[v.slot] == Outside }

func (v SlabTrackView) SetDir(dir r3.Vec) {
	assert.Expect(math.Abs(r3.Norm(dir)-1) < 1e-6, "direction %v is not a unit vector", dir)
	v.states.dir[v.slot] = dir
	v.states.nextDone[v.slot] = false
}

// FindNextStep intersects the direction with the planes bounding the
// current layer.
func (v SlabTrackView) FindNextStep(max float64) Propagation {
	assert.Expect(max > 0, "nonpositive max step %g", max)
	s, i := v.states, v.slot

	result := Propagation{Distance: max}
	if plane, dist := v.nextPlane(); plane >= 0 && dist <= max {
		result = Propagation{Distance: dist, Boundary: true}
	}
	s.next[i] = result
	s.nextDone[i] = true
	return result
}

// nextPlane returns the index of the plane ahead of the track and the
// distance to it, or -1 when nothing is ahead.
func (v SlabTrackView) nextPlane() (int, float64) {
	s, i := v.states, v.slot
	vol, dz := s.volume[i], s.dir[i].Z
	if vol == Outside || dz == 0 {
		return -1, math.Inf(1)
	}
	plane := int(vol)
	if dz > 0 {
		plane++
	}
	dist := (v.params.planes[plane] - s.pos[i].Z) / dz
	return plane, math.Max(dist, 0)
}

func (v SlabTrackView) FindSafety() float64 {
	s, i := v.states, v.slot
	if s.boundary[i] {
		return 0
	}
	vol := s.volume[i]
	if vol == Outside {
		return math.Inf(1)
	}
	z := s.pos[i].Z
	return math.Max(0, math.Min(z-v.params.planes[vol], v.params.planes[vol+1]-z))
}

func (v SlabTrackView) MoveToBoundary() {
	s, i := v.states, v.slot
	assert.Expect(s.nextDone[i] && s.next[i].Boundary, "no boundary ahead of track %d", i)

	plane, _ := v.nextPlane()
	s.pos[i] = r3.Add(s.pos[i], r3.Scale(s.next[i].Distance, s.dir[i]))
	s.pos[i].Z = v.params.planes[plane]
	s.boundary[i] = true
	s.surface[i] = plane
	s.nextDone[i] = false
}

func (v SlabTrackView) MoveInternalDist(dist float64) {
	s, i := v.states, v.slot
	assert.Expect(s.nextDone[i] && dist <= s.next[i].Distance,
		"internal move of %g exceeds next step", dist)

	s.pos[i] = r3.Add(s.pos[i], r3.Scale(dist, s.dir[i]))
	s.boundary[i] = false
	s.surface[i] = -1
	s.nextDone[i] = false
}

// MoveInternal jumps to a nearby point inside the current volume.
func (v SlabTrackView) MoveInternal(pos r3.Vec) {
	s, i := v.states, v.slot
	s.pos[i] = pos
	s.boundary[i] = false
	s.surface[i] = -1
	s.nextDone[i] = false
}

// CrossBoundary enters the layer on the far side of the current plane.
func (v SlabTrackView) CrossBoundary() {
	s, i := v.states, v.slot
	assert.Expect(s.boundary[i], "track %d is not on a boundary", i)

	vol := VolumeID(s.surface[i])
	if s.dir[i].Z < 0 {
		vol--
	}
	if vol < 0 || int(vol) >= v.params.NumVolumes() {
		vol = Outside
	}
	s.volume[i] = vol
	s.nextDone[i] = false
}
