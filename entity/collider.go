package entity

import (
	"fmt"

	"github.com/hearthcode/netplay/vecmath"
	"github.com/hearthcode/netplay/wire"
)

// ShapeTag classifies a Collider for pair dispatch in the collision
// engine. The number of tags (ShapeCount) is fixed at build time.
type ShapeTag int32

const (
	ShapeSphere      ShapeTag = 0
	ShapeOrientedBox ShapeTag = 1

	// ShapeCount is K: the number of shape tags the dispatch table in
	// package collision is sized for. Raising this requires adding the
	// corresponding rows/columns to that table.
	ShapeCount = 2
)

// Collider produces an inertia tensor and classifies itself for
// collision-pair dispatch. Entities own their collider exclusively;
// destroying the entity releases it.
type Collider interface {
	ShapeTag() ShapeTag
	// InertiaTensor returns the body-space inertia tensor for a body of
	// the given mass using this shape.
	InertiaTensor(mass float32) vecmath.Mat3
	serialize(w *wire.Writer)
}

// Sphere is a collider shaped like a ball of the given radius.
type Sphere struct {
	Radius float32
}

func (s Sphere) ShapeTag() ShapeTag { return ShapeSphere }

func (s Sphere) InertiaTensor(mass float32) vecmath.Mat3 {
	i := 0.4 * mass * s.Radius * s.Radius
	return vecmath.Diag(i, i, i)
}

func (s Sphere) serialize(w *wire.Writer) {
	w.I32(int32(ShapeSphere))
	w.F32(s.Radius)
}

// OrientedBox is a collider shaped like a box with the given half
// extents along its local axes.
type OrientedBox struct {
	HalfExtents vecmath.Vec3
}

func (b OrientedBox) ShapeTag() ShapeTag { return ShapeOrientedBox }

func (b OrientedBox) InertiaTensor(mass float32) vecmath.Mat3 {
	x, y, z := b.HalfExtents.X*2, b.HalfExtents.Y*2, b.HalfExtents.Z*2
	c := mass / 12
	return vecmath.Diag(c*(y*y+z*z), c*(x*x+z*z), c*(x*x+y*y))
}

func (b OrientedBox) serialize(w *wire.Writer) {
	w.I32(int32(ShapeOrientedBox))
	w.Vec3(b.HalfExtents)
}

// WriteCollider writes a collider record, or a "no collider" marker if
// c is nil, matching the wire format {shapeId, ...shape-specific}.
func WriteCollider(w *wire.Writer, c Collider) {
	if c == nil {
		w.I32(wire.ShapeNone)
		return
	}
	c.serialize(w)
}

// ReadCollider reads a collider record written by WriteCollider.
// Unrecognized or negative shape ids yield (nil, nil) — "no collider" —
// rather than an error, matching the spec's silent-skip rule for
// invalid colliders in collision dispatch.
func ReadCollider(r *wire.Reader) (Collider, error) {
	shapeID, err := r.I32()
	if err != nil {
		return nil, fmt.Errorf("entity: reading collider shape id: %w", err)
	}

	switch ShapeTag(shapeID) {
	case ShapeSphere:
		radius, err := r.F32()
		if err != nil {
			return nil, fmt.Errorf("entity: reading sphere radius: %w", err)
		}
		return Sphere{Radius: radius}, nil
	case ShapeOrientedBox:
		extents, err := r.Vec3()
		if err != nil {
			return nil, fmt.Errorf("entity: reading box half extents: %w", err)
		}
		return OrientedBox{HalfExtents: extents}, nil
	default:
		return nil, nil
	}
}
