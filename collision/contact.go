// Package collision implements contact generation and impulse-based
// resolution for the shapes in package entity: sphere/sphere,
// sphere/box, and box/box via separating-axis testing.
package collision

import (
	"math"

	"github.com/hearthcode/netplay/entity"
	"github.com/hearthcode/netplay/vecmath"
)

// Contact describes a single point of contact between two bodies.
// Normal points from A toward B.
type Contact struct {
	Normal      vecmath.Vec3
	Point       vecmath.Vec3
	Penetration float32
}

type pairFunc func(a, b entity.Object) (Contact, bool)

// table is keyed by shapeA*entity.ShapeCount + shapeB, mirroring the
// fixed K×K dispatch used by the original engine. Entries left nil
// report "no contact" for that pair rather than panicking.
var table = [entity.ShapeCount * entity.ShapeCount]pairFunc{}

func init() {
	set := func(a, b entity.ShapeTag, f pairFunc) {
		table[int(a)*entity.ShapeCount+int(b)] = f
	}
	set(entity.ShapeSphere, entity.ShapeSphere, sphereSphere)
	set(entity.ShapeSphere, entity.ShapeOrientedBox, sphereBox)
	set(entity.ShapeOrientedBox, entity.ShapeSphere, boxSphere)
	set(entity.ShapeOrientedBox, entity.ShapeOrientedBox, boxBox)
}

// Detect runs contact generation for a and b, dispatching on their
// collider shape tags. It reports false ("no contact") if either body
// lacks a collider, either shape tag is unrecognized, or no overlap
// was found.
func Detect(a, b entity.Object) (Contact, bool) {
	ca, cb := a.ColliderShape(), b.ColliderShape()
	if ca == nil || cb == nil {
		return Contact{}, false
	}
	shapeA, shapeB := int(ca.ShapeTag()), int(cb.ShapeTag())
	if shapeA < 0 || shapeA >= entity.ShapeCount || shapeB < 0 || shapeB >= entity.ShapeCount {
		return Contact{}, false
	}
	fn := table[shapeA*entity.ShapeCount+shapeB]
	if fn == nil {
		return Contact{}, false
	}
	return fn(a, b)
}

func sphereSphere(a, b entity.Object) (Contact, bool) {
	ra := a.ColliderShape().(entity.Sphere).Radius
	rb := b.ColliderShape().(entity.Sphere).Radius

	diff := b.Position().Sub(a.Position())
	dist := diff.Length()
	pen := ra + rb - dist
	if pen <= 0 {
		return Contact{}, false
	}

	var normal vecmath.Vec3
	if dist > 1e-9 {
		normal = diff.Scale(1 / dist)
	} else {
		normal = vecmath.Vec3{X: 1}
	}
	point := a.Position().Add(b.Position()).Scale(0.5)
	return Contact{Normal: normal, Point: point, Penetration: pen}, true
}

func sphereBox(a, b entity.Object) (Contact, bool) {
	radius := a.ColliderShape().(entity.Sphere).Radius
	extents := b.ColliderShape().(entity.OrientedBox).HalfExtents

	rot := vecmath.RotationXYZ(b.Rotation())
	localPos := rot.Transpose().MulVec3(a.Position().Sub(b.Position()))
	closestLocal := localPos.Clamp(extents.Neg(), extents)
	closestWorld := rot.MulVec3(closestLocal).Add(b.Position())

	fromClosestToSphere := a.Position().Sub(closestWorld)
	dist := fromClosestToSphere.Length()
	pen := radius - dist
	if pen <= 0 {
		return Contact{}, false
	}

	var normal vecmath.Vec3
	if dist > 1e-9 {
		normal = fromClosestToSphere.Normalize().Neg()
	} else {
		normal = vecmath.Vec3{X: 1}
	}
	return Contact{Normal: normal, Point: closestWorld, Penetration: pen}, true
}

func boxSphere(a, b entity.Object) (Contact, bool) {
	c, ok := sphereBox(b, a)
	if !ok {
		return Contact{}, false
	}
	c.Normal = c.Normal.Neg()
	return c, true
}

// boxVertices returns the 8 world-space corners of an oriented box.
func boxVertices(pos vecmath.Vec3, axes [3]vecmath.Vec3, extents vecmath.Vec3) [8]vecmath.Vec3 {
	ax, ay, az := axes[0].Scale(extents.X), axes[1].Scale(extents.Y), axes[2].Scale(extents.Z)
	return [8]vecmath.Vec3{
		pos.Add(ax).Add(ay).Add(az),
		pos.Sub(ax).Add(ay).Add(az),
		pos.Add(ax).Sub(ay).Add(az),
		pos.Add(ax).Add(ay).Sub(az),
		pos.Sub(ax).Sub(ay).Sub(az),
		pos.Add(ax).Sub(ay).Sub(az),
		pos.Sub(ax).Add(ay).Sub(az),
		pos.Sub(ax).Sub(ay).Add(az),
	}
}

type boxEdge struct{ start, end vecmath.Vec3 }

func boxEdges(v [8]vecmath.Vec3) [12]boxEdge {
	return [12]boxEdge{
		{v[6], v[1]}, {v[6], v[3]}, {v[6], v[4]},
		{v[2], v[7]}, {v[2], v[5]}, {v[2], v[0]},
		{v[0], v[1]}, {v[0], v[3]},
		{v[7], v[1]}, {v[7], v[4]},
		{v[4], v[5]}, {v[5], v[3]},
	}
}

func boxInterval(vertices [8]vecmath.Vec3, axis vecmath.Vec3) (min, max float32) {
	min, max = float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range vertices {
		p := axis.Dot(v)
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	return
}

// faceClip returns the points where the given edges of another box
// cross the six face planes of (pos, axes, extents), keeping only those
// that lie within this box (its boundary included).
func faceClip(edges [12]boxEdge, pos vecmath.Vec3, axes [3]vecmath.Vec3, extents vecmath.Vec3) []vecmath.Vec3 {
	extentsArr := [3]float32{extents.X, extents.Y, extents.Z}
	type plane struct {
		normal vecmath.Vec3
		dist   float32
	}
	var planes [6]plane
	for i := 0; i < 3; i++ {
		planes[2*i] = plane{axes[i], axes[i].Dot(pos.Add(axes[i].Scale(extentsArr[i])))}
		negAxis := axes[i].Neg()
		planes[2*i+1] = plane{negAxis, -axes[i].Dot(pos.Sub(axes[i].Scale(extentsArr[i])))}
	}

	var result []vecmath.Vec3
	for _, p := range planes {
		for _, e := range edges {
			ab := e.end.Sub(e.start)
			nA := p.normal.Dot(e.start)
			nAB := p.normal.Dot(ab)
			if nAB == 0 {
				continue
			}
			t := (p.dist - nA) / nAB
			if t < 0 || t > 1 {
				continue
			}
			intersection := e.start.Add(ab.Scale(t))
			local := intersection.Sub(pos)
			inside := true
			for i := 0; i < 3; i++ {
				d := local.Dot(axes[i])
				if d > extentsArr[i] || d < -extentsArr[i] {
					inside = false
					break
				}
			}
			if inside {
				result = append(result, intersection)
			}
		}
	}
	return result
}

func boxBox(a, b entity.Object) (Contact, bool) {
	extA := a.ColliderShape().(entity.OrientedBox).HalfExtents
	extB := b.ColliderShape().(entity.OrientedBox).HalfExtents

	axesA := vecmath.RotationXYZ(a.Rotation()).AxisTests()
	axesB := vecmath.RotationXYZ(b.Rotation()).AxisTests()

	vertsA := boxVertices(a.Position(), axesA, extA)
	vertsB := boxVertices(b.Position(), axesB, extB)

	var axes [15]vecmath.Vec3
	axes[0], axes[1], axes[2] = axesA[0], axesA[1], axesA[2]
	axes[3], axes[4], axes[5] = axesB[0], axesB[1], axesB[2]
	k := 6
	for i := 0; i < 3; i++ {
		axes[k] = axesA[i].Cross(axesB[0])
		axes[k+1] = axesA[i].Cross(axesB[1])
		axes[k+2] = axesA[i].Cross(axesB[2])
		k += 3
	}

	bestPen := float32(math.Inf(1))
	var bestNormal vecmath.Vec3
	found := false

	for _, axisRaw := range axes {
		if axisRaw.LengthSq() < 1e-6 {
			continue
		}
		axis := axisRaw.Normalize()

		minA, maxA := boxInterval(vertsA, axis)
		minB, maxB := boxInterval(vertsB, axis)
		if maxB < minA || maxA < minB {
			return Contact{}, false
		}

		lenA := maxA - minA
		lenB := maxB - minB
		combinedMin := math32Min(minA, minB)
		combinedMax := math32Max(maxA, maxB)
		pen := (lenA + lenB) - (combinedMax - combinedMin)
		if pen <= 0 {
			return Contact{}, false
		}

		shouldFlip := minB < minA
		oriented := axis
		if shouldFlip {
			oriented = axis.Neg()
		}

		if pen < bestPen {
			bestPen = pen
			bestNormal = oriented
			found = true
		}
	}
	if !found {
		return Contact{}, false
	}

	contacts := faceClip(boxEdges(vertsB), a.Position(), axesA, extA)
	contacts = append(contacts, faceClip(boxEdges(vertsA), b.Position(), axesB, extB)...)

	minA, maxA := boxInterval(vertsA, bestNormal)
	distance := (maxA-minA)*0.5 - bestPen*0.5
	pointOnPlane := a.Position().Add(bestNormal.Scale(distance))

	var point vecmath.Vec3
	if len(contacts) > 0 {
		for i, c := range contacts {
			projected := c.Add(bestNormal.Scale(bestNormal.Dot(pointOnPlane.Sub(c))))
			contacts[i] = projected
			point = point.Add(projected)
		}
		point = point.Scale(1 / float32(len(contacts)))
	} else {
		point = a.Position().Add(b.Position()).Scale(0.5)
	}

	return Contact{Normal: bestNormal, Point: point, Penetration: bestPen}, true
}

func math32Min(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func math32Max(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
