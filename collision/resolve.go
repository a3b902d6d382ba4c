package collision

import (
	"github.com/hearthcode/netplay/entity"
	"github.com/hearthcode/netplay/vecmath"
)

// angularTerm computes n·((r×n)·Iinv)×r, the angular contribution to
// the impulse denominator for a body with inverse world inertia Iinv.
func angularTerm(r, n vecmath.Vec3, invInertiaWorld vecmath.Mat3) float32 {
	rxn := r.Cross(n)
	term := invInertiaWorld.MulVec3(rxn).Cross(r)
	return n.Dot(term)
}

func pointVelocity(o entity.Object, r vecmath.Vec3) vecmath.Vec3 {
	return o.Velocity().Add(o.AngularVelocity().Cross(r))
}

// Resolve applies impulse-based resolution and positional correction
// for a contact between a and b, given the contact normal (pointing
// from a toward b). affectB gates whether impulses and positional
// correction are applied to b — false when only a should respond, as in
// the client's reconciliation replay, which moves the owned player but
// leaves the mirrored world untouched.
//
// Resolution only runs if the bodies are approaching along the
// normal; otherwise only the collision hooks fire.
func Resolve(a, b entity.Object, c Contact, affectB bool) {
	rA := c.Point.Sub(a.Position())
	rB := c.Point.Sub(b.Position())

	vPA := pointVelocity(a, rA)
	vPB := pointVelocity(b, rB)
	relVel := vPA.Sub(vPB)

	approaching := relVel.Dot(c.Normal) > 0

	if approaching {
		invMassSum := a.InverseMass() + b.InverseMass()
		angular := angularTerm(rA, c.Normal, a.InverseInertiaWorld()) + angularTerm(rB, c.Normal, b.InverseInertiaWorld())
		denom := invMassSum + angular

		if denom > 1e-9 {
			e := (a.Elasticity() + b.Elasticity()) / 2
			jN := -(1 + e) * relVel.Dot(c.Normal) / denom

			a.ApplyImpulse(c.Normal.Scale(jN), rA)
			if affectB {
				b.ApplyImpulse(c.Normal.Scale(-jN), rB)
			}

			tangentVec := relVel.Sub(c.Normal.Scale(relVel.Dot(c.Normal)))
			if !tangentVec.IsZero() {
				t := tangentVec.Normalize()
				angularT := angularTerm(rA, t, a.InverseInertiaWorld()) + angularTerm(rB, t, b.InverseInertiaWorld())
				denomT := invMassSum + angularT
				if denomT > 1e-9 {
					jF := -relVel.Dot(t) / denomT
					friction := a.Friction()
					if b.Friction() < friction {
						friction = b.Friction()
					}
					maxF := -jN * friction
					if jF > maxF {
						jF = maxF
					} else if jF < -maxF {
						jF = -maxF
					}

					a.ApplyImpulse(t.Scale(jF), rA)
					if affectB {
						b.ApplyImpulse(t.Scale(-jF), rB)
					}
				}
			}
		}

		positionalCorrection(a, b, c, affectB)
	}

	a.HandleCollision(b, c.Point, c.Normal)
	b.HandleCollision(a, c.Point, c.Normal.Neg())
}

func positionalCorrection(a, b entity.Object, c Contact, affectB bool) {
	invA, invB := a.InverseMass(), b.InverseMass()
	if invA == 0 && invB == 0 {
		return
	}
	massA, massB := float32(0), float32(0)
	if invA > 0 {
		massA = 1 / invA
	}
	if invB > 0 {
		massB = 1 / invB
	}

	var fractionA, fractionB float32
	switch {
	case invA == 0:
		fractionA, fractionB = 0, 1
	case invB == 0:
		fractionA, fractionB = 1, 0
	default:
		fractionA = massB / (massA + massB)
		fractionB = 1 - fractionA
	}

	a.SetPosition(a.Position().Sub(c.Normal.Scale(c.Penetration * fractionA)))
	if affectB {
		b.SetPosition(b.Position().Add(c.Normal.Scale(c.Penetration * fractionB)))
	}
}
