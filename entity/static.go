package entity

import (
	"fmt"

	"github.com/hearthcode/netplay/vecmath"
	"github.com/hearthcode/netplay/wire"
)

// StaticEntity is an immovable piece of world geometry: level
// collision, terrain, props that never move. It participates in
// collision as an infinite-mass body and is sent to clients once, on
// connect, rather than every tick.
type StaticEntity struct {
	typeID    int32
	collider  Collider
	position  vecmath.Vec3
	rotation  vecmath.Vec3
	elasticity float32
	friction   float32
}

// NewStaticEntity constructs a static world object. elasticity and
// friction describe the surface for collision resolution purposes;
// static geometry still has material properties even though it never
// moves.
func NewStaticEntity(typeID int32, collider Collider, position, rotation vecmath.Vec3, elasticity, friction float32) *StaticEntity {
	return &StaticEntity{
		typeID:     typeID,
		collider:   collider,
		position:   position,
		rotation:   rotation,
		elasticity: elasticity,
		friction:   friction,
	}
}

func (s *StaticEntity) TypeID() int32 { return s.typeID }

func (s *StaticEntity) ObjectID() uint32 { return 0 }
func (s *StaticEntity) IsStatic() bool   { return true }

func (s *StaticEntity) Position() vecmath.Vec3      { return s.position }
func (s *StaticEntity) SetPosition(v vecmath.Vec3)  {} // immovable
func (s *StaticEntity) Rotation() vecmath.Vec3      { return s.rotation }

func (s *StaticEntity) Velocity() vecmath.Vec3             { return vecmath.Vec3{} }
func (s *StaticEntity) SetVelocity(vecmath.Vec3)           {}
func (s *StaticEntity) AngularVelocity() vecmath.Vec3      { return vecmath.Vec3{} }
func (s *StaticEntity) SetAngularVelocity(vecmath.Vec3)    {}

func (s *StaticEntity) ColliderShape() Collider { return s.collider }
func (s *StaticEntity) InverseMass() float32    { return 0 }
func (s *StaticEntity) InverseInertiaWorld() vecmath.Mat3 { return vecmath.Mat3{} }
func (s *StaticEntity) Elasticity() float32     { return s.elasticity }
func (s *StaticEntity) Friction() float32       { return s.friction }

func (s *StaticEntity) ApplyImpulse(f, r vecmath.Vec3) {} // infinite mass absorbs nothing

func (s *StaticEntity) HandleCollision(other Object, contact, normal vecmath.Vec3) {}

// Serialize writes the CREATE_STATIC_OBJECTS record for this entity:
// {typeId, collider, position, rotation}.
func (s *StaticEntity) Serialize(w *wire.Writer) {
	w.I32(s.typeID)
	WriteCollider(w, s.collider)
	w.Vec3(s.position)
	w.Vec3(s.rotation)
}

// DecodeStaticEntity reads a single CREATE_STATIC_OBJECTS record. The
// caller supplies the material properties since they are not part of
// the wire record (they only matter locally, for collision response).
func DecodeStaticEntity(r *wire.Reader, elasticity, friction float32) (*StaticEntity, error) {
	typeID, err := r.I32()
	if err != nil {
		return nil, fmt.Errorf("entity: reading static type id: %w", err)
	}
	collider, err := ReadCollider(r)
	if err != nil {
		return nil, err
	}
	position, err := r.Vec3()
	if err != nil {
		return nil, fmt.Errorf("entity: reading static position: %w", err)
	}
	rotation, err := r.Vec3()
	if err != nil {
		return nil, fmt.Errorf("entity: reading static rotation: %w", err)
	}
	return NewStaticEntity(typeID, collider, position, rotation, elasticity, friction), nil
}
