package actor

import "math"

// Material holds the surface and mass properties of a collider.
type Material struct {
	Density     float64
	Restitution float64 // 0 = no rebound, 1 = perfect restitution

	StaticFriction  float64
	DynamicFriction float64
}

// DefaultMaterial returns a dense, non-bouncy material with moderate friction
func DefaultMaterial() Material {
	return Material{
		Density:         1000.0,
		Restitution:     0.0,
		StaticFriction:  0.5,
		DynamicFriction: 0.3,
	}
}

// CombineRestitution averages the two restitutions
func CombineRestitution(matA, matB Material) float64 {
	return (matA.Restitution + matB.Restitution) / 2.0
}

// CombineStaticFriction uses the geometric mean, the standard combination rule
func CombineStaticFriction(matA, matB Material) float64 {
	return math.Sqrt(matA.StaticFriction * matB.StaticFriction)
}

func CombineDynamicFriction(matA, matB Material) float64 {
	return math.Sqrt(matA.DynamicFriction * matB.DynamicFriction)
}
