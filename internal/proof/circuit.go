// circuit.go - Groth16 circuit for CSTATE transitions.

package proof

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// transitionCircuit binds the four public fields of a transition. Each public
// variable is the BN254 field encoding of one field (see encodePublic); the
// private Binding must equal MiMC over them.
type transitionCircuit struct {
	// Public inputs
	Fingerprint frontend.Variable `gnark:",public"`
	StartRoot   frontend.Variable `gnark:",public"`
	EndRoot     frontend.Variable `gnark:",public"`
	Inputs      frontend.Variable `gnark:",public"`

	// Private inputs
	Binding frontend.Variable
}

func (c *transitionCircuit) Define(api frontend.API) error {
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	hasher.Write(c.Fingerprint, c.StartRoot, c.EndRoot, c.Inputs)
	api.AssertIsEqual(c.Binding, hasher.Sum())
	return nil
}
