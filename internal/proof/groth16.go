// groth16.go - Groth16 backend over BN254 for CSTATE transitions.
//
// The circuit only proves knowledge of a MiMC binding over the public fields.
// It does not prove anything about message contents or the Merkle structure.

package proof

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	gnarklog "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"

	"zerotrace/internal/fault"
)

const (
	provingKeyFile   = "transition.pk"
	verifyingKeyFile = "transition.vk"
)

// Groth16Engine proves transitions with a compiled transitionCircuit.
type Groth16Engine struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
	log zerolog.Logger
	now func() time.Time

	// groth16.Prove is not documented as safe for concurrent use with one key
	mu sync.Mutex
}

// NewGroth16Engine compiles the circuit and runs setup. When keyDir is not
// empty the keys are loaded from it, or generated and written there.
func NewGroth16Engine(keyDir string, log zerolog.Logger) (*Groth16Engine, error) {
	gnarklog.Set(log.With().Str("component", "gnark").Logger().Level(zerolog.WarnLevel))

	var circuit transitionCircuit
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, fmt.Errorf("compile transition circuit: %w", err)
	}

	var (
		pk groth16.ProvingKey
		vk groth16.VerifyingKey
	)
	if keyDir == "" {
		pk, vk, err = groth16.Setup(ccs)
	} else {
		if err = os.MkdirAll(keyDir, 0o700); err != nil {
			return nil, err
		}
		pkPath, vkPath := keyPaths(keyDir)
		pk, vk, err = SetupOrLoadKeys(ccs, pkPath, vkPath)
	}
	if err != nil {
		return nil, fmt.Errorf("groth16 setup: %w", err)
	}

	log.Info().
		Int("constraints", ccs.GetNbConstraints()).
		Str("key_dir", keyDir).
		Msg("groth16 transition circuit ready")

	return &Groth16Engine{ccs: ccs, pk: pk, vk: vk, log: log, now: time.Now}, nil
}

func (e *Groth16Engine) Name() string { return "groth16" }

func (e *Groth16Engine) Generate(fingerprint, startRoot, endRoot string, publicInputs []string) (*CFCProof, error) {
	fields := encodePublic(fingerprint, startRoot, endRoot, publicInputs)
	binding, err := fields.binding()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrProofMalformed, err)
	}
	pub := fields.bigInts()
	assignment := transitionCircuit{
		Fingerprint: pub[0],
		StartRoot:   pub[1],
		EndRoot:     pub[2],
		Inputs:      pub[3],
		Binding:     binding,
	}
	w, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("%w: witness: %v", fault.ErrProofMalformed, err)
	}

	e.mu.Lock()
	p, err := groth16.Prove(e.ccs, e.pk, w)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: prove: %v", fault.ErrProofRejected, err)
	}

	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrProofMalformed, err)
	}

	return &CFCProof{
		Fingerprint:  fingerprint,
		StartRoot:    startRoot,
		EndRoot:      endRoot,
		ProofBytes:   buf.Bytes(),
		PublicInputs: append([]string(nil), publicInputs...),
		Timestamp:    e.now().Unix(),
	}, nil
}

// Verify rebuilds the public witness from the proof's fields and checks the
// Groth16 proof against it.
func (e *Groth16Engine) Verify(p *CFCProof) bool {
	if p == nil || len(p.ProofBytes) == 0 {
		return false
	}
	pub := encodePublic(p.Fingerprint, p.StartRoot, p.EndRoot, p.PublicInputs).bigInts()
	assignment := transitionCircuit{
		Fingerprint: pub[0],
		StartRoot:   pub[1],
		EndRoot:     pub[2],
		Inputs:      pub[3],
	}
	w, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		e.log.Debug().Err(err).Msg("public witness")
		return false
	}
	gp := groth16.NewProof(ecc.BN254)
	if _, err := gp.ReadFrom(bytes.NewReader(p.ProofBytes)); err != nil {
		e.log.Debug().Err(err).Msg("decode proof")
		return false
	}
	if err := groth16.Verify(gp, e.vk, w); err != nil {
		e.log.Debug().Err(err).Msg("groth16 verify")
		return false
	}
	return true
}

// keyPaths names the proving and verifying key files under dir.
func keyPaths(dir string) (pk, vk string) {
	return filepath.Join(dir, provingKeyFile), filepath.Join(dir, verifyingKeyFile)
}

// writeKeyFile serializes k next to path and renames it into place, so a
// reader never sees a partially written key.
func writeKeyFile(path string, k io.WriterTo) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := k.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readKeyFile(path string, k io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := k.ReadFrom(f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// SetupOrLoadKeys reads the BN254 key pair from pkPath and vkPath. If either
// is missing or unreadable it runs setup for ccs and writes the new pair.
func SetupOrLoadKeys(ccs constraint.ConstraintSystem, pkPath, vkPath string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pk := groth16.NewProvingKey(ecc.BN254)
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if readKeyFile(pkPath, pk) == nil && readKeyFile(vkPath, vk) == nil {
		return pk, vk, nil
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, err
	}
	if err := writeKeyFile(pkPath, pk); err != nil {
		return nil, nil, err
	}
	if err := writeKeyFile(vkPath, vk); err != nil {
		return nil, nil, err
	}
	return pk, vk, nil
}

// NewEngine selects a backend by name.
func NewEngine(backend, keyDir string, log zerolog.Logger) (Engine, error) {
	switch backend {
	case "", "digest":
		return NewDigestEngine(), nil
	case "groth16":
		return NewGroth16Engine(keyDir, log)
	default:
		return nil, fmt.Errorf("%w: %q", fault.ErrUnknownBackend, backend)
	}
}
