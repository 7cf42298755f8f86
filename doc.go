// Package poseml learns pose-driven corrective displacements for character
// rigs and plays them back in real time.
//
// A rigger captures training samples by sweeping rig channels while a
// sculpted corrective mesh tracks the base mesh; poseml then fits a small
// neural network mapping normalized channel angles to per-vertex
// displacement deltas, and freezes it into portable inference artifacts.
//
// # Packages
//
//   - dataset: captured sample storage and minibatch loading
//   - sampler: sample collection against a live rig
//   - nn: network architectures, manual backprop and the Adam optimizer
//   - decomposition: PCA basis for the compact architecture
//   - train: the optimization loop, checkpoints and loss curves
//   - export: frozen inference artifacts and their metadata sidecar
//   - deform: the fail-soft runtime gate that applies a loaded model
//
// # Quick Start
//
// Train from the command line:
//
//	poseml train --dataset captures.pmds --arch direct --epochs 200 --output out
//
// Then load the export in the runtime:
//
//	gate := deform.NewGate()
//	if err := gate.Load("out"); err != nil {
//	    log.Fatal(err)
//	}
//	// positions is the flat xyz vertex buffer for the current frame.
//	gate.Apply(poseDegrees, positions, 1.0, true)
package poseml
