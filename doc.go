// Package animnode renders vector animation into an exported GPU texture from
// inside a node-graph host.
//
// # Overview
//
// A host creates one node per graph node and drives it through a small
// contract: Create, Execute once per render tick, Destroy. Two control ports,
// Resolution and AssetPath, trigger a rebuild of the scene and the render
// target. Every rebuild republishes the exported texture on the Output port
// and reconciles one input port per bindable value found in the asset.
//
// # Packages
//
//   - gpu: device selection, command context and fence (GraphicsContext)
//   - gpu/software: CPU backend built on gg pixmaps with shareable memory
//   - export: shared texture allocation, import and safe replacement
//   - asset: animation document decoding and the live scene runtime
//   - binding: discovery of bindable values and port reconciliation
//   - frame: the per-frame advance/apply/draw/flush/wait protocol
//   - node: the lifecycle state machine tying everything together
//   - host/memhost: an in-process host used by the CLI and tests
//
// # Logging
//
// animnode produces no log output by default. Call [SetLogger] to route the
// logs of every sub-package to a slog.Logger.
package animnode

// Version is the current version of the module.
const Version = "0.3.0"
