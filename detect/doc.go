// Package detect extracts physical boundaries from one snapshot profile.
//
// Two boundaries are detected per snapshot:
//
//   - Shock front: the most negative radial velocity at or beyond a bump offset
//   - Dense core (PNS) edge: the outermost grid point whose density exceeds a threshold
//
// Detection is a pure function of the profile arrays and the parameters.
// A bump is the only correction mechanism for known misdetections; it is
// looked up per snapshot from the configured override table by the caller.
//
// The package also resolves the reference bounce snapshot of a dataset
// (see BounceFinder) and integrates enclosed mass along the radial grid.
package detect
