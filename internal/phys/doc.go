// Package phys holds particle, material and tabulated physics data and the
// per-track views that read them.
//
// Tables are built once per (particle, material) pair on a log-spaced
// energy grid and are read-only afterwards. Track views index the
// struct-of-arrays states by slot.
package phys
