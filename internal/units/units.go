// Package units defines the native unit system: lengths in cm, energies and
// momenta in MeV (MeV/c), time in s and magnetic fields in tesla.
package units

const (
	Centimeter = 1.0
	Millimeter = 0.1 * Centimeter
	Meter      = 100 * Centimeter
	Micrometer = 1e-4 * Centimeter

	MeV = 1.0
	KeV = 1e-3 * MeV
	EV  = 1e-6 * MeV
	GeV = 1e3 * MeV
	TeV = 1e6 * MeV

	Second     = 1.0
	Nanosecond = 1e-9 * Second

	Tesla = 1.0

	GramPerCm3 = 1.0
)

const (
	// CLight is the speed of light in cm/s.
	CLight = 2.99792458e10 * Centimeter / Second

	ElectronMass = 0.51099895000 * MeV
	MuonMass     = 105.6583755 * MeV
	ProtonMass   = 938.27208816 * MeV

	// ClassicalElectronRadius in cm.
	ClassicalElectronRadius = 2.8179403262e-13 * Centimeter

	// AvogadroNumber per mol.
	AvogadroNumber = 6.02214076e23

	// LorentzCoefficient converts q*B into dp/ds: a unit charge with
	// momentum p [MeV/c] in a field B [T] curves with radius p/(k*B) cm.
	LorentzCoefficient = 0.1 * 29.9792458
)
